package dispatch

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"cargalibre/models"
	"cargalibre/services/messaging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSender struct {
	mu       sync.Mutex
	texts    []string
	buttons  []string
	contacts int
}

func (s *fakeSender) SendText(_ context.Context, _, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, body)
	return nil
}

func (s *fakeSender) SendButtons(_ context.Context, _, body string, _ []messaging.Button) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buttons = append(s.buttons, body)
	return nil
}

func (s *fakeSender) SendContact(_ context.Context, _ string, _ messaging.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts++
	return nil
}

func (s *fakeSender) MarkAsRead(context.Context, string) error { return nil }

func (s *fakeSender) textCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.texts)
}

func (s *fakeSender) lastText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.texts) == 0 {
		return ""
	}
	return s.texts[len(s.texts)-1]
}

type fakeStore struct {
	mu        sync.Mutex
	appended  map[string][][]interface{}
	rows      map[string][][]interface{}
	appendErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		appended: make(map[string][][]interface{}),
		rows:     make(map[string][][]interface{}),
	}
}

func (s *fakeStore) AppendRow(_ context.Context, sheetName string, row []interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.appended[sheetName] = append(s.appended[sheetName], row)
	return nil
}

func (s *fakeStore) ReadRows(_ context.Context, sheetName, _ string) ([][]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[sheetName], nil
}

func (s *fakeStore) appendedTo(sheetName string) [][]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appended[sheetName]
}

type staticCatalog struct {
	trips []models.Trip
	err   error
}

func (c *staticCatalog) OpenTrips(context.Context) ([]models.Trip, error) {
	return c.trips, c.err
}

func matchableTrip() models.Trip {
	return models.Trip{
		CargoType:   "granel",
		Weight:      8,
		Volume:      15,
		Origin:      "Bello",
		OriginLat:   6.56,
		OriginLon:   -75.5,
		Destination: "Bogotá",
		PickupTime:  "2026-09-01T08:00:00Z",
		Price:       2500000,
	}
}

func newTestManager(trips []models.Trip, timeout time.Duration) (*OfferManager, *fakeSender, *fakeStore) {
	sender := &fakeSender{}
	store := newFakeStore()
	m := NewOfferManager(&staticCatalog{trips: trips}, store, sender, 50, timeout, zap.NewNop())
	return m, sender, store
}

var codePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

func TestAssign_NoMatchSendsNotice(t *testing.T) {
	m, sender, _ := newTestManager(nil, time.Minute)

	require.NoError(t, m.Assign(context.Background(), "u1", testVehicle()))
	assert.False(t, m.Active("u1"))
	assert.Contains(t, sender.lastText(), "No hay viajes disponibles")
}

func TestAssign_MatchCreatesOffer(t *testing.T) {
	m, sender, _ := newTestManager([]models.Trip{matchableTrip()}, time.Minute)

	require.NoError(t, m.Assign(context.Background(), "u1", testVehicle()))
	assert.True(t, m.Active("u1"))

	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.Len(t, sender.buttons, 1)
	assert.Contains(t, sender.buttons[0], "granel")
	assert.Contains(t, sender.buttons[0], "Bello")
}

func TestAssign_CatalogErrorPropagates(t *testing.T) {
	sender := &fakeSender{}
	m := NewOfferManager(&staticCatalog{err: errors.New("sheet down")}, newFakeStore(), sender, 50, time.Minute, zap.NewNop())

	err := m.Assign(context.Background(), "u1", testVehicle())
	require.Error(t, err)
	assert.False(t, m.Active("u1"))
}

func TestHandleResponse_AcceptRecordsTrip(t *testing.T) {
	m, sender, store := newTestManager([]models.Trip{matchableTrip()}, time.Minute)
	ctx := context.Background()
	require.NoError(t, m.Assign(ctx, "u1", testVehicle()))

	done, err := m.HandleResponse(ctx, "u1", OptionAccept)
	require.NoError(t, err)
	assert.True(t, done)
	assert.False(t, m.Active("u1"))

	rows := store.appendedTo("ViajesAceptados")
	require.Len(t, rows, 1)
	code, ok := rows[0][8].(string)
	require.True(t, ok)
	assert.Regexp(t, codePattern, code)
	assert.Equal(t, "u1", rows[0][0])

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Equal(t, 1, sender.contacts)
}

func TestHandleResponse_Reject(t *testing.T) {
	m, sender, store := newTestManager([]models.Trip{matchableTrip()}, time.Minute)
	ctx := context.Background()
	require.NoError(t, m.Assign(ctx, "u1", testVehicle()))

	done, err := m.HandleResponse(ctx, "u1", OptionReject)
	require.NoError(t, err)
	assert.True(t, done)
	assert.False(t, m.Active("u1"))
	assert.Empty(t, store.appendedTo("ViajesAceptados"))
	assert.Contains(t, sender.lastText(), "rechazado")
}

func TestHandleResponse_InvalidKeepsOfferOpen(t *testing.T) {
	m, sender, _ := newTestManager([]models.Trip{matchableTrip()}, time.Minute)
	ctx := context.Background()
	require.NoError(t, m.Assign(ctx, "u1", testVehicle()))

	done, err := m.HandleResponse(ctx, "u1", "tal vez")
	require.NoError(t, err)
	assert.False(t, done)
	assert.True(t, m.Active("u1"))
	assert.Contains(t, sender.lastText(), "Respuesta no válida")

	// A valid response afterwards still resolves the offer.
	done, err = m.HandleResponse(ctx, "u1", OptionAccept)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestHandleResponse_StaleOffer(t *testing.T) {
	m, sender, _ := newTestManager(nil, time.Minute)

	done, err := m.HandleResponse(context.Background(), "u1", OptionAccept)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Contains(t, sender.lastText(), "ya pasó")
}

func TestOfferExpiry(t *testing.T) {
	m, sender, store := newTestManager([]models.Trip{matchableTrip()}, 50*time.Millisecond)
	ctx := context.Background()
	require.NoError(t, m.Assign(ctx, "u1", testVehicle()))
	require.True(t, m.Active("u1"))

	require.Eventually(t, func() bool { return !m.Active("u1") }, 2*time.Second, 10*time.Millisecond)

	assert.Empty(t, store.appendedTo("ViajesAceptados"))
	require.Eventually(t, func() bool { return sender.textCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, sender.lastText(), "Tiempo agotado")

	// A response after expiry hits the stale path.
	done, err := m.HandleResponse(ctx, "u1", OptionAccept)
	require.NoError(t, err)
	assert.False(t, done)
}

func TestAcceptCancelsDeadline(t *testing.T) {
	m, sender, store := newTestManager([]models.Trip{matchableTrip()}, 50*time.Millisecond)
	ctx := context.Background()
	require.NoError(t, m.Assign(ctx, "u1", testVehicle()))

	done, err := m.HandleResponse(ctx, "u1", OptionAccept)
	require.NoError(t, err)
	require.True(t, done)

	// Give a stale timer a chance to fire; it must not send the expiry notice.
	time.Sleep(150 * time.Millisecond)
	sender.mu.Lock()
	for _, text := range sender.texts {
		assert.NotContains(t, text, "Tiempo agotado")
	}
	sender.mu.Unlock()
	require.Len(t, store.appendedTo("ViajesAceptados"), 1)
}

func TestExpiryLosingRaceToResponseDoesNothing(t *testing.T) {
	m, sender, store := newTestManager([]models.Trip{matchableTrip()}, time.Minute)
	ctx := context.Background()
	require.NoError(t, m.Assign(ctx, "u1", testVehicle()))

	m.mu.Lock()
	entry := m.offers["u1"]
	m.mu.Unlock()
	require.NotNil(t, entry)

	done, err := m.HandleResponse(ctx, "u1", OptionAccept)
	require.NoError(t, err)
	require.True(t, done)

	// Model a deadline that fired while the response held the lock: the
	// expiry goroutine runs after the offer already resolved.
	m.handleExpiry("u1", entry)

	require.Len(t, store.appendedTo("ViajesAceptados"), 1)
	assert.False(t, m.Active("u1"))
	sender.mu.Lock()
	for _, text := range sender.texts {
		assert.NotContains(t, text, "Tiempo agotado")
	}
	sender.mu.Unlock()
}

func TestExpiryAfterInvalidResponseBacksOff(t *testing.T) {
	m, sender, store := newTestManager([]models.Trip{matchableTrip()}, time.Minute)
	ctx := context.Background()
	require.NoError(t, m.Assign(ctx, "u1", testVehicle()))

	m.mu.Lock()
	entry := m.offers["u1"]
	m.mu.Unlock()

	// An invalid response disarms the deadline but keeps the offer open.
	done, err := m.HandleResponse(ctx, "u1", "tal vez")
	require.NoError(t, err)
	require.False(t, done)

	m.handleExpiry("u1", entry)
	assert.True(t, m.Active("u1"))
	sender.mu.Lock()
	for _, text := range sender.texts {
		assert.NotContains(t, text, "Tiempo agotado")
	}
	sender.mu.Unlock()

	// The offer is still resolvable.
	done, err = m.HandleResponse(ctx, "u1", OptionAccept)
	require.NoError(t, err)
	assert.True(t, done)
	require.Len(t, store.appendedTo("ViajesAceptados"), 1)
}

func TestStaleTimerFromReplacedOfferIgnored(t *testing.T) {
	m, sender, _ := newTestManager([]models.Trip{matchableTrip()}, time.Minute)
	ctx := context.Background()
	require.NoError(t, m.Assign(ctx, "u1", testVehicle()))

	m.mu.Lock()
	stale := m.offers["u1"]
	m.mu.Unlock()

	m.Clear("u1")
	require.NoError(t, m.Assign(ctx, "u1", testVehicle()))

	// The replaced offer's deadline must not tear down the new one.
	m.handleExpiry("u1", stale)
	assert.True(t, m.Active("u1"))
	sender.mu.Lock()
	for _, text := range sender.texts {
		assert.NotContains(t, text, "Tiempo agotado")
	}
	sender.mu.Unlock()
}

func TestAppendFailureClearsOffer(t *testing.T) {
	m, _, store := newTestManager([]models.Trip{matchableTrip()}, time.Minute)
	store.appendErr = errors.New("sheet down")
	ctx := context.Background()
	require.NoError(t, m.Assign(ctx, "u1", testVehicle()))

	done, err := m.HandleResponse(ctx, "u1", OptionAccept)
	require.Error(t, err)
	assert.False(t, done)
	assert.False(t, m.Active("u1"))
}

func TestConfirmationCodeShape(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := confirmationCode(6)
		require.NoError(t, err)
		require.Regexp(t, codePattern, code)
		seen[code] = true
	}
	// 50 draws from a 36^6 space colliding would point at a broken generator.
	assert.Greater(t, len(seen), 45)
}
