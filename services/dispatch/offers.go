package dispatch

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"cargalibre/models"
	"cargalibre/services/messaging"
	"cargalibre/services/sheets"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Button IDs the offer message carries. These are the canonical response
// tokens; free-text variants are not recognized.
const (
	OptionAccept = "accept"
	OptionReject = "reject"
)

const (
	msgNoTrips = "¡Vaya! 😔 No hay viajes disponibles ahora. Intenta de nuevo más tarde. 🚚"
	msgExpired = "¡Tiempo agotado! ⏰ El viaje se reasignó. Intenta de nuevo cuando quieras. 🚛"
	msgStale   = "¡Lo siento! ⏰ El tiempo para responder ya pasó. Pide otro viaje cuando quieras. 😊"
	msgReject  = "¡Entendido! 🙌 Viaje rechazado. Pide otro cuando quieras. 🚚"
	msgInvalid = "¡Ups! 🙈 Respuesta no válida. Usa los botones 'Aceptar' o 'Rechazar', por favor. 😊"
	msgContact = "📞 Comunícate con nuestro despachador para ultimar detalles."
)

// OfferManager owns the timed offer protocol: it matches a registered vehicle
// against the open-trip catalog, proposes the match, and resolves the offer on
// accept, reject or deadline expiry. One offer per sender at most.
type OfferManager struct {
	mu     sync.Mutex
	offers map[string]*offerEntry

	catalog  CatalogSource
	store    sheets.Store
	sender   messaging.Sender
	radiusKm float64
	timeout  time.Duration
	logger   *zap.Logger
}

type offerEntry struct {
	offer models.TripOffer
	// timer fires the expiry path; nil once cancelled by a response.
	timer *time.Timer
}

func NewOfferManager(catalog CatalogSource, store sheets.Store, sender messaging.Sender,
	radiusKm float64, timeout time.Duration, logger *zap.Logger) *OfferManager {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &OfferManager{
		offers:   make(map[string]*offerEntry),
		catalog:  catalog,
		store:    store,
		sender:   sender,
		radiusKm: radiusKm,
		timeout:  timeout,
		logger:   logger,
	}
}

// Active reports whether the sender has a pending offer.
func (m *OfferManager) Active(to string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.offers[to]
	return ok
}

// Clear drops any pending offer for the sender and cancels its deadline.
func (m *OfferManager) Clear(to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(to)
}

func (m *OfferManager) removeLocked(to string) {
	if e, ok := m.offers[to]; ok {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(m.offers, to)
	}
}

// Assign matches the vehicle against the catalog. On a miss the driver gets a
// notice and no offer is created; on a hit the offer is stored, the response
// deadline armed, and the trip summary sent with accept/reject buttons.
func (m *OfferManager) Assign(ctx context.Context, to string, t models.Transport) error {
	trips, err := m.catalog.OpenTrips(ctx)
	if err != nil {
		return fmt.Errorf("assign trip for %s: %w", to, err)
	}

	match := FindTrip(t, trips, m.radiusKm)
	if match == nil {
		m.logger.Info("No trip matched", zap.String("sender", to))
		_ = m.sender.SendText(ctx, to, msgNoTrips)
		return nil
	}

	m.mu.Lock()
	m.removeLocked(to)
	entry := &offerEntry{
		offer: models.TripOffer{Trip: *match, AssignedAt: time.Now()},
	}
	entry.timer = time.AfterFunc(m.timeout, func() { m.handleExpiry(to, entry) })
	m.offers[to] = entry
	m.mu.Unlock()

	m.logger.Info("Trip offered",
		zap.String("sender", to),
		zap.String("cargo", match.CargoType),
		zap.String("origin", match.Origin))

	_ = m.sender.SendButtons(ctx, to, offerText(*match, m.timeout), []messaging.Button{
		{ID: OptionAccept, Title: "Aceptar ✅"},
		{ID: OptionReject, Title: "Rechazar ❌"},
	})
	return nil
}

// HandleResponse resolves the pending offer. Disarming the deadline and
// clearing the offer happen under one lock hold: a deadline that fires at the
// same instant blocks on the mutex and then finds the timer nilled (or the
// entry replaced), so a response and an expiry can never both reach a
// terminal state. Returns true when the offer resolved and the caller should
// reset the sender's flow.
func (m *OfferManager) HandleResponse(ctx context.Context, to, option string) (bool, error) {
	m.mu.Lock()
	e, ok := m.offers[to]
	if !ok {
		m.mu.Unlock()
		_ = m.sender.SendText(ctx, to, msgStale)
		return false, nil
	}
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	trip := e.offer.Trip
	switch option {
	case OptionAccept, OptionReject:
		delete(m.offers, to)
	}
	m.mu.Unlock()

	switch option {
	case OptionAccept:
		return m.accept(ctx, to, trip)
	case OptionReject:
		m.logger.Info("Trip rejected", zap.String("sender", to))
		_ = m.sender.SendText(ctx, to, msgReject)
		return true, nil
	default:
		// Offer stays open without a deadline; the next valid response
		// still resolves it.
		_ = m.sender.SendText(ctx, to, msgInvalid)
		return false, nil
	}
}

func (m *OfferManager) accept(ctx context.Context, to string, trip models.Trip) (bool, error) {
	code, err := confirmationCode(6)
	if err != nil {
		return false, fmt.Errorf("accept trip for %s: %w", to, err)
	}

	contact := messaging.SupportContact()
	_ = m.sender.SendText(ctx, to, acceptText(trip, code, contact.Phone))
	_ = m.sender.SendText(ctx, to, msgContact)
	_ = m.sender.SendContact(ctx, to, contact)

	row := []interface{}{
		to, trip.CargoType, trip.Weight, trip.Volume,
		trip.Origin, trip.Destination, trip.PickupTime, trip.Price,
		code, time.Now().Format(time.RFC3339), uuid.NewString(),
	}
	if err := m.store.AppendRow(ctx, sheets.SheetAcceptedTrips, row); err != nil {
		return false, fmt.Errorf("record accepted trip for %s: %w", to, err)
	}

	m.logger.Info("Trip accepted",
		zap.String("sender", to), zap.String("code", code))
	return true, nil
}

// handleExpiry runs when the response deadline fires. The deadline may have
// lost a race with a response that was holding the lock when it fired, so it
// only acts if the map still holds its own entry with the deadline armed. An
// entry whose timer was nilled was either resolved or deliberately left open
// by an invalid response; a different entry belongs to a newer offer.
func (m *OfferManager) handleExpiry(to string, e *offerEntry) {
	m.mu.Lock()
	current, ok := m.offers[to]
	if !ok || current != e || e.timer == nil {
		m.mu.Unlock()
		return
	}
	delete(m.offers, to)
	m.mu.Unlock()

	m.logger.Info("Trip offer expired", zap.String("sender", to))
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = m.sender.SendText(ctx, to, msgExpired)
}

const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// confirmationCode generates a secure random code of the given length drawn
// from uppercase letters and digits.
func confirmationCode(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeCharset[int(b)%len(codeCharset)]
	}
	return string(buf), nil
}

func offerText(trip models.Trip, timeout time.Duration) string {
	return fmt.Sprintf(`¡Te tenemos un viaje! 🎉
- Tipo de carga: %s
- Peso: %g toneladas
- Volumen: %g m³
- Origen: %s
- Destino: %s
- Recogida: %s
- Flete: $%g
Tienes %d minutos para responder. ¿Aceptas? ⏳`,
		trip.CargoType, trip.Weight, trip.Volume, trip.Origin,
		trip.Destination, trip.PickupTime, trip.Price,
		int(timeout.Minutes()))
}

func acceptText(trip models.Trip, code, contactPhone string) string {
	return fmt.Sprintf(`¡Viaje aceptado! 🎉
Código de confirmación: %s
Contacto del cliente: %s
Detalles: %s -> %s
Flete: $%g`,
		code, contactPhone, trip.Origin, trip.Destination, trip.Price)
}
