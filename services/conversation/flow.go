package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"cargalibre/models"
	"cargalibre/services/messaging"
	"cargalibre/services/sheets"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TripAssigner hands a completed registration to the offer protocol.
type TripAssigner interface {
	Assign(ctx context.Context, to string, t models.Transport) error
}

// ExitKeyword aborts any dialog step, bypassing validation.
const ExitKeyword = "salir"

const (
	msgExited       = "¡Listo! 🙌 Has salido del flujo. ¿En qué más puedo ayudarte? 😊"
	msgInactive     = "⏰ *Sesión cerrada* por inactividad. ¡Envía 'hola' para empezar de nuevo!"
	msgFailSafe     = "¡Ups! 😓 Algo salió mal. Vamos a empezar de nuevo. 🚀"
	msgLocationHint = "¡Hey! 📍 Por favor, envía tu ubicación con el botón de WhatsApp (o di 'salir' para cancelar)."
	msgSearching    = "¡Gracias! 🎉 Estamos buscando un viaje para ti... 🚚"

	msgAskPlaca    = "¡Perfecto! 🔢 ¿Cuál es la placa de tu vehículo?"
	msgAskModelo   = "¡Bien! 📅 ¿Qué modelo es tu vehículo? (ejemplo: 2020)"
	msgAskVolume   = "¡Genial! 📏 ¿Cuál es la capacidad de volumen en metros cúbicos?"
	msgAskCapacity = "¡Super! ⚖️ ¿Cuál es la capacidad de carga máxima en toneladas?"
	msgAskLocation = "¡Último paso! 📍 Comparte tu ubicación actual con el botón de WhatsApp."

	msgBadPlaca    = "¡Oops! 🙈 Ingresa una placa válida (ejemplo: ABC123) o di 'salir' para cancelar."
	msgBadModelo   = "¡Vamos! 🚫 Ingresa un año válido (ejemplo: 2020) o di 'salir' para cancelar."
	msgBadVolume   = "¡Casi! 🔍 Ingresa un número válido mayor a 0 (o di 'salir' para cancelar)."
	msgBadCapacity = "¡Un paso más! 🔢 Ingresa un número válido mayor a 0 (o di 'salir' para cancelar)."
)

// Flow is the dialog engine: it owns the per-sender conversation states for
// the availability and balance dialogs, advances them one validated step per
// inbound message, and tears them down on completion, exit or inactivity.
type Flow struct {
	mu     sync.Mutex
	states map[string]*stateEntry

	store   sheets.Store
	sender  messaging.Sender
	offers  TripAssigner
	timeout time.Duration
	logger  *zap.Logger
}

type stateEntry struct {
	state models.ConversationState
	// timer fires the inactivity teardown; re-armed on every dialog start.
	timer *time.Timer
}

func NewFlow(store sheets.Store, sender messaging.Sender, offers TripAssigner,
	timeout time.Duration, logger *zap.Logger) *Flow {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Flow{
		states:  make(map[string]*stateEntry),
		store:   store,
		sender:  sender,
		offers:  offers,
		timeout: timeout,
		logger:  logger,
	}
}

// StartAvailability opens the vehicle registration dialog for the sender,
// replacing any dialog already in progress.
func (f *Flow) StartAvailability(to string) {
	f.start(to, models.StepVehicleType)
}

// StartBalance opens the single-step balance lookup dialog.
func (f *Flow) StartBalance(to string) {
	f.start(to, models.StepBalanceID)
}

func (f *Flow) start(to string, step models.Step) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeLocked(to)
	e := &stateEntry{state: models.ConversationState{Step: step}}
	e.timer = time.AfterFunc(f.timeout, func() { f.handleInactivity(to, e) })
	f.states[to] = e
}

// Active reports whether the sender has a dialog in progress.
func (f *Flow) Active(to string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.states[to]
	return ok
}

// Reset drops the sender's dialog state and cancels its inactivity deadline.
func (f *Flow) Reset(to string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeLocked(to)
}

func (f *Flow) removeLocked(to string) {
	if e, ok := f.states[to]; ok {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(f.states, to)
	}
}

// handleInactivity runs when the dialog deadline fires. The dialog may have
// finished or been restarted while the callback waited on the lock, so it
// only tears down the exact entry it was armed for.
func (f *Flow) handleInactivity(to string, e *stateEntry) {
	f.mu.Lock()
	current, ok := f.states[to]
	if !ok || current != e {
		f.mu.Unlock()
		return
	}
	delete(f.states, to)
	f.mu.Unlock()

	f.logger.Info("Dialog closed for inactivity", zap.String("sender", to))
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = f.sender.SendText(ctx, to, msgInactive)
}

// HandleText advances the sender's dialog with one text message. Messages for
// senders without a dialog are ignored.
func (f *Flow) HandleText(ctx context.Context, to, text string) {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	f.mu.Lock()
	e, ok := f.states[to]
	if !ok {
		f.mu.Unlock()
		return
	}
	if lower == ExitKeyword {
		f.removeLocked(to)
		f.mu.Unlock()
		_ = f.sender.SendText(ctx, to, msgExited)
		return
	}
	step := e.state.Step
	f.mu.Unlock()

	switch step {
	case models.StepLocation:
		// Free text can't carry coordinates; nudge toward the share button.
		_ = f.sender.SendText(ctx, to, msgLocationHint)
	case models.StepBalanceID:
		f.handleBalance(ctx, to, trimmed)
	default:
		f.handleAvailabilityStep(ctx, to, step, trimmed, lower)
	}
}

func (f *Flow) handleAvailabilityStep(ctx context.Context, to string, step models.Step, input, lower string) {
	switch step {
	case models.StepVehicleType:
		if !validVehicleType(lower) {
			first, rest := vehicleTypeExamples()
			_ = f.sender.SendText(ctx, to, fmt.Sprintf(
				"🚫 *Tipo de vehículo no reconocido*\n\nEjemplos válidos:\n- %s\n- %s\n\n¿Cuál es tu tipo de vehículo? (o escribe *\"salir\"* para cancelar)",
				first, rest))
			return
		}
		f.advance(to, func(st *models.ConversationState) {
			st.VehicleType = lower
			st.Step = models.StepPlaca
		})
		_ = f.sender.SendText(ctx, to, msgAskPlaca)

	case models.StepPlaca:
		if !validPlaca(input) {
			_ = f.sender.SendText(ctx, to, msgBadPlaca)
			return
		}
		f.advance(to, func(st *models.ConversationState) {
			st.Placa = strings.ToUpper(input)
			st.Step = models.StepModelo
		})
		_ = f.sender.SendText(ctx, to, msgAskModelo)

	case models.StepModelo:
		if !validYear(input) {
			_ = f.sender.SendText(ctx, to, msgBadModelo)
			return
		}
		f.advance(to, func(st *models.ConversationState) {
			st.Modelo = input
			st.Step = models.StepVolume
		})
		_ = f.sender.SendText(ctx, to, msgAskVolume)

	case models.StepVolume:
		vol, ok := parsePositiveNumber(input)
		if !ok {
			_ = f.sender.SendText(ctx, to, msgBadVolume)
			return
		}
		f.advance(to, func(st *models.ConversationState) {
			st.Volume = vol
			st.Step = models.StepCapacity
		})
		_ = f.sender.SendText(ctx, to, msgAskCapacity)

	case models.StepCapacity:
		capacity, ok := parsePositiveNumber(input)
		if !ok {
			_ = f.sender.SendText(ctx, to, msgBadCapacity)
			return
		}
		f.advance(to, func(st *models.ConversationState) {
			st.Capacity = capacity
			st.Step = models.StepLocation
		})
		_ = f.sender.SendText(ctx, to, msgAskLocation)

	default:
		// Internal inconsistency: a step no transition produces.
		f.failSafe(ctx, to, fmt.Errorf("unexpected dialog step %q", step))
	}
}

// advance mutates the sender's state under the lock, tolerating a dialog that
// was torn down (by timeout or exit) since the step was read.
func (f *Flow) advance(to string, mutate func(*models.ConversationState)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.states[to]; ok {
		mutate(&e.state)
	}
}

// HandleLocation completes the availability dialog when the sender shares a
// location at the location step. Location events at any other point are
// ignored.
func (f *Flow) HandleLocation(ctx context.Context, to string, loc models.GeoPoint) {
	f.mu.Lock()
	e, ok := f.states[to]
	if !ok || e.state.Step != models.StepLocation {
		f.mu.Unlock()
		return
	}
	e.state.Location = &loc
	st := e.state
	f.mu.Unlock()

	f.completeAvailability(ctx, to, st)
}

// completeAvailability persists the registration, thanks the driver and hands
// the vehicle to the offer protocol. Dialog state is cleared whether or not a
// trip is found.
func (f *Flow) completeAvailability(ctx context.Context, to string, st models.ConversationState) {
	t := models.Transport{
		Phone:       to,
		VehicleType: st.VehicleType,
		Placa:       st.Placa,
		Modelo:      st.Modelo,
		Capacity:    st.Capacity,
		Volume:      st.Volume,
		Location:    *st.Location,
		Timestamp:   time.Now().Format(time.RFC3339),
	}

	row := []interface{}{
		t.Phone, t.VehicleType, t.Placa, t.Modelo, t.Capacity, t.Volume,
		fmt.Sprintf("%v,%v", t.Location.Latitude, t.Location.Longitude),
		t.Timestamp, uuid.NewString(),
	}
	if err := f.store.AppendRow(ctx, sheets.SheetAvailability, row); err != nil {
		f.failSafe(ctx, to, err)
		return
	}

	_ = f.sender.SendText(ctx, to, msgSearching)

	if err := f.offers.Assign(ctx, to, t); err != nil {
		f.failSafe(ctx, to, err)
		return
	}
	f.Reset(to)
}

// failSafe aborts the dialog: state is cleared so nothing half-populated
// stays active, and the driver gets an apology.
func (f *Flow) failSafe(ctx context.Context, to string, err error) {
	f.logger.Error("Dialog aborted", zap.String("sender", to), zap.Error(err))
	f.Reset(to)
	_ = f.sender.SendText(ctx, to, msgFailSafe)
}
