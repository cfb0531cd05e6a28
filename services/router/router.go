package router

import (
	"context"
	"regexp"
	"strings"
	"sync"

	ai "cargalibre/services/intelligence"
	"cargalibre/services/messaging"

	"cargalibre/models"

	"go.uber.org/zap"
)

// Menu and confirmation button IDs.
const (
	OptionTrip      = "option_1"
	OptionBalance   = "option_2"
	OptionSupport   = "option_3"
	OptionYesAgent  = "yes_agent"
	OptionNoAgent   = "no_agent"
	keywordExit     = "salir"
	keywordBack     = "volver"
	defaultUserName = "transportista"
)

const (
	msgMenu          = "Selecciona una opción: 🚚"
	msgNotUnderstood = "¡Ups! 🙈 No entendí eso. Prueba con 'hola' para empezar o 'soporte' para ayuda. 😊"
	msgInvalidOption = "¡Ups! 🙈 Opción no válida. Usa los botones del menú, por favor. 😊"
	msgAskVehicle    = "¡Genial! 🚚 Indica el tipo de vehículo (turbo, sencillo, dobletroque, mula, etc.)."
	msgAskManifest   = "¡Claro! 💸 Por favor, ingresa tu ID de manifiesto."
	msgAssistantOn   = "¡Aquí estoy para ayudarte! 🤖 Soy tu asistente de Transporte CargaLibre. ¿En qué te ayudo? (Di 'salir' para volver o 'agente' para soporte humano)."
	msgApology       = "¡Lo siento! 😓 Ocurrió un error. Intenta de nuevo, por favor. 🙏"
)

// starters are greeting or intent phrases that (re)open the main menu.
var starters = []string{
	"hola", "hello", "hi", "buenos días", "buenas tardes", "buenas noches", "tardes", "días", "saludos",
	"ayuda", "soporte", "menú", "menu", "inicio", "empezar", "start", "hablemos",
	"qué", "cómo", "cuándo", "dónde", "quién", "cuánto", "por qué", "puedes", "necesito",
	"hey", "oye", "alo", "listo", "ok", "sí", "claro", "quiero",
	"viaje", "viajes", "carga", "transporte", "saldo", "factura", "disponibilidad",
}

// businessKeywords route free text to the assistant when no flow is active.
var businessKeywords = []string{"saldo", "conseguir viaje", "soporte", "viaje", "factura"}

var namePattern = regexp.MustCompile(`[A-Za-zÁÉÍÓÚáéíóúÑñ'\-. ]+`)

// DialogFlow is the dialog engine surface the router dispatches into.
type DialogFlow interface {
	Active(sender string) bool
	StartAvailability(sender string)
	StartBalance(sender string)
	HandleText(ctx context.Context, sender, text string)
	HandleLocation(ctx context.Context, sender string, loc models.GeoPoint)
	Reset(sender string)
}

// OfferService is the offer protocol surface the router dispatches into.
type OfferService interface {
	Active(sender string) bool
	HandleResponse(ctx context.Context, sender, option string) (bool, error)
	Clear(sender string)
}

// Handler is the top-level dispatcher for inbound events. It enforces
// at-most-one-in-flight handling per sender (excess concurrent events are
// dropped, not queued) and routes each event by precedence: active dialog,
// active offer, active assistant session, then fresh-contact handling.
type Handler struct {
	mu        sync.Mutex
	inFlight  map[string]struct{}
	assistant map[string]bool
	menuSent  map[string]bool

	flow   DialogFlow
	offers OfferService
	ai     ai.Assistant
	sender messaging.Sender
	logger *zap.Logger
}

func NewHandler(flow DialogFlow, offers OfferService, assistant ai.Assistant,
	sender messaging.Sender, logger *zap.Logger) *Handler {
	return &Handler{
		inFlight:  make(map[string]struct{}),
		assistant: make(map[string]bool),
		menuSent:  make(map[string]bool),
		flow:      flow,
		offers:    offers,
		ai:        assistant,
		sender:    sender,
		logger:    logger,
	}
}

// HandleIncoming processes one inbound event end to end.
func (h *Handler) HandleIncoming(ctx context.Context, msg models.IncomingMessage, info models.SenderInfo) {
	if msg.From == "" || msg.ID == "" {
		return
	}
	if !h.tryAcquire(msg.From) {
		h.logger.Debug("Dropped concurrent message", zap.String("sender", msg.From))
		return
	}
	defer h.release(msg.From)

	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Panic while handling message",
				zap.String("sender", msg.From), zap.Any("panic", r))
			_ = h.sender.SendText(ctx, msg.From, msgApology)
		}
	}()

	switch msg.Type {
	case models.MessageTypeText:
		h.handleText(ctx, msg.From, msg.Text, info)
	case models.MessageTypeLocation:
		if msg.Location != nil {
			h.flow.HandleLocation(ctx, msg.From, *msg.Location)
		}
	case models.MessageTypeInteractive:
		h.handleInteractive(ctx, msg.From, msg.ButtonID)
	default:
		h.logger.Debug("Ignoring message type",
			zap.String("sender", msg.From), zap.String("type", msg.Type))
	}

	_ = h.sender.MarkAsRead(ctx, msg.ID)
}

func (h *Handler) tryAcquire(sender string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, busy := h.inFlight[sender]; busy {
		return false
	}
	h.inFlight[sender] = struct{}{}
	return true
}

func (h *Handler) release(sender string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.inFlight, sender)
}

func (h *Handler) handleText(ctx context.Context, from, text string, info models.SenderInfo) {
	lower := strings.ToLower(strings.TrimSpace(text))

	switch {
	case h.flow.Active(from):
		h.flow.HandleText(ctx, from, text)

	case h.offers.Active(from):
		done, err := h.offers.HandleResponse(ctx, from, lower)
		if err != nil {
			h.logger.Error("Offer response failed", zap.String("sender", from), zap.Error(err))
			_ = h.sender.SendText(ctx, from, msgApology)
			return
		}
		if done {
			h.completeFlow(ctx, from)
		}

	case h.assistantActive(from):
		h.handleAssistantFlow(ctx, from, lower, text)

	case h.isStarter(lower):
		h.sendWelcome(ctx, from, info)
		h.sendMainMenuIfNotSent(ctx, from)

	case h.hasBusinessKeyword(lower):
		reply := h.ai.GetResponse(ctx, text)
		_ = h.sender.SendText(ctx, from, reply)
		h.sendMainMenuIfNotSent(ctx, from)

	default:
		_ = h.sender.SendText(ctx, from, msgNotUnderstood)
		h.sendMainMenuIfNotSent(ctx, from)
	}
}

func (h *Handler) handleInteractive(ctx context.Context, from, buttonID string) {
	option := strings.ToLower(strings.TrimSpace(buttonID))

	if h.offers.Active(from) {
		done, err := h.offers.HandleResponse(ctx, from, option)
		if err != nil {
			h.logger.Error("Offer response failed", zap.String("sender", from), zap.Error(err))
			_ = h.sender.SendText(ctx, from, msgApology)
			return
		}
		if done {
			h.completeFlow(ctx, from)
		}
		return
	}

	h.handleMenuOption(ctx, from, option)
}

func (h *Handler) handleMenuOption(ctx context.Context, to, option string) {
	switch option {
	case OptionTrip:
		h.setAssistant(to, false)
		h.flow.StartAvailability(to)
		_ = h.sender.SendText(ctx, to, msgAskVehicle)
	case OptionBalance:
		h.setAssistant(to, false)
		h.flow.StartBalance(to)
		_ = h.sender.SendText(ctx, to, msgAskManifest)
	case OptionSupport:
		h.setAssistant(to, true)
		_ = h.sender.SendText(ctx, to, msgAssistantOn)
	case OptionYesAgent:
		h.handleAgentHandoff(ctx, to)
	case OptionNoAgent:
		h.handleAgentDecline(ctx, to)
	default:
		_ = h.sender.SendText(ctx, to, msgInvalidOption)
	}
}

// completeFlow returns the sender to a clean slate: dialog state, offer,
// assistant session and menu flag all go, then the main menu is re-sent.
func (h *Handler) completeFlow(ctx context.Context, to string) {
	h.flow.Reset(to)
	h.offers.Clear(to)
	h.mu.Lock()
	delete(h.assistant, to)
	delete(h.menuSent, to)
	h.mu.Unlock()
	h.sendMainMenu(ctx, to)
}

func (h *Handler) sendWelcome(ctx context.Context, to string, info models.SenderInfo) {
	name := senderName(info)
	_ = h.sender.SendText(ctx, to,
		"¡Hola "+name+"! 👋 Bienvenid@ a Transporte CargaLibre. ¿En qué puedo ayudarte hoy? 😊")
}

func (h *Handler) sendMainMenu(ctx context.Context, to string) {
	_ = h.sender.SendButtons(ctx, to, msgMenu, []messaging.Button{
		{ID: OptionTrip, Title: "Conseguir viaje 🚛"},
		{ID: OptionBalance, Title: "Consultar Saldo 💰"},
		{ID: OptionSupport, Title: "Soporte 🆘"},
	})
	h.mu.Lock()
	h.menuSent[to] = true
	h.mu.Unlock()
}

func (h *Handler) sendMainMenuIfNotSent(ctx context.Context, to string) {
	h.mu.Lock()
	sent := h.menuSent[to]
	h.mu.Unlock()
	if !sent {
		h.sendMainMenu(ctx, to)
	}
}

func (h *Handler) assistantActive(to string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.assistant[to]
}

func (h *Handler) setAssistant(to string, active bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if active {
		h.assistant[to] = true
	} else {
		delete(h.assistant, to)
	}
}

func (h *Handler) isStarter(lower string) bool {
	for _, s := range starters {
		if lower == s || strings.HasPrefix(lower, s) || strings.Contains(lower, " "+s+" ") {
			return true
		}
	}
	return false
}

func (h *Handler) hasBusinessKeyword(lower string) bool {
	for _, k := range businessKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// senderName cleans the profile name shipped with the webhook event, falling
// back to a generic salutation.
func senderName(info models.SenderInfo) string {
	raw := info.Name
	if raw == "" {
		raw = info.WaID
	}
	cleaned := strings.TrimSpace(strings.Join(namePattern.FindAllString(raw, -1), ""))
	if cleaned == "" {
		return defaultUserName
	}
	return cleaned
}
