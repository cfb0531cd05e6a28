package router

import (
	"context"
	"strings"

	"cargalibre/services/messaging"
)

const (
	msgAgentConfirm = "¿Seguro que quieres hablar con un agente humano? 🤔"
	msgStillHere    = "¡Ok! 😊 Sigo aquí para ayudarte. ¿En qué más puedo ayudarte?"
	assistantFooter = "\n\n¿Algo más? 🌟 Di 'salir' para volver o 'agente' para soporte humano."
)

// handleAssistantFlow serves free-form questions while the assistant session
// is active. "salir"/"volver" leave the session; mentioning a human agent
// starts the yes/no handoff sub-dialog.
func (h *Handler) handleAssistantFlow(ctx context.Context, to, lower, raw string) {
	if lower == keywordExit || lower == keywordBack {
		h.completeFlow(ctx, to)
		return
	}

	if strings.Contains(lower, "agente") || strings.Contains(lower, "humano") {
		_ = h.sender.SendButtons(ctx, to, msgAgentConfirm, []messaging.Button{
			{ID: OptionYesAgent, Title: "Sí ✅"},
			{ID: OptionNoAgent, Title: "No ❌"},
		})
		return
	}

	reply := h.ai.GetResponse(ctx, raw)
	_ = h.sender.SendText(ctx, to, reply+assistantFooter)
}

// handleAgentHandoff confirms the human handoff: session ends, the driver
// gets the dispatcher's number and contact card, and the menu comes back.
func (h *Handler) handleAgentHandoff(ctx context.Context, to string) {
	h.setAssistant(to, false)
	contact := messaging.SupportContact()
	_ = h.sender.SendText(ctx, to, "¡Perfecto! 📞 Contacta a nuestro equipo: "+contact.Phone)
	_ = h.sender.SendContact(ctx, to, contact)
	h.sendMainMenu(ctx, to)
}

// handleAgentDecline keeps the assistant session if one is active, otherwise
// just re-offers the menu.
func (h *Handler) handleAgentDecline(ctx context.Context, to string) {
	if h.assistantActive(to) {
		_ = h.sender.SendText(ctx, to, msgStillHere)
		return
	}
	h.sendMainMenu(ctx, to)
}
