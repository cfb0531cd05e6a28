// File: services/intelligence/interface.go
package ai

import (
	"context"

	"go.uber.org/zap"
)

// Fallback is returned whenever the assistant backend fails; the user always
// gets a reply.
const Fallback = "Lo siento, ocurrió un error al procesar tu mensaje."

const systemPrompt = "Eres el asistente de Transporte CargaLibre, una empresa de " +
	"logística de carga en Colombia. Responde en español, de forma breve y amable, " +
	"preguntas sobre viajes, saldos, facturas y soporte. Pregunta del transportista: "

// Assistant answers free-form questions from drivers.
type Assistant interface {
	GetResponse(ctx context.Context, text string) string
}

// GeminiAssistant implements Assistant on top of the Gemini client.
type GeminiAssistant struct {
	client *GeminiClient
	logger *zap.Logger
}

func NewGeminiAssistant(client *GeminiClient, logger *zap.Logger) *GeminiAssistant {
	return &GeminiAssistant{client: client, logger: logger}
}

func (a *GeminiAssistant) GetResponse(ctx context.Context, text string) string {
	reply, err := a.client.GenerateContent(ctx, systemPrompt+text)
	if err != nil {
		a.logger.Error("Assistant request failed", zap.Error(err))
		return Fallback
	}
	return reply
}
