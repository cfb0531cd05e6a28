package handlers

import (
	"context"
	"net/http"

	"cargalibre/config"
	"cargalibre/models"
	"cargalibre/services/router"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// webhookPayload mirrors the slice of the WhatsApp Cloud API notification we
// care about: messages plus the sender profile.
type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []graphMessage `json:"messages"`
				Contacts []graphContact `json:"contacts"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type graphMessage struct {
	From string `json:"from"`
	ID   string `json:"id"`
	Type string `json:"type"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Location *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location,omitempty"`
	Interactive *struct {
		ButtonReply struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply"`
	} `json:"interactive,omitempty"`
}

type graphContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// WebhookHandler terminates the WhatsApp webhook: the Meta verification
// handshake on GET and event delivery on POST.
type WebhookHandler struct {
	router *router.Handler
	logger *zap.Logger
}

func NewWebhookHandler(r *router.Handler, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{router: r, logger: logger}
}

// VerifyWebhook answers the subscription handshake by echoing hub.challenge
// when the verify token matches.
func (h *WebhookHandler) VerifyWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == config.AppConfig.WebhookVerifyToken {
		c.String(http.StatusOK, challenge)
		return
	}
	h.logger.Warn("Webhook verification rejected", zap.String("mode", mode))
	c.Status(http.StatusForbidden)
}

// ReceiveWebhook accepts an event batch. Messages are handed to the router on
// their own goroutines; the provider only needs a prompt 200.
func (h *WebhookHandler) ReceiveWebhook(c *gin.Context) {
	var payload webhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.logger.Warn("Malformed webhook payload", zap.Error(err))
		c.String(http.StatusOK, "EVENT_RECEIVED")
		return
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			info := senderInfo(change.Value.Contacts)
			for _, gm := range change.Value.Messages {
				msg := normalize(gm)
				go h.router.HandleIncoming(context.Background(), msg, info)
			}
		}
	}
	c.String(http.StatusOK, "EVENT_RECEIVED")
}

func senderInfo(contacts []graphContact) models.SenderInfo {
	if len(contacts) == 0 {
		return models.SenderInfo{}
	}
	return models.SenderInfo{
		Name: contacts[0].Profile.Name,
		WaID: contacts[0].WaID,
	}
}

func normalize(gm graphMessage) models.IncomingMessage {
	msg := models.IncomingMessage{
		From: gm.From,
		ID:   gm.ID,
		Type: gm.Type,
	}
	switch gm.Type {
	case models.MessageTypeText:
		if gm.Text != nil {
			msg.Text = gm.Text.Body
		}
	case models.MessageTypeLocation:
		if gm.Location != nil {
			msg.Location = &models.GeoPoint{
				Latitude:  gm.Location.Latitude,
				Longitude: gm.Location.Longitude,
			}
		}
	case models.MessageTypeInteractive:
		if gm.Interactive != nil {
			msg.ButtonID = gm.Interactive.ButtonReply.ID
			msg.ButtonTitle = gm.Interactive.ButtonReply.Title
		}
	}
	return msg
}
