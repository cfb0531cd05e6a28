package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"cargalibre/config"

	"go.uber.org/zap"
)

// GraphSender sends messages through the WhatsApp Cloud (Graph) API.
type GraphSender struct {
	client  *http.Client
	baseURL string
	token   string
	logger  *zap.Logger
}

// NewGraphSender builds a sender from the loaded application config.
func NewGraphSender(logger *zap.Logger) *GraphSender {
	cfg := config.AppConfig
	return &GraphSender{
		client: &http.Client{Timeout: 10 * time.Second},
		baseURL: fmt.Sprintf("https://graph.facebook.com/%s/%s/messages",
			cfg.WhatsAppAPIVersion, cfg.WhatsAppPhoneID),
		token:  cfg.WhatsAppToken,
		logger: logger,
	}
}

// SupportContact returns the dispatcher contact card configured for the
// business.
func SupportContact() Contact {
	cfg := config.AppConfig
	return Contact{
		FormattedName: "Transporte CargaLibre",
		FirstName:     "CargaLibre",
		Phone:         cfg.SupportPhone,
		WaID:          trimPlus(cfg.SupportPhone),
		Email:         cfg.SupportEmail,
		URL:           "https://cargalibre.com.co",
	}
}

func trimPlus(phone string) string {
	if len(phone) > 0 && phone[0] == '+' {
		return phone[1:]
	}
	return phone
}

func (s *GraphSender) SendText(ctx context.Context, to, body string) error {
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                to,
		"text":              map[string]string{"body": body},
	}
	return s.post(ctx, payload)
}

func (s *GraphSender) SendButtons(ctx context.Context, to, body string, buttons []Button) error {
	replies := make([]map[string]interface{}, 0, len(buttons))
	for _, b := range buttons {
		replies = append(replies, map[string]interface{}{
			"type":  "reply",
			"reply": map[string]string{"id": b.ID, "title": b.Title},
		})
	}
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "interactive",
		"interactive": map[string]interface{}{
			"type":   "button",
			"body":   map[string]string{"text": body},
			"action": map[string]interface{}{"buttons": replies},
		},
	}
	return s.post(ctx, payload)
}

func (s *GraphSender) SendContact(ctx context.Context, to string, contact Contact) error {
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "contacts",
		"contacts": []map[string]interface{}{
			{
				"name": map[string]string{
					"formatted_name": contact.FormattedName,
					"first_name":     contact.FirstName,
				},
				"phones": []map[string]string{
					{"phone": contact.Phone, "wa_id": contact.WaID, "type": "WORK"},
				},
				"emails": []map[string]string{
					{"email": contact.Email, "type": "WORK"},
				},
				"urls": []map[string]string{
					{"url": contact.URL, "type": "WORK"},
				},
			},
		},
	}
	return s.post(ctx, payload)
}

func (s *GraphSender) MarkAsRead(ctx context.Context, messageID string) error {
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"status":            "read",
		"message_id":        messageID,
	}
	return s.post(ctx, payload)
}

// post ships one payload to the Graph API. Failures are logged here so
// callers can treat delivery as fire-and-forget.
func (s *GraphSender) post(ctx context.Context, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("messaging: marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("messaging: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error("Failed to reach WhatsApp API", zap.Error(err))
		return fmt.Errorf("messaging: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		s.logger.Error("WhatsApp API rejected message",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", detail))
		return fmt.Errorf("messaging: api status %d", resp.StatusCode)
	}
	return nil
}
