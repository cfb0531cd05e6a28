package models

// Message types delivered by the WhatsApp webhook.
const (
	MessageTypeText        = "text"
	MessageTypeLocation    = "location"
	MessageTypeInteractive = "interactive"
)

// IncomingMessage is a single inbound event, normalized from the webhook
// payload. Exactly one of Text, Location or ButtonID carries the payload,
// depending on Type.
type IncomingMessage struct {
	From        string    `json:"from"`
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Text        string    `json:"text,omitempty"`
	Location    *GeoPoint `json:"location,omitempty"`
	ButtonID    string    `json:"buttonId,omitempty"`
	ButtonTitle string    `json:"buttonTitle,omitempty"`
}

// SenderInfo carries the sender profile shipped alongside a webhook event.
type SenderInfo struct {
	Name string `json:"name"`
	WaID string `json:"waId"`
}

// GeoPoint is a latitude/longitude pair in decimal degrees.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
