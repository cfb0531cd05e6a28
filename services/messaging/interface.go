package messaging

import "context"

// Button is one interactive reply option. The WhatsApp Cloud API allows at
// most three per message.
type Button struct {
	ID    string
	Title string
}

// Contact is a contact card pushed to the chat.
type Contact struct {
	FormattedName string
	FirstName     string
	Phone         string
	WaID          string
	Email         string
	URL           string
}

// Sender delivers outbound messages to the chat channel. Delivery is
// best-effort: implementations log failures and the returned error is
// informational, the core never retries.
type Sender interface {
	SendText(ctx context.Context, to, body string) error
	SendButtons(ctx context.Context, to, body string, buttons []Button) error
	SendContact(ctx context.Context, to string, contact Contact) error
	MarkAsRead(ctx context.Context, messageID string) error
}
