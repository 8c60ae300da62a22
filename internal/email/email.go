package email

import "context"

// Address is a mailbox with an optional display name.
type Address struct {
	Name    string
	Address string
}

// Message is a composed email ready to hand to a Sender.
type Message struct {
	From            Address   // Sending mailbox
	To              []Address // Recipients
	ReplyTo         []Address // Where replies should go
	Subject         string
	HTMLBody        string // HTML body, user text already escaped
	TextBody        string // Plain text alternative
	SaveToSentItems bool   // Keep a copy in the sender's Sent Items
}

// Sender defines the interface for delivering a Message.
// Implementations include the Graph API, SMTP and a log-only sender.
type Sender interface {
	// Send delivers msg. token is the bearer token for transports that
	// authenticate per request; others ignore it.
	Send(ctx context.Context, token string, msg *Message) error
}
