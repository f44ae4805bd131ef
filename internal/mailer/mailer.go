// Package mailer defines the uniform outbound email contract implemented by
// the transport providers (ESP, Gmail, Microsoft Graph, direct SMTP) and the
// factory that resolves which provider serves a given account or company.
package mailer

import (
	"context"
	"time"
)

// Message is one outbound email. Immutable per send; the caller owns
// deduplication and retry policy.
type Message struct {
	From     string            `json:"from"`
	FromName string            `json:"from_name,omitempty"`
	To       string            `json:"to"`
	Subject  string            `json:"subject"`
	HTML     string            `json:"html"`
	Text     string            `json:"text,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	ReplyTo  string            `json:"reply_to,omitempty"`
}

// SendResult reports acceptance by the transport, not delivery.
type SendResult struct {
	ProviderMessageID string    `json:"provider_message_id"`
	AcceptedAt        time.Time `json:"accepted_at"`
}

// Capabilities declares auxiliary behavior a provider supports beyond Send.
// Callers use these to decide inbound sync, webhook registration and
// threading behavior; nothing in the send path reads them.
type Capabilities struct {
	Inbound   bool
	Webhooks  bool
	Threading bool
}

// Provider is the uniform send contract over all transports. Send blocks for
// at most one token refresh plus one transport call; both honor ctx.
type Provider interface {
	Name() string
	Capabilities() Capabilities
	Send(ctx context.Context, msg *Message) (*SendResult, error)
}

// Validate checks the fields every transport requires. Header collisions with
// protocol-reserved names (From, To, Subject, Content-Type) are the caller's
// responsibility.
func (m *Message) Validate() error {
	switch {
	case m.To == "":
		return &PermanentError{Detail: "message is missing a recipient"}
	case m.From == "":
		return &PermanentError{Detail: "message is missing a sender"}
	case m.Subject == "":
		return &PermanentError{Detail: "message is missing a subject"}
	case m.HTML == "":
		return &PermanentError{Detail: "message is missing an HTML body"}
	}
	return nil
}
