package mailer

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotConfigured is returned when no transport or sender address is set up.
// It is reported before any network attempt is made.
var ErrNotConfigured = errors.New("mailer: transport not configured")

// Message represents an email to send. Text is required, HTML is an optional
// alternative part.
type Message struct {
	From    string
	To      []string
	ReplyTo string
	Subject string
	HTML    string
	Text    string
}

// SendResult contains the response from the provider.
type SendResult struct {
	ProviderMessageID string
}

// Provider sends emails via a specific backend.
type Provider interface {
	Name() string
	Send(ctx context.Context, msg Message) (SendResult, error)
}

// DeliveryError wraps a transport, auth or network failure from a provider.
type DeliveryError struct {
	Provider string
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("mailer: %s delivery failed: %v", e.Provider, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Mailer is the top-level entry point for sending emails.
type Mailer struct {
	provider    Provider
	fromAddress string
}

// New creates a new Mailer with the given provider and default sender address.
// A nil provider yields a Mailer whose Send always fails with ErrNotConfigured.
func New(provider Provider, fromAddress string) *Mailer {
	return &Mailer{
		provider:    provider,
		fromAddress: fromAddress,
	}
}

// Configured reports whether both a provider and a sender address are set.
func (m *Mailer) Configured() bool {
	return m != nil && m.provider != nil && m.fromAddress != ""
}

// Send sends an email message via the configured provider. Exactly one
// delivery attempt is made.
// If msg.From is empty, the default fromAddress is used.
func (m *Mailer) Send(ctx context.Context, msg Message) (SendResult, error) {
	if !m.Configured() {
		return SendResult{}, ErrNotConfigured
	}
	if len(msg.To) == 0 {
		return SendResult{}, errors.New("mailer: message has no recipients")
	}
	if msg.Text == "" {
		return SendResult{}, errors.New("mailer: message has no text body")
	}
	if msg.From == "" {
		msg.From = m.fromAddress
	}

	result, err := m.provider.Send(ctx, msg)
	if err != nil {
		var deliveryErr *DeliveryError
		if errors.As(err, &deliveryErr) {
			return SendResult{}, err
		}
		return SendResult{}, &DeliveryError{Provider: m.provider.Name(), Err: err}
	}
	return result, nil
}

// ProviderName returns the name of the configured provider.
func (m *Mailer) ProviderName() string {
	if m == nil || m.provider == nil {
		return "none"
	}
	return m.provider.Name()
}
