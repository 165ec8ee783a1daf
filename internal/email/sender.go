// Package email sends transactional mail: contact form notifications,
// auto-replies, brief notifications and invoices.
package email

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/brightpixel/agency-portal/internal/config"
)

// ErrNoRecipient is returned when a message has no To address.
var ErrNoRecipient = errors.New("email: no recipient")

// Message is a fully rendered email.
type Message struct {
	To       string
	From     string
	FromName string
	ReplyTo  string
	Subject  string
	HTML     string
	Text     string
	Tags     map[string]string
}

// Sender delivers one message and returns the provider message id.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// NewSender builds the Sender selected by cfg.Provider.
func NewSender(ctx context.Context, cfg config.EmailConfig) (Sender, error) {
	switch strings.ToLower(cfg.Provider) {
	case "ses":
		return NewSESSender(ctx, cfg)
	case "", "log":
		return NewLogSender(cfg), nil
	default:
		return nil, fmt.Errorf("email: unknown provider %q", cfg.Provider)
	}
}

// fromHeader formats the From address, falling back to the configured sender.
func fromHeader(msg Message, cfg config.EmailConfig) string {
	addr := msg.From
	name := msg.FromName
	if addr == "" {
		addr = cfg.FromEmail
	}
	if name == "" {
		name = cfg.FromName
	}
	if name == "" {
		return addr
	}
	return fmt.Sprintf("%s <%s>", name, addr)
}
