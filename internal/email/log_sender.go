package email

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/brightpixel/agency-portal/internal/config"
	"github.com/brightpixel/agency-portal/internal/pkg/logger"
)

// LogSender writes messages to the structured log instead of sending them.
// Used in development and tests; Sent keeps every message it received.
type LogSender struct {
	cfg config.EmailConfig

	mu   sync.Mutex
	sent []Message
}

// NewLogSender creates a LogSender.
func NewLogSender(cfg config.EmailConfig) *LogSender {
	return &LogSender{cfg: cfg}
}

// Send logs msg with the recipient redacted.
func (s *LogSender) Send(_ context.Context, msg Message) (string, error) {
	if msg.To == "" {
		return "", ErrNoRecipient
	}
	id := "log-" + uuid.NewString()

	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()

	logger.Info("email_logged",
		"to", msg.To,
		"from", fromHeader(msg, s.cfg),
		"subject", msg.Subject,
		"message_id", id,
	)
	return id, nil
}

// Sent returns a copy of the messages logged so far.
func (s *LogSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}
