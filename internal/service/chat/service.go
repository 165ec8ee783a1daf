package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/brightpixel/agency-portal/internal/domain"
	"github.com/brightpixel/agency-portal/internal/llm"
	"github.com/brightpixel/agency-portal/internal/security"
)

// DefaultSystemPrompt frames the assistant for site visitors.
const DefaultSystemPrompt = `You are the friendly assistant on the website of a small web design and development agency.
Answer questions about the agency's services: website design, web applications, e-commerce, SEO, maintenance and hosting.
Keep answers short and concrete. If someone wants a quote, suggest the project brief wizard or the contact form.
Never invent prices, client names or guarantees. If you don't know, say so and offer to connect them with the team.`

// Config controls prompt and input limits.
type Config struct {
	SystemPrompt     string
	MaxHistory       int
	MaxMessageLength int
	Temperature      float64
	MaxTokens        int
}

// Service forwards visitor questions to the language model.
type Service struct {
	llm      llm.Completer
	cfg      Config
	sanitize *security.Sanitizer
}

// NewService creates a chat service. completer may be nil when no provider
// is configured; Reply then returns ErrUnavailable.
func NewService(completer llm.Completer, cfg Config) *Service {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = 20
	}
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = 2000
	}
	return &Service{llm: completer, cfg: cfg, sanitize: security.NewSanitizer(cfg.MaxMessageLength)}
}

// Reply answers message in the context of history.
func (s *Service) Reply(ctx context.Context, message string, history []domain.ChatMessage) (string, error) {
	message = s.sanitize.Text(message)
	if message == "" {
		return "", ErrEmptyMessage
	}
	if s.llm == nil {
		return "", ErrUnavailable
	}

	msgs := append(CleanHistory(s.sanitize, history, s.cfg.MaxHistory), llm.Message{Role: llm.RoleUser, Content: message})
	resp, err := s.llm.Complete(ctx, llm.Request{
		System:      s.cfg.SystemPrompt,
		Messages:    msgs,
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	})
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			return "", ErrUnavailable
		}
		return "", fmt.Errorf("chat completion: %w", err)
	}

	reply := strings.TrimSpace(resp.Content)
	log.Printf("[chat.Service] reply model=%s prompt_tokens=%d completion_tokens=%d history=%d",
		resp.Model, resp.PromptTokens, resp.CompletionTokens, len(msgs)-1)
	return reply, nil
}

// CleanHistory keeps the last max user/assistant turns of history,
// sanitized. Other roles and turns that sanitize to nothing are dropped.
func CleanHistory(z *security.Sanitizer, history []domain.ChatMessage, max int) []llm.Message {
	out := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		if m.Role != domain.ChatRoleUser && m.Role != domain.ChatRoleAssistant {
			continue
		}
		content := z.Text(m.Content)
		if content == "" {
			continue
		}
		out = append(out, llm.Message{Role: m.Role, Content: content})
	}
	if max > 0 && len(out) > max {
		out = out[len(out)-max:]
	}
	return out
}
