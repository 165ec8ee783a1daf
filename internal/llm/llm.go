// Package llm talks to the language-model providers behind the site's chat
// assistant and project brief wizard.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/brightpixel/agency-portal/internal/config"
)

// Roles understood by every provider.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

var (
	// ErrNotConfigured is returned when the provider has no credentials.
	ErrNotConfigured = errors.New("llm: provider not configured")
	// ErrEmptyResponse is returned when the provider answered without text.
	ErrEmptyResponse = errors.New("llm: empty response")
)

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a provider-neutral completion request. Zero Temperature and
// MaxTokens use the client defaults.
type Request struct {
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Response is the completion text plus token accounting.
type Response struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	Model            string
}

// Completer produces an assistant reply for a conversation.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// APIError is a non-2xx answer from the provider.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llm: provider returned %d: %s", e.Status, e.Message)
}

// New builds the Completer selected by cfg.Provider.
func New(ctx context.Context, cfg config.LLMConfig) (Completer, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "openai":
		return NewOpenAIClient(cfg), nil
	case "bedrock":
		return NewBedrockClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}
