package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/brightpixel/agency-portal/internal/config"
	"github.com/brightpixel/agency-portal/internal/pkg/httpretry"
)

const maxResponseBytes = 1 << 20

// OpenAIClient calls the chat completions endpoint.
type OpenAIClient struct {
	apiKey      string
	model       string
	baseURL     string
	maxTokens   int
	temperature float64
	httpClient  httpretry.HTTPDoer
	limiter     *rate.Limiter
}

type openAIRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewOpenAIClient creates a client from cfg. Requests are retried on 429/5xx
// and throttled to cfg.OpenAI.RequestsPerMinute.
func NewOpenAIClient(cfg config.LLMConfig) *OpenAIClient {
	timeout := cfg.Timeout()
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	rpm := cfg.OpenAI.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}
	burst := rpm / 10
	if burst < 1 {
		burst = 1
	}
	return &OpenAIClient{
		apiKey:      cfg.OpenAI.APIKey,
		model:       cfg.OpenAI.Model,
		baseURL:     strings.TrimRight(cfg.OpenAI.BaseURL, "/"),
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		httpClient:  httpretry.NewRetryClient(&http.Client{Timeout: timeout}, cfg.OpenAI.MaxRetries),
		limiter:     rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), burst),
	}
}

// Complete sends req to the chat completions API.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Response, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("llm: throttle: %w", err)
	}

	body := openAIRequest{
		Model:       c.model,
		Messages:    make([]Message, 0, len(req.Messages)+1),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	if req.Temperature > 0 {
		body.Temperature = req.Temperature
	}
	if req.MaxTokens > 0 {
		body.MaxTokens = req.MaxTokens
	}
	if req.System != "" {
		body.Messages = append(body.Messages, Message{Role: RoleSystem, Content: req.System})
	}
	body.Messages = append(body.Messages, req.Messages...)

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("llm: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("llm: read response: %w", err)
	}

	var parsed openAIResponse
	if err := json.Unmarshal(raw, &parsed); err != nil && resp.StatusCode == http.StatusOK {
		return nil, fmt.Errorf("llm: parse response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return nil, &APIError{Status: resp.StatusCode, Message: msg}
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return nil, ErrEmptyResponse
	}

	log.Printf("[llm] openai %s completed in %s (in: %d tokens, out: %d tokens)",
		parsed.Model, time.Since(start).Round(time.Millisecond),
		parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens)

	return &Response{
		Content:          parsed.Choices[0].Message.Content,
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
		Model:            parsed.Model,
	}, nil
}
