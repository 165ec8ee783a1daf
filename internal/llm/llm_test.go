package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpixel/agency-portal/internal/config"
)

func testLLMConfig(baseURL string) config.LLMConfig {
	return config.LLMConfig{
		Provider:       "openai",
		TimeoutSeconds: 5,
		MaxTokens:      300,
		Temperature:    0.5,
		OpenAI: config.OpenAIConfig{
			APIKey:            "sk-test",
			Model:             "gpt-4o-mini",
			BaseURL:           baseURL,
			RequestsPerMinute: 600,
		},
		Bedrock: config.BedrockConfig{ModelID: "anthropic.claude-3-haiku-20240307-v1:0"},
	}
}

func TestOpenAIComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req openAIRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		assert.Equal(t, 300, req.MaxTokens)
		if assert.Len(t, req.Messages, 3) {
			assert.Equal(t, RoleSystem, req.Messages[0].Role)
			assert.Equal(t, "You are helpful.", req.Messages[0].Content)
			assert.Equal(t, "How much is a website?", req.Messages[2].Content)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"gpt-4o-mini","choices":[{"message":{"role":"assistant","content":"It depends on scope."}}],"usage":{"prompt_tokens":42,"completion_tokens":6}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(testLLMConfig(srv.URL))
	resp, err := c.Complete(context.Background(), Request{
		System: "You are helpful.",
		Messages: []Message{
			{Role: RoleAssistant, Content: "Hi! How can I help?"},
			{Role: RoleUser, Content: "How much is a website?"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "It depends on scope.", resp.Content)
	assert.Equal(t, 42, resp.PromptTokens)
	assert.Equal(t, 6, resp.CompletionTokens)
}

func TestOpenAIAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(testLLMConfig(srv.URL))
	_, err := c.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Incorrect API key provided", apiErr.Message)
}

func TestOpenAIEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIClient(testLLMConfig(srv.URL)).Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOpenAINotConfigured(t *testing.T) {
	cfg := testLLMConfig("http://127.0.0.1:1")
	cfg.OpenAI.APIKey = ""
	_, err := NewOpenAIClient(cfg).Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), config.LLMConfig{Provider: "mystery"})
	assert.Error(t, err)

	c, err := New(context.Background(), testLLMConfig("http://localhost"))
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)
}

type fakeBedrock struct {
	input *bedrockruntime.InvokeModelInput
	body  string
	err   error
}

func (f *fakeBedrock) InvokeModel(_ context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.body)}, nil
}

func TestBedrockComplete(t *testing.T) {
	fake := &fakeBedrock{body: `{"content":[{"type":"text","text":"Happy to help."}],"usage":{"input_tokens":12,"output_tokens":4}}`}
	c := newBedrockClient(fake, testLLMConfig(""))

	resp, err := c.Complete(context.Background(), Request{
		System: "sys",
		Messages: []Message{
			{Role: RoleAssistant, Content: "greeting"},
			{Role: RoleUser, Content: "one"},
			{Role: RoleUser, Content: "two"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Happy to help.", resp.Content)
	assert.Equal(t, 12, resp.PromptTokens)

	var sent bedrockRequest
	require.NoError(t, json.Unmarshal(fake.input.Body, &sent))
	assert.Equal(t, bedrockAnthropicVersion, sent.AnthropicVersion)
	assert.Equal(t, "sys", sent.System)
	require.Len(t, sent.Messages, 1)
	assert.Equal(t, "one\n\ntwo", sent.Messages[0].Content[0].Text)
}

func TestBedrockInvokeError(t *testing.T) {
	fake := &fakeBedrock{err: errors.New("throttled")}
	c := newBedrockClient(fake, testLLMConfig(""))
	_, err := c.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	assert.ErrorContains(t, err, "throttled")
}
