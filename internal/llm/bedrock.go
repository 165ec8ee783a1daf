package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/brightpixel/agency-portal/internal/config"
)

const bedrockAnthropicVersion = "bedrock-2023-05-31"

// bedrockAPI is the slice of the Bedrock runtime client we use.
type bedrockAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockClient calls Anthropic models hosted on AWS Bedrock.
type BedrockClient struct {
	client      bedrockAPI
	modelID     string
	maxTokens   int
	temperature float64
}

type bedrockContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type bedrockMessage struct {
	Role    string                `json:"role"`
	Content []bedrockContentBlock `json:"content"`
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system,omitempty"`
	Messages         []bedrockMessage `json:"messages"`
	Temperature      float64          `json:"temperature,omitempty"`
}

type bedrockResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// NewBedrockClient loads AWS credentials from the default chain.
func NewBedrockClient(ctx context.Context, cfg config.LLMConfig) (*BedrockClient, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Bedrock.Region))
	if err != nil {
		return nil, fmt.Errorf("llm: load AWS config: %w", err)
	}
	log.Printf("[llm] bedrock initialized with model=%s region=%s", cfg.Bedrock.ModelID, cfg.Bedrock.Region)
	return newBedrockClient(bedrockruntime.NewFromConfig(awsCfg), cfg), nil
}

func newBedrockClient(api bedrockAPI, cfg config.LLMConfig) *BedrockClient {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 800
	}
	return &BedrockClient{
		client:      api,
		modelID:     cfg.Bedrock.ModelID,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
	}
}

// Complete invokes the model with the Anthropic messages body.
func (b *BedrockClient) Complete(ctx context.Context, req Request) (*Response, error) {
	if b.modelID == "" {
		return nil, ErrNotConfigured
	}

	body := bedrockRequest{
		AnthropicVersion: bedrockAnthropicVersion,
		MaxTokens:        b.maxTokens,
		System:           req.System,
		Messages:         toBedrockMessages(req.Messages),
		Temperature:      b.temperature,
	}
	if req.MaxTokens > 0 {
		body.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		body.Temperature = req.Temperature
	}
	if len(body.Messages) == 0 {
		return nil, fmt.Errorf("llm: no user message")
	}

	requestBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("llm: marshal request: %w", err)
	}

	output, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        requestBody,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: bedrock invoke: %w", err)
	}

	var parsed bedrockResponse
	if err := json.Unmarshal(output.Body, &parsed); err != nil {
		return nil, fmt.Errorf("llm: parse response: %w", err)
	}

	var text strings.Builder
	for _, c := range parsed.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return nil, ErrEmptyResponse
	}

	log.Printf("[llm] bedrock %s completed (in: %d tokens, out: %d tokens)",
		b.modelID, parsed.Usage.InputTokens, parsed.Usage.OutputTokens)

	return &Response{
		Content:          text.String(),
		PromptTokens:     parsed.Usage.InputTokens,
		CompletionTokens: parsed.Usage.OutputTokens,
		Model:            b.modelID,
	}, nil
}

// toBedrockMessages drops system turns, merges consecutive turns of the
// same role and makes the conversation start with a user turn, which the
// Anthropic messages format requires.
func toBedrockMessages(msgs []Message) []bedrockMessage {
	out := make([]bedrockMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			continue
		}
		if len(out) == 0 && m.Role != RoleUser {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == m.Role {
			out[n-1].Content[0].Text += "\n\n" + m.Content
			continue
		}
		out = append(out, bedrockMessage{
			Role:    m.Role,
			Content: []bedrockContentBlock{{Type: "text", Text: m.Content}},
		})
	}
	return out
}
