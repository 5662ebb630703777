package llmclient

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider implements Provider using the official Anthropic Go
// SDK. It is used for the chief-judge tier of the two-tier adjudication
// chain: a distinct model family from the primary judge, so the two tiers
// do not share failure modes.
type AnthropicProvider struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// AnthropicOption configures an AnthropicProvider.
type AnthropicOption func(*anthropicConfig)

type anthropicConfig struct {
	model     anthropic.Model
	apiKey    string
	baseURL   string
	timeout   time.Duration
	maxTokens int64
}

// WithAnthropicModel sets the model (default claude-sonnet-4-5).
func WithAnthropicModel(model anthropic.Model) AnthropicOption {
	return func(c *anthropicConfig) { c.model = model }
}

// WithAnthropicAPIKey sets the API key. If empty, the SDK falls back to
// ANTHROPIC_API_KEY.
func WithAnthropicAPIKey(key string) AnthropicOption {
	return func(c *anthropicConfig) { c.apiKey = key }
}

// WithAnthropicBaseURL sets a custom base URL.
func WithAnthropicBaseURL(url string) AnthropicOption {
	return func(c *anthropicConfig) { c.baseURL = url }
}

// WithAnthropicTimeout sets the per-request timeout (default 2 minutes).
func WithAnthropicTimeout(d time.Duration) AnthropicOption {
	return func(c *anthropicConfig) { c.timeout = d }
}

// WithAnthropicMaxTokens sets the response token cap (default 1024).
func WithAnthropicMaxTokens(n int64) AnthropicOption {
	return func(c *anthropicConfig) { c.maxTokens = n }
}

// NewAnthropicProvider creates an AnthropicProvider with the given options.
func NewAnthropicProvider(opts ...AnthropicOption) *AnthropicProvider {
	cfg := anthropicConfig{
		model:     anthropic.ModelClaudeSonnet4_5,
		timeout:   2 * time.Minute,
		maxTokens: 1024,
	}
	for _, o := range opts {
		o(&cfg)
	}

	var clientOpts []option.RequestOption
	if cfg.apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(cfg.apiKey))
	}
	if cfg.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		clientOpts = append(clientOpts, option.WithRequestTimeout(cfg.timeout))
	}

	return &AnthropicProvider{
		client:    anthropic.NewClient(clientOpts...),
		model:     cfg.model,
		maxTokens: cfg.maxTokens,
	}
}

// Complete sends a messages request to Claude. System messages are hoisted
// into the request's top-level System field, as the Anthropic Messages API
// has no "system" role within the message list.
func (p *AnthropicProvider) Complete(ctx context.Context, messages []Message) (*Response, error) {
	var system string
	var turns []anthropic.MessageParam
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			if system != "" {
				system += "\n"
			}
			system += m.Content
		case RoleAssistant:
			turns = append(turns, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			turns = append(turns, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		Messages:  turns,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages: %w", err)
	}
	if len(msg.Content) == 0 {
		return nil, fmt.Errorf("anthropic returned no content blocks")
	}

	var content string
	for _, block := range msg.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return &Response{
		Content:          content,
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
	}, nil
}
