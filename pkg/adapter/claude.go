package adapter

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/m-mizutani/goerr/v2"
)

// Claude is the interface for Claude API client
type Claude interface {
	// Complete sends a single user prompt with a system prompt and returns the text reply
	Complete(ctx context.Context, system, prompt string) (string, error)
}

type claudeClient struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

type ClaudeOption func(*claudeClient)

func WithClaudeModel(model string) ClaudeOption {
	return func(c *claudeClient) {
		c.model = model
	}
}

// NewClaude creates a new Claude API client
func NewClaude(apiKey string, opts ...ClaudeOption) (Claude, error) {
	if apiKey == "" {
		return nil, goerr.New("claude api key is required")
	}

	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)
	c := &claudeClient{
		client:    &client,
		model:     "claude-sonnet-4-5",
		maxTokens: 256,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *claudeClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to call claude", goerr.V("model", c.model))
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}
