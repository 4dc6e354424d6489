// Package claude implements adgen.Provider on the Anthropic Messages API.
package claude

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/linnemanlabs/breezecue/internal/adgen"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-5"

// Client implements the adgen.Provider interface for the Claude API.
type Client struct {
	sdk   anthropic.Client
	model string
}

// New creates a new Claude API client with the given API key and model name.
// Extra request options (base URL, HTTP client) are passed to the SDK.
// Failed calls are not retried.
func New(apiKey, model string, opts ...option.RequestOption) *Client {
	if model == "" {
		model = DefaultModel
	}
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	return &Client{
		sdk:   anthropic.NewClient(append(base, opts...)...),
		model: model,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Send sends a request to the Claude API and returns the response.
func (c *Client) Send(ctx context.Context, req *adgen.LLMRequest) (*adgen.LLMResponse, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(req.MaxTokens),
		Messages:  toSDKMessages(req.Messages),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	msg, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("claude messages: %w", err)
	}
	return fromSDKResponse(msg), nil
}

func toSDKMessages(msgs []adgen.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.Content))
		for _, b := range m.Content {
			if b.Type == "text" {
				blocks = append(blocks, anthropic.NewTextBlock(b.Text))
			}
		}
		role := anthropic.MessageParamRoleUser
		if m.Role == "assistant" {
			role = anthropic.MessageParamRoleAssistant
		}
		out = append(out, anthropic.MessageParam{Role: role, Content: blocks})
	}
	return out
}

func fromSDKResponse(msg *anthropic.Message) *adgen.LLMResponse {
	out := &adgen.LLMResponse{
		StopReason: adgen.StopReason(msg.StopReason),
		Model:      string(msg.Model),
		Usage: adgen.Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}
	for _, b := range msg.Content {
		if b.Type == "text" {
			out.Content = append(out.Content, adgen.ContentBlock{Type: "text", Text: b.Text})
		}
	}
	return out
}
