package adgen

import "context"

// Provider is the interface for any LLM backend.
type Provider interface {
	Send(ctx context.Context, req *LLMRequest) (*LLMResponse, error)
}

// LLMRequest is a single-turn completion request.
type LLMRequest struct {
	MaxTokens   int
	Temperature float64
	System      string
	Messages    []Message
}

// LLMResponse is the provider output with token usage.
type LLMResponse struct {
	Content    []ContentBlock
	StopReason StopReason
	Usage      Usage
	Model      string
}

// StopReason indicates why the model stopped generating.
type StopReason string

const (
	StopEnd       StopReason = "end_turn"
	StopMaxTokens StopReason = "max_tokens"
)

type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Text concatenates the text blocks of the response.
func (r *LLMResponse) Text() string {
	var s string
	for _, b := range r.Content {
		if b.Type == "text" {
			s += b.Text
		}
	}
	return s
}

// UserText builds a request with a single user text message.
func UserText(text string) []Message {
	return []Message{{
		Role:    "user",
		Content: []ContentBlock{{Type: "text", Text: text}},
	}}
}
