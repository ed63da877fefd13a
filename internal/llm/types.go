package llm

import (
	"context"
	"strings"
	"time"
)

// Client defines the interface for chat completion backends
type Client interface {
	// Close closes the client and cleans up resources
	Close() error

	// CreateChatCompletion creates a non-streaming chat completion
	CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error)

	// CreateChatCompletionStream creates a streaming chat completion
	CreateChatCompletionStream(ctx context.Context, req *ChatCompletionRequest) (Stream, error)

	// ListModels returns the model ids served by the endpoint
	ListModels(ctx context.Context) ([]string, error)
}

// Stream defines the interface for streaming chat completions. Recv returns
// io.EOF once the stream is exhausted.
type Stream interface {
	Recv() (*ChatCompletionStreamResponse, error)
	Close() error
}

// ProviderConfig holds the configuration for the OpenAI-compatible client
type ProviderConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	// ExtraBody fields are merged into every chat completion request body.
	ExtraBody  map[string]any
}

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Part types
const (
	PartText  = "text"
	PartImage = "image_url"
)

// Part is one element of a multi-part message.
type Part struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// Message represents a chat message
type Message struct {
	Role  string `json:"role"`
	Parts []Part `json:"content"`
}

// TextMessage builds a single-part text message.
func TextMessage(role, text string) Message {
	return Message{Role: role, Parts: []Part{{Type: PartText, Text: text}}}
}

// Text joins the text parts of m.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type == PartText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// HasImage reports whether m carries an image part.
func (m Message) HasImage() bool {
	for _, p := range m.Parts {
		if p.Type == PartImage {
			return true
		}
	}
	return false
}

// ChatCompletionRequest represents a chat completion request
type ChatCompletionRequest struct {
	Model            string
	Messages         []Message
	MaxTokens        int
	Temperature      float64
	TopP             float64
	FrequencyPenalty float64
}

// ChatCompletionResponse represents a non-streaming reply
type ChatCompletionResponse struct {
	Content string
}

// ChatCompletionStreamResponse is one streamed delta
type ChatCompletionStreamResponse struct {
	Content      string
	FinishReason string
}
