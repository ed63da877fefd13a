package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
)

// extraBodyTransport merges configured fields into chat completion bodies
type extraBodyTransport struct {
	transport http.RoundTripper
	extra     map[string]any
}

// RoundTrip intercepts chat completion requests and adds the extra fields
func (t *extraBodyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodPost || !strings.HasSuffix(req.URL.Path, "/chat/completions") || req.Body == nil {
		return t.transport.RoundTrip(req)
	}

	bodyBytes, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	req.Body.Close()

	var body map[string]any
	if err := json.Unmarshal(bodyBytes, &body); err != nil {
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		return t.transport.RoundTrip(req)
	}
	for k, v := range t.extra {
		if _, exists := body[k]; !exists {
			body[k] = v
		}
	}

	modified, err := json.Marshal(body)
	if err != nil {
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		return t.transport.RoundTrip(req)
	}
	req.Body = io.NopCloser(bytes.NewReader(modified))
	req.ContentLength = int64(len(modified))
	return t.transport.RoundTrip(req)
}

// OpenAIClient implements Client on top of openai-go
type OpenAIClient struct {
	client openai.Client
}

// NewOpenAIClient creates a client for any OpenAI-compatible endpoint
func NewOpenAIClient(config ProviderConfig) *OpenAIClient {
	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithBaseURL(config.BaseURL),
		option.WithHTTPClient(newHTTPClient(config)),
		option.WithMaxRetries(config.MaxRetries),
	}
	return &OpenAIClient{client: openai.NewClient(opts...)}
}

// newHTTPClient applies config.Timeout to the wait for response headers
// only. A streamed reply may take longer; the caller's context bounds it.
func newHTTPClient(config ProviderConfig) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = config.Timeout

	var rt http.RoundTripper = transport
	if len(config.ExtraBody) > 0 {
		rt = &extraBodyTransport{transport: transport, extra: config.ExtraBody}
	}
	return &http.Client{Transport: rt}
}

// Close closes the client (the OpenAI client doesn't need explicit closing)
func (c *OpenAIClient) Close() error {
	return nil
}

func (c *OpenAIClient) params(req *ChatCompletionRequest) openai.ChatCompletionNewParams {
	p := openai.ChatCompletionNewParams{
		Model:       req.Model,
		Messages:    convertMessagesToOpenAI(req.Messages),
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		p.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.TopP > 0 {
		p.TopP = openai.Float(req.TopP)
	}
	if req.FrequencyPenalty != 0 {
		p.FrequencyPenalty = openai.Float(req.FrequencyPenalty)
	}
	return p
}

// CreateChatCompletion creates a non-streaming chat completion
func (c *OpenAIClient) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	resp, err := c.client.Chat.Completions.New(ctx, c.params(req))
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return &ChatCompletionResponse{}, nil
	}
	return &ChatCompletionResponse{Content: resp.Choices[0].Message.Content}, nil
}

// CreateChatCompletionStream creates a streaming chat completion
func (c *OpenAIClient) CreateChatCompletionStream(ctx context.Context, req *ChatCompletionRequest) (Stream, error) {
	stream := c.client.Chat.Completions.NewStreaming(ctx, c.params(req))
	if stream == nil {
		return nil, errors.New("failed to create streaming chat completion: stream is nil")
	}
	return &openAIStream{stream: stream}, nil
}

// ListModels lists the models served by the endpoint
func (c *OpenAIClient) ListModels(ctx context.Context) ([]string, error) {
	page, err := c.client.Models.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// openAIStream adapts an SSE stream to Stream
type openAIStream struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]
}

// Recv skips empty keep-alive chunks and returns io.EOF at the end
func (s *openAIStream) Recv() (*ChatCompletionStreamResponse, error) {
	for {
		if !s.stream.Next() {
			if err := s.stream.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}

		chunk := s.stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.Delta.Content == "" && choice.FinishReason == "" {
			continue
		}
		return &ChatCompletionStreamResponse{
			Content:      choice.Delta.Content,
			FinishReason: string(choice.FinishReason),
		}, nil
	}
}

// Close closes the stream
func (s *openAIStream) Close() error {
	if s.stream == nil {
		return nil
	}
	return s.stream.Close()
}

// convertMessagesToOpenAI maps our messages to openai-go params; images are
// sent as image_url parts.
func convertMessagesToOpenAI(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			out[i] = openai.SystemMessage(msg.Text())
		case RoleAssistant:
			out[i] = openai.AssistantMessage(msg.Text())
		default:
			if !msg.HasImage() {
				out[i] = openai.UserMessage(msg.Text())
				continue
			}
			parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(msg.Parts))
			for _, p := range msg.Parts {
				switch p.Type {
				case PartImage:
					parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: p.ImageURL}))
				case PartText:
					parts = append(parts, openai.TextContentPart(p.Text))
				}
			}
			out[i] = openai.UserMessage(parts)
		}
	}
	return out
}
