package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"phone-agent/internal/token"
)

// ModelConfig holds the sampling settings sent with every request.
type ModelConfig struct {
	Model            string
	MaxTokens        int
	Temperature      float64
	TopP             float64
	FrequencyPenalty float64
}

// DefaultModelConfig matches the settings the phone model was tuned with.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Model:            "autoglm-phone-9b",
		MaxTokens:        3000,
		Temperature:      0.0,
		TopP:             0.85,
		FrequencyPenalty: 0.2,
	}
}

// ModelClient performs one streamed decision request per step.
type ModelClient struct {
	client Client
	config ModelConfig
	tokens *token.Tracker
	now    func() time.Time
}

// NewModelClient wraps client. tokens may be nil.
func NewModelClient(client Client, config ModelConfig, tokens *token.Tracker) *ModelClient {
	return &ModelClient{client: client, config: config, tokens: tokens, now: time.Now}
}

// Request sends messages and streams the reasoning part of the reply to
// onReasoning as it arrives.
func (m *ModelClient) Request(ctx context.Context, messages []Message, onReasoning func(string)) (*Response, error) {
	start := m.now()
	req := &ChatCompletionRequest{
		Model:            m.config.Model,
		Messages:         messages,
		MaxTokens:        m.config.MaxTokens,
		Temperature:      m.config.Temperature,
		TopP:             m.config.TopP,
		FrequencyPenalty: m.config.FrequencyPenalty,
	}

	stream, err := m.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var (
		raw      strings.Builder
		emitted  strings.Builder
		splitter Splitter
		resp     Response
	)
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}

		if resp.FirstToken == nil {
			d := m.now().Sub(start)
			resp.FirstToken = &d
		}
		raw.WriteString(chunk.Content)

		wasInAction := splitter.InAction()
		if reasoning := splitter.Feed(chunk.Content); reasoning != "" {
			emitted.WriteString(reasoning)
			if onReasoning != nil {
				onReasoning(reasoning)
			}
		}
		if !wasInAction && splitter.InAction() {
			d := m.now().Sub(start)
			resp.Boundary = &d
		}
	}

	total := m.now().Sub(start)
	resp.Total = &total
	resp.Raw = raw.String()
	if splitter.InAction() {
		// The splitter already cut at the earliest marker; what the user
		// saw is the reasoning and the rest is the action.
		resp.Reasoning = strings.TrimSpace(emitted.String())
		resp.Action = splitter.Remainder()
	} else {
		if held := splitter.Flush(); held != "" && onReasoning != nil {
			onReasoning(held)
		}
		resp.Reasoning, resp.Action = ParseResponse(resp.Raw)
	}

	m.tokens.Add(estimateRequest(messages) + token.Estimate(resp.Raw))
	log.Debug().
		Dur("first_token", durOrZero(resp.FirstToken)).
		Dur("boundary", durOrZero(resp.Boundary)).
		Dur("total", total).
		Int("chars", len(resp.Raw)).
		Msg("model reply")
	return &resp, nil
}

func estimateRequest(messages []Message) int {
	n := 0
	for _, msg := range messages {
		n += token.Estimate(msg.Text())
		if msg.HasImage() {
			n += token.ImageTokens
		}
	}
	return n
}

func durOrZero(d *time.Duration) time.Duration {
	if d == nil {
		return 0
	}
	return *d
}

// FormatMetrics renders the timing line shown after a step.
func FormatMetrics(r *Response) string {
	f := func(d *time.Duration) string {
		if d == nil {
			return "-"
		}
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	return fmt.Sprintf("first token %s, thinking end %s, total %s", f(r.FirstToken), f(r.Boundary), f(r.Total))
}
