package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Options configures a Client.
type Options struct {
	Endpoint   string
	Model      string
	Normalize  bool
	TargetPeak float64
	MaxGain    float64
	Timeout    time.Duration
}

// Client uploads recordings to a transcription endpoint.
type Client struct {
	opts   Options
	tokens TokenSource
	http   *http.Client
}

// NewClient creates a client. The default timeout is one minute.
func NewClient(opts Options, tokens TokenSource) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}
	return &Client{opts: opts, tokens: tokens, http: &http.Client{Timeout: opts.Timeout}}
}

type transcription struct {
	Text string `json:"text"`
}

// Transcribe sends a WAV recording and returns the recognised text.
func (c *Client) Transcribe(ctx context.Context, wav []byte) (string, error) {
	if c.opts.Normalize {
		var changed bool
		wav, changed = NormalizeWAV(wav, c.opts.TargetPeak, c.opts.MaxGain)
		log.Debug().Bool("normalized", changed).Msg("speech input prepared")
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("speech credential: %w", err)
	}

	body, contentType, err := c.multipartBody(wav)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Endpoint, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("speech request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("speech response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("speech request failed: %d - %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out transcription
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("speech response: %w", err)
	}
	return out.Text, nil
}

func (c *Client) multipartBody(wav []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("model", c.opts.Model); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("stream", "false"); err != nil {
		return nil, "", err
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="input.wav"`)
	h.Set("Content-Type", "audio/wav")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(wav); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
