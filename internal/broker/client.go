// Package broker talks to the on-device privileged command broker. The broker
// runs shell commands with elevated rights and answers over a websocket.
package broker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	// ErrClosed is returned for requests interrupted by a closed connection.
	ErrClosed = errors.New("broker connection closed")
)

// ExitError is a command that ran and exited non-zero.
type ExitError struct {
	Cmd    string
	Code   int
	Output string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("broker command %q exited with %d", e.Cmd, e.Code)
}

// Request is one frame sent to the broker.
type Request struct {
	ID  string `json:"id"`
	Op  string `json:"op"`
	Cmd string `json:"cmd,omitempty"`
}

// Response is one frame received from the broker. Output carries raw bytes
// (base64 on the wire) so binary screencaps survive the trip.
type Response struct {
	ID       string `json:"id"`
	ExitCode int    `json:"exit_code"`
	Output   []byte `json:"output,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Client is a lazily connected, reconnecting broker client. It is safe for
// concurrent use.
type Client struct {
	url     string
	token   string
	dialer  *websocket.Dialer
	timeout time.Duration

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan Response
	writeMu sync.Mutex
}

// NewClient creates a client for a ws:// or wss:// broker URL.
func NewClient(url, token string) *Client {
	return &Client{
		url:   url,
		token: token,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		timeout: 30 * time.Second,
		pending: make(map[string]chan Response),
	}
}

func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn, nil
	}

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		return nil, fmt.Errorf("failed to dial broker: %w", err)
	}
	c.conn = conn
	go c.readLoop(conn)
	log.Debug().Str("url", c.url).Msg("broker connected")
	return conn, nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var resp Response
		if err := conn.ReadJSON(&resp); err != nil {
			log.Debug().Err(err).Msg("broker read loop stopped")
			c.drop(conn)
			return
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.mu.Unlock()
		if ok {
			ch <- resp
		}
	}
}

// drop forgets conn and fails every request waiting on it.
func (c *Client) drop(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != conn {
		return
	}
	conn.Close()
	c.conn = nil
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

func (c *Client) roundTrip(ctx context.Context, req Request) (Response, error) {
	conn, err := c.connect(ctx)
	if err != nil {
		return Response{}, err
	}

	req.ID = uuid.NewString()
	ch := make(chan Response, 1)
	c.mu.Lock()
	c.pending[req.ID] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	err = conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.drop(conn)
		return Response{}, fmt.Errorf("failed to send to broker: %w", err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-ch:
		if !ok {
			return Response{}, ErrClosed
		}
		if resp.Error != "" {
			return resp, fmt.Errorf("broker: %s", resp.Error)
		}
		return resp, nil
	case <-timer.C:
		c.forget(req.ID)
		return Response{}, fmt.Errorf("broker request %q timed out after %s", req.Cmd, c.timeout)
	case <-ctx.Done():
		c.forget(req.ID)
		return Response{}, ctx.Err()
	}
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Exec runs cmd through the broker's shell and returns its raw output.
func (c *Client) Exec(ctx context.Context, cmd string) ([]byte, error) {
	resp, err := c.roundTrip(ctx, Request{Op: "exec", Cmd: cmd})
	if err != nil {
		return nil, err
	}
	if resp.ExitCode != 0 {
		return resp.Output, &ExitError{Cmd: cmd, Code: resp.ExitCode, Output: string(resp.Output)}
	}
	return resp.Output, nil
}

// Ping checks that the broker is reachable and answering.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.roundTrip(ctx, Request{Op: "ping"})
	return err
}

// Close closes the underlying connection, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	c.writeMu.Lock()
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	c.drop(conn)
	return nil
}
