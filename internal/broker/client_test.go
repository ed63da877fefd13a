package broker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeBroker answers exec requests from a table of canned outputs.
func fakeBroker(t *testing.T, outputs map[string]Response) (*httptest.Server, func() []string) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []string
	)
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var req Request
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			resp := Response{ID: req.ID}
			if req.Op == "exec" {
				mu.Lock()
				seen = append(seen, req.Cmd)
				mu.Unlock()
				if canned, ok := outputs[req.Cmd]; ok {
					canned.ID = req.ID
					resp = canned
				}
			}
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), seen...)
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestExec(t *testing.T) {
	srv, seen := fakeBroker(t, map[string]Response{
		"echo hi":   {Output: []byte("hi\n")},
		"false":     {ExitCode: 1, Output: []byte("nope")},
		"screencap": {Output: []byte{0x89, 'P', 'N', 'G', 0x00, 0xff}},
	})
	c := NewClient(wsURL(srv), "tok")
	defer c.Close()
	ctx := context.Background()

	out, err := c.Exec(ctx, "echo hi")
	if err != nil || string(out) != "hi\n" {
		t.Fatalf("Exec(echo hi) = %q, %v", out, err)
	}

	out, err = c.Exec(ctx, "screencap")
	if err != nil || len(out) != 6 || out[4] != 0x00 {
		t.Fatalf("binary output not preserved: %v, %v", out, err)
	}

	_, err = c.Exec(ctx, "false")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 1 {
		t.Fatalf("Exec(false) error = %v, want ExitError", err)
	}

	if got := seen(); len(got) != 3 {
		t.Errorf("broker saw %d commands, want 3", len(got))
	}
}

func TestPing(t *testing.T) {
	srv, _ := fakeBroker(t, nil)
	c := NewClient(wsURL(srv), "tok")
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}

func TestDialFailure(t *testing.T) {
	srv, _ := fakeBroker(t, nil)
	c := NewClient(wsURL(srv), "wrong")
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected dial error with bad token")
	}
}

func TestReconnectAfterServerClose(t *testing.T) {
	srv, _ := fakeBroker(t, nil)
	c := NewClient(wsURL(srv), "tok")
	defer c.Close()
	ctx := context.Background()

	if err := c.Ping(ctx); err != nil {
		t.Fatal(err)
	}
	c.Close()
	if err := c.Ping(ctx); err != nil {
		t.Fatalf("Ping() after reconnect error = %v", err)
	}
}
