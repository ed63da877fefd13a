package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"phone-agent/internal/task"
)

func dialHub(t *testing.T) (*Hub, *websocket.Conn) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return hub, conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return msg
}

func TestTaskSinkBroadcasts(t *testing.T) {
	hub, conn := dialHub(t)
	sink := hub.TaskSink("t1")

	sink.OnAction("[[ACTION:Tap]]Tap (1, 2)")
	sink.OnTapIndicator(10, 20)
	sink.OnDone("finished")

	tests := []struct {
		typ  string
		data any
	}{
		{"action", "[[ACTION:Tap]]Tap (1, 2)"},
		{"tapIndicator", map[string]any{"x": float64(10), "y": float64(20)}},
		{"done", "finished"},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			msg := readMessage(t, conn)
			if msg.Type != tt.typ || msg.TaskID != "t1" {
				t.Fatalf("message = %+v", msg)
			}
			got, _ := json.Marshal(msg.Data)
			want, _ := json.Marshal(tt.data)
			if string(got) != string(want) {
				t.Errorf("data = %s, want %s", got, want)
			}
		})
	}
}

func TestSendTaskUpdate(t *testing.T) {
	hub, conn := dialHub(t)
	hub.SendTaskUpdate(task.TaskUpdate{Type: "taskUpdate", TaskID: "t2", Status: task.StatusRunning})

	msg := readMessage(t, conn)
	if msg.Type != "taskUpdate" || msg.TaskID != "t2" {
		t.Errorf("message = %+v", msg)
	}
}
