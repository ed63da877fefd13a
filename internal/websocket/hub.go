package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"phone-agent/internal/screenshot"
	"phone-agent/internal/task"
)

const (
	writeWait  = 2 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// Message is the envelope of every event pushed to clients.
type Message struct {
	Type   string `json:"type"`
	TaskID string `json:"taskId,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// Hub fans events out to every connected client.
type Hub struct {
	connections map[*Connection]bool
	register    chan *Connection
	unregister  chan *Connection
	broadcast   chan []byte
	done        chan struct{}
	mutex       sync.RWMutex
}

// Connection is one websocket client.
type Connection struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub() *Hub {
	return &Hub{
		connections: make(map[*Connection]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan []byte, sendBuffer),
		done:        make(chan struct{}),
	}
}

// Run dispatches registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mutex.Lock()
			for conn := range h.connections {
				delete(h.connections, conn)
				close(conn.send)
			}
			h.mutex.Unlock()
			return

		case conn := <-h.register:
			h.mutex.Lock()
			h.connections[conn] = true
			h.mutex.Unlock()
			log.Debug().Str("remote", conn.conn.RemoteAddr().String()).Msg("websocket client connected")

		case conn := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.connections[conn]; ok {
				delete(h.connections, conn)
				close(conn.send)
			}
			h.mutex.Unlock()

		case message := <-h.broadcast:
			h.mutex.RLock()
			for conn := range h.connections {
				select {
				case conn.send <- message:
				default:
					// Slow clients miss events rather than stall the agent.
				}
			}
			h.mutex.RUnlock()
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.connections)
}

// HandleWebSocket upgrades the request and serves the client until it
// disconnects.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	connection := &Connection{conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- connection:
	case <-h.done:
		conn.Close()
		return
	}

	go connection.writeLoop()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			select {
			case h.unregister <- connection:
			case <-h.done:
			}
			return
		}
	}
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Broadcast queues msg for every client. It drops the event when the hub
// is saturated.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("type", msg.Type).Msg("failed to encode event")
		return
	}
	select {
	case h.broadcast <- data:
	default:
		log.Warn().Str("type", msg.Type).Msg("event dropped, hub busy")
	}
}

// SendTaskUpdate broadcasts a task status change.
func (h *Hub) SendTaskUpdate(u task.TaskUpdate) {
	h.Broadcast(Message{Type: "taskUpdate", TaskID: u.TaskID, Data: u})
}

// SendTokenUpdate broadcasts the running token estimate.
func (h *Hub) SendTokenUpdate(total int) {
	h.Broadcast(Message{Type: "tokenUpdate", Data: map[string]int{"total": total}})
}

// TaskSink returns a task.Sink that broadcasts the progress of taskID.
func (h *Hub) TaskSink(taskID string) task.Sink {
	return &taskSink{hub: h, taskID: taskID}
}

type taskSink struct {
	hub    *Hub
	taskID string
}

func (s *taskSink) send(typ string, data any) {
	s.hub.Broadcast(Message{Type: typ, TaskID: s.taskID, Data: data})
}

func (s *taskSink) OnAction(text string) {
	s.send("action", text)
}

func (s *taskSink) OnScreenshot(shot *screenshot.Screenshot) {
	s.send("screenshot", map[string]any{
		"width":     shot.Width,
		"height":    shot.Height,
		"sensitive": shot.Sensitive,
		"image":     shot.DataURI(),
	})
}

func (s *taskSink) OnAssistant(chunk string) {
	s.send("assistant", chunk)
}

func (s *taskSink) OnTapIndicator(x, y int) {
	s.send("tapIndicator", map[string]int{"x": x, "y": y})
}

func (s *taskSink) OnError(message string) {
	s.send("error", message)
}

func (s *taskSink) OnDone(message string) {
	s.send("done", message)
}
