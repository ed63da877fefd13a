package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"phone-agent/internal/device"
	"phone-agent/internal/task"
	"phone-agent/internal/websocket"
)

// Transcriber turns a WAV recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

// Options configures a Server.
type Options struct {
	Bind     string
	MaxSteps int
	Lang     string
}

// Server exposes the task manager over HTTP and streams progress over a
// websocket.
type Server struct {
	opts    Options
	manager *task.Manager
	hub     *websocket.Hub
	backend device.Backend
	speech  Transcriber
}

// New creates a server. speech may be nil, which disables /transcribe.
func New(opts Options, manager *task.Manager, hub *websocket.Hub, backend device.Backend, speech Transcriber) *Server {
	return &Server{
		opts:    opts,
		manager: manager,
		hub:     hub,
		backend: backend,
		speech:  speech,
	}
}

// Handler returns the routed handler wrapped in the CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.hub.HandleWebSocket)
	mux.HandleFunc("POST /task", s.TaskHandler)
	mux.HandleFunc("POST /llm-input", s.TaskHandler)
	mux.HandleFunc("POST /task-cancel", s.TaskCancelHandler)
	mux.HandleFunc("GET /task/{id}", s.TaskStatusHandler)
	mux.HandleFunc("POST /user-assist", s.UserAssistHandler)
	mux.HandleFunc("GET /execution-state", s.ExecutionStateHandler)
	mux.HandleFunc("GET /screenshot", s.ScreenshotHandler)
	mux.HandleFunc("POST /transcribe", s.TranscribeHandler)
	mux.HandleFunc("GET /ping", s.PingHandler)

	return CORSMiddleware(mux)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Bind,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.hub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("bind", s.opts.Bind).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// CORSMiddleware allows any origin and answers preflight requests.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
