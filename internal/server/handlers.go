package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"phone-agent/internal/task"
)

type TaskRequest struct {
	Text     string `json:"text"`
	MaxSteps int    `json:"maxSteps,omitempty"`
	Lang     string `json:"lang,omitempty"`
}

type TaskCancelRequest struct {
	TaskID string `json:"taskId"`
}

type UserAssistRequest struct {
	TaskID  string `json:"taskId"`
	Message string `json:"message"`
}

type Response struct {
	Result string `json:"result"`
	TaskID string `json:"taskId,omitempty"`
	Data   any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}

// TaskHandler creates a task from the request text and queues it.
func (s *Server) TaskHandler(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Debug().Err(err).Msg("invalid task request")
		http.Error(w, "Invalid JSON request", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, task.MsgEmptyGoal, http.StatusBadRequest)
		return
	}

	maxSteps := req.MaxSteps
	if maxSteps <= 0 {
		maxSteps = s.opts.MaxSteps
	}
	lang := req.Lang
	if lang == "" {
		lang = s.opts.Lang
	}

	t := task.New(req.Text, maxSteps, lang)
	s.manager.Submit(t)
	log.Info().Str("task_id", t.ID).Str("goal", t.Goal).Msg("task created")

	writeJSON(w, http.StatusOK, Response{Result: "Task queued successfully", TaskID: t.ID})
}

// TaskCancelHandler cancels by taskId, given as a query parameter or JSON body.
func (s *Server) TaskCancelHandler(w http.ResponseWriter, r *http.Request) {
	taskID := r.URL.Query().Get("taskId")
	if taskID == "" && r.Body != nil {
		var req TaskCancelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			taskID = req.TaskID
		}
	}
	if taskID == "" {
		http.Error(w, "taskId parameter is required", http.StatusBadRequest)
		return
	}

	if s.manager.Cancel(taskID) {
		writeJSON(w, http.StatusOK, Response{Result: "Task canceled successfully", TaskID: taskID})
		return
	}
	writeJSON(w, http.StatusOK, Response{Result: "Task not found or already completed/canceled", TaskID: taskID})
}

// TaskStatusHandler reports the status of one task.
func (s *Server) TaskStatusHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	t, ok := s.manager.Get(id)
	if !ok {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}
	status, message := t.Status()
	writeJSON(w, http.StatusOK, task.TaskUpdate{Type: "taskStatus", TaskID: id, Status: status, Message: message})
}

// UserAssistHandler passes a hint to the running task.
func (s *Server) UserAssistHandler(w http.ResponseWriter, r *http.Request) {
	var req UserAssistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON request", http.StatusBadRequest)
		return
	}
	if req.TaskID == "" || req.Message == "" {
		http.Error(w, "taskId and message are required", http.StatusBadRequest)
		return
	}

	accepted := s.manager.Assist(req.TaskID, req.Message)
	writeJSON(w, http.StatusOK, Response{
		Result: "User-assist message processed",
		Data:   map[string]any{"taskId": req.TaskID, "accepted": accepted},
	})
}

func (s *Server) ExecutionStateHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.Snapshot())
}

// ScreenshotHandler captures the device screen as JPEG.
func (s *Server) ScreenshotHandler(w http.ResponseWriter, r *http.Request) {
	shot := s.backend.Screenshot(r.Context())
	w.Header().Set("Content-Type", shot.Mime)
	w.Header().Set("X-Screen-Width", strconv.Itoa(shot.Width))
	w.Header().Set("X-Screen-Height", strconv.Itoa(shot.Height))
	w.Header().Set("X-Screen-Sensitive", strconv.FormatBool(shot.Sensitive))
	w.WriteHeader(http.StatusOK)
	w.Write(shot.Data)
}

// TranscribeHandler accepts a raw WAV body and returns the recognised text.
func (s *Server) TranscribeHandler(w http.ResponseWriter, r *http.Request) {
	if s.speech == nil {
		http.Error(w, "speech is not configured", http.StatusNotImplemented)
		return
	}
	wav, err := io.ReadAll(io.LimitReader(r.Body, 32<<20))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	text, err := s.speech.Transcribe(r.Context(), wav)
	if err != nil {
		log.Warn().Err(err).Msg("transcription failed")
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, Response{Result: "ok", Data: map[string]string{"text": text}})
}

// PingHandler answers 200 when the device is reachable and 503 otherwise.
func (s *Server) PingHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, Response{Result: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, Response{Result: "pong"})
}
