package task

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxSteps bounds a task when no budget is given.
const DefaultMaxSteps = 50

// Task statuses as reported to clients
const (
	StatusQueued    = "in-the-queue"
	StatusRunning   = "in-progress"
	StatusCompleted = "completed"
	StatusBroken    = "broken"
	StatusCanceled  = "canceled"
)

// State is a phase of the task loop.
type State string

const (
	StateInit      State = "init"
	StateChecking  State = "checking"
	StateObserving State = "observing"
	StateDeciding  State = "deciding"
	StateActing    State = "acting"
	StateSleeping  State = "sleeping"
	StateFinished  State = "finished"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Signal is a level-triggered stop request polled by the loop.
type Signal interface {
	Stopped() bool
}

// StopFlag is a Signal that can be raised once from any goroutine.
type StopFlag struct {
	stopped atomic.Bool
}

func (f *StopFlag) Stop() {
	f.stopped.Store(true)
}

func (f *StopFlag) Stopped() bool {
	return f.stopped.Load()
}

// Task represents one goal given to the agent
type Task struct {
	ID        string
	Goal      string
	MaxSteps  int
	Lang      string
	CreatedAt time.Time

	// Stop defaults to an internal flag raised by Cancel.
	Stop Signal

	flag StopFlag

	mu      sync.Mutex
	status  string
	message string
	assist  string
	done    chan struct{}
}

// New creates a queued task. maxSteps <= 0 selects DefaultMaxSteps.
func New(goal string, maxSteps int, lang string) *Task {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	t := &Task{
		ID:        uuid.NewString(),
		Goal:      strings.TrimSpace(goal),
		MaxSteps:  maxSteps,
		Lang:      lang,
		CreatedAt: time.Now(),
		status:    StatusQueued,
		done:      make(chan struct{}),
	}
	t.Stop = &t.flag
	return t
}

// Cancel raises the task's stop flag.
func (t *Task) Cancel() {
	t.flag.Stop()
}

// Status returns the current status and last message.
func (t *Task) Status() (status, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status, t.message
}

func (t *Task) setStatus(status, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = status
	if message != "" {
		t.message = message
	}
	if isTerminal(status) && t.done != nil {
		select {
		case <-t.done:
		default:
			close(t.done)
		}
	}
}

// Done is closed once the task reaches a terminal status.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Assist stores a hint from the user for the next step, replacing any
// hint that has not been picked up yet.
func (t *Task) Assist(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.assist = strings.TrimSpace(message)
}

// takeAssist returns and clears the pending hint.
func (t *Task) takeAssist() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	msg := t.assist
	t.assist = ""
	return msg
}

func isTerminal(status string) bool {
	switch status {
	case StatusCompleted, StatusBroken, StatusCanceled:
		return true
	}
	return false
}

// TaskUpdate represents a task status update
type TaskUpdate struct {
	Type    string `json:"type"`
	TaskID  string `json:"taskId"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Result is the terminal outcome of a loop run.
type Result struct {
	State   State
	Message string
	Steps   int
}

// Status maps the terminal state to a client-facing status.
func (r Result) Status() string {
	switch r.State {
	case StateFinished:
		return StatusCompleted
	case StateCancelled:
		return StatusCanceled
	default:
		return StatusBroken
	}
}
