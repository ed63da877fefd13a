package task

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Runner executes one task and reports how it ended.
type Runner func(ctx context.Context, t *Task) Result

// Manager keeps a FIFO queue of tasks and runs at most one at a time.
type Manager struct {
	ctx      context.Context
	run      Runner
	onUpdate func(TaskUpdate)

	mu      sync.Mutex
	tasks   map[string]*Task
	queue   []*Task
	running *Task
}

// NewManager creates a manager whose tasks run under ctx. onUpdate receives
// every status change and may be nil.
func NewManager(ctx context.Context, run Runner, onUpdate func(TaskUpdate)) *Manager {
	return &Manager{
		ctx:      ctx,
		run:      run,
		onUpdate: onUpdate,
		tasks:    make(map[string]*Task),
	}
}

// Submit enqueues t and starts it when nothing else is running.
func (m *Manager) Submit(t *Task) {
	m.mu.Lock()
	m.tasks[t.ID] = t
	m.queue = append(m.queue, t)
	queued := len(m.queue)
	m.mu.Unlock()

	log.Info().Str("task_id", t.ID).Int("queue", queued).Msg("task enqueued")
	m.update(t, StatusQueued, t.Goal)
	m.processNext()
}

// Get retrieves a task by ID.
func (m *Manager) Get(id string) (*Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	return t, ok
}

// Cancel stops a running task or drops a queued one. It reports whether
// the task was found in a cancellable state.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return false
	}

	if m.running == t {
		m.mu.Unlock()
		t.Cancel()
		log.Info().Str("task_id", id).Msg("cancel requested")
		return true
	}

	for i, q := range m.queue {
		if q == t {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			m.mu.Unlock()
			t.Cancel()
			m.update(t, StatusCanceled, MsgCancelled)
			return true
		}
	}
	m.mu.Unlock()
	return false
}

// Assist forwards a user hint to the running task.
func (m *Manager) Assist(id, message string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running == nil || m.running.ID != id {
		return false
	}
	m.running.Assist(message)
	return true
}

// QueueState is a snapshot of the queue.
type QueueState struct {
	RunningTask string   `json:"runningTask"`
	QueuedTasks []string `json:"queuedTasks"`
}

// Snapshot returns the running task and the queued task IDs.
func (m *Manager) Snapshot() QueueState {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s QueueState
	if m.running != nil {
		s.RunningTask = m.running.ID
	}
	for _, t := range m.queue {
		s.QueuedTasks = append(s.QueuedTasks, t.ID)
	}
	return s
}

// processNext starts the head of the queue when idle.
func (m *Manager) processNext() {
	m.mu.Lock()
	if m.running != nil || len(m.queue) == 0 {
		m.mu.Unlock()
		return
	}
	t := m.queue[0]
	m.queue = m.queue[1:]
	m.running = t
	m.mu.Unlock()

	m.update(t, StatusRunning, t.Goal)

	go func() {
		res := m.run(m.ctx, t)

		m.mu.Lock()
		m.running = nil
		m.mu.Unlock()

		m.update(t, res.Status(), res.Message)
		m.processNext()
	}()
}

func (m *Manager) update(t *Task, status, message string) {
	t.setStatus(status, message)
	if m.onUpdate != nil {
		m.onUpdate(TaskUpdate{Type: "taskUpdate", TaskID: t.ID, Status: status, Message: message})
	}
}
