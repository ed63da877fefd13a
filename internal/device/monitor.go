package device

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Monitor verifies that a backend is reachable before and during a task.
type Monitor struct {
	backend Backend
}

func NewMonitor(backend Backend) *Monitor {
	return &Monitor{backend: backend}
}

// Check returns nil when the device answers. The error text is meant for
// the user.
func (m *Monitor) Check(ctx context.Context) error {
	err := m.backend.Ping(ctx)
	if err == nil {
		return nil
	}
	log.Warn().Err(err).Str("backend", m.backend.Name()).Msg("connection check failed")
	if errors.Is(err, ErrNotConnected) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrNotConnected, err)
}
