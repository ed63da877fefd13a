// Package devicetest provides an in-memory device.Backend for tests.
package devicetest

import (
	"context"
	"fmt"
	"sync"

	"phone-agent/internal/device"
	"phone-agent/internal/screenshot"
)

// Fake records every primitive as a short string such as "tap 540 1200".
type Fake struct {
	mu sync.Mutex

	Calls   []string
	Shot    *screenshot.Screenshot
	App     string
	Apps    map[string]bool
	PingErr error
	// Fail makes every input primitive return this error.
	Fail error
	// OnPing runs before each Ping. Tests use it to flip state mid-task.
	OnPing func(n int)

	pings int
}

// New returns a connected fake with a 1080x2400 screen.
func New() *Fake {
	return &Fake{
		Shot: &screenshot.Screenshot{Width: 1080, Height: 2400, Mime: screenshot.MimeJPEG, Data: []byte{0xff, 0xd8, 0xff}},
		App:  "System Home",
		Apps: map[string]bool{},
	}
}

func (f *Fake) record(format string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, fmt.Sprintf(format, args...))
	return f.Fail
}

// Recorded returns a copy of the calls so far.
func (f *Fake) Recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Calls...)
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Tap(ctx context.Context, x, y int) error {
	return f.record("tap %d %d", x, y)
}

func (f *Fake) DoubleTap(ctx context.Context, x, y int) error {
	return f.record("doubletap %d %d", x, y)
}

func (f *Fake) LongPress(ctx context.Context, x, y, durationMs int) error {
	return f.record("longpress %d %d %d", x, y, durationMs)
}

func (f *Fake) Swipe(ctx context.Context, x0, y0, x1, y1, durationMs int) error {
	return f.record("swipe %d %d %d %d %d", x0, y0, x1, y1, durationMs)
}

func (f *Fake) Back(ctx context.Context) error { return f.record("back") }

func (f *Fake) Home(ctx context.Context) error { return f.record("home") }

func (f *Fake) TypeText(ctx context.Context, text string) error {
	return f.record("type %s", text)
}

func (f *Fake) LaunchApp(ctx context.Context, app string) error {
	f.mu.Lock()
	known := f.Apps[app]
	f.mu.Unlock()
	if !known {
		return fmt.Errorf("%w: %s", device.ErrAppNotFound, app)
	}
	if err := f.record("launch %s", app); err != nil {
		return err
	}
	f.mu.Lock()
	f.App = app
	f.mu.Unlock()
	return nil
}

func (f *Fake) CurrentApp(ctx context.Context) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.App
}

func (f *Fake) Screenshot(ctx context.Context) *screenshot.Screenshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	shot := *f.Shot
	return &shot
}

func (f *Fake) Ping(ctx context.Context) error {
	f.mu.Lock()
	f.pings++
	n, hook := f.pings, f.OnPing
	f.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.PingErr
}
