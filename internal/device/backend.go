// Package device drives an Android device. Every backend speaks the same
// shell command dialect; they only differ in how a command reaches the device.
package device

import (
	"context"
	"errors"
	"math"
	"time"

	"phone-agent/internal/screenshot"
)

var (
	// ErrNotConnected means the device or broker is unreachable.
	ErrNotConnected = errors.New("device not connected")
	// ErrAppNotFound means the app name could not be resolved to a package.
	ErrAppNotFound = errors.New("app not found")
)

// Backend is the set of primitives the agent can perform on a device.
// Coordinates are device pixels. Every primitive waits for its settle delay
// before returning.
type Backend interface {
	Name() string

	Tap(ctx context.Context, x, y int) error
	DoubleTap(ctx context.Context, x, y int) error
	LongPress(ctx context.Context, x, y, durationMs int) error
	// Swipe uses a distance based gesture duration when durationMs is 0.
	Swipe(ctx context.Context, x0, y0, x1, y1, durationMs int) error
	Back(ctx context.Context) error
	Home(ctx context.Context) error
	// TypeText replaces the content of the focused field with text.
	TypeText(ctx context.Context, text string) error
	LaunchApp(ctx context.Context, app string) error

	// CurrentApp names the foreground app, "System Home" when unknown.
	CurrentApp(ctx context.Context) string
	// Screenshot never fails; on error it returns a black placeholder.
	Screenshot(ctx context.Context) *screenshot.Screenshot
	Ping(ctx context.Context) error
}

// Timing holds settle delays applied after each primitive.
type Timing struct {
	Tap            time.Duration
	DoubleTap      time.Duration
	DoubleInterval time.Duration
	LongPress      time.Duration
	SwipeMin       time.Duration
	SwipeMax       time.Duration
	Back           time.Duration
	Home           time.Duration
	Launch         time.Duration
	Type           time.Duration
}

// DefaultTiming returns the settle delays used on real devices.
func DefaultTiming() Timing {
	return Timing{
		Tap:            150 * time.Millisecond,
		DoubleTap:      150 * time.Millisecond,
		DoubleInterval: 100 * time.Millisecond,
		LongPress:      200 * time.Millisecond,
		SwipeMin:       200 * time.Millisecond,
		SwipeMax:       600 * time.Millisecond,
		Back:           200 * time.Millisecond,
		Home:           200 * time.Millisecond,
		Launch:         600 * time.Millisecond,
		Type:           200 * time.Millisecond,
	}
}

const (
	DefaultLongPressMs = 3000
	minSwipeMs         = 1000
	maxSwipeMs         = 2000
	// swipeSettleSpan is the pixel distance at which the swipe settle delay
	// reaches SwipeMax.
	swipeSettleSpan = 2000.0
)

// swipeDuration derives the gesture length from the squared distance.
func swipeDuration(x0, y0, x1, y1 int) int {
	dx, dy := x1-x0, y1-y0
	ms := (dx*dx + dy*dy) / 1000
	if ms < minSwipeMs {
		return minSwipeMs
	}
	if ms > maxSwipeMs {
		return maxSwipeMs
	}
	return ms
}

func (t Timing) swipeSettle(x0, y0, x1, y1 int) time.Duration {
	dist := math.Hypot(float64(x1-x0), float64(y1-y0))
	frac := math.Min(dist/swipeSettleSpan, 1)
	return t.SwipeMin + time.Duration(frac*float64(t.SwipeMax-t.SwipeMin))
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
