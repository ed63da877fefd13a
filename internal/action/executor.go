package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"phone-agent/internal/device"
)

// Result is the outcome of executing one action.
type Result struct {
	Success      bool
	ShouldFinish bool
	Message      string
}

// TakeoverFunc is told when the model hands control to the user.
type TakeoverFunc func(ctx context.Context, reason string)

// Executor runs actions against a device backend.
type Executor struct {
	backend  device.Backend
	takeover TakeoverFunc
}

// NewExecutor creates an executor. takeover may be nil.
func NewExecutor(backend device.Backend, takeover TakeoverFunc) *Executor {
	return &Executor{backend: backend, takeover: takeover}
}

type handlerFunc func(e *Executor, ctx context.Context, a Action, width, height int) (Result, error)

// actionFunctions maps action kinds to their execution functions
var actionFunctions = map[Kind]handlerFunc{
	KindLaunch:    launchExecution,
	KindTap:       tapExecution,
	KindLongPress: longPressExecution,
	KindDoubleTap: doubleTapExecution,
	KindType:      typeExecution,
	KindSwipe:     swipeExecution,
	KindBack:      backExecution,
	KindHome:      homeExecution,
	KindWait:      waitExecution,
	KindTakeOver:  takeOverExecution,
	KindFinish:    finishExecution,
}

// Execute runs a on a width x height screen. Device failures are returned
// as errors; outcomes the model can recover from are reported in Result.
func (e *Executor) Execute(ctx context.Context, a Action, width, height int) (Result, error) {
	fn, ok := actionFunctions[a.Kind]
	if !ok {
		log.Warn().Str("action", a.Name).Msg("unsupported action")
		return Result{Message: "Unsupported action: " + a.Name}, nil
	}
	log.Debug().Str("action", string(a.Kind)).Str("raw", a.Raw).Msg("executing action")
	return fn(e, ctx, a, width, height)
}

func succeeded() (Result, error) {
	return Result{Success: true}, nil
}

func launchExecution(e *Executor, ctx context.Context, a Action, _, _ int) (Result, error) {
	err := e.backend.LaunchApp(ctx, a.App)
	if errors.Is(err, device.ErrAppNotFound) {
		return Result{Message: "App not found: " + a.App}, nil
	}
	if err != nil {
		return Result{}, err
	}
	return succeeded()
}

func tapExecution(e *Executor, ctx context.Context, a Action, width, height int) (Result, error) {
	x, y := a.Element.Pixels(width, height)
	if err := e.backend.Tap(ctx, x, y); err != nil {
		return Result{}, err
	}
	return succeeded()
}

func longPressExecution(e *Executor, ctx context.Context, a Action, width, height int) (Result, error) {
	x, y := a.Element.Pixels(width, height)
	if err := e.backend.LongPress(ctx, x, y, a.DurationMs); err != nil {
		return Result{}, err
	}
	return succeeded()
}

func doubleTapExecution(e *Executor, ctx context.Context, a Action, width, height int) (Result, error) {
	x, y := a.Element.Pixels(width, height)
	if err := e.backend.DoubleTap(ctx, x, y); err != nil {
		return Result{}, err
	}
	return succeeded()
}

func typeExecution(e *Executor, ctx context.Context, a Action, _, _ int) (Result, error) {
	if err := e.backend.TypeText(ctx, a.Text); err != nil {
		return Result{}, err
	}
	return succeeded()
}

func swipeExecution(e *Executor, ctx context.Context, a Action, width, height int) (Result, error) {
	x0, y0 := a.Start.Pixels(width, height)
	x1, y1 := a.End.Pixels(width, height)
	if err := e.backend.Swipe(ctx, x0, y0, x1, y1, a.DurationMs); err != nil {
		return Result{}, err
	}
	return succeeded()
}

func backExecution(e *Executor, ctx context.Context, _ Action, _, _ int) (Result, error) {
	if err := e.backend.Back(ctx); err != nil {
		return Result{}, err
	}
	return succeeded()
}

func homeExecution(e *Executor, ctx context.Context, _ Action, _, _ int) (Result, error) {
	if err := e.backend.Home(ctx); err != nil {
		return Result{}, err
	}
	return succeeded()
}

func waitExecution(_ *Executor, ctx context.Context, a Action, _, _ int) (Result, error) {
	if err := device.Sleep(ctx, a.Wait); err != nil {
		return Result{}, fmt.Errorf("wait interrupted: %w", err)
	}
	return succeeded()
}

func takeOverExecution(e *Executor, ctx context.Context, a Action, _, _ int) (Result, error) {
	if e.takeover != nil {
		e.takeover(ctx, a.Message)
	}
	return Result{Success: true, Message: a.Message}, nil
}

func finishExecution(_ *Executor, _ context.Context, a Action, _, _ int) (Result, error) {
	return Result{Success: true, ShouldFinish: true, Message: a.Message}, nil
}
