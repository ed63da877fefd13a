package task

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"phone-agent/internal/action"
	"phone-agent/internal/device"
	"phone-agent/internal/llm"
)

// User-facing terminal messages
const (
	MsgEmptyGoal = "Please enter a task goal."
	MsgCancelled = "Task cancelled by user."
)

// Decider asks the decision model for the next step.
type Decider interface {
	Request(ctx context.Context, messages []llm.Message, onReasoning func(string)) (*llm.Response, error)
}

// LoopConfig wires a Loop to its collaborators.
type LoopConfig struct {
	Backend device.Backend
	Model   Decider
	Sink    Sink
	// Takeover is told when the model asks the user to take over.
	Takeover action.TakeoverFunc

	PollInterval time.Duration
	DelayMin     time.Duration
	DelayMax     time.Duration
}

// Loop runs the observe, decide, act cycle for one task at a time.
type Loop struct {
	backend  device.Backend
	monitor  *device.Monitor
	model    Decider
	executor *action.Executor
	sink     Sink

	poll     time.Duration
	delayMin time.Duration
	delayMax time.Duration

	now   func() time.Time
	sleep func(time.Duration)
	rand  func(n int64) int64
}

// NewLoop creates a loop. Zero timings fall back to 200ms polls and a
// 1-2s delay between steps.
func NewLoop(cfg LoopConfig) *Loop {
	l := &Loop{
		backend:  cfg.Backend,
		monitor:  device.NewMonitor(cfg.Backend),
		model:    cfg.Model,
		executor: action.NewExecutor(cfg.Backend, cfg.Takeover),
		sink:     SafeSink{Sink: cfg.Sink},
		poll:     cfg.PollInterval,
		delayMin: cfg.DelayMin,
		delayMax: cfg.DelayMax,
		now:      time.Now,
		sleep:    time.Sleep,
		rand:     rand.Int64N,
	}
	if l.poll <= 0 {
		l.poll = 200 * time.Millisecond
	}
	if l.delayMin <= 0 && l.delayMax <= 0 {
		l.delayMin, l.delayMax = time.Second, 2*time.Second
	}
	if l.delayMax < l.delayMin {
		l.delayMax = l.delayMin
	}
	return l
}

// run holds the state of one task execution.
type run struct {
	*Loop
	ctx   context.Context
	task  *Task
	conv  *llm.Conversation
	state State
	steps int
}

// Run executes t until it finishes, fails, runs out of steps or is
// cancelled. It always fires exactly one OnDone.
func (l *Loop) Run(ctx context.Context, t *Task) Result {
	r := &run{Loop: l, ctx: ctx, task: t, state: StateInit}
	logger := log.With().Str("task_id", t.ID).Logger()

	if strings.TrimSpace(t.Goal) == "" {
		return r.done(StateFinished, MsgEmptyGoal)
	}

	r.state = StateChecking
	if err := l.monitor.Check(ctx); err != nil {
		return r.fail(fmt.Sprintf("Device not reachable: %v", err))
	}

	r.conv = llm.NewConversation(llm.SystemPrompt(t.Lang, l.now()))
	logger.Info().Str("goal", t.Goal).Int("max_steps", t.MaxSteps).Str("backend", l.backend.Name()).Msg("task started")

	for {
		if r.stopped() {
			return r.cancelled()
		}
		if r.steps >= t.MaxSteps {
			return r.fail(fmt.Sprintf("Reached the maximum of %d steps without finishing.", t.MaxSteps))
		}
		r.steps++

		res, terminal := r.step()
		if terminal {
			return res
		}

		r.state = StateSleeping
		if r.pause() {
			return r.cancelled()
		}
		if err := l.monitor.Check(ctx); err != nil {
			return r.fail(fmt.Sprintf("Device connection lost: %v", err))
		}
	}
}

// step performs one observe, decide, act cycle. terminal is true when the
// task ended during the step.
func (r *run) step() (res Result, terminal bool) {
	logger := log.With().Str("task_id", r.task.ID).Int("step", r.steps).Logger()

	r.state = StateObserving
	shot := r.backend.Screenshot(r.ctx)
	r.sink.OnScreenshot(shot)
	if shot.Sensitive {
		logger.Warn().Msg("screen capture unavailable, using placeholder")
	}

	r.state = StateDeciding
	text := llm.StepText(r.steps, r.task.Goal, llm.ScreenInfo(r.backend.CurrentApp(r.ctx)))
	if hint := r.task.takeAssist(); hint != "" {
		text += "\n\n** User Hint **\n\n" + hint
	}
	r.conv.AddUser(text, shot.DataURI())
	resp, err := r.model.Request(r.ctx, r.conv.Messages(), r.sink.OnAssistant)
	r.conv.StripLastImage()
	if err != nil {
		logger.Error().Err(err).Msg("model request failed")
		return r.fail(llm.DescribeError(err)), true
	}
	logger.Debug().Str("metrics", llm.FormatMetrics(resp)).Msg("model replied")
	r.conv.AddAssistant(resp.Reasoning, resp.Action)

	if r.stopped() {
		return r.cancelled(), true
	}

	r.state = StateActing
	act, err := action.Parse(resp.Action)
	if err != nil {
		logger.Warn().Err(err).Str("raw", resp.Action).Msg("unparseable action, finishing")
		act = action.Finish(resp.Action)
	}
	r.sink.OnAction(action.Describe(act))
	if act.TapLike() {
		r.sink.OnTapIndicator(act.Element.Pixels(shot.Width, shot.Height))
	}

	result, err := r.executor.Execute(r.ctx, act, shot.Width, shot.Height)
	if err != nil {
		logger.Error().Err(err).Str("action", string(act.Kind)).Msg("action failed")
		r.sink.OnError(err.Error())
		act = action.Finish(err.Error())
		result, _ = r.executor.Execute(r.ctx, act, shot.Width, shot.Height)
	}

	if act.IsFinish() || result.ShouldFinish {
		msg := result.Message
		if msg == "" {
			msg = act.Message
		}
		return r.done(StateFinished, msg), true
	}
	if result.Message != "" {
		r.sink.OnAction(result.Message)
	}

	if r.stopped() {
		return r.cancelled(), true
	}
	return Result{}, false
}

// pause sleeps a random delay in short polls and reports whether a stop
// was requested meanwhile.
func (r *run) pause() bool {
	delay := r.delayMin
	if span := int64(r.delayMax - r.delayMin); span > 0 {
		delay += time.Duration(r.rand(span + 1))
	}
	for delay > 0 {
		d := min(r.poll, delay)
		r.sleep(d)
		delay -= d
		if r.stopped() {
			return true
		}
	}
	return r.stopped()
}

func (r *run) stopped() bool {
	if r.ctx.Err() != nil {
		return true
	}
	return r.task.Stop != nil && r.task.Stop.Stopped()
}

func (r *run) cancelled() Result {
	return r.done(StateCancelled, MsgCancelled)
}

func (r *run) fail(message string) Result {
	r.sink.OnError(message)
	return r.done(StateFailed, message)
}

func (r *run) done(state State, message string) Result {
	r.state = state
	r.sink.OnDone(message)

	event := log.Info()
	if state == StateFailed {
		event = log.Warn()
	}
	event.Str("task_id", r.task.ID).Str("state", string(state)).Int("steps", r.steps).Str("message", message).Msg("task ended")
	return Result{State: state, Message: message, Steps: r.steps}
}
