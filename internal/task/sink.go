package task

import (
	"github.com/rs/zerolog/log"

	"phone-agent/internal/screenshot"
)

// Sink receives progress from a running task.
type Sink interface {
	OnAction(text string)
	OnScreenshot(shot *screenshot.Screenshot)
	OnAssistant(chunk string)
	// OnTapIndicator receives device pixel coordinates.
	OnTapIndicator(x, y int)
	OnError(message string)
	OnDone(message string)
}

// SinkFuncs adapts optional functions to Sink. Nil fields are skipped.
type SinkFuncs struct {
	Action       func(text string)
	Screenshot   func(shot *screenshot.Screenshot)
	Assistant    func(chunk string)
	TapIndicator func(x, y int)
	Error        func(message string)
	Done         func(message string)
}

func (s SinkFuncs) OnAction(text string) {
	if s.Action != nil {
		s.Action(text)
	}
}

func (s SinkFuncs) OnScreenshot(shot *screenshot.Screenshot) {
	if s.Screenshot != nil {
		s.Screenshot(shot)
	}
}

func (s SinkFuncs) OnAssistant(chunk string) {
	if s.Assistant != nil {
		s.Assistant(chunk)
	}
}

func (s SinkFuncs) OnTapIndicator(x, y int) {
	if s.TapIndicator != nil {
		s.TapIndicator(x, y)
	}
}

func (s SinkFuncs) OnError(message string) {
	if s.Error != nil {
		s.Error(message)
	}
}

func (s SinkFuncs) OnDone(message string) {
	if s.Done != nil {
		s.Done(message)
	}
}

// MultiSink fans every event out to each sink in order.
type MultiSink []Sink

func (m MultiSink) OnAction(text string) {
	for _, s := range m {
		s.OnAction(text)
	}
}

func (m MultiSink) OnScreenshot(shot *screenshot.Screenshot) {
	for _, s := range m {
		s.OnScreenshot(shot)
	}
}

func (m MultiSink) OnAssistant(chunk string) {
	for _, s := range m {
		s.OnAssistant(chunk)
	}
}

func (m MultiSink) OnTapIndicator(x, y int) {
	for _, s := range m {
		s.OnTapIndicator(x, y)
	}
}

func (m MultiSink) OnError(message string) {
	for _, s := range m {
		s.OnError(message)
	}
}

func (m MultiSink) OnDone(message string) {
	for _, s := range m {
		s.OnDone(message)
	}
}

// SafeSink calls the wrapped sink and discards any panic it raises, so a
// faulty observer never stops the loop.
type SafeSink struct {
	Sink Sink
}

func recoverSink(event string) {
	if r := recover(); r != nil {
		log.Warn().Str("event", event).Interface("panic", r).Msg("sink callback panicked")
	}
}

func (s SafeSink) OnAction(text string) {
	if s.Sink == nil {
		return
	}
	defer recoverSink("action")
	s.Sink.OnAction(text)
}

func (s SafeSink) OnScreenshot(shot *screenshot.Screenshot) {
	if s.Sink == nil {
		return
	}
	defer recoverSink("screenshot")
	s.Sink.OnScreenshot(shot)
}

func (s SafeSink) OnAssistant(chunk string) {
	if s.Sink == nil {
		return
	}
	defer recoverSink("assistant")
	s.Sink.OnAssistant(chunk)
}

func (s SafeSink) OnTapIndicator(x, y int) {
	if s.Sink == nil {
		return
	}
	defer recoverSink("tap_indicator")
	s.Sink.OnTapIndicator(x, y)
}

func (s SafeSink) OnError(message string) {
	if s.Sink == nil {
		return
	}
	defer recoverSink("error")
	s.Sink.OnError(message)
}

func (s SafeSink) OnDone(message string) {
	if s.Sink == nil {
		return
	}
	defer recoverSink("done")
	s.Sink.OnDone(message)
}
