package action

import (
	"fmt"
	"strings"
	"time"
)

// Kind identifies one operation of the action grammar.
type Kind string

const (
	KindLaunch    Kind = "Launch"
	KindTap       Kind = "Tap"
	KindLongPress Kind = "Long Press"
	KindDoubleTap Kind = "Double Tap"
	KindType      Kind = "Type"
	KindSwipe     Kind = "Swipe"
	KindBack      Kind = "Back"
	KindHome      Kind = "Home"
	KindWait      Kind = "Wait"
	KindTakeOver  Kind = "Take_over"
	KindFinish    Kind = "finish"
	// KindOperation is a well-formed call with an unrecognised name.
	KindOperation Kind = "OPERATION"
)

const (
	MetaDo     = "do"
	MetaFinish = "finish"

	// CoordMax is the upper bound of the normalized coordinate space.
	CoordMax = 1000
)

// Coordinates is a point in normalized [0, 1000] space.
type Coordinates struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Pixels converts c to device pixels for a width x height screen.
func (c Coordinates) Pixels(width, height int) (int, int) {
	return c.X * width / CoordMax, c.Y * height / CoordMax
}

// Action is one validated instruction from the model.
type Action struct {
	Kind       Kind          `json:"kind"`
	Name       string        `json:"name"`
	Meta       string        `json:"meta"`
	App        string        `json:"app,omitempty"`
	Element    Coordinates   `json:"element,omitempty"`
	Start      Coordinates   `json:"start,omitempty"`
	End        Coordinates   `json:"end,omitempty"`
	DurationMs int           `json:"durationMs,omitempty"`
	Wait       time.Duration `json:"wait,omitempty"`
	Text       string        `json:"text,omitempty"`
	Message    string        `json:"message,omitempty"`
	Raw        string        `json:"raw"`
}

// Finish builds a terminal action carrying message.
func Finish(message string) Action {
	return Action{Kind: KindFinish, Name: string(KindFinish), Meta: MetaFinish, Message: message, Raw: message}
}

// IsFinish reports whether a ends the task.
func (a Action) IsFinish() bool {
	return a.Meta == MetaFinish
}

// TapLike reports whether a touches a single point.
func (a Action) TapLike() bool {
	switch a.Kind {
	case KindTap, KindLongPress, KindDoubleTap:
		return true
	}
	return false
}

// Tag is the short label shown next to progress messages.
func (a Action) Tag() string {
	if a.IsFinish() {
		return "FINISH"
	}
	if a.Name == "" {
		return string(KindOperation)
	}
	return strings.ReplaceAll(a.Name, " ", "_")
}

// Describe renders a progress line such as "[[ACTION:Tap]]Tap (500, 300)".
func Describe(a Action) string {
	var desc string
	switch a.Kind {
	case KindFinish:
		desc = a.Message
	case KindLaunch:
		desc = "Launch " + a.App
	case KindTap, KindLongPress, KindDoubleTap:
		desc = fmt.Sprintf("%s (%d, %d)", a.Kind, a.Element.X, a.Element.Y)
	case KindType:
		desc = fmt.Sprintf("Type %q", a.Text)
	case KindSwipe:
		desc = fmt.Sprintf("Swipe (%d, %d) -> (%d, %d)", a.Start.X, a.Start.Y, a.End.X, a.End.Y)
	case KindWait:
		desc = fmt.Sprintf("Wait %.1fs", a.Wait.Seconds())
	case KindTakeOver:
		desc = "Take over: " + a.Message
	case KindBack, KindHome:
		desc = string(a.Kind)
	default:
		desc = a.Name
	}
	return "[[ACTION:" + a.Tag() + "]]" + desc
}
