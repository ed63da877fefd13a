package llm

import "strings"

// Markers that start the action part of a reply.
const (
	MarkerFinish = "finish(message="
	MarkerDo     = "do(action="
)

var markers = []string{MarkerFinish, MarkerDo}

// maxHold is the longest text that can be an unfinished marker.
var maxHold = func() int {
	n := 0
	for _, m := range markers {
		if len(m) > n {
			n = len(m)
		}
	}
	return n - 1
}()

// Splitter separates streamed reasoning from the action that follows it.
// Feed returns text that is safe to show as reasoning: it never contains a
// marker and never ends with a partial one. Once a marker is seen all further
// input belongs to the action.
type Splitter struct {
	buf      strings.Builder
	held     string
	inAction bool
}

// Feed consumes one streamed chunk.
func (s *Splitter) Feed(chunk string) string {
	if s.inAction {
		s.buf.WriteString(chunk)
		return ""
	}

	text := s.held + chunk
	if idx := firstMarker(text); idx >= 0 {
		s.inAction = true
		s.held = ""
		s.buf.WriteString(text[idx:])
		return text[:idx]
	}

	k := partialMarkerSuffix(text)
	s.held = text[len(text)-k:]
	return text[:len(text)-k]
}

// InAction reports whether a marker has been seen.
func (s *Splitter) InAction() bool {
	return s.inAction
}

// Remainder returns everything fed but not emitted as reasoning.
func (s *Splitter) Remainder() string {
	if s.inAction {
		return s.buf.String()
	}
	return s.held
}

// Flush returns and clears text held back as a possible marker prefix. It is
// called when the stream ends without a marker.
func (s *Splitter) Flush() string {
	if s.inAction {
		return ""
	}
	held := s.held
	s.held = ""
	return held
}

func firstMarker(text string) int {
	best := -1
	for _, m := range markers {
		if i := strings.Index(text, m); i >= 0 && (best < 0 || i < best) {
			best = i
		}
	}
	return best
}

// partialMarkerSuffix returns the length of the longest suffix of text that
// is a proper prefix of some marker.
func partialMarkerSuffix(text string) int {
	k := maxHold
	if len(text) < k {
		k = len(text)
	}
	for ; k > 0; k-- {
		suffix := text[len(text)-k:]
		for _, m := range markers {
			if strings.HasPrefix(m, suffix) {
				return k
			}
		}
	}
	return 0
}
