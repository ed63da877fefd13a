package token

import (
	"sync"
	"unicode/utf8"
)

// Tracker accumulates estimated token usage across model requests.
type Tracker struct {
	mu       sync.Mutex
	total    int
	onUpdate func(total int)
}

// NewTracker creates a tracker. onUpdate, when set, is called with the new
// total after every change.
func NewTracker(onUpdate func(total int)) *Tracker {
	return &Tracker{onUpdate: onUpdate}
}

// Add adds tokens to the total and returns the new total.
func (t *Tracker) Add(tokens int) int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	t.total += tokens
	total := t.total
	fn := t.onUpdate
	t.mu.Unlock()

	if fn != nil {
		fn(total)
	}
	return total
}

// Total returns the current total.
func (t *Tracker) Total() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// Reset zeroes the counter.
func (t *Tracker) Reset() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.total = 0
	fn := t.onUpdate
	t.mu.Unlock()
	if fn != nil {
		fn(0)
	}
}

// ImageTokens is the flat cost charged for one attached screenshot.
const ImageTokens = 1000

// Estimate approximates the token count of text at four bytes per token,
// counting each non-ASCII rune as one token.
func Estimate(text string) int {
	ascii, other := 0, 0
	for _, r := range text {
		if r < utf8.RuneSelf {
			ascii++
		} else {
			other++
		}
	}
	n := ascii/4 + other
	if n < 1 && text != "" {
		n = 1
	}
	return n
}
