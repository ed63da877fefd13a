package llm

import (
	"math/rand"
	"strings"
	"testing"
)

func TestSplitterFeed(t *testing.T) {
	tests := []struct {
		name      string
		chunks    []string
		reasoning string
		action    string
	}{
		{
			name:      "marker in one chunk",
			chunks:    []string{"look at the screen do(action=\"Back\")"},
			reasoning: "look at the screen ",
			action:    `do(action="Back")`,
		},
		{
			name:      "marker split across chunks",
			chunks:    []string{"thinking fin", "ish(mess", "age=\"ok\")"},
			reasoning: "thinking ",
			action:    `finish(message="ok")`,
		},
		{
			name:      "false prefix is released",
			chunks:    []string{"I will do", " it now"},
			reasoning: "I will do it now",
		},
		{
			name:      "earliest marker wins",
			chunks:    []string{"a do(action=\"Tap\", element=[1,2]) finish(message=x)"},
			reasoning: "a ",
			action:    `do(action="Tap", element=[1,2]) finish(message=x)`,
		},
		{
			name:   "action only",
			chunks: []string{"finish(message=\"done\")"},
			action: `finish(message="done")`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Splitter
			var got strings.Builder
			for _, c := range tt.chunks {
				got.WriteString(s.Feed(c))
			}
			got.WriteString(s.Flush())
			rest := s.Remainder()
			if got.String() != tt.reasoning {
				t.Errorf("reasoning = %q, want %q", got.String(), tt.reasoning)
			}
			if rest != tt.action {
				t.Errorf("action = %q, want %q", rest, tt.action)
			}
		})
	}
}

func TestSplitterNeverEmitsMarker(t *testing.T) {
	pieces := []string{"f", "fi", "finish(", "message=", "do", "do(", "action=", "\"x\"", " ", "think ", "d", "o(a", "ction"}
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		var raw strings.Builder
		var chunks []string
		for j := rng.Intn(12) + 1; j > 0; j-- {
			c := pieces[rng.Intn(len(pieces))]
			chunks = append(chunks, c)
			raw.WriteString(c)
		}

		var s Splitter
		var emitted strings.Builder
		for _, c := range chunks {
			out := s.Feed(c)
			for _, m := range markers {
				if strings.Contains(out, m) {
					t.Fatalf("chunk %q contains marker %q (input %q)", out, m, raw.String())
				}
			}
			if len(s.held) > maxHold {
				t.Fatalf("held %d bytes, limit %d", len(s.held), maxHold)
			}
			emitted.WriteString(out)
		}
		if emitted.String()+s.Remainder() != raw.String() {
			t.Fatalf("emitted %q + remainder %q != raw %q", emitted.String(), s.Remainder(), raw.String())
		}
	}
}
