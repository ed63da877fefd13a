package llm

import (
	"strings"
	"time"
)

// Response is a complete model reply.
type Response struct {
	Reasoning string
	Action    string
	Raw       string

	// Nil when the event never happened.
	FirstToken *time.Duration
	Boundary   *time.Duration
	Total      *time.Duration
}

// ParseResponse splits raw model output into reasoning and action text.
func ParseResponse(raw string) (reasoning, action string) {
	for _, m := range markers {
		if i := strings.Index(raw, m); i >= 0 {
			return strings.TrimSpace(raw[:i]), raw[i:]
		}
	}

	if i := strings.Index(raw, "<answer>"); i >= 0 {
		reasoning = raw[:i]
		reasoning = strings.ReplaceAll(reasoning, "<think>", "")
		reasoning = strings.ReplaceAll(reasoning, "</think>", "")
		action = strings.ReplaceAll(raw[i+len("<answer>"):], "</answer>", "")
		return strings.TrimSpace(reasoning), strings.TrimSpace(action)
	}

	return "", raw
}

// AssistantContent is the stored form of a reply in the conversation.
func AssistantContent(reasoning, action string) string {
	return "<think>" + reasoning + "</think><answer>" + action + "</answer>"
}
