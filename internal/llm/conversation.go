package llm

import (
	"encoding/json"
)

// Conversation is the message history of one task. Only the most recent
// user message keeps its screenshot.
type Conversation struct {
	messages []Message
}

// NewConversation starts a history with a system prompt.
func NewConversation(system string) *Conversation {
	return &Conversation{messages: []Message{TextMessage(RoleSystem, system)}}
}

// AddUser appends a user message. imageURL may be empty.
func (c *Conversation) AddUser(text, imageURL string) {
	msg := Message{Role: RoleUser}
	if imageURL != "" {
		msg.Parts = append(msg.Parts, Part{Type: PartImage, ImageURL: imageURL})
	}
	msg.Parts = append(msg.Parts, Part{Type: PartText, Text: text})
	c.messages = append(c.messages, msg)
}

// AddAssistant appends the model's reply in its stored form.
func (c *Conversation) AddAssistant(reasoning, action string) {
	c.messages = append(c.messages, TextMessage(RoleAssistant, AssistantContent(reasoning, action)))
}

// StripLastImage drops image parts from the most recent user message.
func (c *Conversation) StripLastImage() {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role != RoleUser {
			continue
		}
		parts := c.messages[i].Parts[:0:0]
		for _, p := range c.messages[i].Parts {
			if p.Type != PartImage {
				parts = append(parts, p)
			}
		}
		c.messages[i].Parts = parts
		return
	}
}

// Messages returns a copy of the history.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// ScreenInfo renders the JSON screen summary sent with each step.
func ScreenInfo(currentApp string) string {
	data, err := json.Marshal(map[string]string{"current_app": currentApp})
	if err != nil {
		return `{"current_app": ""}`
	}
	return string(data)
}

// StepText is the user text for a step: the goal on the first step and a
// screen summary afterwards.
func StepText(step int, goal, screenInfo string) string {
	if step == 1 {
		return goal + "\n\n" + screenInfo
	}
	return "** Screen Info **\n\n" + screenInfo
}
