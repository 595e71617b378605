package models

import (
	"encoding/json"
	"strings"
)

// AssistantSessionMessage represents the tool's response with text and/or tool calls.
type AssistantSessionMessage struct {
	RawJSON
	BaseMessage
	EnvelopeFields
	Message *ChatMessage `json:"message,omitempty"`
}

func (m AssistantSessionMessage) MarshalJSON() ([]byte, error) {
	if len(m.Raw) > 0 {
		return m.Raw, nil
	}
	type Alias AssistantSessionMessage
	return json.Marshal(Alias(m))
}

// GetText returns the response text with tool-use blocks skipped.
func (m *AssistantSessionMessage) GetText() string {
	if m.Message == nil {
		return ""
	}
	return strings.Join(m.Message.TextContent(), "\n")
}
