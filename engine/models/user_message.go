package models

import (
	"encoding/json"
	"strings"
)

// UserSessionMessage represents a user input or tool result record.
type UserSessionMessage struct {
	RawJSON
	BaseMessage
	EnvelopeFields
	Message          *ChatMessage    `json:"message,omitempty"`
	ToolUseResult    json.RawMessage `json:"toolUseResult,omitempty"`
	IsCompactSummary bool            `json:"isCompactSummary,omitempty"`
}

func (m UserSessionMessage) MarshalJSON() ([]byte, error) {
	if len(m.Raw) > 0 {
		return m.Raw, nil
	}
	type Alias UserSessionMessage
	return json.Marshal(Alias(m))
}

// GetUserPrompt extracts the actual user-typed text from a user record,
// filtering out system-injected tags like <ide_opened_file> and <system-reminder>
func (m *UserSessionMessage) GetUserPrompt() string {
	if m.Message == nil {
		return ""
	}

	var userTexts []string
	for _, text := range m.Message.TextContent() {
		if filtered := filterSystemTags(text); filtered != "" {
			userTexts = append(userTexts, filtered)
		}
	}
	return strings.Join(userTexts, "\n")
}

// filterSystemTags drops text that is entirely a system-injected tag.
func filterSystemTags(text string) string {
	if strings.HasPrefix(text, "<ide_") ||
		strings.HasPrefix(text, "<system-reminder>") {
		return ""
	}
	return strings.TrimSpace(text)
}
