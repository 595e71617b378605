package models

// ChatMessage is the inner API-format message carried by user and assistant
// records. Content is a string for user input and a []ContentBlock-shaped
// slice for assistant responses.
type ChatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content,omitempty"`
	Model   string      `json:"model,omitempty"`
	ID      string      `json:"id,omitempty"`
}

// TextContent flattens the content into plain text. Text blocks are joined
// with newlines; tool-use and other structured blocks are skipped.
func (m *ChatMessage) TextContent() []string {
	if m == nil || m.Content == nil {
		return nil
	}

	if str, ok := m.Content.(string); ok {
		if str == "" {
			return nil
		}
		return []string{str}
	}

	blocks, ok := m.Content.([]interface{})
	if !ok {
		return nil
	}

	var texts []string
	for _, block := range blocks {
		blockMap, ok := block.(map[string]interface{})
		if !ok {
			continue
		}
		if blockMap["type"] != "text" {
			continue
		}
		if text, ok := blockMap["text"].(string); ok && text != "" {
			texts = append(texts, text)
		}
	}
	return texts
}
