package engine

import (
	"time"

	"github.com/xiaoyuanzhu-com/sessiond/engine/models"
)

const untitledDisplayName = "Untitled"

// recordText extracts the human-readable text of a user-visible record.
func recordText(msg models.SessionMessageI) string {
	switch m := msg.(type) {
	case *models.UserSessionMessage:
		return m.GetUserPrompt()
	case *models.AssistantSessionMessage:
		return m.GetText()
	default:
		return ""
	}
}

// recordTime parses a record's own timestamp; ok is false when absent or
// unparseable.
func recordTime(msg models.SessionMessageI) (time.Time, bool) {
	ts := msg.GetTimestamp()
	if ts == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// buildMetadata builds a full metadata entry from all records of a transcript.
// mtime is the filesystem fallback for timing fields.
func buildMetadata(id, path string, msgs []models.SessionMessageI, mtime time.Time) *SessionMetadata {
	meta := &SessionMetadata{
		ID:       id,
		FullPath: path,
		Created:  mtime,
		Modified: mtime,
	}

	if len(msgs) > 0 {
		if t, ok := recordTime(msgs[0]); ok {
			meta.Created = t
		}
	}

	// Working directory comes from early conversation records.
	for _, msg := range msgs {
		switch m := msg.(type) {
		case *models.UserSessionMessage:
			if m.CWD != "" {
				meta.ProjectPath = m.CWD
			}
		case *models.AssistantSessionMessage:
			if m.CWD != "" {
				meta.ProjectPath = m.CWD
			}
		}
		if meta.ProjectPath != "" {
			break
		}
	}

	var summary string
	for _, msg := range msgs {
		if summaryMsg, ok := msg.(*models.SummarySessionMessage); ok && summaryMsg.Summary != "" {
			summary = summaryMsg.Summary
		}
	}

	applyVisible(meta, FilterVisible(msgs))

	meta.DisplayName = displayName(summary, meta.FirstMessage)
	return meta
}

// applyVisible folds freshly filtered records into the entry: count, first
// and last message text, preview, and the message-derived modified time.
func applyVisible(meta *SessionMetadata, visible []models.SessionMessageI) {
	if len(visible) == 0 {
		return
	}

	meta.MessageCount += len(visible)

	for _, msg := range visible {
		text := recordText(msg)
		if text == "" {
			continue
		}
		if meta.FirstMessage == "" {
			meta.FirstMessage = text
		}
		meta.LastMessage = text
		meta.Preview = text
	}

	// Prefer the newest message's own timestamp over filesystem mtime.
	for i := len(visible) - 1; i >= 0; i-- {
		if t, ok := recordTime(visible[i]); ok {
			meta.Modified = t
			break
		}
	}
}

// displayName picks the name shown to clients: summary over first prompt.
func displayName(summary, firstMessage string) string {
	if summary != "" {
		return summary
	}
	if firstMessage != "" {
		return firstMessage
	}
	return untitledDisplayName
}
