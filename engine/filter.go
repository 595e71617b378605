package engine

import "github.com/xiaoyuanzhu-com/sessiond/engine/models"

// IsInternal reports whether a record is internal bookkeeping rather than
// user-visible conversation content: sidechain-flagged records, the summary
// and system control types, and records of unrecognized type.
func IsInternal(msg models.SessionMessageI) bool {
	switch m := msg.(type) {
	case *models.UserSessionMessage:
		return m.Sidechain()
	case *models.AssistantSessionMessage:
		return m.Sidechain()
	default:
		return true
	}
}

// FilterVisible returns the subsequence of records that are user-visible.
// Pure function; the input slice is never mutated.
func FilterVisible(msgs []models.SessionMessageI) []models.SessionMessageI {
	visible := make([]models.SessionMessageI, 0, len(msgs))
	for _, msg := range msgs {
		if IsInternal(msg) {
			continue
		}
		visible = append(visible, msg)
	}
	return visible
}
