package db

import "time"

// SessionState is the per-session client state row.
type SessionState struct {
	SessionID     string `json:"sessionId"`
	ArchivedAt    *int64 `json:"archivedAt,omitempty"`
	LastReadCount int    `json:"lastReadCount"`
	UpdatedAt     int64  `json:"updatedAt"`
}

// Archived reports whether the session is currently archived.
func (s *SessionState) Archived() bool {
	return s.ArchivedAt != nil
}

// NowMs returns the current time in epoch milliseconds
func NowMs() int64 {
	return time.Now().UnixMilli()
}
