package db

import (
	"database/sql"
)

// ArchiveSession marks a session as archived
func ArchiveSession(sessionID string) error {
	now := NowMs()
	_, err := Run(
		`INSERT INTO session_state (session_id, archived_at, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
		   archived_at = COALESCE(session_state.archived_at, excluded.archived_at),
		   updated_at = excluded.updated_at`,
		sessionID, now, now,
	)
	return err
}

// UnarchiveSession removes the archived mark from a session
func UnarchiveSession(sessionID string) error {
	_, err := Run(
		`UPDATE session_state SET archived_at = NULL, updated_at = ? WHERE session_id = ?`,
		NowMs(), sessionID,
	)
	return err
}

// IsSessionArchived checks if a single session is archived
func IsSessionArchived(sessionID string) (bool, error) {
	return Exists(
		`SELECT 1 FROM session_state WHERE session_id = ? AND archived_at IS NOT NULL`,
		sessionID,
	)
}

// GetArchivedSessionIDs returns all archived session IDs as a set
func GetArchivedSessionIDs() (map[string]bool, error) {
	ids, err := Select(
		`SELECT session_id FROM session_state WHERE archived_at IS NOT NULL`,
		nil,
		func(rows *sql.Rows) (string, error) {
			var id string
			err := rows.Scan(&id)
			return id, err
		},
	)
	if err != nil {
		return nil, err
	}
	result := make(map[string]bool, len(ids))
	for _, id := range ids {
		result[id] = true
	}
	return result, nil
}

// MarkSessionRead records the message count the user has seen. The stored
// count only moves forward.
func MarkSessionRead(sessionID string, messageCount int) error {
	now := NowMs()
	_, err := Run(
		`INSERT INTO session_state (session_id, last_read_count, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
		   last_read_count = MAX(session_state.last_read_count, excluded.last_read_count),
		   updated_at = excluded.updated_at`,
		sessionID, messageCount, now,
	)
	return err
}

// GetSessionState returns the state row for one session, nil when absent
func GetSessionState(sessionID string) (*SessionState, error) {
	return SelectOne(
		`SELECT session_id, archived_at, last_read_count, updated_at
		 FROM session_state WHERE session_id = ?`,
		[]QueryParam{sessionID},
		scanSessionState,
	)
}

// GetAllSessionState returns state rows keyed by session id
func GetAllSessionState() (map[string]SessionState, error) {
	states, err := Select(
		`SELECT session_id, archived_at, last_read_count, updated_at FROM session_state`,
		nil,
		func(rows *sql.Rows) (SessionState, error) {
			var s SessionState
			err := rows.Scan(&s.SessionID, &s.ArchivedAt, &s.LastReadCount, &s.UpdatedAt)
			return s, err
		},
	)
	if err != nil {
		return nil, err
	}
	result := make(map[string]SessionState, len(states))
	for _, s := range states {
		result[s.SessionID] = s
	}
	return result, nil
}

// DeleteSessionState drops the state row when the session disappears from disk
func DeleteSessionState(sessionID string) error {
	_, err := Run(`DELETE FROM session_state WHERE session_id = ?`, sessionID)
	return err
}

func scanSessionState(row *sql.Row) (SessionState, error) {
	var s SessionState
	err := row.Scan(&s.SessionID, &s.ArchivedAt, &s.LastReadCount, &s.UpdatedAt)
	return s, err
}
