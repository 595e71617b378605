package engine

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// transcriptExt is the extension the external tool gives transcript files.
const transcriptExt = ".jsonl"

// CanonicalSessionID validates s as a UUID and returns its canonical
// lower-case form. Index keys are always canonical, so lookups are
// case-insensitive.
func CanonicalSessionID(s string) (string, bool) {
	u, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	return strings.ToLower(u.String()), true
}

// sessionIDFromPath derives the canonical session id from a transcript path.
// Files whose base name is not a UUID are not transcripts.
func sessionIDFromPath(path string) (string, bool) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, transcriptExt) {
		return "", false
	}
	return CanonicalSessionID(strings.TrimSuffix(base, transcriptExt))
}
