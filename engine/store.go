package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/xiaoyuanzhu-com/sessiond/log"
)

// validationCountTolerance is how many unindexed transcripts a snapshot may
// miss before it is considered stale. Files created between the last snapshot
// write and startup are expected; gross drift is not.
const validationCountTolerance = 2

// SessionMetadata is the index entry for one session.
type SessionMetadata struct {
	ID          string `json:"id"`
	FullPath    string `json:"fullPath"`
	ProjectPath string `json:"projectPath,omitempty"`

	DisplayName  string `json:"displayName"`
	Preview      string `json:"preview,omitempty"`
	FirstMessage string `json:"firstMessage,omitempty"`
	LastMessage  string `json:"lastMessage,omitempty"`

	// Count after filtering, never the raw line count.
	// Monotonically non-decreasing for a given file.
	MessageCount int `json:"messageCount"`

	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`

	// Notified flips false to true exactly once, never back.
	Notified        bool       `json:"notified"`
	FirstNotifiedAt *time.Time `json:"firstNotifiedAt,omitempty"`
}

// Clone returns a copy safe to hand outside the store's lock.
func (m *SessionMetadata) Clone() *SessionMetadata {
	c := *m
	return &c
}

// Index maps canonical session id to metadata.
type Index map[string]*SessionMetadata

// Store owns the in-memory index and its durable snapshot. Every mutation
// path goes through Upsert/Remove so readers never see a stale-but-unsaved
// index.
type Store struct {
	mu           sync.RWMutex
	snapshotPath string
	rootDir      string
	index        Index
}

// NewStore creates a store for the given snapshot file and transcript root.
func NewStore(snapshotPath, rootDir string) *Store {
	return &Store{
		snapshotPath: snapshotPath,
		rootDir:      rootDir,
		index:        make(Index),
	}
}

// Load reads the snapshot from disk. Returns (nil, nil) when no snapshot
// exists; corruption is reported as an error so callers fall back to rebuild.
func (s *Store) Load() (Index, error) {
	data, err := os.ReadFile(s.snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return idx, nil
}

// Save writes the current index to the snapshot path via a temporary file
// and an atomic rename, so readers never observe a partial snapshot.
func (s *Store) Save() error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.index, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	dir := filepath.Dir(s.snapshotPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, s.snapshotPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// Validate checks a loaded snapshot against live filesystem state:
// every entry's transcript still exists, every transcript on disk has an
// entry (within tolerance), and the gross counts agree.
func (s *Store) Validate(idx Index) bool {
	onDisk := listTranscripts(s.rootDir)

	for id, meta := range idx {
		if _, err := os.Stat(meta.FullPath); err != nil {
			log.Warn().Str("sessionId", id).Str("path", meta.FullPath).Msg("snapshot entry has no transcript on disk")
			return false
		}
	}

	unindexed := 0
	for id := range onDisk {
		if _, ok := idx[id]; !ok {
			unindexed++
		}
	}
	if unindexed > validationCountTolerance {
		log.Warn().Int("unindexed", unindexed).Msg("snapshot missing too many transcripts")
		return false
	}

	diff := len(onDisk) - len(idx)
	if diff < 0 {
		diff = -diff
	}
	if diff > validationCountTolerance {
		log.Warn().Int("snapshot", len(idx)).Int("disk", len(onDisk)).Msg("snapshot count disagrees with disk")
		return false
	}

	return true
}

// Adopt replaces the in-memory index wholesale (startup only) and persists it.
func (s *Store) Adopt(idx Index) error {
	s.mu.Lock()
	if idx == nil {
		idx = make(Index)
	}
	s.index = idx
	s.mu.Unlock()
	return s.Save()
}

// Get returns a copy of the entry for id.
func (s *Store) Get(id string) (*SessionMetadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return meta.Clone(), true
}

// Upsert stores the entry and persists the snapshot.
func (s *Store) Upsert(meta *SessionMetadata) error {
	s.mu.Lock()
	s.index[meta.ID] = meta.Clone()
	s.mu.Unlock()
	return s.Save()
}

// Remove deletes the entry and persists the snapshot. Removing an absent id
// is a no-op that still persists.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	delete(s.index, id)
	s.mu.Unlock()
	return s.Save()
}

// All returns copies of every entry.
func (s *Store) All() []*SessionMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*SessionMetadata, 0, len(s.index))
	for _, meta := range s.index {
		result = append(result, meta.Clone())
	}
	return result
}

// Count returns the number of entries.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}

// listTranscripts maps canonical session id to transcript path for every
// transcript file under the root's project subdirectories.
func listTranscripts(rootDir string) map[string]string {
	result := make(map[string]string)

	entries, err := os.ReadDir(rootDir)
	if err != nil {
		return result
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		projectDir := filepath.Join(rootDir, entry.Name())
		files, err := os.ReadDir(projectDir)
		if err != nil {
			continue
		}
		for _, file := range files {
			if file.IsDir() || !strings.HasSuffix(file.Name(), transcriptExt) {
				continue
			}
			path := filepath.Join(projectDir, file.Name())
			if id, ok := sessionIDFromPath(path); ok {
				result[id] = path
			}
		}
	}
	return result
}
