package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testMeta(id, path string) *SessionMetadata {
	return &SessionMetadata{
		ID:           id,
		FullPath:     path,
		DisplayName:  "Test session",
		MessageCount: 3,
		Created:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Modified:     time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
		Notified:     true,
	}
}

// makeTranscript creates root/<project>/<id>.jsonl with placeholder content.
func makeTranscript(t *testing.T, rootDir, project, id string) string {
	t.Helper()
	dir := filepath.Join(rootDir, project)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create project dir: %v", err)
	}
	path := filepath.Join(dir, id+".jsonl")
	if err := os.WriteFile(path, []byte(`{"type":"user","uuid":"u1","message":{"role":"user","content":"hi"}}`+"\n"), 0644); err != nil {
		t.Fatalf("failed to write transcript: %v", err)
	}
	return path
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	snapshot := filepath.Join(dir, "index.json")

	s := NewStore(snapshot, dir)
	meta := testMeta("123e4567-e89b-42d3-a456-426614174000", filepath.Join(dir, "p", "x.jsonl"))
	notifiedAt := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	meta.FirstNotifiedAt = &notifiedAt

	if err := s.Upsert(meta); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	// A fresh store loading the same snapshot sees the same entry.
	loaded, err := NewStore(snapshot, dir).Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	got, ok := loaded[meta.ID]
	if !ok {
		t.Fatal("expected entry in loaded snapshot")
	}
	if got.DisplayName != meta.DisplayName || got.MessageCount != meta.MessageCount {
		t.Errorf("entry fields did not survive round trip: %+v", got)
	}
	if !got.Notified || got.FirstNotifiedAt == nil || !got.FirstNotifiedAt.Equal(notifiedAt) {
		t.Errorf("notification state did not survive round trip: %+v", got)
	}
}

func TestStore_LoadMissingSnapshot(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "missing.json"), dir)

	idx, err := s.Load()
	if err != nil {
		t.Errorf("expected missing snapshot to load cleanly, got %v", err)
	}
	if idx != nil {
		t.Errorf("expected nil index for missing snapshot, got %d entries", len(idx))
	}
}

func TestStore_LoadCorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	snapshot := filepath.Join(dir, "index.json")
	if err := os.WriteFile(snapshot, []byte("{not json"), 0644); err != nil {
		t.Fatalf("failed to write corrupt snapshot: %v", err)
	}

	_, err := NewStore(snapshot, dir).Load()
	if err == nil {
		t.Error("expected corrupt snapshot to surface an error")
	}
}

func TestStore_GetReturnsCopy(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "index.json"), dir)

	meta := testMeta("123e4567-e89b-42d3-a456-426614174000", "x")
	if err := s.Upsert(meta); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	got, _ := s.Get(meta.ID)
	got.MessageCount = 999

	again, _ := s.Get(meta.ID)
	if again.MessageCount != 3 {
		t.Errorf("expected store to be isolated from caller mutation, got count %d", again.MessageCount)
	}
}

func TestStore_RemoveAbsentIsNoOp(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "index.json"), dir)

	if err := s.Remove("no-such-id"); err != nil {
		t.Errorf("expected removing an absent id to succeed, got %v", err)
	}
}

func TestStore_ValidateAcceptsMatchingSnapshot(t *testing.T) {
	root := t.TempDir()
	id := "123e4567-e89b-42d3-a456-426614174000"
	path := makeTranscript(t, root, "proj-a", id)

	s := NewStore(filepath.Join(root, "index.json"), root)
	idx := Index{id: testMeta(id, path)}

	if !s.Validate(idx) {
		t.Error("expected snapshot matching disk to validate")
	}
}

func TestStore_ValidateRejectsMissingTranscript(t *testing.T) {
	root := t.TempDir()
	id := "123e4567-e89b-42d3-a456-426614174000"

	s := NewStore(filepath.Join(root, "index.json"), root)
	idx := Index{id: testMeta(id, filepath.Join(root, "proj-a", id+".jsonl"))}

	if s.Validate(idx) {
		t.Error("expected snapshot with a deleted transcript to be rejected")
	}
}

func TestStore_ValidateToleratesFewUnindexed(t *testing.T) {
	root := t.TempDir()
	indexed := "123e4567-e89b-42d3-a456-426614174000"
	path := makeTranscript(t, root, "proj-a", indexed)

	// Transcripts created after the snapshot was written, within tolerance.
	makeTranscript(t, root, "proj-a", "223e4567-e89b-42d3-a456-426614174000")
	makeTranscript(t, root, "proj-b", "323e4567-e89b-42d3-a456-426614174000")

	s := NewStore(filepath.Join(root, "index.json"), root)
	idx := Index{indexed: testMeta(indexed, path)}

	if !s.Validate(idx) {
		t.Error("expected snapshot within tolerance to validate")
	}
}

func TestStore_ValidateRejectsGrossDrift(t *testing.T) {
	root := t.TempDir()
	indexed := "123e4567-e89b-42d3-a456-426614174000"
	path := makeTranscript(t, root, "proj-a", indexed)

	for _, id := range []string{
		"223e4567-e89b-42d3-a456-426614174000",
		"323e4567-e89b-42d3-a456-426614174000",
		"423e4567-e89b-42d3-a456-426614174000",
	} {
		makeTranscript(t, root, "proj-a", id)
	}

	s := NewStore(filepath.Join(root, "index.json"), root)
	idx := Index{indexed: testMeta(indexed, path)}

	if s.Validate(idx) {
		t.Error("expected snapshot far behind disk to be rejected")
	}
}

func TestListTranscripts_SkipsNonUUIDFiles(t *testing.T) {
	root := t.TempDir()
	id := "123e4567-e89b-42d3-a456-426614174000"
	makeTranscript(t, root, "proj-a", id)

	// Neither of these should be picked up.
	junkDir := filepath.Join(root, "proj-a")
	os.WriteFile(filepath.Join(junkDir, "notes.txt"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(junkDir, "not-a-uuid.jsonl"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(root, "toplevel.jsonl"), []byte("x"), 0644)

	found := listTranscripts(root)
	if len(found) != 1 {
		t.Fatalf("expected 1 transcript, got %d: %v", len(found), found)
	}
	if _, ok := found[id]; !ok {
		t.Errorf("expected %s in results", id)
	}
}

func TestListTranscripts_CanonicalizesUppercaseNames(t *testing.T) {
	root := t.TempDir()
	upper := "123E4567-E89B-42D3-A456-426614174000"
	makeTranscript(t, root, "proj-a", upper)

	found := listTranscripts(root)
	canonical := "123e4567-e89b-42d3-a456-426614174000"
	if _, ok := found[canonical]; !ok {
		t.Errorf("expected uppercase filename keyed by canonical id, got %v", found)
	}
}
