package engine

import "testing"

func TestCanonicalSessionID(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"123e4567-e89b-42d3-a456-426614174000", "123e4567-e89b-42d3-a456-426614174000", true},
		{"123E4567-E89B-42D3-A456-426614174000", "123e4567-e89b-42d3-a456-426614174000", true},
		{"  123e4567-e89b-42d3-a456-426614174000  ", "123e4567-e89b-42d3-a456-426614174000", true},
		{"not-a-uuid", "", false},
		{"", "", false},
		{"123e4567e89b42d3a456426614174000", "123e4567-e89b-42d3-a456-426614174000", true},
	}

	for _, tc := range tests {
		got, ok := CanonicalSessionID(tc.in)
		if ok != tc.ok {
			t.Errorf("CanonicalSessionID(%q): expected ok=%v, got %v", tc.in, tc.ok, ok)
			continue
		}
		if got != tc.want {
			t.Errorf("CanonicalSessionID(%q): expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestSessionIDFromPath(t *testing.T) {
	id, ok := sessionIDFromPath("/data/projects/proj-a/123E4567-e89b-42d3-a456-426614174000.jsonl")
	if !ok {
		t.Fatal("expected transcript path to yield an id")
	}
	if id != "123e4567-e89b-42d3-a456-426614174000" {
		t.Errorf("expected canonical lower-case id, got %q", id)
	}

	if _, ok := sessionIDFromPath("/data/projects/proj-a/notes.txt"); ok {
		t.Error("expected non-transcript extension to be rejected")
	}
	if _, ok := sessionIDFromPath("/data/projects/proj-a/scratch.jsonl"); ok {
		t.Error("expected non-UUID base name to be rejected")
	}
}
