package engine

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xiaoyuanzhu-com/sessiond/engine/models"
)

const testSessionID = "123e4567-e89b-42d3-a456-426614174000"

func writeTranscript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), testSessionID+".jsonl")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write transcript: %v", err)
	}
	return path
}

func TestReadTranscript_TypedRecords(t *testing.T) {
	content := `{"type":"user","uuid":"u1","timestamp":"2026-03-01T10:00:00Z","message":{"role":"user","content":"hello"}}
{"type":"assistant","uuid":"a1","timestamp":"2026-03-01T10:00:05Z","message":{"role":"assistant","content":[{"type":"text","text":"hi there"}]}}
{"type":"summary","summary":"Greeting session","leafUuid":"a1"}
{"type":"system","subtype":"init","uuid":"s1"}
`
	path := writeTranscript(t, content)

	msgs, err := readTranscript(path, testSessionID)
	if err != nil {
		t.Fatalf("readTranscript failed: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("expected 4 records, got %d", len(msgs))
	}

	if _, ok := msgs[0].(*models.UserSessionMessage); !ok {
		t.Errorf("record 0: expected user type, got %T", msgs[0])
	}
	if _, ok := msgs[1].(*models.AssistantSessionMessage); !ok {
		t.Errorf("record 1: expected assistant type, got %T", msgs[1])
	}
	summary, ok := msgs[2].(*models.SummarySessionMessage)
	if !ok {
		t.Fatalf("record 2: expected summary type, got %T", msgs[2])
	}
	if summary.Summary != "Greeting session" {
		t.Errorf("expected summary text, got %q", summary.Summary)
	}
	if _, ok := msgs[3].(*models.SystemSessionMessage); !ok {
		t.Errorf("record 3: expected system type, got %T", msgs[3])
	}
}

func TestReadTranscript_UnparseableLineSkipped(t *testing.T) {
	content := `{"type":"user","uuid":"u1","message":{"role":"user","content":"ok"}}
not json at all
{"type":"user","uuid":"u2","message":{"role":"user","content":"still ok"}}
`
	path := writeTranscript(t, content)

	msgs, err := readTranscript(path, testSessionID)
	if err != nil {
		t.Fatalf("readTranscript failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 records (unparseable line skipped), got %d", len(msgs))
	}
	if msgs[0].GetUUID() != "u1" || msgs[1].GetUUID() != "u2" {
		t.Errorf("expected records u1 and u2, got %s and %s", msgs[0].GetUUID(), msgs[1].GetUUID())
	}
}

func TestReadTranscript_UnrecognizedTypeBecomesUnknown(t *testing.T) {
	content := `{"type":"user","uuid":"u1","message":{"role":"user","content":"ok"}}
{"type":"future_record","uuid":"f1","payload":{"x":1}}
`
	path := writeTranscript(t, content)

	msgs, err := readTranscript(path, testSessionID)
	if err != nil {
		t.Fatalf("readTranscript failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(msgs))
	}
	if _, ok := msgs[1].(*models.UnknownSessionMessage); !ok {
		t.Errorf("expected unrecognized type as unknown record, got %T", msgs[1])
	}
}

func TestReadTranscript_RawPassthrough(t *testing.T) {
	raw := `{"type":"user","uuid":"u1","someFutureField":{"nested":true},"message":{"role":"user","content":"x"}}`
	path := writeTranscript(t, raw+"\n")

	msgs, err := readTranscript(path, testSessionID)
	if err != nil {
		t.Fatalf("readTranscript failed: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(msgs))
	}

	out, err := json.Marshal(msgs[0])
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(out) != raw {
		t.Errorf("expected byte-for-byte raw passthrough\nwant: %s\ngot:  %s", raw, out)
	}
}

func TestReadTranscript_NoTrailingNewline(t *testing.T) {
	content := `{"type":"user","uuid":"u1","message":{"role":"user","content":"a"}}
{"type":"user","uuid":"u2","message":{"role":"user","content":"b"}}`
	path := writeTranscript(t, content)

	msgs, err := readTranscript(path, testSessionID)
	if err != nil {
		t.Fatalf("readTranscript failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Errorf("expected final unterminated line to be read, got %d records", len(msgs))
	}
}

func TestReadNewLines_AdvancesCursor(t *testing.T) {
	line1 := `{"type":"user","uuid":"u1","message":{"role":"user","content":"first"}}` + "\n"
	line2 := `{"type":"assistant","uuid":"a1","message":{"role":"assistant","content":"second"}}` + "\n"
	path := writeTranscript(t, line1)

	msgs, cursor, err := readNewLines(path, testSessionID, 0)
	if err != nil {
		t.Fatalf("first read failed: %v", err)
	}
	if len(msgs) != 1 || msgs[0].GetUUID() != "u1" {
		t.Fatalf("expected [u1], got %d records", len(msgs))
	}
	if cursor != int64(len(line1)) {
		t.Errorf("expected cursor %d, got %d", len(line1), cursor)
	}

	// Append a line and read only the new bytes.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("failed to open for append: %v", err)
	}
	if _, err := f.WriteString(line2); err != nil {
		t.Fatalf("failed to append: %v", err)
	}
	f.Close()

	msgs, cursor, err = readNewLines(path, testSessionID, cursor)
	if err != nil {
		t.Fatalf("second read failed: %v", err)
	}
	if len(msgs) != 1 || msgs[0].GetUUID() != "a1" {
		t.Fatalf("expected only the appended record, got %d records", len(msgs))
	}
	if cursor != int64(len(line1)+len(line2)) {
		t.Errorf("expected cursor %d, got %d", len(line1)+len(line2), cursor)
	}
}

func TestReadNewLines_NoNewData(t *testing.T) {
	line := `{"type":"user","uuid":"u1","message":{"role":"user","content":"x"}}` + "\n"
	path := writeTranscript(t, line)

	msgs, cursor, err := readNewLines(path, testSessionID, int64(len(line)))
	if err != nil {
		t.Fatalf("expected clean no-data result, got %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected no records, got %d", len(msgs))
	}
	if cursor != int64(len(line)) {
		t.Errorf("expected cursor unchanged at %d, got %d", len(line), cursor)
	}
}

func TestReadNewLines_PartialLineOnly(t *testing.T) {
	path := writeTranscript(t, `{"type":"user","uuid":"u1","mess`)

	_, cursor, err := readNewLines(path, testSessionID, 0)
	if !errors.Is(err, errPartialLine) {
		t.Fatalf("expected errPartialLine, got %v", err)
	}
	if cursor != 0 {
		t.Errorf("expected cursor unchanged at 0, got %d", cursor)
	}
}

func TestReadNewLines_PartialTailAfterCompleteLines(t *testing.T) {
	line := `{"type":"user","uuid":"u1","message":{"role":"user","content":"done"}}` + "\n"
	partial := `{"type":"assistant","uuid":"a1","mess`
	path := writeTranscript(t, line+partial)

	msgs, cursor, err := readNewLines(path, testSessionID, 0)
	if err != nil {
		t.Fatalf("expected complete lines to be consumed, got %v", err)
	}
	if len(msgs) != 1 || msgs[0].GetUUID() != "u1" {
		t.Fatalf("expected only the complete line, got %d records", len(msgs))
	}
	// The partial tail stays unconsumed for the next pass.
	if cursor != int64(len(line)) {
		t.Errorf("expected cursor %d (before partial tail), got %d", len(line), cursor)
	}
}

func TestReadNewLines_CursorPastEOF(t *testing.T) {
	path := writeTranscript(t, "short\n")

	_, _, err := readNewLines(path, testSessionID, 10000)
	if !errors.Is(err, errCursorPastEOF) {
		t.Fatalf("expected errCursorPastEOF, got %v", err)
	}
}
