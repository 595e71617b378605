package engine

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xiaoyuanzhu-com/sessiond/engine/models"
	"github.com/xiaoyuanzhu-com/sessiond/log"
)

var (
	// errPartialLine signals that the appended bytes end mid-line; the
	// external tool writes non-atomically, so the caller retries.
	errPartialLine = errors.New("trailing partial line")

	// errCursorPastEOF signals a cursor beyond the current file size.
	errCursorPastEOF = errors.New("read cursor past end of file")
)

// readTranscript reads a whole transcript file into typed records.
// Unparseable lines are logged and skipped; records of unrecognized types are
// kept as UnknownSessionMessage. Neither aborts the file.
func readTranscript(path, sessionID string) ([]models.SessionMessageI, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript: %w", err)
	}
	defer file.Close()

	var messages []models.SessionMessageI
	reader := bufio.NewReader(file)
	lineNum := 0

	for {
		lineNum++
		lineBytes, err := reader.ReadBytes('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				if len(lineBytes) > 0 {
					if msg := parseTypedMessage(lineBytes, lineNum, sessionID); msg != nil {
						messages = append(messages, msg)
					}
				}
				break
			}
			return nil, fmt.Errorf("error reading transcript: %w", err)
		}

		if msg := parseTypedMessage(lineBytes, lineNum, sessionID); msg != nil {
			messages = append(messages, msg)
		}
	}

	return messages, nil
}

// readNewLines reads the bytes appended after cursor and parses the complete
// lines among them. The returned cursor covers only the consumed complete
// lines; a trailing partial line stays unconsumed and surfaces errPartialLine
// when it is the only new data.
func readNewLines(path, sessionID string, cursor int64) ([]models.SessionMessageI, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, cursor, fmt.Errorf("failed to open transcript: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, cursor, fmt.Errorf("failed to stat transcript: %w", err)
	}
	if info.Size() < cursor {
		return nil, cursor, errCursorPastEOF
	}
	if info.Size() == cursor {
		return nil, cursor, nil
	}

	if _, err := file.Seek(cursor, io.SeekStart); err != nil {
		return nil, cursor, fmt.Errorf("failed to seek transcript: %w", err)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, cursor, fmt.Errorf("failed to read transcript: %w", err)
	}

	// Consume only complete lines; the tail past the last newline is a
	// write in progress.
	end := bytes.LastIndexByte(data, '\n')
	if end < 0 {
		return nil, cursor, errPartialLine
	}
	complete := data[:end+1]

	var messages []models.SessionMessageI
	lineNum := 0
	for _, lineBytes := range bytes.SplitAfter(complete, []byte{'\n'}) {
		if len(lineBytes) == 0 {
			continue
		}
		lineNum++
		if msg := parseTypedMessage(lineBytes, lineNum, sessionID); msg != nil {
			messages = append(messages, msg)
		}
	}

	return messages, cursor + int64(len(complete)), nil
}

// parseTypedMessage parses a line into the appropriate typed record struct.
// Raw JSON is always preserved for passthrough serialization.
// Returns nil for empty lines and for lines that are not valid JSON.
func parseTypedMessage(lineBytes []byte, lineNum int, sessionID string) models.SessionMessageI {
	line := strings.TrimSpace(string(lineBytes))
	if line == "" {
		return nil
	}

	// Make a copy for the Raw field - used for serialization
	rawCopy := make([]byte, len(line))
	copy(rawCopy, []byte(line))

	// Extract type to determine which struct to use
	var typeOnly struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(line), &typeOnly); err != nil {
		log.Warn().
			Err(err).
			Int("line", lineNum).
			Str("sessionId", sessionID).
			Msg("skipping unparseable record")
		return nil
	}

	switch typeOnly.Type {
	case "user":
		var msg models.UserSessionMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			log.Warn().Err(err).Int("line", lineNum).Str("type", typeOnly.Type).Msg("failed to parse user record")
		}
		msg.Raw = rawCopy
		return &msg

	case "assistant":
		var msg models.AssistantSessionMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			log.Warn().Err(err).Int("line", lineNum).Str("type", typeOnly.Type).Msg("failed to parse assistant record")
		}
		msg.Raw = rawCopy
		return &msg

	case "system":
		var msg models.SystemSessionMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			log.Warn().Err(err).Int("line", lineNum).Str("type", typeOnly.Type).Msg("failed to parse system record")
		}
		msg.Raw = rawCopy
		return &msg

	case "summary":
		var msg models.SummarySessionMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			log.Warn().Err(err).Int("line", lineNum).Str("type", typeOnly.Type).Msg("failed to parse summary record")
		}
		msg.Raw = rawCopy
		return &msg

	default:
		var msg models.UnknownSessionMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			log.Warn().Err(err).Int("line", lineNum).Str("type", typeOnly.Type).Msg("failed to parse record")
		}
		msg.Raw = rawCopy
		return &msg
	}
}
