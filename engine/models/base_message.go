package models

// BaseMessage contains fields common to all record types.
type BaseMessage struct {
	Type       string  `json:"type"`
	UUID       string  `json:"uuid"`
	ParentUUID *string `json:"parentUuid"`
	Timestamp  string  `json:"timestamp"`
}

// GetType returns the record type.
func (m BaseMessage) GetType() string { return m.Type }

// GetUUID returns the record UUID.
func (m BaseMessage) GetUUID() string { return m.UUID }

// GetTimestamp returns the record timestamp (RFC3339, may be empty).
func (m BaseMessage) GetTimestamp() string { return m.Timestamp }

// EnvelopeFields contains optional fields that may appear on conversation records.
type EnvelopeFields struct {
	IsSidechain *bool  `json:"isSidechain,omitempty"`
	UserType    string `json:"userType,omitempty"`
	CWD         string `json:"cwd,omitempty"`
	SessionID   string `json:"sessionId,omitempty"`
	Version     string `json:"version,omitempty"`
	GitBranch   string `json:"gitBranch,omitempty"`
}

// Sidechain reports whether the record is flagged as sidechain bookkeeping.
func (e EnvelopeFields) Sidechain() bool {
	return e.IsSidechain != nil && *e.IsSidechain
}
