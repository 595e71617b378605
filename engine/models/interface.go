package models

import "encoding/json"

// SessionMessageI is implemented by all transcript line record types.
type SessionMessageI interface {
	json.Marshaler
	GetType() string
	GetUUID() string
	GetTimestamp() string
}

// Ensure all types implement SessionMessageI
var (
	_ SessionMessageI = (*UserSessionMessage)(nil)
	_ SessionMessageI = (*AssistantSessionMessage)(nil)
	_ SessionMessageI = (*SystemSessionMessage)(nil)
	_ SessionMessageI = (*SummarySessionMessage)(nil)
	_ SessionMessageI = (*UnknownSessionMessage)(nil)
)
