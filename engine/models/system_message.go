package models

import "encoding/json"

// SystemSessionMessage represents control records (init, compaction, turn_duration, etc).
type SystemSessionMessage struct {
	RawJSON
	BaseMessage
	Subtype string `json:"subtype,omitempty"`
	Content string `json:"content,omitempty"`
	Level   string `json:"level,omitempty"`
	IsMeta  *bool  `json:"isMeta,omitempty"`
}

func (m SystemSessionMessage) MarshalJSON() ([]byte, error) {
	if len(m.Raw) > 0 {
		return m.Raw, nil
	}
	type Alias SystemSessionMessage
	return json.Marshal(Alias(m))
}
