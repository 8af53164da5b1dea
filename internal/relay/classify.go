package relay

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Stream record paths emitted by the runtime.
const (
	deltaTextPath = "event.contentBlockDelta.delta.text"
	toolNamePath  = "event.contentBlockStart.start.toolUse.name"
)

// Classify maps one decoded stream record to at most one session event.
// It is total over well-formed records: anything it does not recognize
// classifies to no event, never to a fault.
func Classify(sessionID string, record json.RawMessage) (Event, bool) {
	if text := gjson.GetBytes(record, deltaTextPath); text.Exists() && text.String() != "" {
		return ContentDeltaEvent(sessionID, text.String()), true
	}

	if name := gjson.GetBytes(record, toolNamePath); name.Exists() && name.String() != "" {
		return ToolUseEvent(sessionID, name.String()), true
	}

	return Event{}, false
}
