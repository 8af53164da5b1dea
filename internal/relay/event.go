// Package relay turns one agent runtime response into an ordered sequence of
// session events on the downstream events channel.
package relay

import (
	"encoding/json"
	"fmt"
)

// ChannelPrefix namespaces session channels on the events API.
const ChannelPrefix = "chat/"

// Event is the classified, typed form of one upstream stream fragment,
// decoupled from the runtime's wire format. Exactly one of the constructor
// shapes below is valid; the zero value marshals to nothing useful and must
// not be published.
type Event struct {
	Type      string          `json:"type,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Text      string          `json:"text,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	Status    string          `json:"status,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// StartEvent opens a session bracket.
func StartEvent(sessionID string) Event {
	return Event{Type: "start", SessionID: sessionID}
}

// ContentDeltaEvent carries one textual increment from a live stream.
func ContentDeltaEvent(sessionID, text string) Event {
	return Event{Type: "content", SessionID: sessionID, Text: text}
}

// BufferedContentEvent carries a complete non-streaming payload.
func BufferedContentEvent(sessionID string, payload json.RawMessage) Event {
	return Event{Type: "content", SessionID: sessionID, Content: payload}
}

// ToolUseEvent marks a named tool invocation in the stream.
func ToolUseEvent(sessionID, toolName string) Event {
	return Event{Type: "tool_use", SessionID: sessionID, Text: fmt.Sprintf("Using tool: %s", toolName)}
}

// EndEvent closes a session bracket.
func EndEvent(sessionID string) Event {
	return Event{Type: "end", SessionID: sessionID}
}

// ErrorEvent is the single terminal event of a failed run. Subscribers match
// it on status rather than type.
func ErrorEvent(message string) Event {
	return Event{Status: "error", Error: message}
}

// Channel derives the events channel for a session.
func Channel(sessionID string) string {
	return ChannelPrefix + sessionID
}
