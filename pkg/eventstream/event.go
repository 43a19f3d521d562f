package eventstream

import (
	"time"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeModeForced is emitted when the gateway downgrades itself to
	// write-only mode.
	EventTypeModeForced = "mnemo.mode.forced"

	// EventTypeModeRestored is emitted when a recovery probe succeeds and
	// reads resume.
	EventTypeModeRestored = "mnemo.mode.restored"

	// EventTypeTurnWritten is emitted after a turn has been appended to the
	// memory service.
	EventTypeTurnWritten = "mnemo.turn.written"
)

// Event is a transport-neutral gateway event. Exactly one of Mode or Turn
// is populated, matching the event type.
type Event struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`
	Mode          *ModeMeta `json:"mode,omitempty"`
	Turn          *TurnMeta `json:"turn,omitempty"`
}

// ModeMeta describes a mode transition.
type ModeMeta struct {
	Reason string    `json:"reason,omitempty"`
	Until  time.Time `json:"until,omitempty"`
}

// TurnMeta describes a written turn. Text is deliberately absent: events
// cross process boundaries and the payload stays PII-free even if redaction
// is partially disabled.
type TurnMeta struct {
	ConversationID string `json:"conversation_id"`
	Role           string `json:"role"`
	Redactions     int    `json:"redactions"`
}
