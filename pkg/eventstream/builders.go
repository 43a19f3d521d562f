package eventstream

import (
	"time"

	"github.com/google/uuid"
)

// NewModeForced builds a mode-forced event.
func NewModeForced(reason string, until time.Time) *Event {
	return newEvent(EventTypeModeForced, &ModeMeta{Reason: reason, Until: until}, nil)
}

// NewModeRestored builds a mode-restored event.
func NewModeRestored() *Event {
	return newEvent(EventTypeModeRestored, &ModeMeta{}, nil)
}

// NewTurnWritten builds a turn-written event.
func NewTurnWritten(conversationID, role string, redactions int) *Event {
	return newEvent(EventTypeTurnWritten, nil, &TurnMeta{
		ConversationID: conversationID,
		Role:           role,
		Redactions:     redactions,
	})
}

func newEvent(eventType string, mode *ModeMeta, turn *TurnMeta) *Event {
	return &Event{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Mode:          mode,
		Turn:          turn,
	}
}
