// Package eventstream publishes concluded chat exchanges to an event stream.
package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/streamchat/pkg/chat"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeExchangeConcluded is emitted after an exchange concludes,
	// whatever its disposition.
	EventTypeExchangeConcluded = "streamchat.exchange.concluded"
)

// ExchangeConcludedEvent is a transport-neutral event payload for a
// concluded exchange.
type ExchangeConcludedEvent struct {
	SchemaVersion int              `json:"schema_version"`
	EventType     string           `json:"event_type"`
	EventID       string           `json:"event_id"`
	EmittedAt     time.Time        `json:"emitted_at"`
	SessionID     string           `json:"session_id"`
	Disposition   chat.Disposition `json:"disposition"`
	Prompt        string           `json:"prompt"`
	Reply         string           `json:"reply"`
	Error         string           `json:"error,omitempty"`
	DurationMs    int64            `json:"duration_ms"`
	Frames        int              `json:"frames"`
}

// NewExchangeConcludedEvent builds the event for o, stamped with a fresh ID
// and the current time.
func NewExchangeConcludedEvent(o chat.Outcome) *ExchangeConcludedEvent {
	event := &ExchangeConcludedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeExchangeConcluded,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		SessionID:     o.SessionID,
		Disposition:   o.Disposition,
		Prompt:        o.Prompt,
		Reply:         o.Reply,
		DurationMs:    o.Duration().Milliseconds(),
		Frames:        o.Frames,
	}
	if o.Err != nil {
		event.Error = o.Err.Error()
	}
	return event
}
