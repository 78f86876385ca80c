package testutils

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/streamchat/pkg/chat"
	"github.com/papercomputeco/streamchat/pkg/storage"
)

// baseTime anchors generated exchanges so ordering assertions are stable.
var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// NewTestExchange creates a completed exchange for sessionID that started
// offset after a fixed base time and lasted one second.
func NewTestExchange(sessionID, prompt string, offset time.Duration) *storage.Exchange {
	started := baseTime.Add(offset)
	return &storage.Exchange{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Prompt:      prompt,
		Reply:       "reply to " + prompt,
		Disposition: chat.DispositionCompleted,
		StartedAt:   started,
		EndedAt:     started.Add(time.Second),
		Frames:      3,
	}
}
