package chat

import (
	"context"
	"strings"
	"time"

	"github.com/papercomputeco/streamchat/pkg/sse"
	"github.com/papercomputeco/streamchat/pkg/transcript"
)

// StreamSession is the state of one in-flight exchange. A session is created
// by Begin and never reused; all of its fields are guarded by the owning
// controller's lock.
type StreamSession struct {
	seq        uint64
	generation uint64
	sessionID  string
	prompt     string
	system     string

	ctx    context.Context
	cancel context.CancelFunc

	// completedNormally is set only when a "done" event is applied.
	completedNormally bool

	// cancelRequested marks the next transport end as a user stop.
	cancelRequested bool

	// reader holds the decoder's partial-frame buffer once streaming.
	reader *sse.TeeReader

	// streaming is the assistant message currently receiving tokens.
	streaming *transcript.Message

	reply     strings.Builder
	frames    int
	startedAt time.Time

	ended   bool
	outcome Outcome
}

// SessionID returns the identity the exchange was issued under.
func (s *StreamSession) SessionID() string {
	return s.sessionID
}

// Prompt returns the trimmed prompt text.
func (s *StreamSession) Prompt() string {
	return s.prompt
}

// Context returns the context that is cancelled when the exchange is.
func (s *StreamSession) Context() context.Context {
	return s.ctx
}

func (s *StreamSession) request() Request {
	return Request{
		SessionID:    s.sessionID,
		SystemPrompt: s.system,
		Prompt:       s.prompt,
	}
}
