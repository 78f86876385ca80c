// Package chat drives streamed chat exchanges: it interprets decoded SSE
// frames, keeps the transcript consistent and decides whether a closed
// stream completed, failed or was cancelled.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/papercomputeco/streamchat/pkg/logger"
	"github.com/papercomputeco/streamchat/pkg/sse"
	"github.com/papercomputeco/streamchat/pkg/transcript"
)

// State is the exchange state of a Controller.
type State int

const (
	StateIdle State = iota
	StateInProgress
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInProgress:
		return "in progress"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// failurePrefix starts every synthesized failure message.
const failurePrefix = "Streaming failed: "

// deleteTimeout bounds the best-effort session deletion issued by Reset.
const deleteTimeout = 10 * time.Second

// Controller owns a conversation transcript and runs one exchange at a time
// against a Transport.
//
// All transcript mutation happens under the controller lock and is applied in
// frame order. Blocking transport reads happen outside the lock, so Cancel,
// Reset and the read accessors never wait on the network.
type Controller struct {
	mu sync.Mutex

	transport    Transport
	store        SessionStore
	logger       *slog.Logger
	onUpdate     func(Update)
	capture      io.Writer
	newSessionID func() string

	greeting      string
	resetGreeting string
	systemPrompt  string
	sessionID     string

	transcript *transcript.Transcript
	state      State
	active     *StreamSession
	seq        uint64

	// generation counts resets. Transcript updates built in an older
	// generation are not delivered.
	generation uint64
	emitMu     sync.Mutex

	// sideRequests tracks fire-and-forget session deletions.
	sideRequests sync.WaitGroup
}

// NewController returns an idle Controller whose transcript holds the
// initial greeting.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		logger:        logger.Nop(),
		newSessionID:  NewSessionID,
		greeting:      DefaultGreeting,
		resetGreeting: DefaultResetGreeting,
		systemPrompt:  DefaultSystemPrompt,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.sessionID == "" {
		c.sessionID = c.newSessionID()
	}
	c.transcript = transcript.New(c.greeting)

	return c
}

// Transcript returns the live transcript for read access. Content of the
// streaming message is volatile between reads; use Snapshot for a stable
// copy.
func (c *Controller) Transcript() *transcript.Transcript {
	return c.transcript
}

// State returns the current exchange state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the current session identity.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// SystemPrompt returns the system prompt sent with new exchanges.
func (c *Controller) SystemPrompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.systemPrompt
}

// SetSystemPrompt changes the system prompt for subsequent exchanges.
func (c *Controller) SetSystemPrompt(prompt string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.systemPrompt = prompt
}

// Begin starts an exchange for prompt. It appends the user message and an
// empty streaming assistant placeholder, and returns the new session.
//
// Begin rejects a blank prompt with ErrEmptyPrompt and an overlapping
// exchange with ErrExchangeInProgress, leaving all state unchanged. The
// request itself is issued by Stream.
func (c *Controller) Begin(ctx context.Context, prompt string) (*StreamSession, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}

	c.mu.Lock()
	if c.state == StateInProgress {
		c.mu.Unlock()
		return nil, ErrExchangeInProgress
	}

	sctx, cancel := context.WithCancel(ctx)
	c.seq++
	s := &StreamSession{
		seq:        c.seq,
		generation: c.generation,
		sessionID:  c.sessionID,
		prompt:    prompt,
		system:    c.systemPrompt,
		ctx:       sctx,
		cancel:    cancel,
		startedAt: time.Now(),
	}

	user := c.transcript.Append(transcript.RoleUser, prompt, false)
	s.streaming = c.transcript.Append(transcript.RoleAssistant, "", true)
	c.active = s
	c.state = StateInProgress

	updates := []Update{
		MessageAppended{Message: *user},
		MessageAppended{Message: *s.streaming},
	}
	c.mu.Unlock()

	c.logger.Debug("exchange begun",
		"exchange", s.seq,
		"session_id", s.sessionID,
	)
	c.emit(s.generation, updates)

	return s, nil
}

// Send runs a complete exchange: Begin followed by Stream. The returned
// error is only ever a rejection from Begin; stream failures are recorded
// in the transcript and reported in the Outcome.
func (c *Controller) Send(ctx context.Context, prompt string) (Outcome, error) {
	s, err := c.Begin(ctx, prompt)
	if err != nil {
		return Outcome{}, err
	}
	return c.Stream(s), nil
}

// Stream issues the request for s, applies every frame of the response in
// order and concludes the exchange with HandleTransportEnd. It blocks until
// the stream ends, is cancelled, or a "done" event is applied.
func (c *Controller) Stream(s *StreamSession) Outcome {
	if c.transport == nil {
		return c.HandleTransportEnd(s, ErrNoTransport)
	}

	body, err := c.transport.Stream(s.ctx, s.request())
	if err != nil {
		return c.HandleTransportEnd(s, err)
	}
	defer body.Close()

	reader := sse.NewTeeReader(body, c.capture)
	c.mu.Lock()
	s.reader = reader
	c.mu.Unlock()

	var cause error
	for {
		frames, err := reader.Next()
		for _, f := range frames {
			c.HandleFrame(s, f)
		}

		if c.finishedReading(s) {
			break
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				cause = err
			}
			break
		}
	}

	return c.HandleTransportEnd(s, cause)
}

// finishedReading reports whether the pump for s should stop pulling chunks.
func (c *Controller) finishedReading(s *StreamSession) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return s.completedNormally || s.cancelRequested
}

// HandleFrame applies one decoded frame to the exchange owned by s. Frames
// for a session that is no longer active, or that already saw "done", are
// ignored.
func (c *Controller) HandleFrame(s *StreamSession, f sse.Frame) {
	c.mu.Lock()
	if s == nil || c.active != s || s.completedNormally {
		c.mu.Unlock()
		return
	}
	s.frames++

	var updates []Update
	switch ev := Classify(f).(type) {
	case TokenEvent:
		updates = c.appendToken(s, ev.Data)
	case UnknownEvent:
		if ev.Data != "" {
			updates = c.appendToken(s, ev.Data)
		}
	case DoneEvent:
		updates = c.complete(s)
	case MessageEvent, StatusEvent:
		// No transcript effect.
	}
	c.mu.Unlock()

	c.emit(s.generation, updates)
}

// appendToken must be called with c.mu held.
func (c *Controller) appendToken(s *StreamSession, data string) []Update {
	if data == "" {
		return nil
	}
	s.reply.WriteString(data)

	if s.streaming != nil && c.transcript.AppendContent(s.streaming, data) {
		return []Update{TokenAppended{MessageID: s.streaming.ID, Delta: data}}
	}

	s.streaming = c.transcript.Append(transcript.RoleAssistant, data, true)
	return []Update{MessageAppended{Message: *s.streaming}}
}

// complete must be called with c.mu held.
func (c *Controller) complete(s *StreamSession) []Update {
	s.completedNormally = true

	var updates []Update
	if s.streaming != nil && c.transcript.Finalize(s.streaming) {
		updates = append(updates, MessageFinalized{Message: *s.streaming})
	}
	s.streaming = nil

	c.active = nil
	c.state = StateIdle
	return updates
}

// HandleTransportEnd concludes the exchange for s once its byte stream has
// ended, with cause as the transport error (nil for a clean close).
//
// A session that saw "done" or was cancelled ends silently. Any other end is
// a failure and appends one assistant message describing cause. In every
// case streaming messages are finalized, the controller returns to idle and
// the session is released. Calling it again returns the first Outcome and
// changes nothing.
func (c *Controller) HandleTransportEnd(s *StreamSession, cause error) Outcome {
	c.mu.Lock()
	if s.ended {
		out := s.outcome
		c.mu.Unlock()
		return out
	}
	s.ended = true

	// Stale sessions were detached by Reset and must not touch the
	// conversation that replaced them.
	owns := c.active == s || c.active == nil

	var updates []Update
	out := Outcome{
		SessionID: s.sessionID,
		Prompt:    s.prompt,
		Reply:     s.reply.String(),
		StartedAt: s.startedAt,
		EndedAt:   time.Now(),
		Frames:    s.frames,
	}

	switch {
	case s.completedNormally:
		out.Disposition = DispositionCompleted
	case s.cancelRequested:
		out.Disposition = DispositionCancelled
	default:
		if cause == nil {
			cause = ErrStreamIncomplete
		}
		out.Disposition = DispositionFailed
		out.Err = cause
		if owns {
			m := c.transcript.Append(transcript.RoleAssistant, failurePrefix+cause.Error(), false)
			updates = append(updates, MessageAppended{Message: *m})
		}
	}

	if owns {
		for _, m := range c.transcript.FinalizeAll() {
			updates = append(updates, MessageFinalized{Message: *m})
		}
		c.active = nil
		c.state = StateIdle
	} else {
		c.transcript.Finalize(s.streaming)
	}
	s.streaming = nil
	s.reader = nil
	s.cancel()

	s.outcome = out
	updates = append(updates, ExchangeConcluded{Outcome: out})
	c.mu.Unlock()

	if out.Err != nil {
		c.logger.Warn("exchange failed",
			"exchange", s.seq,
			"session_id", out.SessionID,
			"frames", out.Frames,
			"error", out.Err,
		)
	} else {
		c.logger.Debug("exchange concluded",
			"exchange", s.seq,
			"session_id", out.SessionID,
			"disposition", out.Disposition,
			"frames", out.Frames,
			"duration", out.Duration(),
		)
	}
	c.emit(s.generation, updates)

	return out
}

// Cancel requests that the in-flight exchange stop. It aborts the outbound
// request and marks the coming transport end as a user stop; it does not
// touch the transcript. It reports whether an exchange was in progress.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.active
	if s == nil {
		return false
	}
	s.cancelRequested = true
	s.cancel()

	c.logger.Debug("exchange cancel requested", "exchange", s.seq)
	return true
}

// Reset starts a new conversation. An in-flight exchange is cancelled
// silently, the session identity is replaced, and the transcript is reduced
// to a single fresh greeting. Server-side memory for the previous identity is
// deleted in the background on a best-effort basis; use Wait to drain it.
// Reset returns the new session identity.
func (c *Controller) Reset(ctx context.Context) string {
	c.mu.Lock()
	if s := c.active; s != nil {
		s.cancelRequested = true
		s.cancel()
		c.active = nil
	}
	c.state = StateIdle

	c.generation++
	generation := c.generation

	previous := c.sessionID
	c.sessionID = c.newSessionID()
	current := c.sessionID

	c.transcript.Reset(c.resetGreeting)
	greeting, _ := c.transcript.Last()
	c.mu.Unlock()

	c.logger.Debug("conversation reset",
		"previous_session_id", previous,
		"session_id", current,
	)

	if c.store != nil {
		if err := c.store.SaveSessionID(current); err != nil {
			c.logger.Warn("failed to persist session id", "error", err)
		}
	}

	if c.transport != nil {
		c.sideRequests.Add(1)
		go c.deleteSession(context.WithoutCancel(ctx), previous)
	}

	c.emit(generation, []Update{TranscriptReset{SessionID: current, Greeting: greeting}})
	return current
}

// deleteSession drops server memory for id. Failures are only logged.
func (c *Controller) deleteSession(ctx context.Context, id string) {
	defer c.sideRequests.Done()

	ctx, cancel := context.WithTimeout(ctx, deleteTimeout)
	defer cancel()

	if err := c.transport.DeleteSession(ctx, id); err != nil {
		c.logger.Debug("session delete failed",
			"session_id", id,
			"error", err,
		)
		return
	}
	c.logger.Debug("session deleted", "session_id", id)
}

// Wait blocks until background session deletions have finished.
func (c *Controller) Wait() {
	c.sideRequests.Wait()
}

// emit delivers updates built in generation, one batch at a time. Once a
// Reset has moved past generation only ExchangeConcluded still goes out, so
// a detached exchange cannot draw over the new conversation.
func (c *Controller) emit(generation uint64, updates []Update) {
	if c.onUpdate == nil || len(updates) == 0 {
		return
	}

	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	stale := generation != c.generation
	c.mu.Unlock()

	for _, u := range updates {
		if _, concluded := u.(ExchangeConcluded); stale && !concluded {
			continue
		}
		c.onUpdate(u)
	}
}
