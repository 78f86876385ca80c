// Package storage archives concluded chat exchanges.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/streamchat/pkg/chat"
)

// Driver defines the interface for persisting and retrieving exchanges in a
// storage backend.
type Driver interface {
	// Put stores an exchange. Returns true if the exchange was newly
	// inserted, false if one with the same ID already exists, in which case
	// Put is a no-op.
	Put(ctx context.Context, ex *Exchange) (bool, error)

	// Get retrieves an exchange by its ID.
	Get(ctx context.Context, id string) (*Exchange, error)

	// List returns the exchanges of a session, oldest first. An empty
	// sessionID lists every exchange.
	List(ctx context.Context, sessionID string) ([]*Exchange, error)

	// Sessions summarizes every archived session, most recently active
	// first.
	Sessions(ctx context.Context) ([]SessionSummary, error)

	// Close closes the store and releases any resources.
	Close() error
}

// Exchange is one archived prompt and reply.
type Exchange struct {
	ID          string           `json:"id"`
	SessionID   string           `json:"session_id"`
	Prompt      string           `json:"prompt"`
	Reply       string           `json:"reply"`
	Disposition chat.Disposition `json:"disposition"`
	Error       string           `json:"error,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	EndedAt     time.Time        `json:"ended_at"`
	Frames      int              `json:"frames"`
}

// NewExchange builds an Exchange with a fresh ID from a concluded outcome.
func NewExchange(o chat.Outcome) *Exchange {
	ex := &Exchange{
		ID:          uuid.NewString(),
		SessionID:   o.SessionID,
		Prompt:      o.Prompt,
		Reply:       o.Reply,
		Disposition: o.Disposition,
		StartedAt:   o.StartedAt,
		EndedAt:     o.EndedAt,
		Frames:      o.Frames,
	}
	if o.Err != nil {
		ex.Error = o.Err.Error()
	}
	return ex
}

// Duration returns how long the exchange was open.
func (e *Exchange) Duration() time.Duration {
	return e.EndedAt.Sub(e.StartedAt)
}

// SessionSummary describes one archived session.
type SessionSummary struct {
	SessionID  string    `json:"session_id"`
	Exchanges  int       `json:"exchanges"`
	LastActive time.Time `json:"last_active"`
}
