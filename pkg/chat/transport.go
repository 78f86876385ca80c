package chat

import (
	"context"
	"io"
)

// Request is the outbound payload for one exchange.
type Request struct {
	SessionID    string `json:"sessionId"`
	SystemPrompt string `json:"system"`
	Prompt       string `json:"prompt"`
}

// Transport issues requests against the remote chat service.
type Transport interface {
	// Stream starts an exchange and returns the raw event-stream body. A
	// non-success status or a missing body is reported as an error before
	// any bytes are read. Cancelling ctx aborts the body.
	Stream(ctx context.Context, req Request) (io.ReadCloser, error)

	// DeleteSession drops server-side memory for the given identity.
	DeleteSession(ctx context.Context, sessionID string) error
}

// SessionStore persists the active session identity.
type SessionStore interface {
	SaveSessionID(id string) error
}

// SessionStoreFunc adapts a function to a SessionStore.
type SessionStoreFunc func(id string) error

// SaveSessionID calls f(id).
func (f SessionStoreFunc) SaveSessionID(id string) error {
	return f(id)
}
