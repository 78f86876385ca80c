package chat

import (
	"io"
	"log/slog"
)

// Greetings and defaults used when none are configured.
const (
	DefaultGreeting      = "Hi. Ask me anything, and I'll respond in a streaming chat."
	DefaultResetGreeting = "New chat started. What would you like to talk about?"
	DefaultSystemPrompt  = "You are a helpful assistant."
)

// Option configures a Controller created with NewController.
type Option func(*Controller)

// WithTransport sets the transport requests are issued through.
func WithTransport(t Transport) Option {
	return func(c *Controller) {
		c.transport = t
	}
}

// WithSessionStore persists every new session identity.
func WithSessionStore(s SessionStore) Option {
	return func(c *Controller) {
		c.store = s
	}
}

// WithSessionID resumes an existing session identity instead of generating
// a fresh one.
func WithSessionID(id string) Option {
	return func(c *Controller) {
		if id != "" {
			c.sessionID = id
		}
	}
}

// WithSystemPrompt sets the system prompt sent with every request.
func WithSystemPrompt(prompt string) Option {
	return func(c *Controller) {
		c.systemPrompt = prompt
	}
}

// WithGreetings overrides the initial and post-reset assistant greetings.
func WithGreetings(initial, reset string) Option {
	return func(c *Controller) {
		c.greeting = initial
		c.resetGreeting = reset
	}
}

// WithUpdateHandler registers fn to receive every Update. Deliveries are
// serialized, so fn must not call back into Controller methods that emit.
func WithUpdateHandler(fn func(Update)) Option {
	return func(c *Controller) {
		c.onUpdate = fn
	}
}

// WithCapture tees the raw event-stream bytes of every exchange to w.
func WithCapture(w io.Writer) Option {
	return func(c *Controller) {
		c.capture = w
	}
}

// WithLogger sets the controller logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithSessionIDGenerator replaces NewSessionID.
func WithSessionIDGenerator(fn func() string) Option {
	return func(c *Controller) {
		c.newSessionID = fn
	}
}
