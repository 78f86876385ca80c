package chat

import "github.com/papercomputeco/streamchat/pkg/sse"

// Event names carried on the wire.
const (
	EventToken   = "token"
	EventDone    = "done"
	EventMessage = sse.DefaultEvent
	EventStatus  = "status"
)

// Event is a decoded frame interpreted for the controller. It is a closed
// set: TokenEvent, DoneEvent, MessageEvent, StatusEvent and UnknownEvent.
type Event interface {
	event()
}

// TokenEvent carries one incremental piece of assistant text.
type TokenEvent struct {
	Data string
}

// DoneEvent marks the server-side end of the reply.
type DoneEvent struct{}

// MessageEvent carries a full message. It is currently ignored; token
// content is authoritative.
type MessageEvent struct {
	Data string
}

// StatusEvent carries server progress information with no transcript
// effect.
type StatusEvent struct {
	Data string
}

// UnknownEvent is any other event name, including an empty one. When it
// carries data it is applied like a TokenEvent.
type UnknownEvent struct {
	Name string
	Data string
}

func (TokenEvent) event()   {}
func (DoneEvent) event()    {}
func (MessageEvent) event() {}
func (StatusEvent) event()  {}
func (UnknownEvent) event() {}

// Classify maps a decoded frame onto its Event variant.
func Classify(f sse.Frame) Event {
	switch f.Event {
	case EventToken:
		return TokenEvent{Data: f.Data}
	case EventDone:
		return DoneEvent{}
	case EventMessage:
		return MessageEvent{Data: f.Data}
	case EventStatus:
		return StatusEvent{Data: f.Data}
	default:
		return UnknownEvent{Name: f.Event, Data: f.Data}
	}
}
