// Package sse provides a minimal, purpose-built SSE (Server-Sent Events)
// decoder for consuming the streaming chat endpoint. Raw chunks are fed into
// a Decoder which reassembles them into complete frames; a TeeReader pulls
// chunks from a response body, feeds the decoder and forwards the raw bytes
// verbatim to a capture writer.
//
// This package intentionally does NOT provide SSE writer or server
// capabilities, and it does not interpret "id:" or "retry:" fields.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// DefaultEvent is the event name of a frame that carries no "event:" line.
const DefaultEvent = "message"

// Frame represents a single decoded SSE event, delimited by a blank line
// in the upstream byte stream.
type Frame struct {
	// Event is the SSE event name from the "event:" field. When a frame
	// repeats the field the last occurrence wins. Frames without the field
	// carry DefaultEvent.
	Event string

	// Data is the concatenated contents of all "data:" lines for this frame,
	// joined with "\n" in the order they were received.
	Data string
}
