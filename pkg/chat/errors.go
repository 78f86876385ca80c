package chat

import "errors"

var (
	// ErrExchangeInProgress is returned by Begin while another exchange is
	// still streaming. Overlapping exchanges are rejected, never queued.
	ErrExchangeInProgress = errors.New("exchange already in progress")

	// ErrEmptyPrompt is returned by Begin when the prompt is blank.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrStreamIncomplete is the failure reason recorded when the byte
	// stream closes cleanly before a "done" event was observed.
	ErrStreamIncomplete = errors.New("stream closed before completion")

	// ErrNoTransport is returned when a controller has no Transport to
	// issue requests through.
	ErrNoTransport = errors.New("no transport configured")
)
