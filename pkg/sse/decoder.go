package sse

import (
	"bytes"
	"strings"
)

var (
	crlf          = []byte("\r\n")
	lf            = []byte("\n")
	frameBoundary = []byte("\n\n")
)

// Decoder reassembles arbitrarily split chunks of an SSE byte stream into
// complete frames. It holds only the partial trailing data that has not yet
// been terminated by a frame boundary, so a fresh Decoder is needed for every
// stream.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	buf []byte
}

// NewDecoder returns an empty Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends chunk to the internal buffer and returns every frame completed
// by it, in stream order. Data after the last boundary stays buffered until a
// later Feed terminates it. Frames are never emitted twice.
//
// "\r\n" line endings are normalized to "\n" before boundaries are located, so
// both "\n\n" and "\r\n\r\n" delimit frames, even when the sequence is split
// across chunks.
func (d *Decoder) Feed(chunk []byte) []Frame {
	if len(chunk) == 0 {
		return nil
	}

	d.buf = append(d.buf, chunk...)
	if bytes.Contains(d.buf, crlf) {
		d.buf = bytes.ReplaceAll(d.buf, crlf, lf)
	}

	var frames []Frame
	for {
		idx := bytes.Index(d.buf, frameBoundary)
		if idx < 0 {
			break
		}

		raw := string(d.buf[:idx])
		d.buf = d.buf[idx+len(frameBoundary):]

		if frame, ok := parseFrame(raw); ok {
			frames = append(frames, frame)
		}
	}

	// Reclaim the consumed prefix once the buffer drains.
	if len(d.buf) == 0 {
		d.buf = nil
	}

	return frames
}

// Buffered returns the number of bytes held while waiting for a boundary.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// parseFrame turns one boundary-delimited block into a Frame. Blocks without
// any "event:" or "data:" line (blank runs, keep-alive comments, bare "id:"
// or "retry:" lines) report false and are dropped.
func parseFrame(raw string) (Frame, bool) {
	frame := Frame{Event: DefaultEvent}
	var (
		data   []string
		fields bool
	)

	for line := range strings.SplitSeq(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		switch {
		case strings.HasPrefix(trimmed, "event:"):
			frame.Event = strings.TrimSpace(strings.TrimPrefix(trimmed, "event:"))
			fields = true
		case strings.HasPrefix(trimmed, "data:"):
			data = append(data, strings.TrimSpace(strings.TrimPrefix(trimmed, "data:")))
			fields = true
		default:
			// ":" comments, "id:", "retry:" and unknown fields are ignored.
		}
	}

	frame.Data = strings.Join(data, "\n")
	return frame, fields
}
