package sse

import (
	"io"
)

// defaultChunkSize is the read size used to pull chunks from the source.
const defaultChunkSize = 4 * 1024

// TeeReader reads raw chunks from a source io.Reader, feeds them to a Decoder
// and simultaneously writes every byte verbatim to a destination io.Writer.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐   ┌───────────────────────┐
// │ TeeReader.Next() │──▶│ destination io.Writer │
// └──────────────────┘   └───────────────────────┘
// │
// ▼
// ┌──────────────────┐
// │     []Frame      │
// └──────────────────┘
//
// The destination receives an exact copy of the stream (useful for capturing
// a raw transcript of the wire), while the caller inspects decoded frames.
type TeeReader struct {
	src     io.Reader
	dest    io.Writer
	decoder *Decoder
	chunk   []byte

	// err is the terminal source error, held back while frames decoded from
	// the final chunk are handed out.
	err error
}

// NewTeeReader returns a TeeReader that decodes frames from src and writes all
// raw bytes through to dest. A nil dest discards the raw bytes.
func NewTeeReader(src io.Reader, dest io.Writer) *TeeReader {
	if dest == nil {
		dest = io.Discard
	}

	return &TeeReader{
		src:     src,
		dest:    dest,
		decoder: NewDecoder(),
		chunk:   make([]byte, defaultChunkSize),
	}
}

// Next blocks until the next chunk arrives from the source and returns the
// frames that chunk completed, which may be none when the chunk only carried
// part of a frame.
//
// Once the source is exhausted Next returns its error: io.EOF for a clean
// close, or the transport error otherwise. Data still buffered without a
// terminating boundary is discarded at that point.
func (r *TeeReader) Next() ([]Frame, error) {
	if r.err != nil {
		return nil, r.err
	}

	var frames []Frame
	n, err := r.src.Read(r.chunk)
	if n > 0 {
		if _, werr := r.dest.Write(r.chunk[:n]); werr != nil {
			r.err = werr
			return nil, werr
		}
		frames = r.decoder.Feed(r.chunk[:n])
	}

	if err != nil {
		r.err = err
		if len(frames) > 0 {
			return frames, nil
		}
		return nil, err
	}

	return frames, nil
}

// Buffered returns the number of undelimited bytes held by the decoder.
func (r *TeeReader) Buffered() int {
	return r.decoder.Buffered()
}
