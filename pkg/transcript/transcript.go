package transcript

import "sync"

// Transcript is an ordered, insertion-preserving sequence of messages.
//
// Entries are only ever appended, except for the single streaming message
// whose content grows and whose streaming flag is eventually cleared. At most
// one message is streaming at any time.
//
// A Transcript is safe for concurrent use: one writer mutates it while
// renderers read copies through Snapshot.
type Transcript struct {
	mu       sync.RWMutex
	messages []*Message
}

// New returns a Transcript seeded with the given assistant greeting. An empty
// greeting yields an empty transcript.
func New(greeting string) *Transcript {
	t := &Transcript{}
	t.Reset(greeting)
	return t
}

// Append adds a new message and returns it. Appending a streaming message
// finalizes any message that was still streaming.
func (t *Transcript) Append(role Role, content string, streaming bool) *Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	if streaming {
		t.finalizeAllLocked()
	}

	m := newMessage(role, content, streaming)
	t.messages = append(t.messages, m)
	return m
}

// AppendContent appends delta to m if m is still streaming. It reports
// whether the content changed.
func (t *Transcript) AppendContent(m *Message, delta string) bool {
	if m == nil || delta == "" {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !m.Streaming {
		return false
	}
	m.Content += delta
	return true
}

// Finalize clears the streaming flag on m. It reports whether m was
// streaming.
func (t *Transcript) Finalize(m *Message) bool {
	if m == nil {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !m.Streaming {
		return false
	}
	m.Streaming = false
	return true
}

// FinalizeAll clears the streaming flag on every message and returns the
// ones that changed. Calling it again is a no-op.
func (t *Transcript) FinalizeAll() []*Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.finalizeAllLocked()
}

func (t *Transcript) finalizeAllLocked() []*Message {
	var finalized []*Message
	for _, m := range t.messages {
		if m.Streaming {
			m.Streaming = false
			finalized = append(finalized, m)
		}
	}
	return finalized
}

// Reset discards every message and, when greeting is non-empty, seeds the
// transcript with a single assistant greeting.
func (t *Transcript) Reset(greeting string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.messages = nil
	if greeting != "" {
		t.messages = append(t.messages, newMessage(RoleAssistant, greeting, false))
	}
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.messages)
}

// Last returns a copy of the newest message.
func (t *Transcript) Last() (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.messages) == 0 {
		return Message{}, false
	}
	return *t.messages[len(t.messages)-1], true
}

// Streaming returns a copy of the message currently receiving tokens.
func (t *Transcript) Streaming() (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, m := range t.messages {
		if m.Streaming {
			return *m, true
		}
	}
	return Message{}, false
}

// Snapshot returns a copy of every message in order. The copy is detached
// from later mutations.
func (t *Transcript) Snapshot() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Message, len(t.messages))
	for i, m := range t.messages {
		out[i] = *m
	}
	return out
}
