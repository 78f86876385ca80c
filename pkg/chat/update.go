package chat

import "github.com/papercomputeco/streamchat/pkg/transcript"

// Update describes one transcript or lifecycle change. It is a closed set:
// MessageAppended, TokenAppended, MessageFinalized, ExchangeConcluded and
// TranscriptReset.
//
// Updates are delivered to the handler registered with WithUpdateHandler, in
// the order the changes were made, outside the controller lock. Transcript
// updates from an exchange detached by Reset are dropped; its
// ExchangeConcluded is still delivered.
type Update interface {
	update()
}

// MessageAppended reports a new message at the end of the transcript.
type MessageAppended struct {
	Message transcript.Message
}

// TokenAppended reports Delta appended to the streaming message.
type TokenAppended struct {
	MessageID string
	Delta     string
}

// MessageFinalized reports a message whose streaming flag was cleared.
type MessageFinalized struct {
	Message transcript.Message
}

// ExchangeConcluded reports the end of an exchange.
type ExchangeConcluded struct {
	Outcome Outcome
}

// TranscriptReset reports that the conversation was replaced.
type TranscriptReset struct {
	SessionID string
	Greeting  transcript.Message
}

func (MessageAppended) update()   {}
func (TokenAppended) update()     {}
func (MessageFinalized) update()  {}
func (ExchangeConcluded) update() {}
func (TranscriptReset) update()   {}
