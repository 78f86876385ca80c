// Package transcript holds the ordered record of a conversation.
package transcript

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// Streaming is true only for the assistant message currently receiving
	// tokens. Content of a message that is not streaming is never changed.
	Streaming bool `json:"streaming"`
}

func newMessage(role Role, content string, streaming bool) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
		Streaming: streaming,
	}
}
