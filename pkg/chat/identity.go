package chat

import "github.com/google/uuid"

// sessionIDPrefix is prepended to every generated session identity.
const sessionIDPrefix = "chat-"

// NewSessionID returns a fresh session identity such as
// "chat-0b6f3a8e-5c1d-4f0e-9b7a-2d8c1e4f6a90".
func NewSessionID() string {
	return sessionIDPrefix + uuid.NewString()
}
