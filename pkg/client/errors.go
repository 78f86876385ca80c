package client

import (
	"errors"
	"fmt"
)

// ErrNoBody is returned when a successful response carries no stream.
var ErrNoBody = errors.New("response has no body")

// StatusError is returned for responses outside the 2xx range.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}
