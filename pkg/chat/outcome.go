package chat

import "time"

// Disposition is how an exchange concluded.
type Disposition string

const (
	// DispositionCompleted means a "done" event was observed.
	DispositionCompleted Disposition = "completed"

	// DispositionCancelled means the exchange was stopped by Cancel or Reset.
	DispositionCancelled Disposition = "cancelled"

	// DispositionFailed means the stream ended for any other reason.
	DispositionFailed Disposition = "failed"
)

// Outcome summarizes one concluded exchange.
type Outcome struct {
	SessionID   string
	Prompt      string
	Reply       string
	Disposition Disposition

	// Err is the failure reason. It is nil unless Disposition is
	// DispositionFailed.
	Err error

	StartedAt time.Time
	EndedAt   time.Time

	// Frames is the number of frames applied to the exchange.
	Frames int
}

// Duration returns how long the exchange was open.
func (o Outcome) Duration() time.Duration {
	return o.EndedAt.Sub(o.StartedAt)
}
