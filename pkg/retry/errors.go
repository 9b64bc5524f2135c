package retry

import (
	"errors"
	"fmt"
	"time"
)

// Outcome classifies a single attempt.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"   // response handed to the caller
	OutcomeRetriable Outcome = "retriable" // transient failure
	OutcomeAborted   Outcome = "aborted"   // request context done
)

// Attempt describes one call made by a Retrier. It is reported to the
// observer hook and never stored.
type Attempt struct {
	Number     int
	Outcome    Outcome
	StatusCode int           // 0 when the call failed in transport
	Err        error         // transport error or *StatusError
	Delay      time.Duration // wait before the next attempt, zero if none follows
}

// ErrExhausted matches any *ExhaustedError via errors.Is.
var ErrExhausted = errors.New("retries exhausted")

// ExhaustedError is returned when every attempt failed transiently.
type ExhaustedError struct {
	Attempts      int
	TotalDuration time.Duration
	LastStatus    int    // 0 when the last attempt failed in transport
	LastBody      string // bounded prefix of the last retriable response body
	LastError     error
}

func (e *ExhaustedError) Error() string {
	if e.LastStatus != 0 {
		return fmt.Sprintf("retries exhausted after %d attempts (%s): last status %d",
			e.Attempts, e.TotalDuration.Round(time.Millisecond), e.LastStatus)
	}
	return fmt.Sprintf("retries exhausted after %d attempts (%s): %v",
		e.Attempts, e.TotalDuration.Round(time.Millisecond), e.LastError)
}

func (e *ExhaustedError) Unwrap() error {
	return e.LastError
}

// Is reports whether target is ErrExhausted.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}

// StatusError records a retriable HTTP status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}
