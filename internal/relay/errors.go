package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/usestring/perfrelay/pkg/lighthouse"
	"github.com/usestring/perfrelay/pkg/retry"
	"github.com/usestring/perfrelay/pkg/upstream"
)

// Kind classifies relay failures.
type Kind string

const (
	KindInvalidRequest      Kind = "INVALID_REQUEST"
	KindUpstreamRejected    Kind = "UPSTREAM_REJECTED"
	KindUpstreamUnavailable Kind = "UPSTREAM_UNAVAILABLE"
	KindRetriesExhausted    Kind = "RETRIES_EXHAUSTED"
)

// Client-facing messages.
const (
	MsgMissingURL     = "Missing url"
	MsgMissingPayload = "Missing prompt or lighthouse payload"
	MsgInvalidBody    = "Invalid request body"
	MsgProxyError     = "Proxy error"
)

// Error is a classified relay failure. Status is the HTTP status the
// failure maps to.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Details []string // validation messages for InvalidRequest
	Cause   error

	// Prompt is set when the failure happened after a report was
	// summarized, so callers can still report the summary.
	Prompt *lighthouse.Prompt
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Detail is the redacted cause message relayed to callers.
func (e *Error) Detail() string {
	if e.Cause == nil {
		return e.Message
	}
	return upstream.RedactKeys(e.Cause.Error())
}

// Timeout reports whether the failure was an upstream or context deadline.
func (e *Error) Timeout() bool {
	return isTimeout(e.Cause)
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	return errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout())
}

// IsKind reports whether err is a relay *Error of kind k.
func IsKind(err error, k Kind) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == k
}

func invalidRequest(msg string, details ...string) *Error {
	return &Error{Kind: KindInvalidRequest, Message: msg, Status: http.StatusBadRequest, Details: details}
}

func rejected(resp *upstream.Response) *Error {
	return &Error{
		Kind:    KindUpstreamRejected,
		Message: resp.ErrorMessage(),
		Status:  resp.StatusCode,
	}
}

// unavailable classifies a failed upstream call. Exhausted retries keep
// their own kind; everything else, timeouts included, is unavailability.
func unavailable(err error) *Error {
	kind := KindUpstreamUnavailable
	msg := "upstream unavailable"

	switch {
	case errors.Is(err, retry.ErrExhausted):
		kind = KindRetriesExhausted
		msg = "retries exhausted"
	case isTimeout(err):
		msg = "request timed out"
	case errors.Is(err, context.Canceled):
		msg = "request canceled"
	}

	return &Error{Kind: kind, Message: msg, Status: http.StatusInternalServerError, Cause: err}
}
