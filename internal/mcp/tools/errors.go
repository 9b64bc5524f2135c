package tools

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/usestring/perfrelay/internal/relay"
)

// Error codes for MCP tool responses.
const (
	ErrCodeInvalidInput        = "INVALID_INPUT"
	ErrCodeUpstreamRejected    = "UPSTREAM_REJECTED"
	ErrCodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	ErrCodeRetriesExhausted    = "RETRIES_EXHAUSTED"
	ErrCodeTimeout             = "TIMEOUT"
)

// CodedError is an error with an associated error code.
type CodedError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CodedError) Unwrap() error {
	return e.Cause
}

// WrapRelayError converts a relay failure to a coded error. Causes are
// redacted before they reach the client.
func WrapRelayError(err error) error {
	if err == nil {
		return nil
	}

	var re *relay.Error
	if !errors.As(err, &re) {
		return &CodedError{Code: ErrCodeUpstreamUnavailable, Message: err.Error()}
	}

	coded := &CodedError{Message: re.Message}
	switch re.Kind {
	case relay.KindInvalidRequest:
		coded.Code = ErrCodeInvalidInput
		if len(re.Details) > 0 {
			coded.Message = fmt.Sprintf("%s: %v", re.Message, re.Details)
		}
	case relay.KindUpstreamRejected:
		coded.Code = ErrCodeUpstreamRejected
		coded.Message = fmt.Sprintf("upstream status %d: %s", re.Status, re.Message)
	case relay.KindRetriesExhausted:
		coded.Code = ErrCodeRetriesExhausted
		coded.Message = re.Detail()
	default:
		coded.Code = ErrCodeUpstreamUnavailable
		if re.Timeout() {
			coded.Code = ErrCodeTimeout
		}
		coded.Message = re.Detail()
	}

	slog.Warn("relay tool error",
		slog.String("code", coded.Code),
		slog.String("message", coded.Message),
	)
	return coded
}

// ErrInvalidInput creates an invalid input error.
func ErrInvalidInput(message string) error {
	return &CodedError{
		Code:    ErrCodeInvalidInput,
		Message: message,
	}
}
