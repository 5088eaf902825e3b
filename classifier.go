package recovery

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorCategory is the user-facing failure category of an action slot.
type ErrorCategory string

const (
	CategoryNone           ErrorCategory = ""
	CategoryValidation     ErrorCategory = "validation"
	CategoryServerRejected ErrorCategory = "server_rejected"
	CategoryUnreachable    ErrorCategory = "unreachable"
	CategoryUnexpected     ErrorCategory = "unexpected"
)

// Retryable reports whether repeating the same request without changing the
// input may succeed.
func (c ErrorCategory) Retryable() bool {
	return c == CategoryUnreachable
}

// ServerError is a completed remote call that returned a structured
// rejection body ({"error": "..."}).
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server rejected request (%d): %s", e.StatusCode, e.Message)
}

// TransportError is a remote call that never produced a response.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return "transport failure"
	}
	return "transport failure: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// Classification is the outcome of ErrorClassifier.Classify.
type Classification struct {
	Category ErrorCategory
	Message  string
	Cause    error
}

// ErrorClassifier maps a failed remote call to a category and the message
// shown to the user.
type ErrorClassifier struct {
	UnreachableMessage string
	UnexpectedMessage  string
}

// Classify checks, in order, for a structured server payload, a transport
// failure, and falls back to unexpected.
func (c ErrorClassifier) Classify(err error) Classification {
	var serverErr *ServerError
	if errors.As(err, &serverErr) && serverErr.Message != "" {
		return Classification{
			Category: CategoryServerRejected,
			Message:  serverErr.Message,
			Cause:    err,
		}
	}

	if isTransportFailure(err) {
		return Classification{
			Category: CategoryUnreachable,
			Message:  c.UnreachableMessage,
			Cause:    err,
		}
	}

	return Classification{
		Category: CategoryUnexpected,
		Message:  c.UnexpectedMessage,
		Cause:    err,
	}
}

func isTransportFailure(err error) bool {
	if err == nil {
		return false
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
