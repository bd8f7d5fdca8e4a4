package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the failure classes the fetch and download engine distinguishes
type ErrorType string

const (
	ErrorTypeTransport    ErrorType = "transport"
	ErrorTypeBlocked      ErrorType = "blocked"
	ErrorTypeNoCandidates ErrorType = "no_candidates"
	ErrorTypeExhausted    ErrorType = "exhausted"
	ErrorTypeCancelled    ErrorType = "cancelled"
	ErrorTypeIO           ErrorType = "io"
	ErrorTypeUnknown      ErrorType = "unknown"
)

// Error is a classified failure. Code carries the HTTP status when one was received.
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	URL     string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Type) + " error"
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (code %d)", msg, e.Code)
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transport wraps a network or timeout failure
func Transport(url string, err error) *Error {
	return &Error{Type: ErrorTypeTransport, Message: "request failed", URL: url, Err: err}
}

// Blocked reports a response that was not the resource we asked for
func Blocked(url string, code int, message string) *Error {
	return &Error{Type: ErrorTypeBlocked, Message: message, Code: code, URL: url}
}

// NoCandidates reports a page that yielded no media URLs
func NoCandidates(url string) *Error {
	return &Error{Type: ErrorTypeNoCandidates, Message: "no audio candidates found on page", URL: url}
}

// Exhausted reports that every strategy in a cascade failed. last is the final attempt's error.
func Exhausted(url string, attempts int, last error) *Error {
	return &Error{
		Type:    ErrorTypeExhausted,
		Message: fmt.Sprintf("all %d strategies failed", attempts),
		URL:     url,
		Err:     last,
	}
}

// Cancelled reports a user stop. It is a clean terminal state, not a failure.
func Cancelled() *Error {
	return &Error{Type: ErrorTypeCancelled, Message: "cancelled by user"}
}

// IO wraps a local filesystem failure
func IO(path string, err error) *Error {
	return &Error{Type: ErrorTypeIO, Message: path, Err: err}
}

// TypeOf returns the classification of err, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsType checks whether err carries the given classification anywhere in its chain
func IsType(err error, t ErrorType) bool {
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Type == t {
			return true
		}
		err = e.Err
	}
	return false
}

// IsCancelled checks if err is a user cancellation
func IsCancelled(err error) bool {
	return IsType(err, ErrorTypeCancelled)
}

// IsEscalatable checks if a failure should move the cascade on to the next strategy
func IsEscalatable(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeTransport, ErrorTypeBlocked, ErrorTypeIO, ErrorTypeUnknown:
		return true
	case ErrorTypeCancelled, ErrorTypeNoCandidates, ErrorTypeExhausted:
		return false
	default:
		return false
	}
}
