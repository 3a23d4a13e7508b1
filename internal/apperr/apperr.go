// Package apperr defines the closed set of error kinds the adaptor
// surfaces, per the error handling design: invalid input, transient
// repository failure, fatal repository failure, the three feed failure
// kinds, not-found, forbidden, a response state-machine violation, and
// cancellation.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is one of the error kinds from the error handling design. It is not
// a Go error type hierarchy; it is a closed enum carried inside Error.
type Kind int

const (
	// KindInvalidInput covers malformed config, an invalid datasource name,
	// or an identifier the codec cannot encode/decode.
	KindInvalidInput Kind = iota
	// KindRepositoryTransient is a recoverable failure signaled by the
	// repository; retried per the caller's error handler.
	KindRepositoryTransient
	// KindRepositoryFatal bypasses the startup retry loop and terminates.
	KindRepositoryFatal
	// KindFeedConnect is a failure to open the connection to the appliance.
	KindFeedConnect
	// KindFeedWrite is a failure while writing the feed request body.
	KindFeedWrite
	// KindFeedReadReply is a failure while reading the appliance's reply
	// body. A non-200 status or a body other than the literal "Success" is
	// KindStateViolation instead.
	KindFeedReadReply
	// KindNotFound means the document or its ACL chain is absent.
	KindNotFound
	// KindForbidden means the caller is not the appliance and the document
	// is not explicitly public.
	KindForbidden
	// KindStateViolation means a response handle was used out of sequence.
	KindStateViolation
	// KindInterrupted means cancellation arrived during blocking I/O.
	KindInterrupted
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindRepositoryTransient:
		return "repository_transient"
	case KindRepositoryFatal:
		return "repository_fatal"
	case KindFeedConnect:
		return "feed_connect"
	case KindFeedWrite:
		return "feed_write"
	case KindFeedReadReply:
		return "feed_read_reply"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindStateViolation:
		return "state_violation"
	case KindInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with its error Kind.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error with no underlying cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds an Error around an underlying cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error, and
// false otherwise.
func KindOf(err error) (Kind, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return 0, false
}
