package remote

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a remote API failure
type ErrorKind int

// Error kinds. All of them are transient from the caller's point of view:
// the retry wrapper re-invokes the operation on any of them.
const (
	KindTransport ErrorKind = iota + 1 // connection / request-level failure
	KindHTTP                           // non-2xx status
	KindDecode                         // undecodable response payload
)

// Error represents a remote API error
type Error struct {
	Kind   ErrorKind
	Op     string
	Status int
	Err    error
}

// Error implements the error interface
func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTP:
		return fmt.Sprintf("remote %s: unexpected status %d", e.Op, e.Status)
	case KindDecode:
		return fmt.Sprintf("remote %s: decoding response: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
	}
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// IsRemote reports whether err is a remote API error, returning it if so
func IsRemote(err error) (*Error, bool) {
	var re *Error
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
