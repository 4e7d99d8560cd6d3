// internal/manager/errors.go
package manager

import (
	"errors"
	"fmt"
)

// ErrorKind classifies manager failures.
type ErrorKind int

const (
	// KindEngine wraps an error returned by the layout engine.
	KindEngine ErrorKind = iota
	// KindInvalidTree is returned for trees that cannot be laid out or inspected.
	KindInvalidTree
	// KindTimeout is returned when a pass runs past the configured budget.
	KindTimeout
	// KindMemoryLimit is returned when a single pass needs more cache memory
	// than the configured ceiling.
	KindMemoryLimit
)

func (k ErrorKind) String() string {
	switch k {
	case KindEngine:
		return "engine"
	case KindInvalidTree:
		return "invalid tree"
	case KindTimeout:
		return "timeout"
	case KindMemoryLimit:
		return "memory limit"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the error type returned by the Manager.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("layout manager %s error: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("layout manager %s error: %s", e.Kind, e.Message)
}

// Unwrap provides the underlying error for use with errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// IsKind reports whether err is, or wraps, a manager error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var me *Error
	return errors.As(err, &me) && me.Kind == kind
}
