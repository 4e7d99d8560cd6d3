// internal/layout/errors.go
package layout

import (
	"errors"
	"fmt"

	"github.com/xkilldash9x/scalpel-layout/internal/dom"
)

// Typed errors let callers such as the manager classify failures with
// errors.As instead of matching on message text.

// ErrorKind classifies engine level failures.
type ErrorKind int

const (
	KindComputation ErrorKind = iota
	KindConstraintResolution
	KindInvalidTree
	KindCircularDependency
	KindMemory
)

func (k ErrorKind) String() string {
	switch k {
	case KindComputation:
		return "computation"
	case KindConstraintResolution:
		return "constraint resolution"
	case KindInvalidTree:
		return "invalid tree"
	case KindCircularDependency:
		return "circular dependency"
	case KindMemory:
		return "memory"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the error type returned by the engine.
type Error struct {
	Kind    ErrorKind
	Node    dom.NodeID
	HasNode bool
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	prefix := "layout " + e.Kind.String() + " error"
	if e.HasNode {
		prefix = fmt.Sprintf("%s at node %d", prefix, e.Node)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
	}
	return prefix + ": " + e.Message
}

// Unwrap provides the underlying error for use with errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func newNodeError(kind ErrorKind, id dom.NodeID, msg string) *Error {
	return &Error{Kind: kind, Node: id, HasNode: true, Message: msg}
}

// IsKind reports whether err is, or wraps, an engine error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var le *Error
	return errors.As(err, &le) && le.Kind == kind
}

// FlexErrorKind classifies flex algorithm failures.
type FlexErrorKind int

const (
	FlexComputation FlexErrorKind = iota
	InvalidFlexValue
	ItemSizing
)

func (k FlexErrorKind) String() string {
	switch k {
	case FlexComputation:
		return "flex computation"
	case InvalidFlexValue:
		return "invalid flex value"
	case ItemSizing:
		return "item sizing"
	default:
		return fmt.Sprintf("flex kind(%d)", int(k))
	}
}

// FlexError is produced inside the flex algorithm.
type FlexError struct {
	Kind    FlexErrorKind
	Message string
}

func (e *FlexError) Error() string {
	return e.Kind.String() + " error: " + e.Message
}

func flexErrorf(kind FlexErrorKind, format string, args ...any) *FlexError {
	return &FlexError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// GridErrorKind classifies grid algorithm failures.
type GridErrorKind int

const (
	GridComputation GridErrorKind = iota
	InvalidGridValue
	ItemPlacement
	TrackSizing
)

func (k GridErrorKind) String() string {
	switch k {
	case GridComputation:
		return "grid computation"
	case InvalidGridValue:
		return "invalid grid value"
	case ItemPlacement:
		return "item placement"
	case TrackSizing:
		return "track sizing"
	default:
		return fmt.Sprintf("grid kind(%d)", int(k))
	}
}

// GridError is produced inside the grid algorithm.
type GridError struct {
	Kind    GridErrorKind
	Message string
}

func (e *GridError) Error() string {
	return e.Kind.String() + " error: " + e.Message
}

func gridErrorf(kind GridErrorKind, format string, args ...any) *GridError {
	return &GridError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// wrapAlgorithmError converts flex and grid errors raised directly by a
// container into a Computation error for that node. Engine errors from
// descendants and context errors pass through untouched.
func wrapAlgorithmError(id dom.NodeID, err error) error {
	switch e := err.(type) {
	case *FlexError:
		le := newNodeError(KindComputation, id, "flex layout failed")
		le.Err = e
		return le
	case *GridError:
		le := newNodeError(KindComputation, id, "grid layout failed")
		le.Err = e
		return le
	}
	return err
}
