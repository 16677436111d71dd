package model

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by all loaders and state machines.
var (
	ErrOpen               = errors.New("document could not be opened")
	ErrCorruptFormat      = errors.New("corrupt document format")
	ErrOutOfBounds        = errors.New("index out of bounds")
	ErrIO                 = errors.New("storage i/o failure")
	ErrNetwork            = errors.New("network failure")
	ErrUnsupportedFeature = errors.New("unsupported feature")
)

// Error attaches a taxonomy kind and operation to an underlying error.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Wrap classifies err under kind. A nil err still produces an error so
// callers can report bare conditions such as out-of-range indices.
func Wrap(kind error, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// OutOfBounds reports an index outside [0, count).
func OutOfBounds(op string, index, count int) error {
	return Wrap(ErrOutOfBounds, op, fmt.Errorf("index %d, count %d", index, count))
}

// IsFatal reports whether err ends the life of the document: open failures
// and structurally invalid containers. Page-level failures are not fatal.
func IsFatal(err error) bool {
	return errors.Is(err, ErrOpen) || errors.Is(err, ErrCorruptFormat)
}
