// Package errors defines the error kinds returned by the depth pipeline.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrInvalidInput  = stderrors.New("invalid input")
	ErrShapeMismatch = stderrors.New("shape mismatch")
	ErrModelLoad     = stderrors.New("model load failed")
	ErrInference     = stderrors.New("inference failed")
)

// Error carries the kind of a failure, the operation that produced it and
// the underlying cause.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	case e.Op == "":
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// New builds an *Error of the given kind.
func New(kind error, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf builds an *Error of the given kind with a formatted cause.
func Newf(kind error, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the first known kind found in err's chain, or nil.
func KindOf(err error) error {
	for _, k := range []error{ErrInvalidInput, ErrShapeMismatch, ErrModelLoad, ErrInference} {
		if stderrors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return stderrors.As(err, target) }
