package builder

import (
	"errors"
	"fmt"

	"github.com/atlekbai/querykit/internal/column"
)

// Sentinel errors matched by the typed errors below through errors.Is.
var (
	// ErrValidation is matched by errors caused by a malformed argument to a
	// builder method.
	ErrValidation = errors.New("querykit: invalid argument")

	// ErrState is matched by errors caused by calling builder methods out of
	// order or building an incomplete statement.
	ErrState = errors.New("querykit: invalid builder state")
)

// ValidationError reports a malformed argument to a builder method.
type ValidationError struct {
	Op  string // builder method that received the argument
	Msg string
}

// Error returns the error string.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("querykit: %s: %s", e.Op, e.Msg)
}

// Is reports whether the target error matches ValidationError.
// This allows errors.Is(validationErr, ErrValidation) to return true.
func (e *ValidationError) Is(err error) bool {
	return err == ErrValidation
}

// StateError reports caller misuse such as Skip before Take or building a
// statement that has no table.
type StateError struct {
	Op  string
	Msg string
}

// Error returns the error string.
func (e *StateError) Error() string {
	return fmt.Sprintf("querykit: %s: %s", e.Op, e.Msg)
}

// Is reports whether the target error matches StateError.
func (e *StateError) Is(err error) bool {
	return err == ErrState
}

// IsValidation returns true if the error is a ValidationError.
func IsValidation(err error) bool {
	if err == nil {
		return false
	}
	var e *ValidationError
	return errors.As(err, &e) || errors.Is(err, ErrValidation)
}

// IsState returns true if the error is a StateError.
func IsState(err error) bool {
	if err == nil {
		return false
	}
	var e *StateError
	return errors.As(err, &e) || errors.Is(err, ErrState)
}

// IsSyntax returns true if the error is a malformed column expression.
func IsSyntax(err error) bool {
	var e *column.SyntaxError
	return errors.As(err, &e)
}

func validationf(op, format string, args ...any) error {
	return &ValidationError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

func statef(op, format string, args ...any) error {
	return &StateError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// state is the error slot shared by a statement and every child builder
// created through it. Only the first error is kept; once set, further
// mutations are ignored and Build reports it.
type state struct {
	err error
}

func newState() *state { return &state{} }

func (s *state) record(err error) {
	if s.err == nil {
		s.err = err
	}
}

func (s *state) failed() bool { return s.err != nil }
