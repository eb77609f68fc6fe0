package trust

import (
	"errors"
	"fmt"

	"echo-guard/internal/danger"
)

var (
	ErrEmptyPattern     = errors.New("command pattern cannot be empty")
	ErrTooBroad         = errors.New("pattern is too broad and would trust all commands")
	ErrDangerousPattern = errors.New("command pattern contains a dangerous sequence")
	ErrInvalidPattern   = errors.New("command pattern does not compile")
)

// ValidationError rejects a pattern before anything is stored.
type ValidationError struct {
	Pattern string
	// Reason is one of the Err* sentinels above.
	Reason error
	// Match is set when Reason is ErrDangerousPattern.
	Match *danger.Match
	// Cause is the regexp compile error when Reason is ErrInvalidPattern.
	Cause error
}

func (e *ValidationError) Error() string {
	switch {
	case e.Match != nil:
		return fmt.Sprintf("command pattern '%s' contains dangerous pattern '%s' (%s) and cannot be trusted",
			e.Pattern, e.Match.Pattern, e.Match.Category.Reason())
	case errors.Is(e.Reason, ErrTooBroad):
		return fmt.Sprintf("pattern '%s' is too broad and would trust all commands; use a more specific pattern", e.Pattern)
	case e.Cause != nil:
		return fmt.Sprintf("command pattern '%s' contains invalid regex syntax: %v", e.Pattern, e.Cause)
	default:
		return e.Reason.Error()
	}
}

func (e *ValidationError) Unwrap() error { return e.Reason }

// NotFoundError is returned when removing a pattern that is not stored.
type NotFoundError struct {
	Pattern string
	Scope   Scope
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("trusted command pattern '%s' not found in %s configuration", e.Pattern, e.Scope)
}

// PersistError means the in-memory change was applied but could not be
// written. The change is lost on restart.
type PersistError struct {
	Op    string
	Scope Scope
	Err   error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("%s %s trusted commands: change applied for this session only: %v", e.Op, e.Scope, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }
