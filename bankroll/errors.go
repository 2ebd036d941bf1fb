/*
errors.go - Centralized error types for the settlement engine

PURPOSE:
  All failure kinds the engine raises, in one place. Every failure is
  synchronous and terminal for the call; the engine never retries.

ERROR KINDS:
  ErrNotFound          - session, participant or request missing
  ErrInvalidState      - transition not legal from the current status
  ErrInvalidAmount     - non-positive amount, negative chip count
  ErrInvalidAllocation - distribution override breaks conservation
  ErrLocked            - manager has locked the participant's input

USAGE:
  The transport layer maps kinds to status codes with errors.Is:

    if errors.Is(err, bankroll.ErrInvalidState) { ... 409 ... }

SEE ALSO:
  - api/handlers.go: writeEngineError
*/
package bankroll

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("invalid state")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidAllocation = errors.New("invalid allocation")
	ErrLocked            = errors.New("input locked by manager")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the missing entity.
type NotFoundError struct {
	Kind string // "session", "participant", "request"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InvalidStateError names the status that blocked a transition.
type InvalidStateError struct {
	Subject string // e.g. "request req-1", "participant alice"
	Current string
	Reason  string
}

func (e *InvalidStateError) Error() string {
	msg := fmt.Sprintf("%s: invalid state %q", e.Subject, e.Current)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// AllocationError reports which conservation rule an override broke.
type AllocationError struct {
	Rule     string
	Expected string
	Actual   string
}

func (e *AllocationError) Error() string {
	if e.Expected == "" {
		return fmt.Sprintf("invalid allocation: %s", e.Rule)
	}
	return fmt.Sprintf("invalid allocation: %s (expected %s, got %s)", e.Rule, e.Expected, e.Actual)
}

func (e *AllocationError) Unwrap() error { return ErrInvalidAllocation }

func invalidState(subject string, current any, reason string) error {
	return &InvalidStateError{Subject: subject, Current: fmt.Sprint(current), Reason: reason}
}

func invalidAmount(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidAmount, fmt.Sprintf(format, args...))
}

func notFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

func nameList(names []string) string {
	return strings.Join(names, ", ")
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to caller input or state.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidAllocation) ||
		errors.Is(err, ErrLocked)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
