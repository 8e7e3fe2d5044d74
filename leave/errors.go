/*
errors.go - Error types for the leave service

PURPOSE:
  The quota engine never fails; it degrades bad input to zero. The service
  around it does fail: a request id may not exist, a submission may have no
  working days, an approval may target a request that was already decided.
  These errors live here so the HTTP layer can map them to status codes.

USAGE:
  if leave.IsNotFound(err) { ... 404 ... }
  if leave.IsClientError(err) { ... 400/409 ... }

  var verr *leave.ValidationError
  if errors.As(err, &verr) { ... verr.Fields ... }
*/
package leave

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned by stores and the service for missing rows.
	ErrNotFound = errors.New("not found")

	// ErrNoWorkingDays blocks a submission whose range has no working day.
	ErrNoWorkingDays = errors.New("date range contains no working days")

	// ErrInvalidTransition is returned when a status change is not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidRequest is wrapped by ValidationError.
	ErrInvalidRequest = errors.New("invalid leave request")

	// ErrInvalidPolicy is returned when a policy document cannot be used.
	ErrInvalidPolicy = errors.New("invalid policy")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError lists the fields that failed validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "invalid leave request: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidRequest }

// TransitionError describes a rejected status change.
type TransitionError struct {
	RequestID string
	From      Status
	To        Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("request %s cannot move from %s to %s", e.RequestID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether err means a missing request, instructor or policy.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsClientError reports whether err was caused by the caller's input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNoWorkingDays) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidPolicy)
}
