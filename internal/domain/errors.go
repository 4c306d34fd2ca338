package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnauthorized          = errors.New("unauthorized")
	ErrValidation            = errors.New("validation failed")
	ErrPolicyViolation       = errors.New("policy violation")
	ErrModerationUnavailable = errors.New("moderation service unavailable")
	ErrSubmissionFailure     = errors.New("workflow submission failed")
)

// ValidationError reports a malformed request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError is a small helper for the common field/reason pair.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// PolicyViolationError terminates a request whose prompt was blocked. Message is
// the user-facing text, already escalated for the user's recent history.
type PolicyViolationError struct {
	Source  ModerationSource
	Reasons []string
	Count   int
	Message string
}

func (e *PolicyViolationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "prompt flagged: " + strings.Join(e.Reasons, ", ")
}

func (e *PolicyViolationError) Unwrap() error { return ErrPolicyViolation }

// SubmissionError wraps any failure talking to the orchestration service.
// StatusCode is zero for transport failures.
type SubmissionError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *SubmissionError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("orchestrator: status %d: %s", e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("orchestrator: status %d", e.StatusCode)
	case e.Err != nil:
		return "orchestrator: " + e.Err.Error()
	default:
		return "orchestrator: " + e.Message
	}
}

// Is lets callers match on ErrSubmissionFailure while Unwrap keeps the
// underlying transport error reachable.
func (e *SubmissionError) Is(target error) bool { return target == ErrSubmissionFailure }

func (e *SubmissionError) Unwrap() error { return e.Err }
