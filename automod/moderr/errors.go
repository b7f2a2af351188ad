// Typed errors shared by the moderation components.
//
// Validation errors are returned synchronously at the admin boundary and never leave partial state behind. Enforcement errors report platform calls which failed after bookkeeping was already recorded.
package moderr

import (
	"errors"
	"fmt"
	"strings"
)

// Returned when a non-admin actor invokes an admin operation.
var ErrPermissionDenied = errors.New("permission denied: actor is not a chat admin")

type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Msg
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// A single platform call which did not succeed.
type EnforcementFailure struct {
	Op     string
	ChatID int64
	UserID int64
	Err    error
}

func (f EnforcementFailure) Error() string {
	return fmt.Sprintf("%s (chat=%d user=%d): %v", f.Op, f.ChatID, f.UserID, f.Err)
}

func (f EnforcementFailure) Unwrap() error {
	return f.Err
}

// Collects every enforcement failure from processing a single event or admin call.
type EnforcementError struct {
	Failures []EnforcementFailure
}

func (e *EnforcementError) Add(op string, chatID, userID int64, err error) {
	e.Failures = append(e.Failures, EnforcementFailure{Op: op, ChatID: chatID, UserID: userID, Err: err})
}

// Returns nil when nothing failed, so callers can return the result directly.
func (e *EnforcementError) OrNil() error {
	if e == nil || len(e.Failures) == 0 {
		return nil
	}
	return e
}

func (e *EnforcementError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return "enforcement failed: " + strings.Join(parts, "; ")
}

func (e *EnforcementError) Unwrap() []error {
	out := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		out[i] = f
	}
	return out
}
