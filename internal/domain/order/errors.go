package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// ValidationError reports a submission that is missing or has a malformed
// field. The store is never touched for such submissions.
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

func missingField(field string) *ValidationError {
	return &ValidationError{Field: field, Reason: "required"}
}

func malformedField(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// StoreReadError reports a persisted collection that exists but cannot be
// read or parsed.
type StoreReadError struct {
	Err error
}

func (e *StoreReadError) Error() string {
	return fmt.Sprintf("read order store: %v", e.Err)
}

func (e *StoreReadError) Unwrap() error { return e.Err }

// StoreWriteError reports a persistence medium that could not be written.
type StoreWriteError struct {
	Err error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("write order store: %v", e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }

// IsValidation reports whether err is, or wraps, a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func asReadError(err error) error {
	var r *StoreReadError
	if errors.As(err, &r) {
		return err
	}
	return &StoreReadError{Err: err}
}

func asWriteError(err error) error {
	var w *StoreWriteError
	if errors.As(err, &w) {
		return err
	}
	return &StoreWriteError{Err: err}
}
