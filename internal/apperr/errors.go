// Package apperr defines the typed failures returned by the workflow, catalogue
// and auth services. Callers branch on them with errors.As / errors.Is instead
// of inspecting messages.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidStatus is returned when a status is outside the closed set.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrUnauthorized means the caller must sign in first.
	ErrUnauthorized = errors.New("not logged in")
	// ErrForbidden means the caller is signed in with the wrong role.
	ErrForbidden = errors.New("insufficient role")
	// ErrInvalidCredentials is the single answer to any failed login so the
	// caller cannot tell unknown emails from wrong passwords.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// ValidationError names the first input field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("Field '%s' is required", e.Field)
}

// Required builds the error for a missing field.
func Required(field string) *ValidationError {
	return &ValidationError{Field: field}
}

// Invalid builds the error for a present but malformed field.
func Invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports a missing (or inactive) entity.
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string {
	return e.Entity + " not found"
}

// NotFound builds a NotFoundError for entity.
func NotFound(entity string) *NotFoundError {
	return &NotFoundError{Entity: entity}
}

// UploadError reports which document could not be stored.
type UploadError struct {
	Which   string
	Missing bool
	Err     error
}

func (e *UploadError) Error() string {
	if e.Err == nil {
		return "upload " + e.Which + " failed"
	}
	return fmt.Sprintf("upload %s: %v", e.Which, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// PersistenceError wraps a storage failure whose detail must not reach the
// caller.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Persistence wraps err for operation op.
func Persistence(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}

// ConflictError reports a uniqueness violation such as a duplicate email.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }
