package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every *ValidationError via errors.Is.
	ErrValidation = errors.New("validation failed")

	// ErrLinkNotFound is returned when no link with the given id exists in a collection.
	ErrLinkNotFound = errors.New("link not found")

	// ErrProfileNotFound is returned when a profile lookup yields no row.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrIndexOutOfRange is returned by Reorder for targets outside [0, len-1].
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrUsernameTaken is returned when a profile already holds the username.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrUnauthorized is returned when a non-owner attempts a mutation.
	ErrUnauthorized = errors.New("not allowed to modify this profile")

	// ErrTransient matches every *TransientError via errors.Is.
	ErrTransient = errors.New("temporary failure, please retry")

	// ErrSaveInProgress is returned when a mutation is attempted while another is saving.
	ErrSaveInProgress = errors.New("a save is already in progress")
)

// ValidationCode identifies which rule a value broke.
type ValidationCode string

const (
	EmptyTitle      ValidationCode = "empty_title"
	InvalidURL      ValidationCode = "invalid_url"
	InvalidCategory ValidationCode = "invalid_category"
	InvalidUsername ValidationCode = "invalid_username"
	InvalidTheme    ValidationCode = "invalid_theme"
	InvalidField    ValidationCode = "invalid_field"
)

// ValidationError reports bad user input for a single field.
type ValidationError struct {
	Field string
	Code  ValidationCode
	Value string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Code)
	}
	return fmt.Sprintf("%s: %s (%q)", e.Field, e.Code, e.Value)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// TransientError wraps a store or network failure. The operation may succeed if retried.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func (e *TransientError) Is(target error) bool { return target == ErrTransient }

// Transient wraps err as a *TransientError for op. A nil err stays nil.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}
