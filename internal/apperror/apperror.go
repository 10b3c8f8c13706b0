package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("validation error")
	ErrUnsupported = errors.New("unsupported language")
	ErrCapacity    = errors.New("at capacity")
	ErrSpawn       = errors.New("spawn failed")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func UnsupportedLanguage(id string) *AppError {
	return &AppError{
		Err:     ErrUnsupported,
		Message: fmt.Sprintf("language %q is not supported", id),
		Field:   "language",
	}
}

// Capacity returns an AppError indicating the execution pool is saturated.
// HTTP handlers map this to 503 Service Unavailable.
func Capacity(message string) *AppError {
	return &AppError{
		Err:     ErrCapacity,
		Message: message,
	}
}

// SpawnFailed returns an AppError for an interpreter/compiler that could not
// be started at all. This is an infrastructure fault, not a program failure.
func SpawnFailed(command string, err error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrSpawn, err),
		Message: fmt.Sprintf("could not start %q", command),
	}
}
