package apperror

import (
	"errors"
	"fmt"
)

// Code identifies the class of failure so transport layers can map it
// to an HTTP status or a websocket .error frame without string matching.
type Code string

const (
	CodeNotFound               Code = "NOT_FOUND"
	CodeSessionEnded           Code = "SESSION_ENDED"
	CodeConflict               Code = "CONFLICT"
	CodeInvalid                Code = "INVALID"
	CodePersistenceUnavailable Code = "PERSISTENCE_UNAVAILABLE"
)

type AppError struct {
	Code    Code
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match two AppErrors by code alone.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// Sentinel constructors used across services. Keeping them as functions
// (not vars) so each carries its own contextual message.

func SessionNotFound(id string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("session %s not found", id))
}

func SessionEnded(id string) *AppError {
	return New(CodeSessionEnded, fmt.Sprintf("session %s has ended", id))
}

func ThreadNotFound(id string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("comment thread %s not found", id))
}

func InvalidProjectKind(id string) *AppError {
	return New(CodeInvalid, fmt.Sprintf("project %s does not exist or does not support collaboration", id))
}

func Invalid(message string) *AppError {
	return New(CodeInvalid, message)
}

func PersistenceUnavailable(err error) *AppError {
	return Wrap(CodePersistenceUnavailable, "durable store unreachable", err)
}

// CodeOf extracts the error code for transport mapping. Unknown errors
// report as INVALID at the edge; callers log the original.
func CodeOf(err error) (Code, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code, true
	}
	return "", false
}

func IsCode(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}
