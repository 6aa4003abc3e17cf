package errors

import (
	stderrors "errors"
	"fmt"
)

// ========== Codes ==========

// CodeSuccess success code
const (
	CodeSuccess = 200
)

// HTTP level codes (400-599)
const (
	CodeInvalidParam = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeConflict     = 409
	CodeServerError  = 500
)

// ========== Kinds ==========

// Services wrap one of these with a user-facing message; handlers map
// them to a code with errors.Is.
var (
	ErrValidation        = stderrors.New("validation failed")
	ErrNotFound          = stderrors.New("record not found")
	ErrConflict          = stderrors.New("record already exists")
	ErrUnauthorized      = stderrors.New("unauthorized")
	ErrForbidden         = stderrors.New("forbidden")
	ErrInvalidTransition = stderrors.New("invalid status transition")
)

// AppError carries a kind and the message shown to the client.
type AppError struct {
	Kind    error
	Message string
}

func (e *AppError) Error() string { return e.Message }

func (e *AppError) Unwrap() error { return e.Kind }

// New wraps kind with a client message.
func New(kind error, message string) error {
	return &AppError{Kind: kind, Message: message}
}

// Newf is New with formatting.
func Newf(kind error, format string, args ...interface{}) error {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Code maps an error to its response code; unknown errors are 500.
func Code(err error) int {
	switch {
	case err == nil:
		return CodeSuccess
	case stderrors.Is(err, ErrValidation), stderrors.Is(err, ErrInvalidTransition):
		return CodeInvalidParam
	case stderrors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case stderrors.Is(err, ErrForbidden):
		return CodeForbidden
	case stderrors.Is(err, ErrNotFound):
		return CodeNotFound
	case stderrors.Is(err, ErrConflict):
		return CodeConflict
	default:
		return CodeServerError
	}
}

// Message returns the client message of an AppError, or fallback for
// anything else so internal details never leak.
func Message(err error, fallback string) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Message
	}
	return fallback
}
