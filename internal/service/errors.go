package service

import (
	"errors"
	"fmt"

	"pulse/internal/repository"
)

var (
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized is returned when a token fails validation.
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	// ErrUserAlreadyExists is returned when an email is already registered.
	ErrUserAlreadyExists = errors.New("user already exists")

	ErrNotFound = repository.ErrNotFound
	ErrConflict = repository.ErrConflict

	// ErrInsufficientBalance is returned when a request or approval needs more days than are available.
	ErrInsufficientBalance = errors.New("insufficient vacation balance")
	ErrOverlappingRequest  = errors.New("vacation request overlaps an existing request")

	// ErrInvalidTransition is returned when a chat session cannot move to the requested status.
	ErrInvalidTransition = errors.New("invalid chat status transition")
	ErrSessionClosed     = errors.New("chat session is closed")
	// ErrAssistantUnavailable wraps model failures; the session stays with the assistant.
	ErrAssistantUnavailable = errors.New("assistant is unavailable")

	ErrAlreadyClockedIn = errors.New("already clocked in")
	ErrNotClockedIn     = errors.New("not clocked in")

	ErrDocumentNotReady = errors.New("payslip document is not published")
	ErrStorageDisabled  = errors.New("document storage is not configured")
	ErrPayslipExists    = errors.New("payslip already issued for this period")
	ErrNotRepublishable = errors.New("only failed payslips can be republished")
)

// ValidationError reports a problem with caller input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
