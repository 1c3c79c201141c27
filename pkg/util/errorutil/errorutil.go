package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes surfaced to HTTP and realtime clients.
const (
	CodeValidation            = "VALIDATION_FAILED"
	CodeNotFound              = "NOT_FOUND"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeForbidden             = "FORBIDDEN"
	CodeConflict              = "CONFLICT"
	CodeInvalidTransition     = "INVALID_TRANSITION"
	CodeNoTechnicianAvailable = "NO_TECHNICIAN_AVAILABLE"
	CodePayloadTooLarge       = "PAYLOAD_TOO_LARGE"
	CodeInternal              = "INTERNAL_ERROR"
)

// Transition failure reasons carried in INVALID_TRANSITION details.
const (
	ReasonAlreadyInProgress = "ALREADY_IN_PROGRESS"
	ReasonAlreadyClosed     = "ALREADY_CLOSED"
	ReasonNotStarted        = "NOT_STARTED"
	ReasonNotClosed         = "NOT_CLOSED"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

// NewInvalidTransition reports a lifecycle operation rejected by the current status.
func NewInvalidTransition(reason, currentStatus string) error {
	return NewDomainError(CodeInvalidTransition, transitionMessage(reason), http.StatusConflict, map[string]any{
		"reason":         reason,
		"current_status": currentStatus,
	})
}

func transitionMessage(reason string) string {
	switch reason {
	case ReasonAlreadyInProgress:
		return "ticket is already in progress"
	case ReasonAlreadyClosed:
		return "ticket is already closed"
	case ReasonNotStarted:
		return "ticket service has not started"
	case ReasonNotClosed:
		return "ticket is not closed"
	default:
		return "invalid ticket transition"
	}
}

func NewNoTechnicianAvailable() error {
	return NewDomainError(CodeNoTechnicianAvailable, "no technician available", http.StatusServiceUnavailable, nil)
}

func NewPayloadTooLarge(limit int64) error {
	return NewDomainError(CodePayloadTooLarge, "file exceeds upload limit", http.StatusRequestEntityTooLarge, map[string]any{
		"max_bytes": limit,
	})
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}

func MapError(err error) error {
	return ToDomainError(err)
}

// IsCode reports whether err carries the given domain code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// Reason returns the transition reason attached to err, if any.
func Reason(err error) string {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Details == nil {
		return ""
	}
	reason, _ := domainErr.Details["reason"].(string)
	return reason
}
