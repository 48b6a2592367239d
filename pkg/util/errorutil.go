package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes for the triage pipeline failure taxonomy.
const (
	CodeTransientExternal  = "TRANSIENT_EXTERNAL_FAILURE"
	CodeMalformedResponse  = "MALFORMED_RESPONSE"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	CodeBatchInProgress    = "BATCH_IN_PROGRESS"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeNotFound           = "NOT_FOUND"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeConflict           = "CONFLICT"
	CodeInternal           = "INTERNAL_ERROR"
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

// NewTransientFailure wraps a network/timeout failure that may be retried later.
func NewTransientFailure(message string, err error) error {
	return &DomainError{Code: CodeTransientExternal, Message: message, HTTPStatus: http.StatusBadGateway, Err: err}
}

// NewMalformedResponse marks unparseable output from an external generator.
func NewMalformedResponse(message string, err error) error {
	return &DomainError{Code: CodeMalformedResponse, Message: message, HTTPStatus: http.StatusBadGateway, Err: err}
}

// NewRateLimited marks an external rate-limit rejection.
func NewRateLimited(message string, err error) error {
	return &DomainError{Code: CodeRateLimited, Message: message, HTTPStatus: http.StatusTooManyRequests, Err: err}
}

// NewInvalidTransition rejects an illegal workflow state change; state is unchanged.
func NewInvalidTransition(message string, details map[string]any) error {
	return NewDomainError(CodeInvalidTransition, message, http.StatusConflict, details)
}

// NewStorageUnavailable marks a durable-storage failure. The sync layer logs
// and swallows it; it never propagates to pipeline callers.
func NewStorageUnavailable(err error) error {
	return &DomainError{Code: CodeStorageUnavailable, Message: "durable storage unavailable", HTTPStatus: http.StatusServiceUnavailable, Err: err}
}

// NewBatchInProgress rejects a batch invocation while another run holds the lock.
func NewBatchInProgress() error {
	return NewDomainError(CodeBatchInProgress, "a batch run is already in progress", http.StatusConflict, nil)
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
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

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err is a DomainError carrying the given code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
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
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}
