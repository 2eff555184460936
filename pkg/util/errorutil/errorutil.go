package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared by the data provider, the orchestrator and the HTTP layer.
const (
	CodeValidation            = "VALIDATION_FAILED"
	CodeNotFound              = "NOT_FOUND"
	CodeIneligible            = "INELIGIBLE"
	CodeConflict              = "CONFLICT"
	CodeUpstreamUnavailable   = "UPSTREAM_UNAVAILABLE"
	CodeInternalInconsistency = "INTERNAL_INCONSISTENCY"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeForbidden             = "FORBIDDEN"
	CodeSessionBusy           = "SESSION_BUSY"
	CodePaymentDeclined       = "PAYMENT_DECLINED"
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

func NewValidationError(message string, details map[string]any) *DomainError {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) *DomainError {
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

// NewIneligible reports a business-rule rejection; rule names the failing rule.
func NewIneligible(rule, message string) *DomainError {
	return NewDomainError(CodeIneligible, message, http.StatusUnprocessableEntity, map[string]any{"rule": rule})
}

func NewConflict(message string, details map[string]any) *DomainError {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewUpstreamUnavailable(message string, err error) *DomainError {
	return &DomainError{
		Code:       CodeUpstreamUnavailable,
		Message:    message,
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

// NewInternalInconsistency wraps a violated invariant. The message is never shown to end users.
func NewInternalInconsistency(message string, err error) *DomainError {
	return &DomainError{
		Code:       CodeInternalInconsistency,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewUnauthorized(message string) *DomainError {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) *DomainError {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewSessionBusy(sessionID string) *DomainError {
	return NewDomainError(CodeSessionBusy, "another request for this session is still in progress",
		http.StatusConflict, map[string]any{"session_id": sessionID})
}

// NewPaymentDeclined reports a charge the payment collaborator refused.
func NewPaymentDeclined(reason string) *DomainError {
	return NewDomainError(CodePaymentDeclined, reason, http.StatusPaymentRequired, nil)
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
	return NewInternalInconsistency("internal server error", err)
}

// CodeOf returns the error code of err, or "" for nil.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	return ToDomainError(err).Code
}

// IsRetryable reports whether err is a transient infrastructure failure.
func IsRetryable(err error) bool {
	return CodeOf(err) == CodeUpstreamUnavailable
}
