// Package apperror provides the typed error taxonomy shared by every layer.
// Domain services return *AppError for business failures; the HTTP layer renders them.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes.
const (
	CodeInternal = "INTERNAL_ERROR"

	CodeValidation = "VALIDATION_ERROR"

	// Stock ledger business failures
	CodeInsufficientStock      = "INSUFFICIENT_STOCK"
	CodeInvalidAdjustment      = "INVALID_ADJUSTMENT"
	CodeInvalidStateTransition = "INVALID_STATE_TRANSITION"
	CodeInvalidQuantity        = "INVALID_QUANTITY"
	CodeUnsupportedDocType     = "UNSUPPORTED_DOCUMENT_TYPE"
	CodeApprovalDenied         = "APPROVAL_DENIED"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"

	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"

	CodeNotFound = "NOT_FOUND"

	CodeIdempotencyConflict = "IDEMPOTENCY_CONFLICT"
)

// AppError is the standard error type of the service.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (quantities, ids, statuses)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (never rendered)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches another *AppError by code, so errors.Is(err, apperror.ErrNotFound) works.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// Sentinels for errors.Is comparisons. Never return these directly.
var (
	ErrNotFound               = &AppError{Code: CodeNotFound}
	ErrInsufficientStock      = &AppError{Code: CodeInsufficientStock}
	ErrInvalidAdjustment      = &AppError{Code: CodeInvalidAdjustment}
	ErrInvalidStateTransition = &AppError{Code: CodeInvalidStateTransition}
	ErrInvalidQuantity        = &AppError{Code: CodeInvalidQuantity}
	ErrIdempotencyConflict    = &AppError{Code: CodeIdempotencyConflict}
	ErrUnsupportedDocType     = &AppError{Code: CodeUnsupportedDocType}
	ErrValidation             = &AppError{Code: CodeValidation}
	ErrApprovalDenied         = &AppError{Code: CodeApprovalDenied}
)

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404).
// Entities of another tenant are reported the same way.
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": fmt.Sprint(id)},
	}
}

// NewInsufficientStock reports a shortage at a stock key.
func NewInsufficientStock(productID string, available, requested fmt.Stringer) *AppError {
	return &AppError{
		Code: CodeInsufficientStock,
		Message: fmt.Sprintf("Insufficient stock. Available: %s, Requested: %s",
			available, requested),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"product_id": productID,
			"available":  available.String(),
			"requested":  requested.String(),
		},
	}
}

// NewInvalidAdjustment is returned when an ADJUST would drive on-hand below zero
// (or below the reserved quantity).
func NewInvalidAdjustment(current, delta fmt.Stringer) *AppError {
	return &AppError{
		Code: CodeInvalidAdjustment,
		Message: fmt.Sprintf("Adjustment of %s would make quantity negative (current %s)",
			delta, current),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"current": current.String(),
			"delta":   delta.String(),
		},
	}
}

// NewInvalidStateTransition reports a status that disallows the requested action.
func NewInvalidStateTransition(entity, from, action string) *AppError {
	return &AppError{
		Code:       CodeInvalidStateTransition,
		Message:    fmt.Sprintf("cannot %s %s in status %s", action, entity, from),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "status": from, "action": action},
	}
}

// NewInvalidQuantity reports a non-positive or over-limit quantity.
func NewInvalidQuantity(message string) *AppError {
	return &AppError{
		Code:       CodeInvalidQuantity,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewUnsupportedDocumentType reports a document type that has no movement mapping.
func NewUnsupportedDocumentType(docType string) *AppError {
	return &AppError{
		Code:       CodeUnsupportedDocType,
		Message:    fmt.Sprintf("Unsupported document type: %s", docType),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"type": docType},
	}
}

// NewApprovalDenied reports a document rejected by the approval policy.
func NewApprovalDenied(rule string) *AppError {
	return &AppError{
		Code:       CodeApprovalDenied,
		Message:    "document does not satisfy the approval policy",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"rule": rule},
	}
}

// NewConcurrentModification creates an optimistic locking error
func NewConcurrentModification(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeConcurrentModification,
		Message:    "Record was modified concurrently. Please retry.",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "id": fmt.Sprint(id)},
	}
}

// NewIdempotencyConflict is returned when a key is replayed with a different payload.
func NewIdempotencyConflict(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotencyConflict,
		Message:    "Idempotency key was already used with a different request",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"idempotency_key": key},
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewUnauthorized creates an authentication error (401)
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewForbidden creates an authorization error (403)
func NewForbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return IsCode(err, CodeNotFound)
}
