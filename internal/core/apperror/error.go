// Package apperror provides structured error handling following RFC 7807 Problem Details.
// Every business outcome that reaches a client is an AppError.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
)

// Error codes
const (
	// Infrastructure errors (5xx)
	CodeInternal       = "INTERNAL_ERROR"
	CodeStorageFailure = "STORAGE_FAILURE"

	// Validation errors (400)
	CodeValidation      = "VALIDATION_ERROR"
	CodeInvalidQuantity = "INVALID_QUANTITY"
	CodeInvalidType     = "INVALID_MOVEMENT_TYPE"

	// Authorization errors (401, 403)
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeConflict            = "CONFLICT"
	CodeDocumentLocked      = "DOCUMENT_LOCKED"
	CodeAlreadyConfirmed    = "ALREADY_CONFIRMED"
	CodeInsufficientStock   = "INSUFFICIENT_STOCK"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	CodeReservationMismatch = "RESERVATION_MISMATCH"
	CodeReservationClosed   = "RESERVATION_CLOSED"
	CodeIdempotency         = "IDEMPOTENCY_CONFLICT"
)

// AppError is the standard error type of the service.
// It implements error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field errors, quantities, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
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

// IsServerSide reports whether the error is a 5xx that must be logged.
func (e *AppError) IsServerSide() bool {
	return e.HTTPStatus >= http.StatusInternalServerError
}

// FieldErrors accumulates per-field validation failures so callers can
// report every offending field at once.
type FieldErrors map[string]string

// Add records a failure for field. The first message for a field wins.
func (f FieldErrors) Add(field, message string) {
	if _, exists := f[field]; !exists {
		f[field] = message
	}
}

// Merge copies all entries of other under prefix.
func (f FieldErrors) Merge(prefix string, other FieldErrors) {
	for field, msg := range other {
		f.Add(prefix+field, msg)
	}
}

// Fields returns sorted field names.
func (f FieldErrors) Fields() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Err returns nil when empty, otherwise a ValidationError carrying every field.
func (f FieldErrors) Err() error {
	if len(f) == 0 {
		return nil
	}
	return NewValidationFields(f)
}

// --- Factory functions for common errors ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewValidationFields creates a validation error listing every offending field.
func NewValidationFields(fields FieldErrors) *AppError {
	errs := make(map[string]string, len(fields))
	for k, v := range fields {
		errs[k] = v
	}
	return &AppError{
		Code:       CodeValidation,
		Message:    "Validation failed",
		HTTPStatus: http.StatusBadRequest,
		Details: map[string]any{
			"fields": fields.Fields(),
			"errors": errs,
		},
	}
}

// NewInvalidQuantity is returned when a movement quantity is zero or has the wrong sign.
func NewInvalidQuantity(qty int64, reason string) *AppError {
	return &AppError{
		Code:       CodeInvalidQuantity,
		Message:    "Invalid quantity: " + reason,
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"qty": qty},
	}
}

// NewInvalidType is returned for an unrecognized movement type.
func NewInvalidType(movementType string) *AppError {
	return &AppError{
		Code:       CodeInvalidType,
		Message:    fmt.Sprintf("Unknown movement type %q", movementType),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"type": movementType},
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewDocumentLocked is returned when a confirmed document is mutated.
func NewDocumentLocked(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeDocumentLocked,
		Message:    "Document is confirmed and can no longer be changed",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewAlreadyConfirmed is returned by a second confirm of the same document.
func NewAlreadyConfirmed(id any) *AppError {
	return &AppError{
		Code:       CodeAlreadyConfirmed,
		Message:    "Document is already confirmed",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"id": id},
	}
}

// NewInsufficientStock creates a stock shortage error
func NewInsufficientStock(productID string, requested, available int64) *AppError {
	return &AppError{
		Code:       CodeInsufficientStock,
		Message:    "Insufficient stock",
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"product_id": productID,
			"requested":  requested,
			"available":  available,
		},
	}
}

// NewConcurrencyConflict creates an optimistic locking error
func NewConcurrencyConflict(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeConcurrencyConflict,
		Message:    "Record was modified concurrently. Please retry.",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewReservationMismatch is returned when a reservation key is reused with another quantity.
func NewReservationMismatch(refType, refID, productID string, existing, requested int64) *AppError {
	return &AppError{
		Code:       CodeReservationMismatch,
		Message:    "Reservation already exists with a different quantity",
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"ref_type":   refType,
			"ref_id":     refID,
			"product_id": productID,
			"existing":   existing,
			"requested":  requested,
		},
	}
}

// NewReservationClosed is returned when a reservation key was already
// released or finalized. A new hold needs a new reference.
func NewReservationClosed(refType, refID, productID string) *AppError {
	return &AppError{
		Code:       CodeReservationClosed,
		Message:    "Reservation was already released or finalized",
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"ref_type":   refType,
			"ref_id":     refID,
			"product_id": productID,
		},
	}
}

// NewStorage wraps a persistence failure. The cause is kept for logs only.
func NewStorage(err error) *AppError {
	return &AppError{
		Code:       CodeStorageFailure,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
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

// NewIdempotencyConflict creates error when operation is already in progress
func NewIdempotencyConflict(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotency,
		Message:    "Operation already in progress or completed",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"idempotency_key": key},
	}
}

// NewIdempotencyMismatch is returned when the same idempotency key is reused for
// a different request (different user/operation/body hash).
func NewIdempotencyMismatch(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotency,
		Message:    "Idempotency key mismatch",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"idempotency_key": key},
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewDuplicate creates a duplicate entry error (409)
func NewDuplicate(entity, field, value string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    fmt.Sprintf("%s with this %s already exists", entity, field),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "field": field, "value": value},
	}
}

// --- Helper functions ---

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

// IsConcurrencyConflict checks if error is CodeConcurrencyConflict
func IsConcurrencyConflict(err error) bool {
	return HasCode(err, CodeConcurrencyConflict)
}
