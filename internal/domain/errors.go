package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Validation errors (malformed or missing input, reported inline)
	ErrorCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// State violations (illegal transition or edit on a non-editable settlement)
	ErrorCodeStateViolation ErrorCode = "STATE_VIOLATION"

	// Lost optimistic-lock race; caller must reload and retry
	ErrorCodeConcurrentModification ErrorCode = "CONCURRENT_MODIFICATION"

	// Unknown entity id
	ErrorCodeNotFound ErrorCode = "NOT_FOUND"

	// Downstream catalog/accounting unavailable; safe to retry
	ErrorCodeTransientFailure ErrorCode = "TRANSIENT_FAILURE"

	// Internal errors
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail field to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// NewValidationError creates a VALIDATION_FAILED error for a specific field
func NewValidationError(field, message string) *DomainError {
	return NewDomainError(ErrorCodeValidationFailed, message).WithDetail("field", field)
}

// NewStateViolation creates a STATE_VIOLATION error
func NewStateViolation(message string) *DomainError {
	return NewDomainError(ErrorCodeStateViolation, message)
}

// NewNotFound creates a NOT_FOUND error for an entity
func NewNotFound(entity, id string) *DomainError {
	return NewDomainError(ErrorCodeNotFound, fmt.Sprintf("%s not found", entity)).
		WithDetail("entity", entity).
		WithDetail("id", id)
}

// NewConcurrentModification creates a CONCURRENT_MODIFICATION error
func NewConcurrentModification(entity, id string) *DomainError {
	return NewDomainError(ErrorCodeConcurrentModification,
		fmt.Sprintf("%s was modified concurrently, reload and retry", entity)).
		WithDetail("entity", entity).
		WithDetail("id", id)
}

// NewTransientFailure wraps a downstream failure that is safe to retry
func NewTransientFailure(message string, err error) *DomainError {
	return WrapError(ErrorCodeTransientFailure, message, err)
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return GetErrorCode(err) == ErrorCodeValidationFailed
}

// IsStateViolation checks if an error is a state violation
func IsStateViolation(err error) bool {
	return GetErrorCode(err) == ErrorCodeStateViolation
}

// IsConcurrentModification checks if an error is a lost optimistic-lock race
func IsConcurrentModification(err error) bool {
	return GetErrorCode(err) == ErrorCodeConcurrentModification
}

// IsNotFoundError checks if an error represents a "not found" condition
func IsNotFoundError(err error) bool {
	return GetErrorCode(err) == ErrorCodeNotFound
}

// IsTransientFailure checks if an error is retriable
func IsTransientFailure(err error) bool {
	return GetErrorCode(err) == ErrorCodeTransientFailure
}
