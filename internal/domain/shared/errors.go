package shared

import (
	"errors"
	"fmt"
)

// Error codes shared across the fee domain
const (
	CodeNotFound           = "NOT_FOUND"
	CodeBadRequest         = "BAD_REQUEST"
	CodeConflict           = "CONFLICT"
	CodeBadGateway         = "BAD_GATEWAY"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeOptimisticLock     = "OPTIMISTIC_LOCK_ERROR"
	CodeInternal           = "INTERNAL"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError with the same code, so
// errors.Is(err, shared.ErrNotFound) matches any not-found error.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WrapDomainError creates a domain error that keeps the underlying cause
func WrapDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewNotFoundError creates a NOT_FOUND error with a formatted message
func NewNotFoundError(format string, args ...any) *DomainError {
	return NewDomainError(CodeNotFound, fmt.Sprintf(format, args...))
}

// NewBadRequestError creates a BAD_REQUEST error with a formatted message
func NewBadRequestError(format string, args ...any) *DomainError {
	return NewDomainError(CodeBadRequest, fmt.Sprintf(format, args...))
}

// NewConflictError creates a CONFLICT error with a formatted message
func NewConflictError(format string, args ...any) *DomainError {
	return NewDomainError(CodeConflict, fmt.Sprintf(format, args...))
}

// NewBadGatewayError creates a BAD_GATEWAY error wrapping an upstream failure
func NewBadGatewayError(err error, format string, args ...any) *DomainError {
	return WrapDomainError(CodeBadGateway, fmt.Sprintf(format, args...), err)
}

// NewServiceUnavailableError creates a SERVICE_UNAVAILABLE error wrapping an upstream failure
func NewServiceUnavailableError(err error, format string, args ...any) *DomainError {
	return WrapDomainError(CodeServiceUnavailable, fmt.Sprintf(format, args...), err)
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrBadRequest          = NewDomainError(CodeBadRequest, "Invalid request")
	ErrConflict            = NewDomainError(CodeConflict, "Resource already exists")
	ErrBadGateway          = NewDomainError(CodeBadGateway, "Upstream service failed")
	ErrServiceUnavailable  = NewDomainError(CodeServiceUnavailable, "Upstream service unavailable")
	ErrConcurrencyConflict = NewDomainError(CodeOptimisticLock, "Resource was modified by another process")
	ErrInternal            = NewDomainError(CodeInternal, "Internal server error")
)
