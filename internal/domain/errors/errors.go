// Package errors holds the failure categories shared by the settlement engine,
// its adapters and the HTTP layer.
package errors

import (
	"errors"
	"fmt"
)

// Failure categories every DomainError unwraps to
var (
	ErrNotFound           = errors.New("resource not found")
	ErrAlreadyExists      = errors.New("resource already exists")
	ErrInvalidInput       = errors.New("invalid input")
	ErrConflict           = errors.New("conflict")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// DomainError carries a stable code for API responses alongside the category
// it unwraps to. Retryable marks failures worth another attempt.
type DomainError struct {
	Err       error
	Code      string
	Message   string
	Details   map[string]interface{}
	Retryable bool
}

func (e *DomainError) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	}
	return e.Code
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithDetails replaces the error's details
func (e *DomainError) WithDetails(details map[string]interface{}) *DomainError {
	e.Details = details
	return e
}

// NotFoundError reports a missing resource, coded <RESOURCE>_NOT_FOUND
func NotFoundError(resource string) *DomainError {
	return &DomainError{
		Err:     ErrNotFound,
		Code:    resource + "_NOT_FOUND",
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// AlreadyExistsError reports a duplicate id
func AlreadyExistsError(resource string) *DomainError {
	return &DomainError{
		Err:     ErrAlreadyExists,
		Code:    resource + "_ALREADY_EXISTS",
		Message: fmt.Sprintf("%s already exists", resource),
	}
}

// ValidationError rejects one input field before any side effect
func ValidationError(field, message string) *DomainError {
	return &DomainError{
		Err:     ErrInvalidInput,
		Code:    "VALIDATION_ERROR",
		Message: message,
		Details: map[string]interface{}{"field": field},
	}
}

func ConflictError(resource, reason string) *DomainError {
	return &DomainError{
		Err:     ErrConflict,
		Code:    "CONFLICT",
		Message: fmt.Sprintf("conflict with %s: %s", resource, reason),
	}
}

// ServiceUnavailableError wraps a collaborator outage; always retryable
func ServiceUnavailableError(service string, cause error) *DomainError {
	de := &DomainError{
		Err:       ErrServiceUnavailable,
		Code:      "SERVICE_UNAVAILABLE",
		Message:   fmt.Sprintf("%s service is temporarily unavailable", service),
		Retryable: true,
	}
	if cause != nil {
		de.Details = map[string]interface{}{"cause": cause.Error()}
	}
	return de
}

func IsNotFound(err error) bool      { return errors.Is(err, ErrNotFound) }
func IsAlreadyExists(err error) bool { return errors.Is(err, ErrAlreadyExists) }
func IsInvalidInput(err error) bool  { return errors.Is(err, ErrInvalidInput) }
func IsConflict(err error) bool      { return errors.Is(err, ErrConflict) }

// GetErrorCode returns the outermost DomainError code, or UNKNOWN_ERROR
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return "UNKNOWN_ERROR"
}

func GetErrorDetails(err error) map[string]interface{} {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Details
	}
	return nil
}

// ShouldRetry reports whether the outermost DomainError is retryable
func ShouldRetry(err error) bool {
	var de *DomainError
	return errors.As(err, &de) && de.Retryable
}
