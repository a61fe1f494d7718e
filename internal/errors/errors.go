/*
Copyright 2025 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package errors provides the structured error type used at every API
// boundary of the artifact manager: Not Found, Already Exists, Permission
// Denied, Validation, Precondition, and Backend failures each carry a
// distinct ErrorType and HTTP status code.
package errors

import (
	"fmt"
	"net/http"
)

// ErrorType classifies an AppError for API-boundary mapping.
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeAuth        ErrorType = "permission_denied"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeConflict    ErrorType = "already_exists"
	ErrorTypePrecondition ErrorType = "precondition"
	ErrorTypeTimeout     ErrorType = "timeout"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeDatabase    ErrorType = "database"
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeInternal    ErrorType = "internal"
)

var statusCodes = map[ErrorType]int{
	ErrorTypeValidation:   http.StatusBadRequest,
	ErrorTypeAuth:         http.StatusForbidden,
	ErrorTypeNotFound:     http.StatusNotFound,
	ErrorTypeConflict:     http.StatusConflict,
	ErrorTypePrecondition: http.StatusPreconditionFailed,
	ErrorTypeTimeout:      http.StatusRequestTimeout,
	ErrorTypeRateLimit:    http.StatusTooManyRequests,
	ErrorTypeDatabase:     http.StatusInternalServerError,
	ErrorTypeNetwork:      http.StatusInternalServerError,
	ErrorTypeInternal:     http.StatusInternalServerError,
}

// AppError is the structured error carried across every package boundary
// in this module. It is never constructed directly outside of this
// package's constructors.
type AppError struct {
	Type       ErrorType
	Message    string
	Details    string
	Cause      error
	StatusCode int
}

// New creates an AppError of the given type with no cause.
func New(t ErrorType, message string) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		StatusCode: statusCodes[t],
	}
}

// Newf creates an AppError with a formatted message.
func Newf(t ErrorType, format string, args ...interface{}) *AppError {
	return New(t, fmt.Sprintf(format, args...))
}

// Wrap creates an AppError of the given type around a causing error.
func Wrap(cause error, t ErrorType, message string) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		Cause:      cause,
		StatusCode: statusCodes[t],
	}
}

// Wrapf creates an AppError with a formatted message around a causing error.
func Wrapf(cause error, t ErrorType, format string, args ...interface{}) *AppError {
	return Wrap(cause, t, fmt.Sprintf(format, args...))
}

// WithDetails sets Details in place and returns the receiver for chaining.
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithDetailsf sets a formatted Details in place and returns the receiver.
func (e *AppError) WithDetailsf(format string, args ...interface{}) *AppError {
	e.Details = fmt.Sprintf(format, args...)
	return e
}

func (e *AppError) Error() string {
	s := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Details != "" {
		s = fmt.Sprintf("%s (%s)", s, e.Details)
	}
	return s
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target shares this error's Type, so callers can use
// errors.Is(err, errors.New(ErrorTypeNotFound, "")) as a type test.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// NewValidationError builds a validation AppError.
func NewValidationError(message string) *AppError {
	return New(ErrorTypeValidation, message)
}

// NewValidationErrorf builds a formatted validation AppError.
func NewValidationErrorf(format string, args ...interface{}) *AppError {
	return Newf(ErrorTypeValidation, format, args...)
}

// NewNotFoundError builds a "<resource> not found" AppError.
func NewNotFoundError(resource string) *AppError {
	return New(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource))
}

// NewAlreadyExistsError builds an "<resource> already exists" AppError.
func NewAlreadyExistsError(resource string) *AppError {
	return New(ErrorTypeConflict, fmt.Sprintf("%s already exists", resource))
}

// NewPermissionDeniedError builds a permission-denied AppError for an
// operation a user is not authorized to perform.
func NewPermissionDeniedError(operation string) *AppError {
	return Newf(ErrorTypeAuth, "permission denied for operation %q", operation)
}

// NewPreconditionError builds a precondition-failed AppError, used for
// missing workspace context, absent staging, uncommitted parents, and
// non-persistent workspaces.
func NewPreconditionError(message string) *AppError {
	return New(ErrorTypePrecondition, message)
}

// NewDatabaseError wraps a backend database failure.
func NewDatabaseError(operation string, cause error) *AppError {
	return Wrap(cause, ErrorTypeDatabase, fmt.Sprintf("database operation failed: %s", operation))
}

// NewBackendError wraps a generic backend (object store / vector DB) failure.
func NewBackendError(component string, cause error) *AppError {
	return Wrap(cause, ErrorTypeDatabase, fmt.Sprintf("%s operation failed", component))
}

// StatusCodeFor returns the HTTP status code for an error type, defaulting
// to 500 for unknown types.
func StatusCodeFor(t ErrorType) int {
	if code, ok := statusCodes[t]; ok {
		return code
	}
	return http.StatusInternalServerError
}
