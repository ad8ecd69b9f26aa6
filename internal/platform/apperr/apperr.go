// Copyright (c) 2026 SimpleIdentity. All rights reserved.

/*
Package apperr defines the centralized error handling framework for SimpleIdentity.

It provides a rich error type that bridges the gap between low-level Directory/Storage
errors and high-level HTTP responses.

Architecture:

  - AppError: A struct containing machine-readable ErrorCode and user-friendly messages.
  - Taxonomy: InvalidCredentials, Locked, InvalidToken, PolicyRejected, StorageFailure.
  - Mapping: Explicit mapping from AppError to standard HTTP Status Codes.

Every error that leaves the service layer should be wrapped as an [AppError] to ensure
consistent API responses.
*/
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the canonical error type for the SimpleIdentity API.
//
// It carries an HTTP status code, a machine-readable code, a client-safe
// message, and an optional slice of field-level validation errors.
//
// # Security
//
// The Cause field is for server-side logging only and is never sent to clients
// to avoid leaking internal implementation details (e.g., SQL queries).
type AppError struct {
	// Code is a machine-readable error identifier (e.g. "INVALID_TOKEN", "LOCKED").
	Code string `json:"code"`
	// Message is a human-readable description safe to return to the client.
	Message string `json:"error"`
	// HTTPStatus is the HTTP response status code.
	HTTPStatus int `json:"-"`
	// Cause is the underlying error, used for server-side logging only.
	Cause error `json:"-"`
	// Details holds per-field validation errors for VALIDATION_ERROR responses.
	Details []FieldError `json:"details,omitempty"`
	// RetryAfterSeconds is set on LOCKED errors so the transport layer can
	// emit a Retry-After header.
	RetryAfterSeconds int `json:"retry_after_seconds,omitempty"`
}

// Machine-readable error codes used across the platform.
const (
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeLocked             = "LOCKED"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodePolicyRejected     = "POLICY_REJECTED"
	CodeStorageFailure     = "STORAGE_FAILURE"
	CodeNotFound           = "NOT_FOUND"
	CodeValidation         = "VALIDATION_ERROR"
)

// FieldError represents a single field-level validation failure.
type FieldError struct {
	// Field is the JSON field name that failed validation.
	Field string `json:"field"`
	// Message is the human-readable description of the failure.
	Message string `json:"message"`
}

// Error implements the error interface. It returns the client-safe message.
func (e *AppError) Error() string { return e.Message }

// Unwrap allows [errors.Is] and [errors.As] to traverse the cause chain.
func (e *AppError) Unwrap() error { return e.Cause }

// # Authentication Errors

// InvalidCredentials creates a 401 [AppError] for a failed credential check.
//
// The message is deliberately generic to prevent login enumeration.
func InvalidCredentials() *AppError {
	return &AppError{
		Code:       CodeInvalidCredentials,
		Message:    "Invalid Login ID or Password.",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// Locked creates a 423 [AppError] for a session inside its lockout window.
//
// remainingSeconds is how long the caller must wait before attempts are
// considered again.
func Locked(remainingSeconds int) *AppError {
	return &AppError{
		Code:              CodeLocked,
		Message:           fmt.Sprintf("Account is locked. Try again in %d seconds.", remainingSeconds),
		HTTPStatus:        http.StatusLocked,
		RetryAfterSeconds: remainingSeconds,
	}
}

// InvalidToken creates a 400 [AppError] for a reset token that failed either
// the cryptographic check or the stored-token equality check.
//
// The two failure layers are intentionally indistinguishable to the client.
func InvalidToken() *AppError {
	return &AppError{
		Code:       CodeInvalidToken,
		Message:    "Invalid token.",
		HTTPStatus: http.StatusBadRequest,
	}
}

// PolicyRejected creates a 422 [AppError] carrying the directory's password
// policy message verbatim — these messages are meant to be user-facing.
func PolicyRejected(message string) *AppError {
	return &AppError{
		Code:       CodePolicyRejected,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// # Client Errors (4xx)

// NotFound creates a 404 [AppError] for a named resource.
//
// # Security
//
// NotFound is internal vocabulary: the reset flow never surfaces it to the
// caller as distinct from InvalidToken or a silent success.
func NotFound(resource string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    resource + " not found",
		HTTPStatus: http.StatusNotFound,
	}
}

// Unauthorized creates a 401 [AppError].
func Unauthorized(msg string) *AppError {
	return &AppError{
		Code:       "UNAUTHORIZED",
		Message:    msg,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// Forbidden creates a 403 [AppError].
func Forbidden(msg string) *AppError {
	return &AppError{
		Code:       "FORBIDDEN",
		Message:    msg,
		HTTPStatus: http.StatusForbidden,
	}
}

// ValidationError creates a 400 [AppError] with optional per-field details.
func ValidationError(msg string, details ...FieldError) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    msg,
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

// # Server Errors (5xx)

// StorageFailure creates a 500 [AppError] for a directory/storage fault.
// The cause is stored for logging but the client only ever sees a generic
// message — no internal detail is surfaced.
func StorageFailure(cause error) *AppError {
	return &AppError{
		Code:       CodeStorageFailure,
		Message:    "Change password failed",
		HTTPStatus: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// Internal creates a 500 [AppError] wrapping an unexpected server-side error.
// The cause is stored for logging but is never sent to the client.
func Internal(cause error) *AppError {
	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// # Helpers

// IsAppError reports whether err (or any error in its chain) is an [*AppError].
func IsAppError(err error) bool {
	var ae *AppError
	return errors.As(err, &ae)
}

// As extracts the [*AppError] from err's chain. It returns nil if not found.
func As(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}

// IsCode reports whether err is an [*AppError] with the given code.
func IsCode(err error, code string) bool {
	ae := As(err)
	return ae != nil && ae.Code == code
}
