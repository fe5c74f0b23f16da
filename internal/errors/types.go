// Package errors provides the structured error taxonomy used across kiln.
//
// Errors are classified by ErrorType. Validation and configuration errors are
// "silent": the CLI shows their message to the user without a stack or
// detail dump, because they describe an expected user-facing failure rather
// than a bug. Build errors carry optional file/line/column context parsed
// from the pipeline output.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeBuild      ErrorType = "build"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeInternal   ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeUnknownCommand   = "ERR_UNKNOWN_COMMAND"
	ErrCodeMissingOption    = "ERR_MISSING_OPTION"
	ErrCodeInvalidOption    = "ERR_INVALID_OPTION"
	ErrCodeOutsideProject   = "ERR_OUTSIDE_PROJECT"
	ErrCodeInsideProject    = "ERR_INSIDE_PROJECT"
	ErrCodeUnsafeOutputPath = "ERR_UNSAFE_OUTPUT_PATH"
	ErrCodeUnknownWatcher   = "ERR_UNKNOWN_WATCHER"
	ErrCodeSSLFiles         = "ERR_SSL_FILES"
	ErrCodeBind             = "ERR_BIND"
	ErrCodeBuildFailed      = "ERR_BUILD_FAILED"
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeInternalError    = "ERR_INTERNAL"
)

// Error is a structured error type with context.
type Error struct {
	Type    ErrorType
	Code    string
	Message string
	Cause   error
	Context map[string]interface{}
	File    string
	Line    int
	Column  int
	// Silent errors are reported to the user without stack or cause detail.
	Silent bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string

	if e.File != "" {
		location := e.File
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
			if e.Column > 0 {
				location += fmt.Sprintf(":%d", e.Column)
			}
		}
		parts = append(parts, location)
	}

	parts = append(parts, e.Message)
	result := strings.Join(parts, " ")

	if e.Cause != nil && !e.Silent {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// Location returns the file:line:column triple or "" when unknown.
func (e *Error) Location() string {
	if e.File == "" {
		return ""
	}
	if e.Line == 0 {
		return e.File
	}
	if e.Column == 0 {
		return fmt.Sprintf("%s:%d", e.File, e.Line)
	}

	return fmt.Sprintf("%s:%d:%d", e.File, e.Line, e.Column)
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithLocation adds file location information.
func (e *Error) WithLocation(file string, line, column int) *Error {
	e.File = file
	e.Line = line
	e.Column = column

	return e
}

// NewSilentError creates a user-facing error shown without stack or detail.
func NewSilentError(code, message string) *Error {
	return &Error{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
		Silent:  true,
	}
}

// NewConfigError creates a fatal configuration or safety error.
func NewConfigError(code, message string) *Error {
	return &Error{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
		Silent:  true,
	}
}

// NewBuildError creates a build error.
func NewBuildError(code, message string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeBuild,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsSilent reports whether err should be shown without stack or detail.
func IsSilent(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Silent
	}

	return false
}

// IsBuildError checks if an error is build-related.
func IsBuildError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == ErrorTypeBuild
	}

	return false
}

// IsConfigError checks if an error is a configuration or safety error.
func IsConfigError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == ErrorTypeConfig
	}

	return false
}

// HasCode reports whether err is a kiln Error carrying code.
func HasCode(err error, code string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}

	return false
}
