// Package errors provides standardized error handling for the Dataverse agent.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeAuthUnavailable        ErrorCode = "AUTH_UNAVAILABLE"
	ErrCodeMetadataUnavailable    ErrorCode = "METADATA_UNAVAILABLE"
	ErrCodeFetchFailed            ErrorCode = "FETCH_FAILED"
	ErrCodeTableNotFound          ErrorCode = "TABLE_NOT_FOUND"
	ErrCodeAggregateUnsatisfiable ErrorCode = "AGGREGATE_UNSATISFIABLE"

	ErrCodeRegistryNotFound         ErrorCode = "REGISTRY_NOT_FOUND"
	ErrCodeRegistryValidationFailed ErrorCode = "REGISTRY_VALIDATION_FAILED"

	ErrCodeCompletionFailed  ErrorCode = "COMPLETION_FAILED"
	ErrCodeCompletionTimeout ErrorCode = "COMPLETION_TIMEOUT"

	ErrCodeSearchConnectionFailed ErrorCode = "SEARCH_CONNECTION_FAILED"
	ErrCodeSearchUploadFailed     ErrorCode = "SEARCH_UPLOAD_FAILED"

	ErrCodeCacheUnavailable ErrorCode = "CACHE_UNAVAILABLE"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewAuthUnavailableError signals that no access token could be acquired.
// Callers degrade to empty retrieval rather than aborting.
func NewAuthUnavailableError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuthUnavailable,
		Message:   "Access token unavailable",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewMetadataUnavailableError signals that entity metadata could not be read.
func NewMetadataUnavailableError(table string, err error) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &StandardError{
		Code:      ErrCodeMetadataUnavailable,
		Message:   "Entity metadata unavailable",
		Details:   details,
		Retryable: true,
		Metadata:  map[string]interface{}{"table": table},
		Timestamp: time.Now().UTC(),
	}
}

// NewFetchFailedError wraps a non-200 data fetch.
func NewFetchFailedError(table string, status int, body string) *StandardError {
	return &StandardError{
		Code:      ErrCodeFetchFailed,
		Message:   "Data fetch failed",
		Details:   fmt.Sprintf("status: %d, body: %s", status, body),
		Retryable: isTransientStatus(status),
		Metadata:  map[string]interface{}{"table": table, "status": status},
		Timestamp: time.Now().UTC(),
	}
}

// NewTableNotFoundError marks a 404 on a resolved collection endpoint.
func NewTableNotFoundError(table string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTableNotFound,
		Message:   "Table not found",
		Details:   fmt.Sprintf("table: %s, check the logical name", table),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAggregateUnsatisfiableError marks an aggregate intent with no usable field.
func NewAggregateUnsatisfiableError(table, op string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAggregateUnsatisfiable,
		Message:   "No numeric field available for aggregate",
		Details:   fmt.Sprintf("table: %s, op: %s", table, op),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRegistryNotFoundError marks a missing table registry file.
func NewRegistryNotFoundError(path string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRegistryNotFound,
		Message:   "Table registry not found",
		Details:   fmt.Sprintf("path: %s", path),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRegistryValidationFailedError marks a registry file that failed schema validation.
func NewRegistryValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRegistryValidationFailed,
		Message:   "Table registry validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCompletionFailedError wraps a completion API error.
func NewCompletionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCompletionFailed,
		Message:   "Completion API error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCompletionTimeoutError marks a completion call that exceeded its deadline.
func NewCompletionTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeCompletionTimeout,
		Message:   "Completion API timeout",
		Details:   "call exceeded configured timeout",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchConnectionFailedError wraps an Elasticsearch connection error.
func NewSearchConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchConnectionFailed,
		Message:   "Search cluster connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchUploadFailedError wraps a failed document upload.
func NewSearchUploadFailedError(index string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchUploadFailed,
		Message:   "Search document upload failed",
		Details:   err.Error(),
		Retryable: true,
		Metadata:  map[string]interface{}{"index": index},
		Timestamp: time.Now().UTC(),
	}
}

// NewCacheUnavailableError wraps a metadata cache backend error.
func NewCacheUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCacheUnavailable,
		Message:   "Metadata cache backend error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// CodeOf returns the error code of a StandardError, or "" for other errors.
func CodeOf(err error) ErrorCode {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsCode reports whether err is a StandardError with the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "AUTH"):
		return "AUTH"
	case strings.Contains(codeStr, "METADATA") || strings.Contains(codeStr, "CACHE"):
		return "METADATA"
	case strings.Contains(codeStr, "FETCH") || strings.Contains(codeStr, "TABLE") || strings.Contains(codeStr, "AGGREGATE"):
		return "RETRIEVAL"
	case strings.Contains(codeStr, "REGISTRY"):
		return "CONFIG"
	case strings.Contains(codeStr, "COMPLETION"):
		return "AI"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	default:
		return "OTHER"
	}
}

func isTransientStatus(status int) bool {
	switch status {
	case 500, 502, 503, 504, 429:
		return true
	default:
		return false
	}
}
