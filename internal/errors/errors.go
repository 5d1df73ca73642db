// Package errors provides structured error types for the split planner.
// All errors include a category, code, message, and retryable flag so callers
// can tell caller mistakes apart from collaborator failures.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by the layer that raised them.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryMetadata   ErrorCategory = "METADATA"
	ErrCategoryTopology   ErrorCategory = "TOPOLOGY"
	ErrCategoryPlanning   ErrorCategory = "PLANNING"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeNilArgument        = "NIL_ARGUMENT"
	CodeWrongHandleType    = "WRONG_HANDLE_TYPE"
	CodeWrongPartitionType = "WRONG_PARTITION_TYPE"
	CodeUnsupportedKeyType = "UNSUPPORTED_KEY_TYPE"
	CodeInvalidPredicate   = "INVALID_PREDICATE"
	CodeInvalidConfig      = "INVALID_CONFIG"
	CodeInvalidTable       = "INVALID_TABLE"

	// Metadata codes
	CodeTableNotFound       = "TABLE_NOT_FOUND"
	CodeMetadataFetchFailed = "METADATA_FETCH_FAILED"

	// Topology codes
	CodeReplicaLookupFailed = "REPLICA_LOOKUP_FAILED"
	CodeTokenRangeFailed    = "TOKEN_RANGE_FAILED"

	// Planning codes
	CodeCancelled = "CANCELLED"
	CodeTimeout   = "TIMEOUT"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// RingsplitError is the structured error type used throughout the planner.
type RingsplitError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *RingsplitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *RingsplitError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *RingsplitError) Is(target error) bool {
	var t *RingsplitError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new RingsplitError.
func New(category ErrorCategory, code, message string) *RingsplitError {
	return &RingsplitError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new RingsplitError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *RingsplitError {
	return &RingsplitError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *RingsplitError) WithDetails(details map[string]interface{}) *RingsplitError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
// The planner never retries; the flag tells the caller whether re-running may help.
func IsRetryable(err error) bool {
	var re *RingsplitError
	if errors.As(err, &re) {
		return re.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a RingsplitError.
func GetCategory(err error) ErrorCategory {
	var re *RingsplitError
	if errors.As(err, &re) {
		return re.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a RingsplitError.
func GetCode(err error) string {
	var re *RingsplitError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsValidation reports whether err is a caller/programming error.
func IsValidation(err error) bool {
	return GetCategory(err) == ErrCategoryValidation
}

func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryMetadata && code == CodeMetadataFetchFailed:
		return true
	case category == ErrCategoryTopology && code == CodeReplicaLookupFailed:
		return true
	case category == ErrCategoryTopology && code == CodeTokenRangeFailed:
		return true
	case category == ErrCategoryPlanning && code == CodeTimeout:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewValidationError(code, message string) *RingsplitError {
	return New(ErrCategoryValidation, code, message)
}

func NewMetadataError(code, message string, cause error) *RingsplitError {
	return Wrap(ErrCategoryMetadata, code, message, cause)
}

func NewTopologyError(code, message string, cause error) *RingsplitError {
	return Wrap(ErrCategoryTopology, code, message, cause)
}

func NewInternalError(message string, cause error) *RingsplitError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}

// FromContext converts a context error into a planning error.
// Returns nil when err is not a context error.
func FromContext(message string, err error) *RingsplitError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(ErrCategoryPlanning, CodeTimeout, message, err)
	case errors.Is(err, context.Canceled):
		return Wrap(ErrCategoryPlanning, CodeCancelled, message, err)
	default:
		return nil
	}
}
