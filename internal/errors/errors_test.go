package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestRingsplitError_Error(t *testing.T) {
	err := New(ErrCategoryValidation, CodeNilArgument, "tableHandle is nil")
	expected := "[VALIDATION:NIL_ARGUMENT] tableHandle is nil"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestRingsplitError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrCategoryTopology, CodeTokenRangeFailed, "token ranges unavailable", cause)
	expected := "[TOPOLOGY:TOKEN_RANGE_FAILED] token ranges unavailable: connection refused"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestRingsplitError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ErrCategoryMetadata, CodeMetadataFetchFailed, "catalog down", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestRingsplitError_Is(t *testing.T) {
	err1 := New(ErrCategoryValidation, CodeWrongHandleType, "first")
	err2 := New(ErrCategoryValidation, CodeWrongHandleType, "second")
	err3 := New(ErrCategoryValidation, CodeWrongPartitionType, "different code")

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		category  ErrorCategory
		code      string
		retryable bool
	}{
		{ErrCategoryMetadata, CodeMetadataFetchFailed, true},
		{ErrCategoryMetadata, CodeTableNotFound, false},
		{ErrCategoryTopology, CodeReplicaLookupFailed, true},
		{ErrCategoryTopology, CodeTokenRangeFailed, true},
		{ErrCategoryPlanning, CodeTimeout, true},
		{ErrCategoryPlanning, CodeCancelled, false},
		{ErrCategoryValidation, CodeUnsupportedKeyType, false},
		{ErrCategoryInternal, CodeUnexpected, false},
	}

	for _, tt := range tests {
		err := New(tt.category, tt.code, "test")
		if IsRetryable(err) != tt.retryable {
			t.Errorf("%s:%s retryable=%v, want %v", tt.category, tt.code, IsRetryable(err), tt.retryable)
		}
	}
}

func TestGetCategoryAndCode(t *testing.T) {
	err := fmt.Errorf("planner: %w", NewValidationError(CodeUnsupportedKeyType, "bad literal"))
	if GetCategory(err) != ErrCategoryValidation {
		t.Errorf("got %q, want %q", GetCategory(err), ErrCategoryValidation)
	}
	if GetCode(err) != CodeUnsupportedKeyType {
		t.Errorf("got %q, want %q", GetCode(err), CodeUnsupportedKeyType)
	}
	if !IsValidation(err) {
		t.Error("wrapped validation error should be detected")
	}
	if GetCategory(fmt.Errorf("plain error")) != "" || GetCode(fmt.Errorf("plain error")) != "" {
		t.Error("plain errors have no category or code")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(ErrCategoryValidation, CodeUnsupportedKeyType, "bad literal")
	detailed := err.WithDetails(map[string]interface{}{"column": "a"})

	if detailed.Details["column"] != "a" {
		t.Error("WithDetails should set details")
	}
	if err.Details != nil {
		t.Error("WithDetails should not modify original")
	}
}

func TestFromContext(t *testing.T) {
	if e := FromContext("planning", context.DeadlineExceeded); e == nil || e.Code != CodeTimeout || !e.Retryable {
		t.Errorf("deadline should map to retryable TIMEOUT, got %v", e)
	}
	if e := FromContext("planning", fmt.Errorf("wrapped: %w", context.Canceled)); e == nil || e.Code != CodeCancelled {
		t.Errorf("cancel should map to CANCELLED, got %v", e)
	}
	if e := FromContext("planning", fmt.Errorf("other")); e != nil {
		t.Errorf("non-context error should map to nil, got %v", e)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	cause := fmt.Errorf("io error")

	m := NewMetadataError(CodeMetadataFetchFailed, "catalog down", cause)
	if m.Category != ErrCategoryMetadata || !errors.Is(m, cause) {
		t.Error("NewMetadataError mismatch")
	}

	tp := NewTopologyError(CodeReplicaLookupFailed, "no ring", cause)
	if tp.Category != ErrCategoryTopology || !tp.Retryable {
		t.Error("NewTopologyError mismatch")
	}

	i := NewInternalError("unexpected", cause)
	if i.Category != ErrCategoryInternal || i.Code != CodeUnexpected {
		t.Error("NewInternalError mismatch")
	}
}
