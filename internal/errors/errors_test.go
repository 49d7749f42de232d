package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Creation(t *testing.T) {
	tests := []struct {
		name     string
		builder  func() *Error
		expected *Error
	}{
		{
			name: "store write error",
			builder: func() *Error {
				return Store(CodeStoreWrite, "failed to persist entry").
					WithOperation("Put").
					Build()
			},
			expected: &Error{
				Type:      TypeStore,
				Code:      CodeStoreWrite,
				Message:   "failed to persist entry",
				Operation: "Put",
				Severity:  SeverityHigh,
				Retryable: false,
			},
		},
		{
			name: "entry not found",
			builder: func() *Error {
				return NotFound("entry does not exist").
					WithUser("user-1").
					WithField("avatar_name").
					Build()
			},
			expected: &Error{
				Type:      TypeRepository,
				Code:      CodeEntryNotFound,
				Message:   "entry does not exist",
				UserID:    "user-1",
				Field:     "avatar_name",
				Severity:  SeverityLow,
				Retryable: false,
			},
		},
		{
			name: "retryable sync error",
			builder: func() *Error {
				return Sync(CodeRemoteFailed, "remote store rejected write").
					WithRetryAfter(2 * time.Second).
					Build()
			},
			expected: &Error{
				Type:       TypeSync,
				Code:       CodeRemoteFailed,
				Message:    "remote store rejected write",
				Severity:   SeverityMedium,
				Retryable:  true,
				RetryAfter: 2 * time.Second,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.builder()

			assert.Equal(t, tt.expected.Type, err.Type)
			assert.Equal(t, tt.expected.Code, err.Code)
			assert.Equal(t, tt.expected.Message, err.Message)
			assert.Equal(t, tt.expected.Operation, err.Operation)
			assert.Equal(t, tt.expected.UserID, err.UserID)
			assert.Equal(t, tt.expected.Field, err.Field)
			assert.Equal(t, tt.expected.Severity, err.Severity)
			assert.Equal(t, tt.expected.Retryable, err.Retryable)
			assert.Equal(t, tt.expected.RetryAfter, err.RetryAfter)
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Store(CodeStoreWrite, "write failed").WithCause(cause).Build()

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "STORE_WRITE")
}

func TestError_Wrapped(t *testing.T) {
	inner := NotFound("no such entry").Build()
	outer := fmt.Errorf("resolving conflict: %w", inner)

	assert.True(t, IsNotFound(outer))
	assert.Equal(t, CodeEntryNotFound, CodeOf(outer))
}

func TestInspectionHelpers(t *testing.T) {
	assert.False(t, IsNotFound(nil))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))

	notInit := Store(CodeStoreNotInitialized, "store not initialized").Build()
	assert.True(t, IsNotInitialized(notInit))

	retryable := Sync(CodeCircuitOpen, "circuit open").Build()
	assert.True(t, IsRetryable(retryable))
}

func TestError_DetailsFormatting(t *testing.T) {
	err := Store(CodeStoreQuery, "query failed").
		WithDetails("predicate scan aborted").
		Build()

	assert.Equal(t, "[STORE:STORE_QUERY] query failed: predicate scan aborted", err.Error())
}
