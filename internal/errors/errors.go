package errors

import (
	"errors"
	"fmt"
	"time"
)

// ============================================================================
// ERROR TYPES AND CLASSIFICATION
// ============================================================================

// Type defines the category of error for proper handling and response.
type Type string

const (
	// TypeStore marks failures originating in the on-device entry store.
	TypeStore Type = "STORE"
	// TypeRepository marks versioning-invariant violations and wrapped
	// store failures surfaced by the knowledge repository.
	TypeRepository Type = "REPOSITORY"
	// TypeSync marks remote-store and connectivity failures raised by the
	// sync engine. Sync failures are treated uniformly as retryable.
	TypeSync Type = "SYNC"
	// TypeValidation marks rejected input before it reaches storage.
	TypeValidation Type = "VALIDATION"
	// TypeConfig marks configuration loading or validation failures.
	TypeConfig Type = "CONFIG"
)

// Severity defines the severity level for logging and monitoring.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// ============================================================================
// ERROR STRUCTURE
// ============================================================================

// Error is the single error type used across all engine layers.
type Error struct {
	Type    Type   `json:"type"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`

	// Context of the failed operation.
	Operation string `json:"operation,omitempty"`
	UserID    string `json:"userId,omitempty"`
	Field     string `json:"field,omitempty"`

	Severity   Severity      `json:"severity"`
	Retryable  bool          `json:"retryable"`
	RetryAfter time.Duration `json:"retryAfter,omitempty"`
	Cause      error         `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s:%s] %s: %s", e.Type, e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// Unwrap allows errors.Is and errors.As to reach the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// ============================================================================
// BUILDER
// ============================================================================

// Builder provides a fluent interface for constructing Error instances.
type Builder struct {
	err *Error
}

// New creates an error builder with the given type, code and message.
func New(t Type, code Code, message string) *Builder {
	return &Builder{err: &Error{
		Type:     t,
		Code:     code,
		Message:  message,
		Severity: SeverityMedium,
	}}
}

// WithDetails adds free-form context to the error.
func (b *Builder) WithDetails(details string) *Builder {
	b.err.Details = details
	return b
}

// WithOperation names the operation that failed.
func (b *Builder) WithOperation(op string) *Builder {
	b.err.Operation = op
	return b
}

// WithUser attaches the owning user.
func (b *Builder) WithUser(userID string) *Builder {
	b.err.UserID = userID
	return b
}

// WithField attaches the field identifier being operated on.
func (b *Builder) WithField(field string) *Builder {
	b.err.Field = field
	return b
}

// WithSeverity sets the error severity.
func (b *Builder) WithSeverity(s Severity) *Builder {
	b.err.Severity = s
	return b
}

// WithRetryable marks whether the operation can be retried.
func (b *Builder) WithRetryable(retryable bool) *Builder {
	b.err.Retryable = retryable
	return b
}

// WithRetryAfter sets the suggested wait before the next attempt and
// implicitly marks the error retryable.
func (b *Builder) WithRetryAfter(d time.Duration) *Builder {
	b.err.RetryAfter = d
	b.err.Retryable = true
	return b
}

// WithCause attaches the underlying error.
func (b *Builder) WithCause(cause error) *Builder {
	b.err.Cause = cause
	return b
}

// Build returns the constructed error.
func (b *Builder) Build() *Error {
	return b.err
}

// ============================================================================
// FACTORY HELPERS
// ============================================================================

// Store creates a store-layer error builder.
func Store(code Code, message string) *Builder {
	return New(TypeStore, code, message).WithSeverity(SeverityHigh)
}

// Repository creates a repository-layer error builder.
func Repository(code Code, message string) *Builder {
	return New(TypeRepository, code, message)
}

// NotFound creates an entry-not-found error builder.
func NotFound(message string) *Builder {
	return New(TypeRepository, CodeEntryNotFound, message).WithSeverity(SeverityLow)
}

// Sync creates a sync-layer error builder. Sync failures default to
// retryable because the engine does not distinguish transient network
// failures from permanent remote rejections.
func Sync(code Code, message string) *Builder {
	return New(TypeSync, code, message).WithRetryable(true)
}

// Validation creates a validation error builder.
func Validation(code Code, message string) *Builder {
	return New(TypeValidation, code, message).WithSeverity(SeverityLow)
}

// Config creates a configuration error builder.
func Config(code Code, message string) *Builder {
	return New(TypeConfig, code, message).WithSeverity(SeverityCritical)
}

// ============================================================================
// INSPECTION HELPERS
// ============================================================================

// CodeOf extracts the machine code from an error, or "" if it is not ours.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsNotFound reports whether err represents a missing entry.
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeEntryNotFound
}

// IsNotInitialized reports whether err is the store's pre-initialize guard.
func IsNotInitialized(err error) bool {
	return CodeOf(err) == CodeStoreNotInitialized
}

// IsRetryable reports whether the failed operation may be retried.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}
