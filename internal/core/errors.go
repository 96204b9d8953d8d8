package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors for handling decisions.
type ErrorCategory string

const (
	ErrCatValidation ErrorCategory = "validation" // Invalid input
	ErrCatExecution  ErrorCategory = "execution"  // Terminal phase failure
	ErrCatRetryable  ErrorCategory = "retryable"  // Step can be re-invoked
	ErrCatState      ErrorCategory = "state"      // Halted or conflicting task state
	ErrCatNotFound   ErrorCategory = "not_found"  // Resource not found
	ErrCatInternal   ErrorCategory = "internal"   // Unexpected internal error
)

// DomainError represents a structured error from the domain layer.
type DomainError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Retryable bool
	Cause     error
	Details   map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause wraps an underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail adds contextual information.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ErrValidation creates a validation error.
func ErrValidation(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatValidation,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrTaskNotFound creates a not found error for a task id.
func ErrTaskNotFound(id TaskID) *DomainError {
	return &DomainError{
		Category:  ErrCatNotFound,
		Code:      CodeTaskNotFound,
		Message:   fmt.Sprintf("task not found: %s", id),
		Retryable: false,
	}
}

// ErrTaskHalted creates an error for execution attempted on a halted task.
// The task must be externally reset to pending or active before it can run.
func ErrTaskHalted(id TaskID, status TaskStatus) *DomainError {
	return &DomainError{
		Category:  ErrCatState,
		Code:      CodeTaskHalted,
		Message:   fmt.Sprintf("task %s is %s and cannot execute", id, status),
		Retryable: false,
		Details:   map[string]interface{}{"status": string(status)},
	}
}

// ErrStepRetryable creates a retryable step error carrying the
// classification that stopped the run. The caller decides whether and
// when to re-invoke.
func ErrStepRetryable(cat Category, diagnostic string) *DomainError {
	return &DomainError{
		Category:  ErrCatRetryable,
		Code:      cat.Tag(),
		Message:   diagnostic,
		Retryable: true,
	}
}

// ErrStepFatal creates a terminal step failure error.
func ErrStepFatal(diagnostic string) *DomainError {
	return &DomainError{
		Category:  ErrCatExecution,
		Code:      CodeStepFailed,
		Message:   diagnostic,
		Retryable: false,
	}
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Retryable
	}
	return false
}

// GetCategory extracts the error category.
func GetCategory(err error) ErrorCategory {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Category
	}
	return ErrCatInternal
}

// IsCategory checks if an error belongs to a category.
func IsCategory(err error, cat ErrorCategory) bool {
	return GetCategory(err) == cat
}

// Predefined error codes
const (
	CodeTaskNotFound   = "TASK_NOT_FOUND"
	CodeTaskHalted     = "TASK_HALTED"
	CodeStepFailed     = "STEP_FAILED"
	CodeTaskIDRequired = "TASK_ID_REQUIRED"
	CodeInvalidStatus  = "INVALID_STATUS"
	CodeInvalidVariant = "INVALID_VARIANT"
	CodeStepOutOfRange = "STEP_OUT_OF_RANGE"
	CodeInvalidArgs    = "INVALID_TOOL_ARGS"
	CodeStoreFailure   = "STORE_FAILURE"
)
