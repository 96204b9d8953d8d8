package core

import "strings"

// Category is the classification of a raw oracle outcome.
type Category string

const (
	CategorySuccess            Category = "success"
	CategoryStepCompleted      Category = "step_completed"
	CategoryStepRejected       Category = "step_rejected"
	CategoryFailure            Category = "failure"
	CategoryTimeout            Category = "timeout"
	CategoryNetworkError       Category = "network_error"
	CategoryContextLengthError Category = "context_length_error"
	CategoryRateLimitError     Category = "rate_limit_error"
	CategoryEmptyResponse      Category = "empty_response"
	CategoryUnknown            Category = "unknown"
)

// Retryable reports whether the category leaves the task retryable.
func (c Category) Retryable() bool {
	switch c {
	case CategoryTimeout, CategoryNetworkError, CategoryContextLengthError,
		CategoryRateLimitError, CategoryEmptyResponse, CategoryUnknown:
		return true
	default:
		return false
	}
}

// Tag returns the diagnostic prefix persisted into step results
// for this category, e.g. "TIMEOUT" or "NETWORK_ERROR".
func (c Category) Tag() string {
	return strings.ToUpper(string(c))
}

// Classify maps a raw oracle outcome to a Category. It never fails:
// malformed input classifies as CategoryUnknown.
//
// Structured completion/rejection signals take precedence over the status
// tag; they are produced when a tool callback invokes the step-completion
// or step-rejection primitive and may arrive without any status tag at all.
// An explicit status tag is otherwise authoritative. Both the hyphenated
// and underscored spellings are accepted, case-insensitively, as is the
// symbol-style encoding with a leading colon.
func Classify(raw *RawOutcome) Category {
	if raw == nil {
		return CategoryUnknown
	}
	if raw.Completion != nil {
		return CategoryStepCompleted
	}
	if raw.Rejection != nil {
		return CategoryStepRejected
	}
	switch normalizeStatus(raw.Status) {
	case "success":
		return CategorySuccess
	case "step_completed":
		return CategoryStepCompleted
	case "step_rejected":
		return CategoryStepRejected
	case "failure":
		return CategoryFailure
	case "timeout":
		return CategoryTimeout
	case "network_error":
		return CategoryNetworkError
	case "context_length_error":
		return CategoryContextLengthError
	case "rate_limit_error":
		return CategoryRateLimitError
	case "empty_response":
		return CategoryEmptyResponse
	default:
		return CategoryUnknown
	}
}

func normalizeStatus(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, ":")
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "-", "_")
}
