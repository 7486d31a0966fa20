package docdedup

import "fmt"

// NotFoundError indicates a file-backed input that does not exist (or is not
// a regular file) at hashing time. No cache key can be derived for it.
type NotFoundError struct {
	Path    string
	Message string
	Cause   error
}

func (e *NotFoundError) Error() string {
	msg := "input not found: " + e.Path
	if e.Message != "" {
		msg += " (" + e.Message + ")"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *NotFoundError) Unwrap() error {
	return e.Cause
}

// JobError indicates the translation job behind a cache miss failed.
type JobError struct {
	Key   CacheKey
	Cause error
}

func (e *JobError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("translation job %s failed: %v", e.Key.Short(), e.Cause)
	}
	return fmt.Sprintf("translation job %s failed", e.Key.Short())
}

func (e *JobError) Unwrap() error {
	return e.Cause
}

// ProviderError indicates an AI provider failure (API error, rate limit, etc.).
type ProviderError struct {
	Message   string
	Cause     error
	Retryable bool // Whether the operation can be retried
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("provider error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("provider error: %s", e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// ProcessorError indicates a document could not be split or reassembled.
type ProcessorError struct {
	Message     string
	Cause       error
	ContentType string // The type of content that failed to process
}

func (e *ProcessorError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("processor error (%s): %s: %v", e.ContentType, e.Message, e.Cause)
	}
	return fmt.Sprintf("processor error (%s): %s", e.ContentType, e.Message)
}

func (e *ProcessorError) Unwrap() error {
	return e.Cause
}

// CountMismatchError indicates the AI returned a different number of translations than expected.
type CountMismatchError struct {
	Expected int
	Got      int
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("translation count mismatch: expected %d, got %d", e.Expected, e.Got)
}
