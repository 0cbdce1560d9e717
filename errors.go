package textloom

import (
	"fmt"
	"time"
)

// ExtractionError indicates the input could not be parsed as HTML at all.
// It is fatal and never retried.
type ExtractionError struct {
	Message string
	Cause   error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("extraction error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("extraction error: %s", e.Message)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// ProviderError indicates an LLM backend failure. Retryable classifies
// whether the retry controller may re-attempt the call; Attempts is filled
// in when retries have been exhausted.
type ProviderError struct {
	Message   string
	Cause     error
	Retryable bool
	Attempts  int
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("provider error: %s", e.Message)
	if e.Attempts > 1 {
		msg = fmt.Sprintf("%s (after %d attempts)", msg, e.Attempts)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// CacheError indicates a cache operation failure. The pipeline treats these
// as cache misses; they never fail an invocation.
type CacheError struct {
	Message string
	Cause   error
}

func (e *CacheError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cache error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("cache error: %s", e.Message)
}

func (e *CacheError) Unwrap() error {
	return e.Cause
}

// ReinjectionError indicates the transformed spans do not line up with the
// placement map. This is always a programming-invariant violation, never a
// recoverable runtime condition.
type ReinjectionError struct {
	Message  string
	Expected int
	Got      int
}

func (e *ReinjectionError) Error() string {
	if e.Expected != 0 || e.Got != 0 {
		return fmt.Sprintf("reinjection error: %s: expected %d spans, got %d", e.Message, e.Expected, e.Got)
	}
	return fmt.Sprintf("reinjection error: %s", e.Message)
}

// TimeoutError indicates the invocation deadline was exceeded. Partial
// results are discarded.
type TimeoutError struct {
	Task    Task
	Model   string
	Elapsed time.Duration
	Cause   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout: task %s on model %s exceeded deadline after %v", e.Task, e.Model, e.Elapsed.Round(time.Millisecond))
}

func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// CountMismatchError indicates a backend returned a different number of
// texts than it was sent.
type CountMismatchError struct {
	Expected int
	Got      int
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("completion count mismatch: expected %d, got %d", e.Expected, e.Got)
}
