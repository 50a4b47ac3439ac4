package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidBugReport is returned before any backend call when a report field is missing.
	ErrInvalidBugReport = errors.New("invalid bug report")
	// ErrBudgetExhausted is returned when the iteration cap is hit without a final answer.
	ErrBudgetExhausted = errors.New("iteration budget exhausted")
	// ErrMalformedAnswer marks a final reply whose content is not a valid ranking.
	ErrMalformedAnswer = errors.New("malformed final answer")
)

// BackendError reports a failed or unusable completion backend call.
// Runs are never retried after one.
type BackendError struct {
	Iteration int
	Err       error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend call failed at iteration %d: %v", e.Iteration, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}
