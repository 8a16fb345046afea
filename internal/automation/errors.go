package automation

import (
	"fmt"

	"sheetdrive/internal/sheet"
)

// SubmissionError reports a failure to deliver text to a service's input box.
// Retryable.
type SubmissionError struct {
	Service sheet.AIService
	Err     error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("%s: submission failed: %v", e.Service, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// NoResponseError reports that a service produced no collectable reply.
// Retryable.
type NoResponseError struct {
	Service sheet.AIService
}

func (e *NoResponseError) Error() string {
	return fmt.Sprintf("%s: no response present", e.Service)
}

// SessionExpiredError reports that a service's authenticated session is gone.
// Non-retryable: another attempt cannot fix an expired credential, so the run
// controller surfaces it immediately instead of burning the attempt budget.
type SessionExpiredError struct {
	Service sheet.AIService
}

func (e *SessionExpiredError) Error() string {
	return fmt.Sprintf("%s: session expired", e.Service)
}

// AwaitTimeoutError reports that a reply did not finish within the await
// window. Retryable, distinct from session expiry.
type AwaitTimeoutError struct {
	Service sheet.AIService
	Timeout string
}

func (e *AwaitTimeoutError) Error() string {
	return fmt.Sprintf("%s: no completed response within %s", e.Service, e.Timeout)
}
