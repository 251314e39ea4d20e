package workflows

import (
	"errors"
	"fmt"

	"go.temporal.io/sdk/temporal"

	"github.com/fyrsmithlabs/genetix/internal/codeagent"
)

// ErrorSeverity classifies workflow errors.
type ErrorSeverity string

const (
	// ErrorSeverityCritical fails the workflow.
	ErrorSeverityCritical ErrorSeverity = "critical"
	// ErrorSeverityLow is logged and otherwise ignored.
	ErrorSeverityLow ErrorSeverity = "low"
)

// ErrTypeInvalidEvent is the application error type Temporal sees for
// events that fail validation. It is never retried.
const ErrTypeInvalidEvent = "InvalidEvent"

// WorkflowError is a structured workflow failure.
type WorkflowError struct {
	Operation string
	Severity  ErrorSeverity
	Err       error
	Context   string
}

func (e *WorkflowError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s failed: %s (%s)", e.Operation, e.Err.Error(), e.Context)
	}
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Err.Error())
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// NewWorkflowError returns a WorkflowError.
func NewWorkflowError(operation string, severity ErrorSeverity, err error, context string) *WorkflowError {
	return &WorkflowError{Operation: operation, Severity: severity, Err: err, Context: context}
}

// activityError converts a run error into what the activity returns:
// invalid events become non-retryable application errors, everything else
// is returned as is and retried by the activity retry policy.
func activityError(err error) error {
	if errors.Is(err, codeagent.ErrInvalidEvent) {
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidEvent, err)
	}
	return err
}
