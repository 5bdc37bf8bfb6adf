// Package persistence provides standardized error types for storage operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrWorkflowInactive indicates the workflow exists but is not executable.
	ErrWorkflowInactive = errors.New("workflow is not active")

	// ErrExecutionNotFound indicates an execution was not found by the given identifier.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrExecutionConflict indicates a status transition lost a compare-and-set race.
	ErrExecutionConflict = errors.New("execution was modified concurrently")

	// ErrScheduleNotFound indicates a schedule was not found by the given identifier.
	ErrScheduleNotFound = errors.New("schedule not found")

	// ErrSignalNotFound indicates a signal was not found by the given identifier.
	ErrSignalNotFound = errors.New("signal not found")

	// ErrSubscriptionNotFound indicates no webhook subscription exists for the given path or id.
	ErrSubscriptionNotFound = errors.New("webhook subscription not found")
)

// ExecutionError wraps execution-related errors with operation context.
type ExecutionError struct {
	Op          string // Operation being performed (e.g., "GetByID", "TransitionStatus")
	ExecutionID string // Execution ID if applicable
	Err         error  // Underlying error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s operation failed for execution %s: %v", e.Op, e.ExecutionID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func (e *ExecutionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewExecutionError creates a new execution error with context.
func NewExecutionError(op, executionID string, err error) *ExecutionError {
	return &ExecutionError{
		Op:          op,
		ExecutionID: executionID,
		Err:         err,
	}
}

// WorkflowError wraps workflow-related errors with operation context.
type WorkflowError struct {
	Op         string
	WorkflowID string
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsExecutionNotFound checks if an error indicates an execution was not found.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsExecutionConflict checks if an error indicates a lost CAS race.
func IsExecutionConflict(err error) bool {
	return errors.Is(err, ErrExecutionConflict)
}

// IsSignalNotFound checks if an error indicates a signal was not found.
func IsSignalNotFound(err error) bool {
	return errors.Is(err, ErrSignalNotFound)
}
