package models

import "time"

// ExecutionStatus represents the lifecycle state of a workflow execution.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusPaused    ExecutionStatus = "paused"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// Terminal reports whether the status is absorbing. A failed execution may
// still leave the terminal state through a scheduled retry.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed
}

// WorkflowExecution is one run of a workflow. The embedded ExecutionState is
// persisted as JSON on the row; there is no separate state identity.
type WorkflowExecution struct {
	ID          string          `json:"id"`
	WorkflowID  string          `json:"workflow_id"`
	Owner       string          `json:"owner"`
	Status      ExecutionStatus `json:"status"`
	TriggerData TriggerData     `json:"trigger_data"`
	State       *ExecutionState `json:"execution_state"`
	Error       string          `json:"error,omitempty"`

	// Version guards status transitions. Every successful transition bumps
	// it; a compare-and-set with a stale version loses the race.
	Version int `json:"version"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TriggerData carries the payload that caused an execution, plus the known
// trigger metadata as typed fields. Payload keeps the residual free-form
// body for forward compatibility.
type TriggerData struct {
	Type           string         `json:"type,omitempty"`
	Source         string         `json:"source,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
	Priority       string         `json:"priority,omitempty"`
	Payload        map[string]any `json:"payload,omitempty"`
}
