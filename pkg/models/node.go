package models

import "errors"

// WorkflowNode is a unit of work in a workflow graph. The Type selects the
// activity handler that executes it; Config is handler-specific and is
// validated against the handler's schema before dispatch.
type WorkflowNode struct {
	ID      string         `json:"id"      validate:"required"`
	Type    string         `json:"type"    validate:"required"`
	Name    string         `json:"name"    validate:"required,min=1"`
	Config  map[string]any `json:"config"`
	Enabled bool           `json:"enabled"`

	// TimeoutSeconds caps this node's execution; zero means no node deadline.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

// Edge is a directed connection between two nodes of the same workflow.
type Edge struct {
	ID           string `json:"id"             validate:"required"`
	SourceNodeID string `json:"source_node_id" validate:"required"`
	TargetNodeID string `json:"target_node_id" validate:"required"`
}

// ErrInvalidEdge indicates an edge references a node that is not part of the
// workflow.
var ErrInvalidEdge = errors.New("edge references unknown node")

// NodeResultStatus is the terminal status of a single node execution.
type NodeResultStatus string

const (
	NodeResultSuccess NodeResultStatus = "success"
	NodeResultFailed  NodeResultStatus = "failed"
)

// NodeExecutionResult records the outcome of one node execution. It is
// immutable once stored in ExecutionState.NodeResults.
type NodeExecutionResult struct {
	NodeID string           `json:"node_id"`
	Status NodeResultStatus `json:"status"`
	Output map[string]any   `json:"output,omitempty"`
	Error  string           `json:"error,omitempty"`
}
