package models

import (
	"slices"
	"time"
)

// ResourceLimits are per-execution caps carried as advisory metadata for the
// worker or sandbox that runs node activities. Only TimeoutSeconds is
// enforced by the engine itself, via deadline checks at poll boundaries.
type ResourceLimits struct {
	MemoryLimitMB  int `json:"memory_limit_mb,omitempty"`
	CPULimit       int `json:"cpu_limit,omitempty"`
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

// ExecutionState is the mutable runtime snapshot of one execution.
//
// Invariants: CurrentNodeID, when set, is never in CompletedNodeIDs, and
// every completed node ID has a corresponding entry in NodeResults.
type ExecutionState struct {
	CurrentNodeID    string                          `json:"current_node_id,omitempty"`
	CompletedNodeIDs []string                        `json:"completed_node_ids"`
	NodeResults      map[string]*NodeExecutionResult `json:"node_results"`
	Variables        map[string]map[string]any       `json:"variables,omitempty"`
	NodeTimeouts     map[string]time.Time            `json:"node_timeouts,omitempty"`
	WorkflowTimeout  *time.Time                      `json:"workflow_timeout,omitempty"`
	StartedAt        time.Time                       `json:"started_at"`
	Priority         Priority                        `json:"priority"`
	Limits           ResourceLimits                  `json:"limits"`
	DebugMode        bool                            `json:"debug_mode,omitempty"`

	// Retry bookkeeping for execution-level retries.
	RetryCount int        `json:"retry_count"`
	RetryAt    *time.Time `json:"retry_at,omitempty"`

	// Extra keeps unrecognized state keys for forward compatibility.
	Extra map[string]any `json:"extra,omitempty"`
}

// NewExecutionState seeds a state positioned at the workflow's entry node.
func NewExecutionState(entryNodeID string, now time.Time) *ExecutionState {
	return &ExecutionState{
		CurrentNodeID:    entryNodeID,
		CompletedNodeIDs: []string{},
		NodeResults:      make(map[string]*NodeExecutionResult),
		Variables:        make(map[string]map[string]any),
		StartedAt:        now,
		Priority:         PriorityNormal,
	}
}

// RecordResult stores a node result and, on success, moves the node into the
// completed set.
func (s *ExecutionState) RecordResult(result *NodeExecutionResult) {
	if s.NodeResults == nil {
		s.NodeResults = make(map[string]*NodeExecutionResult)
	}

	s.NodeResults[result.NodeID] = result

	if result.Status == NodeResultSuccess && !s.NodeCompleted(result.NodeID) {
		s.CompletedNodeIDs = append(s.CompletedNodeIDs, result.NodeID)
	}

	if s.CurrentNodeID == result.NodeID && result.Status == NodeResultSuccess {
		s.CurrentNodeID = ""
	}
}

// NodeCompleted reports whether the node already finished successfully.
func (s *ExecutionState) NodeCompleted(nodeID string) bool {
	return slices.Contains(s.CompletedNodeIDs, nodeID)
}

// SetVariable stores a binding under the named scope.
func (s *ExecutionState) SetVariable(scope, name string, value any) {
	if s.Variables == nil {
		s.Variables = make(map[string]map[string]any)
	}

	if s.Variables[scope] == nil {
		s.Variables[scope] = make(map[string]any)
	}

	s.Variables[scope][name] = value
}

// Variable looks up a binding in the named scope.
func (s *ExecutionState) Variable(scope, name string) (any, bool) {
	bindings, ok := s.Variables[scope]
	if !ok {
		return nil, false
	}

	value, ok := bindings[name]

	return value, ok
}

// SetNodeTimeout records an absolute deadline for a node.
func (s *ExecutionState) SetNodeTimeout(nodeID string, deadline time.Time) {
	if s.NodeTimeouts == nil {
		s.NodeTimeouts = make(map[string]time.Time)
	}

	s.NodeTimeouts[nodeID] = deadline
}
