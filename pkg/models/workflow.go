// Package models defines the core domain models for the loom workflow engine.
package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Workflow represents a directed graph of typed nodes. A workflow definition
// is immutable while executions reference it; edits bump Version.
type Workflow struct {
	ID            string          `json:"id"             validate:"required"`
	Name          string          `json:"name"           validate:"required,min=3"`
	Description   string          `json:"description"`
	Owner         string          `json:"owner"          validate:"required"`
	Active        bool            `json:"active"`
	Version       int             `json:"version"`
	Nodes         []*WorkflowNode `json:"nodes"`
	Edges         []*Edge         `json:"edges"`
	TriggerConfig map[string]any  `json:"trigger_config,omitempty"`
	GraphConfig   GraphConfig     `json:"graph_config"`
	Variables     map[string]any  `json:"variables,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// GraphConfig holds graph-level settings that are not part of the node/edge
// structure itself.
type GraphConfig struct {
	// Dependencies lists workflow IDs this workflow depends on. An execution
	// order over a set of workflows is derived from these edges.
	Dependencies []string `json:"dependencies,omitempty"`

	// EntryNodeID names the node a fresh execution starts from. If empty the
	// first node without inbound edges is used.
	EntryNodeID string `json:"entry_node_id,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks required workflow fields and node/edge integrity.
func (w *Workflow) Validate() error {
	if err := validate.Struct(w); err != nil {
		return err
	}

	nodeIDs := make(map[string]bool, len(w.Nodes))

	for _, node := range w.Nodes {
		if err := validate.Struct(node); err != nil {
			return err
		}

		nodeIDs[node.ID] = true
	}

	for _, edge := range w.Edges {
		if !nodeIDs[edge.SourceNodeID] || !nodeIDs[edge.TargetNodeID] {
			return ErrInvalidEdge
		}
	}

	return nil
}

// EntryNode resolves the node a new execution begins with.
func (w *Workflow) EntryNode() *WorkflowNode {
	if w.GraphConfig.EntryNodeID != "" {
		return w.NodeByID(w.GraphConfig.EntryNodeID)
	}

	hasInbound := make(map[string]bool, len(w.Nodes))
	for _, edge := range w.Edges {
		hasInbound[edge.TargetNodeID] = true
	}

	for _, node := range w.Nodes {
		if !hasInbound[node.ID] {
			return node
		}
	}

	return nil
}

// NodeByID returns the node with the given ID, or nil.
func (w *Workflow) NodeByID(id string) *WorkflowNode {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// NextNode returns the node following the given node along the first
// outbound edge, or nil when the node is terminal.
func (w *Workflow) NextNode(nodeID string) *WorkflowNode {
	for _, edge := range w.Edges {
		if edge.SourceNodeID == nodeID {
			return w.NodeByID(edge.TargetNodeID)
		}
	}

	return nil
}
