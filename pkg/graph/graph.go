// Package graph manages dependency relationships between workflows: adding
// edges with cycle prevention and producing a dependency-respecting
// execution order.
package graph

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/loomworks/loom/pkg/persistence"
)

// ErrDependencyCycle is returned when an operation would create, or the
// graph already contains, a circular dependency.
var ErrDependencyCycle = errors.New("dependency cycle")

// DependencyError describes a rejected graph operation.
type DependencyError struct {
	WorkflowID string
	Err        error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("dependency operation failed for workflow %s: %v", e.WorkflowID, e.Err)
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}

// Manager mutates and inspects the dependency graph spanning workflows.
// Each workflow stores the IDs it depends on; the manager keeps that set
// acyclic.
type Manager struct {
	workflows persistence.WorkflowRepository
}

func NewManager(workflows persistence.WorkflowRepository) *Manager {
	return &Manager{workflows: workflows}
}

// AddDependency records that workflowID depends on dependsOnID. The edge is
// rejected, and nothing persisted, when either workflow is unknown or the
// edge would close a cycle. Adding an existing edge is a no-op.
func (m *Manager) AddDependency(ctx context.Context, workflowID, dependsOnID string) error {
	workflow, err := m.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return err
	}

	if _, err := m.workflows.GetByID(ctx, dependsOnID); err != nil {
		return err
	}

	if slices.Contains(workflow.GraphConfig.Dependencies, dependsOnID) {
		return nil
	}

	// The edge workflowID -> dependsOnID closes a cycle exactly when
	// dependsOnID already reaches workflowID through existing edges.
	if workflowID == dependsOnID {
		return &DependencyError{WorkflowID: workflowID, Err: ErrDependencyCycle}
	}

	reachable, err := m.reaches(ctx, dependsOnID, workflowID)
	if err != nil {
		return err
	}

	if reachable {
		return &DependencyError{WorkflowID: workflowID, Err: ErrDependencyCycle}
	}

	workflow.GraphConfig.Dependencies = append(workflow.GraphConfig.Dependencies, dependsOnID)

	return m.workflows.Save(ctx, workflow)
}

// RemoveDependency removes the edge if present. Removing a missing edge is
// a no-op.
func (m *Manager) RemoveDependency(ctx context.Context, workflowID, dependsOnID string) error {
	workflow, err := m.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return err
	}

	index := slices.Index(workflow.GraphConfig.Dependencies, dependsOnID)
	if index < 0 {
		return nil
	}

	workflow.GraphConfig.Dependencies = slices.Delete(workflow.GraphConfig.Dependencies, index, index+1)

	return m.workflows.Save(ctx, workflow)
}

// Dependencies returns the direct dependencies of a workflow.
func (m *Manager) Dependencies(ctx context.Context, workflowID string) ([]string, error) {
	workflow, err := m.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	return workflow.GraphConfig.Dependencies, nil
}

// ExecutionOrder returns all workflow IDs in an order where every workflow
// appears after all of its dependencies. IDs are visited in sorted order so
// the result is deterministic for a given graph.
func (m *Manager) ExecutionOrder(ctx context.Context) ([]string, error) {
	workflows, err := m.workflows.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	dependencies := make(map[string][]string, len(workflows))
	ids := make([]string, 0, len(workflows))

	for _, workflow := range workflows {
		dependencies[workflow.ID] = workflow.GraphConfig.Dependencies
		ids = append(ids, workflow.ID)
	}

	sort.Strings(ids)

	return topologicalOrder(ids, dependencies)
}

// topologicalOrder runs an iterative three-color depth-first search. Each
// frame tracks how many dependencies have been pushed so far, so a node is
// emitted only once all of its dependencies are done.
func topologicalOrder(ids []string, dependencies map[string][]string) ([]string, error) {
	const (
		unvisited = iota
		inProgress
		done
	)

	color := make(map[string]int, len(ids))
	order := make([]string, 0, len(ids))

	type frame struct {
		id   string
		next int
	}

	for _, start := range ids {
		if color[start] != unvisited {
			continue
		}

		stack := []frame{{id: start}}
		color[start] = inProgress

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			deps := dependencies[top.id]

			if top.next < len(deps) {
				dep := deps[top.next]
				top.next++

				switch color[dep] {
				case inProgress:
					return nil, &DependencyError{WorkflowID: dep, Err: ErrDependencyCycle}
				case unvisited:
					color[dep] = inProgress
					stack = append(stack, frame{id: dep})
				}

				continue
			}

			color[top.id] = done
			order = append(order, top.id)
			stack = stack[:len(stack)-1]
		}
	}

	return order, nil
}

// reaches reports whether target is reachable from start following
// dependency edges, loading workflows on demand. Iterative traversal, safe
// for graphs of any depth.
func (m *Manager) reaches(ctx context.Context, start, target string) (bool, error) {
	visited := map[string]bool{start: true}
	stack := []string{start}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		workflow, err := m.workflows.GetByID(ctx, current)
		if err != nil {
			if persistence.IsWorkflowNotFound(err) {
				continue
			}

			return false, err
		}

		for _, dep := range workflow.GraphConfig.Dependencies {
			if dep == target {
				return true, nil
			}

			if !visited[dep] {
				visited[dep] = true
				stack = append(stack, dep)
			}
		}
	}

	return false, nil
}
