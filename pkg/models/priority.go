package models

// Priority orders executions for worker pickup. Higher runs first.
type Priority int

const (
	PriorityLow      Priority = 1
	PriorityNormal   Priority = 5
	PriorityHigh     Priority = 10
	PriorityCritical Priority = 20
)

// ParsePriority maps a priority label to its value. Unknown or empty labels
// fall back to normal; this never fails.
func ParsePriority(label string) Priority {
	switch label {
	case "low":
		return PriorityLow
	case "normal":
		return PriorityNormal
	case "high":
		return PriorityHigh
	case "critical":
		return PriorityCritical
	default:
		return PriorityNormal
	}
}

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "normal"
	}
}

// EffectivePriority resolves an execution's priority: execution state first,
// then trigger data, then normal.
func (e *WorkflowExecution) EffectivePriority() Priority {
	if e.State != nil && e.State.Priority != 0 {
		return e.State.Priority
	}

	if e.TriggerData.Priority != "" {
		return ParsePriority(e.TriggerData.Priority)
	}

	return PriorityNormal
}
