// Package events defines event types for execution lifecycle notifications.
// Lifecycle publishing is a best-effort observability surface: publish
// failures are logged and never abort engine operations.
package events

import "time"

type EventType string

// Topic carries all execution lifecycle events.
const Topic = "loom.execution.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionPausedEvent    EventType = "execution.paused"
	ExecutionResumedEvent   EventType = "execution.resumed"
	ExecutionRetryEvent     EventType = "execution.retry.scheduled"
	ExecutionTimeoutEvent   EventType = "execution.timeout"
	NodeFinishedEvent       EventType = "node.finished"
	NodeFailedEvent         EventType = "node.failed"
	SignalReceivedEvent     EventType = "signal.received"
)

type BaseEvent struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	WorkflowID  string    `json:"workflow_id"`
	ExecutionID string    `json:"execution_id"`
	WorkerID    string    `json:"worker_id,omitempty"`
}

type ExecutionStarted struct {
	BaseEvent

	TriggerType string `json:"trigger_type,omitempty"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	Duration time.Duration `json:"duration"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	Error    string        `json:"error"`
	Duration time.Duration `json:"duration"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionPaused struct {
	BaseEvent
}

func (e ExecutionPaused) GetType() EventType {
	return ExecutionPausedEvent
}

type ExecutionResumed struct {
	BaseEvent
}

func (e ExecutionResumed) GetType() EventType {
	return ExecutionResumedEvent
}

type ExecutionRetryScheduled struct {
	BaseEvent

	RetryCount int       `json:"retry_count"`
	RetryAt    time.Time `json:"retry_at"`
}

func (e ExecutionRetryScheduled) GetType() EventType {
	return ExecutionRetryEvent
}

type ExecutionTimeout struct {
	BaseEvent

	NodeID   string    `json:"node_id,omitempty"`
	Deadline time.Time `json:"deadline"`
}

func (e ExecutionTimeout) GetType() EventType {
	return ExecutionTimeoutEvent
}

type NodeFinished struct {
	BaseEvent

	NodeID     string         `json:"node_id"`
	Output     map[string]any `json:"output,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

func (e NodeFinished) GetType() EventType {
	return NodeFinishedEvent
}

type NodeFailed struct {
	BaseEvent

	NodeID     string `json:"node_id"`
	Error      string `json:"error"`
	DurationMs int64  `json:"duration_ms"`
}

func (e NodeFailed) GetType() EventType {
	return NodeFailedEvent
}

type SignalReceived struct {
	BaseEvent

	SignalID   string         `json:"signal_id"`
	SignalType string         `json:"signal_type"`
	SignalData map[string]any `json:"signal_data,omitempty"`
}

func (e SignalReceived) GetType() EventType {
	return SignalReceivedEvent
}
