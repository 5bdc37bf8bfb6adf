package models

import "time"

// Well-known signal types. SignalType is an open string tag: unknown types
// route to the default handler rather than failing.
const (
	SignalTypeWebhook        = "webhook"
	SignalTypeHumanInput     = "human_input"
	SignalTypeConnectorReady = "connector_ready"
)

// Signal is an asynchronous external event appended to an execution's
// signal log. Signals are consumed by the worker poll loop; once marked
// processed they are never mutated again.
type Signal struct {
	ID          string         `json:"id"`
	ExecutionID string         `json:"execution_id"`
	Type        string         `json:"signal_type"`
	Data        map[string]any `json:"signal_data,omitempty"`
	ReceivedAt  time.Time      `json:"received_at"`
	Processed   bool           `json:"processed"`
}
