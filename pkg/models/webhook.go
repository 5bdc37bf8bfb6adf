package models

import "time"

// WebhookSubscription maps an inbound webhook path to a workflow trigger.
// Path is unique across subscriptions; Secret, when set, is the HMAC-SHA256
// key the sender signs the raw payload with.
type WebhookSubscription struct {
	ID         string `json:"id"          validate:"required"`
	WorkflowID string `json:"workflow_id" validate:"required"`
	Path       string `json:"webhook_path" validate:"required"`
	Secret     string `json:"secret,omitempty"`

	// Headers are exact-match criteria against inbound request headers.
	Headers map[string]string `json:"headers,omitempty"`

	// Filters are dot-notation path criteria against the JSON payload,
	// e.g. {"user.email": "x@example.com"}.
	Filters map[string]any `json:"filters,omitempty"`

	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks required subscription fields.
func (s *WebhookSubscription) Validate() error {
	return validate.Struct(s)
}
