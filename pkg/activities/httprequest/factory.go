package httprequest

import (
	"github.com/loomworks/loom/pkg/protocol"
)

// HTTPRequestActivityFactory creates HTTPRequestActivity instances.
type HTTPRequestActivityFactory struct{}

func NewHTTPRequestActivityFactory() protocol.ActivityFactory {
	return &HTTPRequestActivityFactory{}
}

func (f *HTTPRequestActivityFactory) ID() string {
	return "http_request"
}

func (f *HTTPRequestActivityFactory) Name() string {
	return "HTTP Request"
}

func (f *HTTPRequestActivityFactory) Description() string {
	return "Performs an HTTP request and exposes status, headers and decoded body as output"
}

func (f *HTTPRequestActivityFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "Target URL for the request",
			},
			"method": map[string]any{
				"type":        "string",
				"description": "HTTP method",
				"enum":        []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD"},
				"default":     "GET",
			},
			"headers": map[string]any{
				"type":        "object",
				"description": "Request headers",
				"additionalProperties": map[string]any{
					"type": "string",
				},
			},
			"body": map[string]any{
				"type":        "object",
				"description": "JSON request body",
			},
			"timeout_seconds": map[string]any{
				"type":        "number",
				"description": "Client timeout for the request",
				"default":     30,
			},
		},
		"required": []string{"url"},
	}
}

func (f *HTTPRequestActivityFactory) Create(config map[string]any) (protocol.Activity, error) {
	return NewHTTPRequestActivity(config)
}
