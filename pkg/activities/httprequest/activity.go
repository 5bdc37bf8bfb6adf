// Package httprequest provides the http_request activity: it performs an
// outbound HTTP call and exposes the response as node output.
package httprequest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/loomworks/loom/pkg/models"
)

const (
	defaultRequestTimeout = 30 * time.Second
	maxResponseBodySize   = 1024 * 1024
)

// HTTPRequestActivity calls one URL per node execution. The request honors
// context cancellation so node timeouts interrupt in-flight calls.
type HTTPRequestActivity struct {
	url     string
	method  string
	headers map[string]string
	body    map[string]any
	client  *http.Client
}

func NewHTTPRequestActivity(config map[string]any) (*HTTPRequestActivity, error) {
	url, ok := config["url"].(string)
	if !ok || url == "" {
		return nil, errors.New("missing required field 'url'")
	}

	method := http.MethodGet
	if m, ok := config["method"].(string); ok && m != "" {
		method = m
	}

	headers := make(map[string]string)
	if raw, ok := config["headers"].(map[string]any); ok {
		for name, value := range raw {
			if s, ok := value.(string); ok {
				headers[name] = s
			}
		}
	}

	var body map[string]any
	if raw, ok := config["body"].(map[string]any); ok {
		body = raw
	}

	timeout := defaultRequestTimeout
	if seconds, ok := config["timeout_seconds"].(float64); ok && seconds > 0 {
		timeout = time.Duration(seconds) * time.Second
	}

	return &HTTPRequestActivity{
		url:     url,
		method:  method,
		headers: headers,
		body:    body,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (a *HTTPRequestActivity) Execute(ctx context.Context, state *models.ExecutionState, executionID string) (map[string]any, error) {
	var requestBody io.Reader

	if a.body != nil {
		encoded, err := json.Marshal(a.body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}

		requestBody = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, a.method, a.url, requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	if a.body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	for name, value := range a.headers {
		request.Header.Set(name, value)
	}

	response, err := a.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = response.Body.Close()
	}()

	responseBytes, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	// Decode JSON responses into structured output; anything else stays a
	// raw string.
	var responseBody any = string(responseBytes)

	var decoded map[string]any
	if json.Unmarshal(responseBytes, &decoded) == nil {
		responseBody = decoded
	}

	output := map[string]any{
		"status_code": response.StatusCode,
		"body":        responseBody,
		"headers":     flattenHeaders(response.Header),
	}

	if response.StatusCode >= http.StatusBadRequest {
		return output, fmt.Errorf("request to %s returned status %d", a.url, response.StatusCode)
	}

	return output, nil
}

func flattenHeaders(header http.Header) map[string]string {
	flat := make(map[string]string, len(header))
	for name, values := range header {
		if len(values) > 0 {
			flat[name] = values[0]
		}
	}

	return flat
}
