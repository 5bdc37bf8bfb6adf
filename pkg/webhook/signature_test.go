package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSignature(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"order_id":"o-1"}`)
	header := Sign("s3cret", payload)

	assert.NoError(t, ValidateSignature("s3cret", payload, header))

	assert.ErrorIs(t, ValidateSignature("s3cret", payload, ""), ErrMissingSignature)
	assert.ErrorIs(t, ValidateSignature("s3cret", payload, "sha256=deadbeef"), ErrInvalidSignature)
	assert.ErrorIs(t, ValidateSignature("s3cret", payload, "md5=abc"), ErrInvalidSignature)
	assert.ErrorIs(t, ValidateSignature("other-key", payload, header), ErrInvalidSignature)

	// The signature covers the exact bytes: any change invalidates it.
	assert.ErrorIs(t, ValidateSignature("s3cret", []byte(`{"order_id":"o-2"}`), header), ErrInvalidSignature)
}

func TestMatchFilters(t *testing.T) {
	t.Parallel()

	payload := map[string]any{
		"event": "created",
		"user": map[string]any{
			"email": "x@example.com",
			"plan":  map[string]any{"tier": "pro"},
		},
	}

	tests := []struct {
		name    string
		filters map[string]any
		matches bool
	}{
		{"no filters", nil, true},
		{"top level match", map[string]any{"event": "created"}, true},
		{"nested match", map[string]any{"user.email": "x@example.com"}, true},
		{"deep match", map[string]any{"user.plan.tier": "pro"}, true},
		{"object value match", map[string]any{"user.plan": map[string]any{"tier": "pro"}}, true},
		{"object value mismatch", map[string]any{"user.plan": map[string]any{"tier": "free"}}, false},
		{"value mismatch", map[string]any{"event": "deleted"}, false},
		{"missing path", map[string]any{"user.name": "x"}, false},
		{"path through scalar", map[string]any{"event.sub": "x"}, false},
		{"all must match", map[string]any{"event": "created", "user.email": "other"}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.matches, MatchFilters(payload, tc.filters))
		})
	}
}
