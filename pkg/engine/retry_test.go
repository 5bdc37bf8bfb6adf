package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_ShouldRetry(t *testing.T) {
	t.Parallel()

	policy := DefaultRetryPolicy()

	assert.True(t, policy.ShouldRetry(0))
	assert.True(t, policy.ShouldRetry(policy.MaxRetries-1))
	assert.False(t, policy.ShouldRetry(policy.MaxRetries))
	assert.False(t, policy.ShouldRetry(policy.MaxRetries+1))
}

func TestRetryPolicy_NextRetryAt_Exponential(t *testing.T) {
	t.Parallel()

	policy := RetryPolicy{
		MaxRetries:        5,
		InitialDelay:      30 * time.Second,
		BackoffMultiplier: 2.0,
		MaxDelay:          time.Hour,
	}

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, base.Add(30*time.Second), policy.NextRetryAt(0, base))
	assert.Equal(t, base.Add(60*time.Second), policy.NextRetryAt(1, base))
	assert.Equal(t, base.Add(120*time.Second), policy.NextRetryAt(2, base))
}

func TestRetryPolicy_NextRetryAt_Monotonic(t *testing.T) {
	t.Parallel()

	policy := DefaultRetryPolicy()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	previous := policy.NextRetryAt(0, base)
	for count := 1; count < 10; count++ {
		next := policy.NextRetryAt(count, base)
		assert.False(t, next.Before(previous), "delay shrank at retry %d", count)
		previous = next
	}
}

func TestRetryPolicy_NextRetryAt_CappedAtMaxDelay(t *testing.T) {
	t.Parallel()

	policy := RetryPolicy{
		MaxRetries:        100,
		InitialDelay:      30 * time.Second,
		BackoffMultiplier: 2.0,
		MaxDelay:          time.Hour,
	}

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, base.Add(time.Hour), policy.NextRetryAt(20, base))

	// Large counts overflow float math; the cap must still hold.
	assert.Equal(t, base.Add(time.Hour), policy.NextRetryAt(5000, base))
}
