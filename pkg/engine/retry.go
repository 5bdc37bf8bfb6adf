package engine

import (
	"math"
	"time"
)

// RetryPolicy decides if and when a failed execution retries. All methods
// are pure functions of their inputs.
type RetryPolicy struct {
	MaxRetries        int
	InitialDelay      time.Duration
	BackoffMultiplier float64
	MaxDelay          time.Duration
}

// DefaultRetryPolicy matches the engine defaults: three attempts with
// exponential backoff starting at thirty seconds, capped at one hour.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        3,
		InitialDelay:      30 * time.Second,
		BackoffMultiplier: 2.0,
		MaxDelay:          time.Hour,
	}
}

// ShouldRetry reports whether another attempt remains after retryCount
// failures.
func (p RetryPolicy) ShouldRetry(retryCount int) bool {
	return retryCount < p.MaxRetries
}

// NextRetryAt computes the next attempt time: base plus the backoff delay
// for the given retry count, capped at MaxDelay.
func (p RetryPolicy) NextRetryAt(retryCount int, base time.Time) time.Time {
	return base.Add(p.delay(retryCount))
}

func (p RetryPolicy) delay(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}

	backoff := float64(p.InitialDelay) * math.Pow(p.BackoffMultiplier, float64(retryCount))
	if backoff > float64(p.MaxDelay) || math.IsInf(backoff, 1) {
		return p.MaxDelay
	}

	return time.Duration(backoff)
}
