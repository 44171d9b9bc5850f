package chain

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds retries of idempotent reads.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// Retry runs fn until it succeeds, retries are exhausted, or ctx is done.
// Errors wrapped with backoff.Permanent stop immediately.
func Retry(ctx context.Context, policy RetryPolicy, fn func(context.Context) error) error {
	maxRetries := policy.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	base := policy.BaseDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = base
	expo.Multiplier = 2
	expo.RandomizationFactor = 0
	expo.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(maxRetries)), ctx)
	return backoff.Retry(func() error {
		return fn(ctx)
	}, b)
}
