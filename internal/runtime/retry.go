package runtime

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Fallbacks when the retry policy leaves a field unset; the real values
// normally come from kernel.Policies.Retry (spec §3 Configuration: "Retry
// config: max_attempts, base_delay_ms, max_delay_ms, retryable_errors").
const (
	defaultBaseDelayMs = 200
	defaultMaxDelayMs  = 10_000
)

// newRetryBackoff builds the exponential backoff policy shared by every
// retryable intent kind: delay = min(base_delay_ms * 2^attempt,
// max_delay_ms), stopping after min(node max_retries, max_attempts - 1)
// retries so a single node can never stall the whole DAG run indefinitely.
func (r *Runtime) newRetryBackoff(ctx context.Context, maxRetries int) backoff.BackOff {
	cfg := r.Policies.Retry

	base := cfg.BaseDelayMs
	if base <= 0 {
		base = defaultBaseDelayMs
	}
	maxDelay := cfg.MaxDelayMs
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelayMs
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Duration(base) * time.Millisecond
	b.Multiplier = 2
	b.RandomizationFactor = 0 // exact formula above, no jitter
	b.MaxInterval = time.Duration(maxDelay) * time.Millisecond
	b.MaxElapsedTime = 0 // bounded by WithMaxRetries below instead of elapsed time

	retries := maxRetries
	if cfg.MaxAttempts > 0 && cfg.MaxAttempts-1 < retries {
		retries = cfg.MaxAttempts - 1
	}
	if retries < 0 {
		retries = 0
	}
	return backoff.WithMaxRetries(backoff.WithContext(b, ctx), uint64(retries))
}

// retryableFailure reports whether err should be retried at all. A nil
// error never retries; an explicit non-retryable RuntimeError never retries
// regardless of the node's own Retryable flag; and when the policy's
// retryable_errors set is non-empty, a typed RuntimeError additionally
// needs its kind listed there.
func (r *Runtime) retryableFailure(nodeRetryable bool, err error) bool {
	if err == nil || !nodeRetryable {
		return false
	}
	re, ok := err.(*RuntimeError)
	if !ok {
		return true
	}
	if !re.Retryable() {
		return false
	}
	allowed := r.Policies.Retry.RetryableErrors
	if len(allowed) == 0 {
		return true
	}
	for _, kind := range allowed {
		if kind == string(re.Kind) {
			return true
		}
	}
	return false
}
