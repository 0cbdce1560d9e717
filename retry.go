package textloom

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RetryConfig holds configuration for retry behavior.
type RetryConfig struct {
	MaxRetries int           // Maximum number of retry attempts after the first call
	BaseDelay  time.Duration // Initial delay between retries
	MaxDelay   time.Duration // Maximum delay between retries
	Multiplier float64       // Backoff multiplier per attempt
	Jitter     float64       // Random fraction added to each delay (0..1)
}

// DefaultRetryConfig returns sensible defaults for retry behavior.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.2,
	}
}

// RetryFunc is a function that can be retried.
type RetryFunc[T any] func() (T, error)

// WithRetry executes fn with exponential backoff, retrying only failures
// classified retryable by IsRetryable. It returns the number of retries
// performed alongside the result. This is the only place in the core that
// manufactures delay.
func WithRetry[T any](ctx context.Context, cfg RetryConfig, fn RetryFunc[T]) (T, int, error) {
	var lastErr error
	var zero T
	retries := 0

	if cfg.Multiplier <= 1 {
		cfg.Multiplier = 2.0
	}

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return zero, retries, ctx.Err()
		default:
		}

		result, err := fn()
		if err == nil {
			return result, retries, nil
		}

		lastErr = err

		if !IsRetryable(err) {
			return zero, retries, err
		}

		if attempt < cfg.MaxRetries {
			retries++
			select {
			case <-ctx.Done():
				return zero, retries, ctx.Err()
			case <-time.After(backoffDelay(cfg, attempt)):
			}
		}
	}

	return zero, retries, lastErr
}

// backoffDelay computes base * multiplier^attempt, capped at MaxDelay,
// with up to Jitter fraction of random slack.
func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	delay := float64(cfg.BaseDelay)
	for i := 0; i < attempt; i++ {
		delay *= cfg.Multiplier
	}
	if max := float64(cfg.MaxDelay); cfg.MaxDelay > 0 && delay > max {
		delay = max
	}
	if cfg.Jitter > 0 {
		delay += delay * cfg.Jitter * rand.Float64() // #nosec G404 - jitter, not crypto
	}
	return time.Duration(delay)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Retryable
	}

	// Context errors are not retryable
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	return false
}

// RetryableProvider wraps a Provider with retry logic, for callers composing
// providers directly rather than going through a Pipeline.
type RetryableProvider struct {
	provider Provider
	config   RetryConfig
}

// NewRetryableProvider creates a new provider with retry logic.
func NewRetryableProvider(provider Provider, cfg RetryConfig) *RetryableProvider {
	return &RetryableProvider{
		provider: provider,
		config:   cfg,
	}
}

// Submit implements Provider with retry logic. On exhaustion the surfaced
// ProviderError carries the total attempt count.
func (p *RetryableProvider) Submit(ctx context.Context, req Request) (*Completion, error) {
	result, retries, err := WithRetry(ctx, p.config, func() (*Completion, error) {
		return p.provider.Submit(ctx, req)
	})
	if err != nil {
		return nil, tagAttempts(err, retries+1)
	}
	return result, nil
}

// tagAttempts records the attempt count on a ProviderError, if err is one.
func tagAttempts(err error, attempts int) error {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		providerErr.Attempts = attempts
	}
	return err
}
