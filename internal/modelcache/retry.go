package modelcache

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"
)

const (
	maxRetries     = 3
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
)

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     maxRetries,
		InitialBackoff: initialBackoff,
		MaxBackoff:     maxBackoff,
	}
}

// shouldRetry determines if a status is worth another attempt
func shouldRetry(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// calculateBackoff calculates exponential backoff duration
func calculateBackoff(attempt int, config *RetryConfig) time.Duration {
	backoff := float64(config.InitialBackoff) * math.Pow(2, float64(attempt))
	if backoff > float64(config.MaxBackoff) {
		backoff = float64(config.MaxBackoff)
	}
	return time.Duration(backoff)
}

// RetryNotifier is told about a failed attempt before the backoff wait.
type RetryNotifier func(attempt, maxRetries int, backoff time.Duration, err error)

type notifierKey struct{}

// WithRetryNotifier returns a context whose downloads report retries to fn.
func WithRetryNotifier(ctx context.Context, fn RetryNotifier) context.Context {
	return context.WithValue(ctx, notifierKey{}, fn)
}

func notifierFrom(ctx context.Context) RetryNotifier {
	fn, _ := ctx.Value(notifierKey{}).(RetryNotifier)
	return fn
}

// statusError is a non-200 response.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.code)
}

// getWithBackoff issues a GET and retries transport errors and retryable
// statuses. The caller owns the returned body.
func (c *Cache) getWithBackoff(ctx context.Context, url string) (*http.Response, error) {
	config := c.retry
	notify := notifierFrom(ctx)
	var lastErr error

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.client.Do(req)

		if err == nil && resp.StatusCode == http.StatusOK {
			return resp, nil
		}

		if err != nil {
			lastErr = err
		} else {
			resp.Body.Close()
			lastErr = &statusError{code: resp.StatusCode}
			if !shouldRetry(resp.StatusCode) {
				return nil, lastErr
			}
		}

		if attempt == config.MaxRetries {
			break
		}

		backoff := calculateBackoff(attempt, config)
		c.logger.Warn().
			Int("attempt", attempt+1).
			Int("max_retries", config.MaxRetries).
			Dur("backoff", backoff).
			Err(lastErr).
			Msg("Weights download failed, retrying")
		if notify != nil {
			notify(attempt+1, config.MaxRetries, backoff, lastErr)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("download failed after %d retries: %w", config.MaxRetries, lastErr)
}
