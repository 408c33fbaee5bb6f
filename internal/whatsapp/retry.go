package whatsapp

import (
	"context"
	"errors"
	"time"

	"whatsapp-console/internal/metrics"

	"go.uber.org/zap"
)

const (
	maxAttempts = 3
	minBackoff  = 1 * time.Second
	maxBackoff  = 5 * time.Second
)

// isRetriable classifies a send failure. A 4xx other than 429 will never
// succeed on retry (bad request, auth, template not approved) and must fail
// fast; 429 and 5xx are transient, as are transport errors and timeouts.
func isRetriable(err error) bool {
	var perr *ProviderError
	if errors.As(err, &perr) {
		if perr.StatusCode >= 400 && perr.StatusCode < 500 && perr.StatusCode != 429 {
			return false
		}
	}
	return true
}

// retrySend runs fn up to maxAttempts times with exponential backoff,
// bailing out immediately on non-retriable errors. The last error surfaces
// when attempts are exhausted.
func retrySend(ctx context.Context, logger *zap.Logger, fn func() (*SendResult, error)) (*SendResult, error) {
	backoff := minBackoff
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !isRetriable(err) {
			return nil, err
		}
		if attempt == maxAttempts {
			break
		}
		metrics.ProviderRetries.Inc()
		logger.Warn("send attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return nil, lastErr
}
