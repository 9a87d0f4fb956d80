// Package resilience wraps upstream calls with retries and a circuit
// breaker so one flaky remote endpoint cannot wedge the gateway.
package resilience

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Retry runs fn up to attempts times, sleeping delay between tries. It
// stops early when the context is done and wraps the last error.
func Retry(ctx context.Context, attempts int, delay time.Duration, logger *zap.Logger, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			logger.Info("Retrying upstream request", zap.Int("attempt", i+1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err = fn()
		if err == nil {
			return nil
		}
	}
	return fmt.Errorf("after %d attempts, last error: %w", attempts, err)
}
