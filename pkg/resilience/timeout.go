// Package resilience provides fault-tolerance primitives: a context-based
// timeout wrapper, exponential-backoff retry, and a circuit breaker.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/reviewguard/reviewguard/pkg/errors"
)

// WithTimeout runs fn with a derived context that is cancelled after the
// given timeout. A deadline hit on the derived context (but not on the
// parent) is reported as ErrTimeout so callers can classify it.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(timeoutCtx)
	if err == nil {
		return nil
	}
	if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%s: %w (limit: %v)", name, apperrors.ErrTimeout, timeout)
	}
	return err
}
