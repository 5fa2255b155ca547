package resume

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	defaultMaxAttempts     = 3
	defaultInitialInterval = 500 * time.Millisecond
)

// RetryPolicy bounds retries of the stash and schedule steps.
type RetryPolicy struct {
	// MaxAttempts includes the first attempt. Defaults to 3.
	MaxAttempts uint

	// InitialInterval is the first backoff wait. Defaults to 500ms.
	InitialInterval time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts == 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = defaultInitialInterval
	}
	return p
}

func (p RetryPolicy) do(ctx context.Context, logger *slog.Logger, step string, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval

	_, err := backoff.Retry(ctx,
		func() (struct{}, error) { return struct{}{}, op() },
		backoff.WithBackOff(b),
		backoff.WithMaxTries(p.MaxAttempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logger.Warn("resume: retrying", "step", step, "wait", wait, "error", err)
		}),
	)
	return err
}

func permanent(err error) error {
	return backoff.Permanent(err)
}
