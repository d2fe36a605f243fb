package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/navikt/su-se-bakover-sub020/hendelse"
)

type retryConfig struct {
	maxTries        uint
	maxElapsedTime  time.Duration
	initialInterval time.Duration
}

// RetryOption configures RetryOnConflict.
type RetryOption func(*retryConfig)

// WithMaxTries bounds the number of attempts.
func WithMaxTries(n uint) RetryOption {
	return func(c *retryConfig) {
		c.maxTries = n
	}
}

// WithMaxElapsedTime bounds the total time spent retrying.
func WithMaxElapsedTime(d time.Duration) RetryOption {
	return func(c *retryConfig) {
		c.maxElapsedTime = d
	}
}

// WithInitialInterval sets the first backoff delay.
func WithInitialInterval(d time.Duration) RetryOption {
	return func(c *retryConfig) {
		c.initialInterval = d
	}
}

// RetryOnConflict runs op until it succeeds, fails with an error other than a
// version conflict, or the retry budget is spent. op must reload the aggregate
// on every attempt.
func RetryOnConflict(ctx context.Context, op func(ctx context.Context) error, opts ...RetryOption) error {
	cfg := retryConfig{
		maxTries:        5,
		maxElapsedTime:  10 * time.Second,
		initialInterval: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	operation := func() (struct{}, error) {
		err := op(ctx)
		if err == nil || errors.Is(err, hendelse.ErrVersionConflict) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.initialInterval

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(cfg.maxTries),
		backoff.WithMaxElapsedTime(cfg.maxElapsedTime),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.WarnContext(ctx, "Version conflict, retrying", "error", err, "retryIn", next)
		}),
	)
	return err
}
