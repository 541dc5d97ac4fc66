package collector

import (
	"context"
	"errors"
	"time"

	"LiveChart/internal/model"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// RetryFetcher retries transient provider failures with exponential backoff.
// DataUnavailable and non-retryable provider errors are returned immediately.
type RetryFetcher struct {
	Next       Fetcher
	MaxRetries uint64
	Initial    time.Duration
	Logger     *zap.Logger
}

// NewRetryFetcher wraps next with up to maxRetries extra attempts.
func NewRetryFetcher(next Fetcher, maxRetries int, logger *zap.Logger) *RetryFetcher {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryFetcher{Next: next, MaxRetries: uint64(maxRetries), Initial: 500 * time.Millisecond, Logger: logger}
}

func (r *RetryFetcher) Name() string { return r.Next.Name() }

func (r *RetryFetcher) Fetch(ctx context.Context, symbol string, period model.Period, interval time.Duration) (*model.Series, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.Initial
	eb.MaxElapsedTime = 0 // bounded by retries and ctx

	var series *model.Series
	attempt := 0
	op := func() error {
		attempt++
		s, err := r.Next.Fetch(ctx, symbol, period, interval)
		if err == nil {
			series = s
			return nil
		}
		var pe *ProviderError
		if errors.As(err, &pe) && pe.Retryable() {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		r.Logger.Warn("fetch failed, retrying",
			zap.String("symbol", symbol),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	b := backoff.WithContext(backoff.WithMaxRetries(eb, r.MaxRetries), ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, err
	}
	return series, nil
}
