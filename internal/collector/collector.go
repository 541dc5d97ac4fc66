package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"LiveChart/internal/model"

	"go.uber.org/zap"
)

// Collector fetches a symbol's series and hands back a normalized copy.
type Collector struct {
	Fetcher  Fetcher
	Period   model.Period
	Interval time.Duration
	Location *time.Location
	Logger   *zap.Logger
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, period model.Period, interval time.Duration, loc *time.Location, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{Fetcher: fetcher, Period: period, Interval: interval, Location: loc, Logger: logger}
}

// Collect fetches and normalizes the series for symbol. An empty result is
// reported as DataUnavailable; a context deadline is reported as a ProviderError.
func (c *Collector) Collect(ctx context.Context, symbol string) (*model.Series, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, &DataUnavailableError{Reason: "empty symbol"}
	}

	raw, err := c.Fetcher.Fetch(ctx, symbol, c.Period, c.Interval)
	if err != nil {
		if !IsProviderError(err) && !IsDataUnavailable(err) {
			err = classifyContextErr(c.Fetcher.Name(), err)
		}
		return nil, err
	}

	series := Normalize(raw, c.Location)
	if series.Len() == 0 {
		return nil, &DataUnavailableError{Symbol: symbol, Reason: "provider returned no rows"}
	}
	series.Symbol = symbol
	if series.FetchedAt.IsZero() {
		series.FetchedAt = time.Now()
	}

	c.Logger.Debug("series collected",
		zap.String("symbol", symbol),
		zap.String("provider", c.Fetcher.Name()),
		zap.Int("bars", series.Len()))
	return series, nil
}

func classifyContextErr(provider string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &ProviderError{Provider: provider, Op: "timeout", Err: err}
	case errors.Is(err, context.Canceled):
		return &ProviderError{Provider: provider, Op: "canceled", Err: err}
	default:
		return &ProviderError{Provider: provider, Op: "fetch", Err: fmt.Errorf("unclassified: %w", err)}
	}
}
