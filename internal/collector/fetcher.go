package collector

import (
	"context"
	"time"

	"LiveChart/internal/model"
)

// Fetcher retrieves recent bars for a symbol from a market data provider.
// Implementations fail with *DataUnavailableError when the provider has no rows
// for the symbol and with *ProviderError for transport or rate-limit failures.
type Fetcher interface {
	Fetch(ctx context.Context, symbol string, period model.Period, interval time.Duration) (*model.Series, error)
	Name() string
}
