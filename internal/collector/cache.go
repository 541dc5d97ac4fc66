package collector

import (
	"context"
	"fmt"
	"time"

	"LiveChart/internal/model"

	"github.com/dgraph-io/ristretto"
)

// CachedFetcher serves repeated fetches of the same key from memory for TTL.
// Only successful results are stored.
type CachedFetcher struct {
	Next  Fetcher
	TTL   time.Duration
	cache *ristretto.Cache
}

// NewCachedFetcher wraps next with a ristretto cache. A non-positive ttl
// disables caching and returns next unchanged.
func NewCachedFetcher(next Fetcher, ttl time.Duration) (Fetcher, error) {
	if ttl <= 0 {
		return next, nil
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     1 << 10,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create fetch cache: %w", err)
	}
	return &CachedFetcher{Next: next, TTL: ttl, cache: c}, nil
}

func (c *CachedFetcher) Name() string { return c.Next.Name() }

func cacheKey(symbol string, period model.Period, interval time.Duration) string {
	return fmt.Sprintf("%s|%s|%d", symbol, period, interval)
}

func (c *CachedFetcher) Fetch(ctx context.Context, symbol string, period model.Period, interval time.Duration) (*model.Series, error) {
	key := cacheKey(symbol, period, interval)
	if v, ok := c.cache.Get(key); ok {
		if s, ok := v.(*model.Series); ok {
			return copySeries(s), nil
		}
	}
	s, err := c.Next.Fetch(ctx, symbol, period, interval)
	if err != nil {
		return nil, err
	}
	c.cache.SetWithTTL(key, copySeries(s), 1, c.TTL)
	return s, nil
}

// Wait blocks until pending cache writes are visible.
func (c *CachedFetcher) Wait() { c.cache.Wait() }

// Close releases the cache's background goroutines.
func (c *CachedFetcher) Close() { c.cache.Close() }

func copySeries(s *model.Series) *model.Series {
	out := *s
	out.Bars = append([]model.OHLCV(nil), s.Bars...)
	return &out
}
