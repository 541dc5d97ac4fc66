package collector

import (
	"context"
	"math"
	"sync"
	"time"

	"LiveChart/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
// Symbols listed in Unknown report DataUnavailable; Bars overrides the generated
// data per symbol.
type MockFetcher struct {
	Price   float64
	Bars    map[string][]model.OHLCV
	Unknown map[string]bool
	Err     error

	mu    sync.Mutex
	calls int
}

func (m *MockFetcher) Name() string { return "mock" }

// Calls returns how many times Fetch ran.
func (m *MockFetcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockFetcher) Fetch(ctx context.Context, symbol string, period model.Period, interval time.Duration) (*model.Series, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Unknown[symbol] {
		return nil, &DataUnavailableError{Symbol: symbol, Reason: "unknown symbol"}
	}
	series := &model.Series{Symbol: symbol, Period: period, Interval: interval, FetchedAt: time.Now()}
	if bars, ok := m.Bars[symbol]; ok {
		series.Bars = append([]model.OHLCV(nil), bars...)
		return series, nil
	}
	count := 390 // one regular US session at one-minute bars
	if period == model.PeriodLong {
		count = 500
	}
	if interval <= 0 {
		interval = time.Minute
	}
	price := m.Price
	if price == 0 {
		price = 100
	}
	series.Bars = generateMockBars(price, count, interval, time.Now().Truncate(interval))
	return series, nil
}

func generateMockBars(basePrice float64, count int, step time.Duration, end time.Time) []model.OHLCV {
	bars := make([]model.OHLCV, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.0005 + 0.004*math.Sin(float64(i)/9))
		bars[i] = model.OHLCV{
			Time:   end.Add(-time.Duration(count-1-i) * step),
			Open:   p * 0.999,
			High:   p * 1.003,
			Low:    p * 0.997,
			Close:  p,
			Volume: 100000 + float64((i*7919)%50000),
		}
	}
	return bars
}
