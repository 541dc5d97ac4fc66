package model

import (
	"fmt"
	"strings"
	"time"
)

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Period selects how far back a fetch reaches.
type Period string

const (
	PeriodIntraday Period = "intraday" // current trading day
	PeriodLong     Period = "long"     // full daily history
)

// ParsePeriod maps a config string onto a Period.
func ParsePeriod(s string) (Period, error) {
	switch Period(strings.ToLower(strings.TrimSpace(s))) {
	case PeriodIntraday, "":
		return PeriodIntraday, nil
	case PeriodLong:
		return PeriodLong, nil
	default:
		return "", fmt.Errorf("unknown period %q", s)
	}
}

// Series holds an ordered run of bars for one symbol.
// Bars are ascending by Time, unique, and share one location once normalized.
type Series struct {
	Symbol    string
	Period    Period
	Interval  time.Duration
	Bars      []OHLCV
	FetchedAt time.Time
}

// Len returns the number of bars; a nil series has none.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bars)
}

// Last returns the most recent bar.
func (s *Series) Last() (OHLCV, bool) {
	if s.Len() == 0 {
		return OHLCV{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Closes extracts the close prices in order.
func (s *Series) Closes() []float64 {
	if s == nil {
		return nil
	}
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}
