package collector

import (
	"sort"
	"time"

	"LiveChart/internal/model"
)

// Normalize returns a copy of s whose bars are ascending, unique by timestamp
// and expressed in loc. On duplicate timestamps the later row wins. Rows whose
// open, high, low and close are all zero are provider placeholders and are dropped.
func Normalize(s *model.Series, loc *time.Location) *model.Series {
	if s == nil {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}

	bars := make([]model.OHLCV, 0, len(s.Bars))
	for _, b := range s.Bars {
		if b.Open == 0 && b.High == 0 && b.Low == 0 && b.Close == 0 {
			continue
		}
		b.Time = b.Time.In(loc)
		bars = append(bars, b)
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })

	out := bars[:0]
	for _, b := range bars {
		if n := len(out); n > 0 && out[n-1].Time.Equal(b.Time) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}

	norm := *s
	norm.Bars = out
	return &norm
}
