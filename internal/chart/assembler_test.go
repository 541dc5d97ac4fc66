package chart

import (
	"encoding/json"
	"testing"
	"time"

	"LiveChart/internal/calculator"
	"LiveChart/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearSeries(symbol string, n int) *model.Series {
	start := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	s := &model.Series{Symbol: symbol, Period: model.PeriodIntraday, Interval: time.Minute}
	for i := 0; i < n; i++ {
		c := 100 + float64(i)
		s.Bars = append(s.Bars, model.OHLCV{
			Time: start.Add(time.Duration(i) * time.Minute), Open: c - 0.5, High: c + 1, Low: c - 1, Close: c, Volume: float64(1000 + i),
		})
	}
	return s
}

func TestBuildLinearScenario(t *testing.T) {
	s := linearSeries("NVDA", 25)
	ind := calculator.Compute(s.Bars, calculator.DefaultParams())
	spec := Build(s, ind, DefaultOptions())

	assert.False(t, spec.Empty)
	assert.Equal(t, "NVDA Live Price", spec.Title)
	assert.Len(t, spec.Price.Candles, 25)
	assert.Equal(t, 25, spec.VolumeMarks())

	ma, ok := spec.LineByName("MA(20)")
	require.True(t, ok)
	require.Len(t, ma.Points, 6)
	assert.InDelta(t, 109.5, ma.Points[0].Value, 1e-9)
	assert.Equal(t, s.Bars[19].Time, ma.Points[0].Time)
	assert.Equal(t, ColorMA, ma.Color)

	upper, ok := spec.LineByName(NameUpper)
	require.True(t, ok)
	lower, ok := spec.LineByName(NameLower)
	require.True(t, ok)
	assert.Len(t, upper.Points, 6)
	assert.Len(t, lower.Points, 6)
	assert.Len(t, spec.Price.Band.Points, 6)
	assert.Equal(t, ColorBandFill, spec.Price.Band.Color)

	_, ok = spec.LineByName("MA(50)")
	assert.False(t, ok)

	assert.Equal(t, 25+6*4, spec.PriceMarks())
}

func TestBuildLayout(t *testing.T) {
	s := linearSeries("AAPL", 30)
	spec := Build(s, calculator.Compute(s.Bars, calculator.DefaultParams()), DefaultOptions())

	assert.InDelta(t, 0.7, spec.Price.Share, 1e-12)
	assert.InDelta(t, 0.3, spec.Volume.Share, 1e-12)
	assert.True(t, spec.Layout.SharedXAxis)
	assert.Equal(t, "plotly_dark", spec.Layout.Template)

	for _, c := range spec.Price.Candles {
		assert.GreaterOrEqual(t, c.Low, spec.Price.YRange.Min)
		assert.LessOrEqual(t, c.High, spec.Price.YRange.Max)
	}
	for _, l := range spec.Price.Lines {
		for _, p := range l.Points {
			assert.GreaterOrEqual(t, p.Value, spec.Price.YRange.Min)
			assert.LessOrEqual(t, p.Value, spec.Price.YRange.Max)
		}
	}
	assert.Equal(t, 0.0, spec.Volume.YRange.Min)
	assert.Greater(t, spec.Volume.YRange.Max, 1029.0)
	// volume panel scales independently of price
	assert.Less(t, spec.Price.YRange.Max, spec.Volume.YRange.Max)
}

func TestBuildEmpty(t *testing.T) {
	s := &model.Series{Symbol: "NVDA"}
	spec := Build(s, calculator.Compute(nil, calculator.DefaultParams()), DefaultOptions())
	assert.True(t, spec.Empty)
	assert.Equal(t, 0, spec.PriceMarks())
	assert.Equal(t, 0, spec.VolumeMarks())

	spec = Build(nil, nil, DefaultOptions())
	assert.True(t, spec.Empty)
}

func TestBuildShortSeries(t *testing.T) {
	s := linearSeries("NVDA", 10)
	spec := Build(s, calculator.Compute(s.Bars, calculator.DefaultParams()), DefaultOptions())

	assert.Len(t, spec.Price.Candles, 10)
	for _, l := range spec.Price.Lines {
		assert.Empty(t, l.Points, l.Name)
	}
	assert.Empty(t, spec.Price.Band.Points)

	// undefined values never reach the encoded chart
	_, err := json.Marshal(spec)
	require.NoError(t, err)
}

func TestBuildLongMA(t *testing.T) {
	s := linearSeries("NVDA", 60)
	p := calculator.DefaultParams()
	p.LongWindow = 50
	spec := Build(s, calculator.Compute(s.Bars, p), DefaultOptions())

	long, ok := spec.LineByName("MA(50)")
	require.True(t, ok)
	assert.Len(t, long.Points, 11)
	assert.Equal(t, ColorLongMA, long.Color)
}

func TestVolumeRising(t *testing.T) {
	s := linearSeries("NVDA", 2)
	s.Bars[1].Close = s.Bars[1].Open - 1
	spec := Build(s, nil, DefaultOptions())
	assert.True(t, spec.Volume.Bars[0].Rising)
	assert.False(t, spec.Volume.Bars[1].Rising)
	assert.Empty(t, spec.Price.Lines)
}
