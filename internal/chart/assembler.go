package chart

import (
	"fmt"
	"time"

	"LiveChart/internal/calculator"
	"LiveChart/internal/model"
)

// Overlay colours and theme.
const (
	ColorMA       = "blue"
	ColorLongMA   = "orange"
	ColorBand     = "red"
	ColorBandFill = "rgba(255,0,0,0.1)"
	ColorVolume   = "lightgray"

	NameUpper = "BB Upper"
	NameLower = "BB Lower"
)

// Options controls layout of the assembled chart.
type Options struct {
	PriceShare  float64
	VolumeShare float64
	Template    string
	Timezone    string
	RangePad    float64 // fraction added above and below each y range
}

// DefaultOptions returns the 70/30 dark layout.
func DefaultOptions() Options {
	return Options{
		PriceShare:  0.7,
		VolumeShare: 0.3,
		Template:    "plotly_dark",
		Timezone:    "America/New_York",
		RangePad:    0.02,
	}
}

// Title returns the chart heading for symbol.
func Title(symbol string) string {
	return fmt.Sprintf("%s Live Price", symbol)
}

// MAName labels a moving average line by its window.
func MAName(window int) string {
	return fmt.Sprintf("MA(%d)", window)
}

// Build lays out series and its indicators as a two-panel chart. An empty
// series yields an empty chart rather than an error. ind must be aligned with
// series.Bars; a nil ind draws candles and volume only.
func Build(series *model.Series, ind *model.Indicators, opts Options) *model.ChartSpec {
	symbol := ""
	period := model.PeriodIntraday
	if series != nil {
		symbol = series.Symbol
		period = series.Period
	}
	spec := &model.ChartSpec{
		Symbol:      symbol,
		Title:       Title(symbol),
		Period:      period,
		GeneratedAt: time.Now(),
		Price: model.PriceLayer{
			Share:   opts.PriceShare,
			Candles: []model.Candle{},
			Lines:   []model.Line{},
			Band:    model.BandFill{Color: ColorBandFill, Points: []model.BandPoint{}},
		},
		Volume: model.VolumeLayer{
			Share: opts.VolumeShare,
			Color: ColorVolume,
			Bars:  []model.VolumeBar{},
		},
		Layout: model.Layout{
			Template:    opts.Template,
			SharedXAxis: true,
			XTitle:      "Time",
			PriceTitle:  "Price",
			VolumeTitle: "Volume",
			Timezone:    opts.Timezone,
		},
	}
	if series.Len() == 0 {
		spec.Empty = true
		return spec
	}

	bars := series.Bars
	spec.Price.Candles = make([]model.Candle, len(bars))
	spec.Volume.Bars = make([]model.VolumeBar, len(bars))
	for i, b := range bars {
		spec.Price.Candles[i] = model.Candle{Time: b.Time, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close}
		spec.Volume.Bars[i] = model.VolumeBar{Time: b.Time, Volume: b.Volume, Rising: b.Close >= b.Open}
	}

	var overlays [][]float64
	if ind.Len() == len(bars) {
		spec.Price.Lines = append(spec.Price.Lines,
			line(MAName(ind.Window), ColorMA, ind.Window, bars, ind.MA),
			line(NameUpper, ColorBand, ind.Window, bars, ind.Upper),
			line(NameLower, ColorBand, ind.Window, bars, ind.Lower),
		)
		overlays = append(overlays, ind.MA, ind.Upper, ind.Lower)
		if ind.LongWindow > 0 && len(ind.LongMA) == len(bars) {
			spec.Price.Lines = append(spec.Price.Lines, line(MAName(ind.LongWindow), ColorLongMA, ind.LongWindow, bars, ind.LongMA))
			overlays = append(overlays, ind.LongMA)
		}
		for i, b := range bars {
			if model.Defined(ind.Upper[i]) && model.Defined(ind.Lower[i]) {
				spec.Price.Band.Points = append(spec.Price.Band.Points,
					model.BandPoint{Time: b.Time, Upper: ind.Upper[i], Lower: ind.Lower[i]})
			}
		}
	}

	// bars is non-empty here, so the range helpers cannot fail.
	low, high, _ := calculator.PriceRange(bars, overlays...)
	low, high = calculator.Pad(low, high, opts.RangePad)
	spec.Price.YRange = model.AxisRange{Min: low, Max: high}

	peak, _ := calculator.VolumeRange(bars)
	_, vmax := calculator.Pad(0, peak, opts.RangePad)
	spec.Volume.YRange = model.AxisRange{Min: 0, Max: vmax}
	return spec
}

func line(name, color string, window int, bars []model.OHLCV, values []float64) model.Line {
	l := model.Line{Name: name, Color: color, Window: window, Points: []model.LinePoint{}}
	for i, v := range values {
		if model.Defined(v) {
			l.Points = append(l.Points, model.LinePoint{Time: bars[i].Time, Value: v})
		}
	}
	return l
}
