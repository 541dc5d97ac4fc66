package model

import "math"

// Indicators holds the derived series for one Series, aligned 1:1 with its bars.
// Positions without enough history hold NaN.
type Indicators struct {
	Window int
	K      float64
	MA     []float64
	StdDev []float64
	Upper  []float64
	Lower  []float64

	// LongWindow is 0 when the secondary moving average is disabled.
	LongWindow int
	LongMA     []float64
}

// IndicatorRow is the per-timestamp view of Indicators.
type IndicatorRow struct {
	MovingAverage float64
	BandUpper     float64
	BandLower     float64
}

// Len returns the number of aligned positions.
func (ind *Indicators) Len() int {
	if ind == nil {
		return 0
	}
	return len(ind.MA)
}

// Row returns the values at index i. Out-of-range indices yield an undefined row.
func (ind *Indicators) Row(i int) IndicatorRow {
	if i < 0 || i >= ind.Len() {
		return IndicatorRow{MovingAverage: math.NaN(), BandUpper: math.NaN(), BandLower: math.NaN()}
	}
	return IndicatorRow{
		MovingAverage: ind.MA[i],
		BandUpper:     ind.Upper[i],
		BandLower:     ind.Lower[i],
	}
}

// Defined reports whether v carries a value.
func Defined(v float64) bool {
	return !math.IsNaN(v)
}

// CountDefined returns how many entries of values are defined.
func CountDefined(values []float64) int {
	n := 0
	for _, v := range values {
		if Defined(v) {
			n++
		}
	}
	return n
}
