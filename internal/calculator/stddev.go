package calculator

import (
	"fmt"
	"math"
	"strings"

	"LiveChart/internal/model"

	"gonum.org/v1/gonum/stat"
)

// StdDevMode picks the variance denominator.
type StdDevMode string

const (
	StdDevSample     StdDevMode = "sample"     // n-1 denominator
	StdDevPopulation StdDevMode = "population" // n
)

// ParseStdDevMode maps a config string onto a StdDevMode. Empty means sample.
func ParseStdDevMode(s string) (StdDevMode, error) {
	switch StdDevMode(strings.ToLower(strings.TrimSpace(s))) {
	case StdDevSample, "":
		return StdDevSample, nil
	case StdDevPopulation:
		return StdDevPopulation, nil
	default:
		return "", fmt.Errorf("unknown stddev mode %q", s)
	}
}

// RollingStdDev returns the standard deviation of closes over the same trailing
// window and alignment as MovingAverage. A sample stddev over a window of one is NaN.
func RollingStdDev(bars []model.OHLCV, window int, mode StdDevMode) []float64 {
	fn := func(w []float64) float64 { return stat.StdDev(w, nil) }
	if mode == StdDevPopulation {
		fn = func(w []float64) float64 { return math.Sqrt(stat.PopVariance(w, nil)) }
	}
	return rolling(extractCloses(bars), window, fn)
}
