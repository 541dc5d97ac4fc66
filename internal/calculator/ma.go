package calculator

import (
	"errors"
	"math"

	"LiveChart/internal/model"

	"gonum.org/v1/gonum/stat"
)

// CalculateSMA computes the simple moving average of the given prices over the specified period.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, errors.New("not enough data for SMA calculation")
	}
	return stat.Mean(prices[len(prices)-period:], nil), nil
}

// MovingAverage returns the trailing simple moving average of closes for every bar.
// Index i holds the mean of closes[i-window+1..i]; the first window-1 entries are NaN.
func MovingAverage(bars []model.OHLCV, window int) []float64 {
	return rolling(extractCloses(bars), window, func(w []float64) float64 {
		return stat.Mean(w, nil)
	})
}

// rolling applies fn to every full trailing window of values.
// Windows that would reach before index 0 produce NaN, as does a non-positive window.
func rolling(values []float64, window int, fn func([]float64) float64) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		if window <= 0 || i < window-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = fn(values[i-window+1 : i+1])
	}
	return out
}

func extractCloses(bars []model.OHLCV) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}
