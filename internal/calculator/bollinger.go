package calculator

import (
	"math"

	"LiveChart/internal/model"
)

// Params configures Compute.
type Params struct {
	Window     int
	K          float64
	Mode       StdDevMode
	LongWindow int // 0 disables the secondary moving average
}

// DefaultParams matches the classic 20-period, 2-sigma bands.
func DefaultParams() Params {
	return Params{Window: 20, K: 2.0, Mode: StdDevSample}
}

// BollingerBands returns the middle band (moving average) and the upper and lower
// bands at k standard deviations. Bands are NaN wherever the average or stddev is.
func BollingerBands(bars []model.OHLCV, window int, k float64, mode StdDevMode) (mid, upper, lower []float64) {
	mid = MovingAverage(bars, window)
	upper, lower = bands(mid, RollingStdDev(bars, window, mode), k)
	return mid, upper, lower
}

func bands(mid, std []float64, k float64) (upper, lower []float64) {
	upper = make([]float64, len(mid))
	lower = make([]float64, len(mid))
	for i := range mid {
		if !model.Defined(mid[i]) || !model.Defined(std[i]) {
			upper[i], lower[i] = math.NaN(), math.NaN()
			continue
		}
		upper[i] = mid[i] + k*std[i]
		lower[i] = mid[i] - k*std[i]
	}
	return upper, lower
}

// Compute derives every indicator the chart needs from bars.
func Compute(bars []model.OHLCV, p Params) *model.Indicators {
	ma := MovingAverage(bars, p.Window)
	std := RollingStdDev(bars, p.Window, p.Mode)
	upper, lower := bands(ma, std, p.K)

	ind := &model.Indicators{
		Window: p.Window,
		K:      p.K,
		MA:     ma,
		StdDev: std,
		Upper:  upper,
		Lower:  lower,
	}
	if p.LongWindow > 0 {
		ind.LongWindow = p.LongWindow
		ind.LongMA = MovingAverage(bars, p.LongWindow)
	}
	return ind
}
