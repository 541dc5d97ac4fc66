package calculator

import (
	"errors"
	"math"

	"LiveChart/internal/model"
)

// PriceRange scans bar highs and lows, plus any defined overlay values, and
// returns the lowest and highest price that must stay visible.
func PriceRange(bars []model.OHLCV, overlays ...[]float64) (low, high float64, err error) {
	if len(bars) == 0 {
		return 0, 0, errors.New("no bars provided")
	}
	high = math.Inf(-1)
	low = math.Inf(1)
	for _, b := range bars {
		if b.High > high {
			high = b.High
		}
		if b.Low < low {
			low = b.Low
		}
	}
	for _, values := range overlays {
		for _, v := range values {
			if !model.Defined(v) {
				continue
			}
			if v > high {
				high = v
			}
			if v < low {
				low = v
			}
		}
	}
	return low, high, nil
}

// VolumeRange returns the largest volume among bars.
func VolumeRange(bars []model.OHLCV) (float64, error) {
	if len(bars) == 0 {
		return 0, errors.New("no bars provided")
	}
	peak := 0.0
	for _, b := range bars {
		if b.Volume > peak {
			peak = b.Volume
		}
	}
	return peak, nil
}

// Pad widens [low, high] by frac of its span on each side. A flat range is widened by frac of its level.
func Pad(low, high, frac float64) (float64, float64) {
	span := high - low
	if span == 0 {
		span = math.Abs(high)
		if span == 0 {
			span = 1
		}
	}
	return low - span*frac, high + span*frac
}
