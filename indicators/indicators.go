// Package indicators computes the per-bar features and the directional
// signal the decision engine consumes. All kernels operate on plain slices
// and use a min-period of one, so early bars get best-effort values instead
// of NaNs.
package indicators

import (
	"math"

	"github.com/rustyeddy/decider/market"
)

// SMA is a simple rolling mean.
func SMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
			out[i] = sum / float64(period)
		} else {
			out[i] = sum / float64(i+1)
		}
	}
	return out
}

// EMA is an exponential moving average with span semantics
// (alpha = 2 / (span + 1)), seeded from the first value.
func EMA(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1.0)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// RSI is the relative strength index over simple rolling gain/loss means.
// The first bar has no delta and reports the neutral value 50.
func RSI(values []float64, period int) []float64 {
	n := len(values)
	out := make([]float64, n)
	if n == 0 {
		return out
	}

	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		d := values[i] - values[i-1]
		if d > 0 {
			gains[i] = d
		} else {
			losses[i] = -d
		}
	}

	avgGain := SMA(gains, period)
	avgLoss := SMA(losses, period)

	for i := 0; i < n; i++ {
		if i == 0 {
			out[i] = 50
			continue
		}
		rs := avgGain[i] / (avgLoss[i] + 1e-8)
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// ATR is the average true range over the series' bars.
func ATR(bars []market.Bar, period int) []float64 {
	n := len(bars)
	tr := make([]float64, n)
	for i, b := range bars {
		hl := b.High - b.Low
		if i == 0 {
			tr[i] = hl
			continue
		}
		prev := bars[i-1].Close
		tr[i] = math.Max(hl, math.Max(math.Abs(b.High-prev), math.Abs(b.Low-prev)))
	}
	return SMA(tr, period)
}

func rollingMax(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		lo := i - period + 1
		if lo < 0 {
			lo = 0
		}
		m := values[lo]
		for j := lo + 1; j <= i; j++ {
			if values[j] > m {
				m = values[j]
			}
		}
		out[i] = m
	}
	return out
}

func rollingMin(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		lo := i - period + 1
		if lo < 0 {
			lo = 0
		}
		m := values[lo]
		for j := lo + 1; j <= i; j++ {
			if values[j] < m {
				m = values[j]
			}
		}
		out[i] = m
	}
	return out
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
