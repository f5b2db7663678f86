package features

import "math"

// Mean returns the arithmetic mean, or 0 for an empty series.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev returns the population standard deviation.
func StdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mean := Mean(xs)
	sum2 := 0.0
	for _, x := range xs {
		d := x - mean
		sum2 += d * d
	}
	return math.Sqrt(sum2 / float64(len(xs)))
}

// CoefficientOfVariation returns StdDev/Mean. A zero mean yields 0.
func CoefficientOfVariation(xs []float64) float64 {
	mean := Mean(xs)
	if mean == 0 {
		return 0
	}
	return StdDev(xs) / mean
}

// SMA returns the simple moving average of the last n samples.
// ok is false when fewer than n samples are available.
func SMA(xs []float64, n int) (float64, bool) {
	if n <= 0 || len(xs) < n {
		return 0, false
	}
	return Mean(xs[len(xs)-n:]), true
}

// RSI returns the relative strength index over the last n price changes,
// averaging gains and losses with a simple mean. A window without losses
// reads 100, a window without gains reads 0.
func RSI(xs []float64, n int) (float64, bool) {
	if n <= 0 || len(xs) < n+1 {
		return 0, false
	}
	var gain, loss float64
	for i := len(xs) - n; i < len(xs); i++ {
		d := xs[i] - xs[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	if gain == 0 {
		return 0, true
	}
	if loss == 0 {
		return 100, true
	}
	rs := (gain / float64(n)) / (loss / float64(n))
	return 100 - 100/(1+rs), true
}

// ComputeLogReturns computes r_t = ln(x_t / x_{t-1}); non-positive inputs yield 0.
func ComputeLogReturns(xs []float64) []float64 {
	if len(xs) < 2 {
		return nil
	}
	out := make([]float64, 0, len(xs)-1)
	for i := 1; i < len(xs); i++ {
		prev, cur := xs[i-1], xs[i]
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}
