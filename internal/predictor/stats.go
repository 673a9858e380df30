package predictor

import "math"

// Mean returns the arithmetic mean of xs, or 0 for empty input.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// CovarianceSlope returns the least-squares slope of ys against xs.
// It is 0 for fewer than 2 pairs or when xs has no variance.
func CovarianceSlope(xs, ys []float64) float64 {
	n := min(len(xs), len(ys))
	if n < 2 {
		return 0
	}
	xMean := Mean(xs[:n])
	yMean := Mean(ys[:n])

	var num, den float64
	for i := 0; i < n; i++ {
		dx := xs[i] - xMean
		num += dx * (ys[i] - yMean)
		den += dx * dx
	}
	// Identical xs can leave a rounding residue in den.
	if den == 0 || constant(xs[:n]) {
		return 0
	}
	return num / den
}

// constant reports whether every value equals the first.
func constant(xs []float64) bool {
	for _, x := range xs[1:] {
		if x != xs[0] {
			return false
		}
	}
	return true
}

func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Round2 rounds half up to two decimals.
func Round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
