package scoring

import "math"

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func clamp01(x float64) float64 { return clamp(x, 0, 1) }

func logistic(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// ramp is 0 at a, 1 at b and linear in between.
func ramp(x, a, b float64) float64 {
	if b == a {
		if x >= b {
			return 1
		}
		return 0
	}
	return clamp01((x - a) / (b - a))
}

// pct is the percent distance of a from b.
func pct(a, b float64) float64 { return relPct(a-b, b) }

func relPct(x, base float64) float64 {
	if base == 0 {
		return 0
	}
	return x / base * 100
}

// finite replaces NaN and Inf with the fallback.
func finite(x, fallback float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return fallback
	}
	return x
}

// delta is last minus first of a history, 0 when it is too short.
func delta(history []float64) float64 {
	if len(history) < 2 {
		return 0
	}
	return history[len(history)-1] - history[0]
}

// prevDelta is the change over the last step of a history.
func prevDelta(history []float64) float64 {
	if len(history) < 2 {
		return 0
	}
	return history[len(history)-1] - history[len(history)-2]
}
