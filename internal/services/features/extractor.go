package features

import (
	"math"
	"time"

	"FinScore/internal/domain/models"
)

// LogReturns computes r_t = ln(C_t / C_{t-1}).
// It returns a slice of length len(closes)-1, or nil if insufficient data.
func LogReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev := closes[i-1]
		cur := closes[i]
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// RealizedVolatility computes annualized volatility of the last window log
// returns using the sample variance. ok is false when there is not enough data.
func RealizedVolatility(logReturns []float64, window int, barsPerYear float64) (float64, bool) {
	if window <= 1 || len(logReturns) < window {
		return 0, false
	}
	sum := 0.0
	sum2 := 0.0
	for i := len(logReturns) - window; i < len(logReturns); i++ {
		r := logReturns[i]
		sum += r
		sum2 += r * r
	}
	n := float64(window)
	mean := sum / n
	variance := (sum2 - n*mean*mean) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance * barsPerYear), true
}

// PctChange returns the percent change over n bars ending at the last close.
func PctChange(closes []float64, n int) (float64, bool) {
	if n <= 0 || len(closes) < n+1 {
		return 0, false
	}
	base := closes[len(closes)-1-n]
	if base == 0 {
		return 0, false
	}
	return (closes[len(closes)-1] - base) / base * 100, true
}

// LimitStreak counts the consecutive bars ending at closes[end] whose one-bar
// change is at least pct.
func LimitStreak(closes []float64, end int, pct float64) int {
	n := 0
	for i := end; i > 0 && i < len(closes); i-- {
		base := closes[i-1]
		if base <= 0 || (closes[i]-base)/base*100 < pct {
			break
		}
		n++
	}
	return n
}

// MeanSlopePct is the mean per-bar percent change of the last lookback steps
// of values.
func MeanSlopePct(values []float64, lookback int) (float64, bool) {
	if lookback <= 0 || len(values) < lookback+1 {
		return 0, false
	}
	sum := 0.0
	start := len(values) - lookback
	for i := start; i < len(values); i++ {
		prev := values[i-1]
		if prev == 0 {
			return 0, false
		}
		sum += (values[i] - prev) / prev * 100
	}
	return sum / float64(lookback), true
}

// BarsPerYear returns the approximate number of bars per year for a timeframe.
// Intraday counts assume a 4-hour trading day.
func BarsPerYear(tf models.Timeframe) float64 {
	const tradingDays = 252
	switch tf {
	case models.TF60m:
		return tradingDays * 4
	case models.TF30m:
		return tradingDays * 8
	case models.TF15m:
		return tradingDays * 16
	case models.TF5m:
		return tradingDays * 48
	case models.TF1m:
		return tradingDays * 240
	default:
		return tradingDays
	}
}

// AlignRange rounds a range to bar boundaries for the timeframe.
func AlignRange(rng models.DateRange, tf models.Timeframe) models.DateRange {
	d := tf.Duration()
	if tf == models.TF1d {
		y, m, dd := rng.From.Date()
		from := time.Date(y, m, dd, 0, 0, 0, 0, rng.From.Location())
		return models.DateRange{From: from, To: rng.To}
	}
	return models.DateRange{From: rng.From.Truncate(d), To: rng.To.Truncate(d).Add(d - time.Nanosecond)}
}
