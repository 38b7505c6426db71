package models

import "time"

// Timeframe is the bar resolution.
type Timeframe string

const (
	TF1d  Timeframe = "1d"
	TF60m Timeframe = "60m"
	TF30m Timeframe = "30m"
	TF15m Timeframe = "15m"
	TF5m  Timeframe = "5m"
	TF1m  Timeframe = "1m"
)

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	switch tf {
	case TF1d, TF60m, TF30m, TF15m, TF5m, TF1m:
		return true
	default:
		return false
	}
}

// DefaultTimeframe returns the default timeframe.
func DefaultTimeframe() Timeframe { return TF1d }

// NormalizeTimeframe converts raw string to a valid timeframe (or default).
func NormalizeTimeframe(s string) Timeframe {
	if s == "" {
		return DefaultTimeframe()
	}
	tf := Timeframe(s)
	if IsValidTimeframe(tf) {
		return tf
	}
	return DefaultTimeframe()
}

// Duration is the nominal length of one bar.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF60m:
		return time.Hour
	case TF30m:
		return 30 * time.Minute
	case TF15m:
		return 15 * time.Minute
	case TF5m:
		return 5 * time.Minute
	case TF1m:
		return time.Minute
	default:
		return 24 * time.Hour
	}
}

// Span estimates the calendar time needed to cover n bars, including
// weekends and overnight gaps.
func (tf Timeframe) Span(n int) time.Duration {
	if tf == TF1d || !IsValidTimeframe(tf) {
		// ~5 trading days per 7 calendar days, plus holiday slack
		days := n*7/5 + 10
		return time.Duration(days) * 24 * time.Hour
	}
	// a session covers roughly a sixth of the calendar once nights and weekends are counted
	return time.Duration(n)*tf.Duration()*6 + 72*time.Hour
}
