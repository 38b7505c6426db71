package models

import (
	"strconv"
	"time"
)

// Indicator names in an IndicatorSet.
const (
	IndClose          = "close"
	IndChangePct      = "change_pct"
	IndMAShort        = "ma_short"
	IndMAMedium       = "ma_medium"
	IndMALong         = "ma_long"
	IndMAMediumSlope  = "ma_medium_slope"
	IndRSI            = "rsi"
	IndMACD           = "macd"
	IndMACDSignal     = "macd_signal"
	IndMACDHist       = "macd_hist"
	IndBollUpper      = "boll_upper"
	IndBollMiddle     = "boll_middle"
	IndBollLower      = "boll_lower"
	IndBollWidth      = "boll_width"
	IndBollPercentB   = "boll_percent_b"
	IndATR            = "atr"
	IndATRPct         = "atr_pct"
	IndVolumeRatio    = "volume_ratio"
	IndVolumeAbnormal = "volume_abnormal"
	IndSupport        = "support"
	IndResistance     = "resistance"
	IndROC            = "roc"
	IndRealizedVol    = "realized_vol"
	// IndLimitStreak counts the consecutive limit-up bars ending at the last
	// bar; IndPrevLimitStreak the ones ending one bar earlier.
	IndLimitStreak     = "limit_streak"
	IndPrevLimitStreak = "prev_limit_streak"
)

// LimitMovePct is the one-bar change at or above which a bar counts as a limit
// move. It sits under 10 so that board prices rounded to the tick still count.
const LimitMovePct = 9.9

// ReturnPeriods are the horizons reported as ret_N, used for relative strength.
var ReturnPeriods = []int{5, 10, 20, 60}

// ReturnName is the indicator name of the n-bar return.
func ReturnName(n int) string { return "ret_" + strconv.Itoa(n) }

// Indicator is the latest value of one indicator. History is oldest first and
// ends with Value.
type Indicator struct {
	Value     float64   `json:"value"`
	History   []float64 `json:"history,omitempty"`
	Available bool      `json:"available"`
	Reason    string    `json:"reason,omitempty"`
}

// DataQuality counts repairs applied to the input series.
type DataQuality struct {
	ForwardFilled  int `json:"forward_filled"`
	DroppedLeading int `json:"dropped_leading"`
	MissingVolume  int `json:"missing_volume"`
}

func (q DataQuality) Clean() bool {
	return q.ForwardFilled == 0 && q.DroppedLeading == 0 && q.MissingVolume == 0
}

// IndicatorSet maps indicator names to their latest values.
type IndicatorSet struct {
	Values  map[string]Indicator `json:"values"`
	Bars    int                  `json:"bars"`
	AsOf    time.Time            `json:"as_of"`
	Quality DataQuality          `json:"quality"`
}

func NewIndicatorSet(bars int, asOf time.Time) IndicatorSet {
	return IndicatorSet{Values: make(map[string]Indicator, 32), Bars: bars, AsOf: asOf}
}

func (s IndicatorSet) Set(name string, v float64) {
	s.Values[name] = Indicator{Value: v, Available: true}
}

func (s IndicatorSet) SetWithHistory(name string, v float64, history []float64) {
	s.Values[name] = Indicator{Value: v, History: history, Available: true}
}

func (s IndicatorSet) SetUnavailable(name, reason string) {
	s.Values[name] = Indicator{Reason: reason}
}

// Get returns the value and whether it is available.
func (s IndicatorSet) Get(name string) (float64, bool) {
	ind, ok := s.Values[name]
	if !ok || !ind.Available {
		return 0, false
	}
	return ind.Value, true
}

func (s IndicatorSet) History(name string) []float64 {
	return s.Values[name].History
}

// Missing returns the names from the list that are not available, in order.
func (s IndicatorSet) Missing(names ...string) []string {
	var out []string
	for _, n := range names {
		if _, ok := s.Get(n); !ok {
			out = append(out, n)
		}
	}
	return out
}
