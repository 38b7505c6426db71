package indicators

import (
	"fmt"
	"math"
	"time"

	"FinScore/internal/domain/models"
	domsvc "FinScore/internal/domain/service"
	"FinScore/internal/services/features"
)

// Engine computes the indicator set for a price series.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

var _ domsvc.IndicatorEngine = (*Engine)(nil)

// input is the sanitized column view of a series.
type input struct {
	high, low, close, volume []float64
	quality                  models.DataQuality
}

// Compute never fails on short history; indicators that cannot be computed are
// reported unavailable. It fails only on invalid params or a series without a
// single usable close.
func (e *Engine) Compute(series *models.PriceSeries, params models.Params) (models.IndicatorSet, error) {
	if err := params.Validate(); err != nil {
		return models.IndicatorSet{}, err
	}
	if series == nil || series.Len() == 0 {
		return models.IndicatorSet{}, fmt.Errorf("compute: %w", models.ErrDataUnavailable)
	}
	in, asOf, ok := sanitize(series)
	if !ok {
		return models.IndicatorSet{}, fmt.Errorf("compute %s: no valid close: %w", series.Symbol(), models.ErrDataUnavailable)
	}

	n := len(in.close)
	set := models.NewIndicatorSet(n, asOf)
	set.Quality = in.quality
	price := in.close[n-1]
	set.Set(models.IndClose, price)

	setPct(set, models.IndChangePct, in.close, 1)
	setPct(set, models.IndROC, in.close, params.MomentumPeriod)
	for _, p := range models.ReturnPeriods {
		setPct(set, models.ReturnName(p), in.close, p)
	}

	if n >= 2 {
		set.Set(models.IndLimitStreak, float64(features.LimitStreak(in.close, n-1, models.LimitMovePct)))
		set.Set(models.IndPrevLimitStreak, float64(features.LimitStreak(in.close, n-2, models.LimitMovePct)))
	} else {
		set.SetUnavailable(models.IndLimitStreak, insufficient(2))
		set.SetUnavailable(models.IndPrevLimitStreak, insufficient(2))
	}

	hl := params.HistoryLen

	setLast(set, models.IndMAShort, SMA(in.close, params.ShortMA), params.ShortMA, 0)
	maMedium := SMA(in.close, params.MediumMA)
	setLast(set, models.IndMAMedium, maMedium, params.MediumMA, hl)
	setLast(set, models.IndMALong, SMA(in.close, params.LongMA), params.LongMA, 0)
	if n >= params.MediumMA {
		if slope, ok := features.MeanSlopePct(maMedium[params.MediumMA-1:], params.SlopeLookback); ok {
			set.Set(models.IndMAMediumSlope, slope)
		} else {
			set.SetUnavailable(models.IndMAMediumSlope, insufficient(params.MediumMA+params.SlopeLookback))
		}
	} else {
		set.SetUnavailable(models.IndMAMediumSlope, insufficient(params.MediumMA+params.SlopeLookback))
	}

	setLast(set, models.IndRSI, RSI(in.close, params.RSIPeriod), params.RSIPeriod+1, hl)

	macd, signal, hist := MACD(in.close, params.MACDFast, params.MACDSlow, params.MACDSignal)
	setLast(set, models.IndMACD, macd, params.MACDSlow, 0)
	setLast(set, models.IndMACDSignal, signal, params.MACDSlow+params.MACDSignal-1, 0)
	setLast(set, models.IndMACDHist, hist, params.MACDSlow+params.MACDSignal-1, hl)

	computeBollinger(set, in.close, params)

	atr := ATR(in.high, in.low, in.close, params.ATRPeriod)
	setLast(set, models.IndATR, atr, params.ATRPeriod+1, hl)
	if v, ok := last(atr); ok && price > 0 {
		set.Set(models.IndATRPct, v/price*100)
	} else {
		set.SetUnavailable(models.IndATRPct, insufficient(params.ATRPeriod+1))
	}

	computeVolume(set, in.volume, params)

	look := params.LevelLookback
	sup, res, hasSup, hasRes := SwingLevels(in.high, in.low, price, look, params.SwingStrength)
	if hasSup {
		set.Set(models.IndSupport, sup)
	} else {
		set.SetUnavailable(models.IndSupport, "no swing low below price")
	}
	if hasRes {
		set.Set(models.IndResistance, res)
	} else {
		set.SetUnavailable(models.IndResistance, "no swing high above price")
	}

	rets := features.LogReturns(in.close)
	tf := models.NormalizeTimeframe(series.Timeframe())
	if rv, ok := features.RealizedVolatility(rets, params.BollPeriod, features.BarsPerYear(tf)); ok {
		set.Set(models.IndRealizedVol, rv)
	} else {
		set.SetUnavailable(models.IndRealizedVol, insufficient(params.BollPeriod+1))
	}

	return set, nil
}

func computeBollinger(set models.IndicatorSet, closes []float64, params models.Params) {
	upper, middle, lower, ok := Bollinger(closes, params.BollPeriod, params.BollStdDev)
	if !ok {
		reason := insufficient(params.BollPeriod)
		for _, name := range []string{models.IndBollUpper, models.IndBollMiddle, models.IndBollLower, models.IndBollWidth, models.IndBollPercentB} {
			set.SetUnavailable(name, reason)
		}
		return
	}
	set.Set(models.IndBollUpper, upper)
	set.Set(models.IndBollMiddle, middle)
	set.Set(models.IndBollLower, lower)
	if middle != 0 {
		set.Set(models.IndBollWidth, (upper-lower)/middle*100)
	} else {
		set.SetUnavailable(models.IndBollWidth, "zero middle band")
	}
	pb := 0.5
	if upper > lower {
		pb = (closes[len(closes)-1] - lower) / (upper - lower)
	}
	set.Set(models.IndBollPercentB, pb)
}

func computeVolume(set models.IndicatorSet, volume []float64, params models.Params) {
	n := len(volume)
	if n < params.VolumePeriod {
		reason := insufficient(params.VolumePeriod)
		set.SetUnavailable(models.IndVolumeRatio, reason)
		set.SetUnavailable(models.IndVolumeAbnormal, reason)
		return
	}
	latest := volume[n-1]
	if math.IsNaN(latest) {
		set.SetUnavailable(models.IndVolumeRatio, "latest volume missing")
		set.SetUnavailable(models.IndVolumeAbnormal, "latest volume missing")
		return
	}
	sum, cnt := 0.0, 0
	for _, v := range volume[n-params.VolumePeriod:] {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		cnt++
	}
	avg := sum / float64(cnt)
	if avg <= 0 {
		set.SetUnavailable(models.IndVolumeRatio, "zero average volume")
		set.SetUnavailable(models.IndVolumeAbnormal, "zero average volume")
		return
	}
	ratio := latest / avg
	set.Set(models.IndVolumeRatio, ratio)
	abnormal := 0.0
	if ratio > params.VolumeThreshold {
		abnormal = 1
	}
	set.Set(models.IndVolumeAbnormal, abnormal)
}

// sanitize repairs bad values and records every repair in DataQuality.
func sanitize(series *models.PriceSeries) (input, time.Time, bool) {
	var in input
	n := series.Len()
	start := 0
	for start < n && !validPrice(series.Bar(start).Close) {
		start++
	}
	if start == n {
		return in, time.Time{}, false
	}
	in.quality.DroppedLeading = start

	size := n - start
	in.high = make([]float64, size)
	in.low = make([]float64, size)
	in.close = make([]float64, size)
	in.volume = make([]float64, size)

	prev := 0.0
	for i := start; i < n; i++ {
		b := series.Bar(i)
		j := i - start
		c := b.Close
		if !validPrice(c) {
			c = prev
			in.quality.ForwardFilled++
		}
		prev = c
		in.close[j] = c

		h, l := b.High, b.Low
		if !validPrice(h) {
			h = c
		}
		if !validPrice(l) {
			l = c
		}
		in.high[j] = math.Max(h, c)
		in.low[j] = math.Min(l, c)

		if math.IsNaN(b.Volume) || math.IsInf(b.Volume, 0) || b.Volume < 0 {
			in.volume[j] = math.NaN()
			in.quality.MissingVolume++
		} else {
			in.volume[j] = b.Volume
		}
	}
	return in, series.Last().Time, true
}

func validPrice(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

func setPct(set models.IndicatorSet, name string, closes []float64, n int) {
	if v, ok := features.PctChange(closes, n); ok {
		set.Set(name, v)
		return
	}
	set.SetUnavailable(name, insufficient(n+1))
}

// setLast stores the latest value of a rolling series, with up to histLen
// trailing values when histLen > 0.
func setLast(set models.IndicatorSet, name string, values []float64, need, histLen int) {
	v, ok := last(values)
	if !ok {
		set.SetUnavailable(name, insufficient(need))
		return
	}
	if histLen <= 0 {
		set.Set(name, v)
		return
	}
	set.SetWithHistory(name, v, trailing(values, histLen))
}

// trailing returns up to n defined values from the end, oldest first.
func trailing(values []float64, n int) []float64 {
	if h, ok := lastN(values, n); ok {
		return h
	}
	i := len(values)
	for i > 0 && len(values)-i < n && !math.IsNaN(values[i-1]) {
		i--
	}
	out := make([]float64, len(values)-i)
	copy(out, values[i:])
	return out
}

func insufficient(need int) string {
	return fmt.Sprintf("%s: need %d bars", models.ErrInsufficientHistory, need)
}
