package scoring

import (
	"math"

	"FinScore/internal/domain/models"
)

var (
	trendInputs      = []string{models.IndClose, models.IndMAShort, models.IndMAMedium, models.IndMALong, models.IndMAMediumSlope}
	technicalInputs  = []string{models.IndRSI, models.IndMACDHist, models.IndBollPercentB, models.IndClose}
	volatilityInputs = []string{models.IndATRPct, models.IndBollWidth}
	momentumInputs   = []string{models.IndROC, models.IndRSI}
)

// trendScore rewards price above each average, short > medium > long
// ordering, and a rising medium average.
func trendScore(s models.IndicatorSet) (float64, string) {
	c, _ := s.Get(models.IndClose)
	short, _ := s.Get(models.IndMAShort)
	medium, _ := s.Get(models.IndMAMedium)
	long, _ := s.Get(models.IndMALong)
	slope, _ := s.Get(models.IndMAMediumSlope)

	position := 40.0 / 3 * (logistic(0.8*pct(c, short)) + logistic(0.8*pct(c, medium)) + logistic(0.8*pct(c, long)))
	alignment := 15*logistic(pct(short, medium)) + 15*logistic(pct(medium, long))
	slopePart := 30 * logistic(4*slope)
	score := position + alignment + slopePart

	var note string
	switch {
	case c > short && short > medium && medium > long:
		note = "bullish alignment above all averages"
	case c < short && short < medium && medium < long:
		note = "bearish alignment below all averages"
	default:
		note = "mixed moving average alignment"
	}
	return score, note
}

// technicalScore combines RSI (40), MACD histogram (35) and Bollinger %b (25).
func technicalScore(s models.IndicatorSet) (float64, string) {
	rsi, _ := s.Get(models.IndRSI)
	hist, _ := s.Get(models.IndMACDHist)
	pb, _ := s.Get(models.IndBollPercentB)
	c, _ := s.Get(models.IndClose)

	up, down := trendConfirmation(s)
	rsiPart := ramp(rsi, 25, 75)
	note := "rsi neutral"
	switch {
	case rsi > 70:
		k := 0.8
		note = "rsi overbought"
		if up {
			k = 0.25
			note = "rsi overbought, confirmed by uptrend"
		}
		rsiPart = ramp(70, 25, 75) * (1 - k*(rsi-70)/30)
	case rsi < 30 && !down:
		rsiPart += 0.3 * (30 - rsi) / 30
		note = "rsi oversold without confirmed downtrend"
	case rsi < 30:
		note = "rsi oversold in downtrend"
	}

	histPct := relPct(hist, c)
	dHistPct := relPct(prevDelta(s.History(models.IndMACDHist)), c)
	macdPart := 0.7*logistic(3*histPct) + 0.3*logistic(10*dHistPct)

	var bollPart float64
	switch {
	case pb < 0:
		bollPart = 0.2 + 0.4*pb
	case pb <= 1:
		bollPart = 0.2 + 0.6*pb
	default:
		bollPart = 0.8 - 1.5*(pb-1)
	}
	bollPart = clamp01(bollPart)

	return 40*clamp01(rsiPart) + 35*macdPart + 25*bollPart, note
}

// trendConfirmation reports close > medium > long (up) or the reverse (down).
func trendConfirmation(s models.IndicatorSet) (up, down bool) {
	c, ok1 := s.Get(models.IndClose)
	m, ok2 := s.Get(models.IndMAMedium)
	l, ok3 := s.Get(models.IndMALong)
	if !ok1 || !ok2 || !ok3 {
		return false, false
	}
	return c > m && m > l, c < m && m < l
}

// volumeScore rewards expansion on advances and penalizes expansion on
// declines. Contraction moves the score less.
func volumeScore(s models.IndicatorSet) (float64, string, []string) {
	ratio, ok := s.Get(models.IndVolumeRatio)
	if !ok {
		return 0, "", []string{models.IndVolumeRatio}
	}
	move, ok := s.Get(models.ReturnName(5))
	if !ok {
		if move, ok = s.Get(models.IndChangePct); !ok {
			return 0, "", []string{models.ReturnName(5), models.IndChangePct}
		}
	}
	e := -2.0
	if ratio > 0 {
		e = clamp(math.Log2(ratio), -2, 2)
	}
	d := math.Tanh(move / 3)
	k := 8.0
	if e > 0 {
		k = 25
	}
	score := 50 + k*e*d

	note := "volume in line with average"
	switch {
	case e > 0 && d > 0:
		note = "volume expansion on advance"
	case e > 0 && d < 0:
		note = "volume expansion on decline"
	case e < 0:
		note = "volume contraction"
	}
	return score, note, nil
}

// volatilityScore prefers ATR of 1-3% of price and narrow, stable bands.
func volatilityScore(s models.IndicatorSet) (float64, string) {
	atrPct, _ := s.Get(models.IndATRPct)
	width, _ := s.Get(models.IndBollWidth)

	var atrPart float64
	switch {
	case atrPct < 1:
		atrPart = 0.6 + 0.4*atrPct
	case atrPct <= 3:
		atrPart = 1
	default:
		atrPart = math.Exp(-(atrPct - 3) / 3)
	}
	widthPart := 1.0
	if width > 12 {
		widthPart = math.Exp(-(width - 12) / 10)
	}
	stability := 1.0
	if h := s.History(models.IndATR); len(h) >= 2 && h[0] > 0 {
		if r := h[len(h)-1] / h[0]; r > 1 {
			stability = clamp01(1 - (r - 1))
		}
	}
	score := 100 * (0.5*clamp01(atrPart) + 0.3*widthPart + 0.2*stability)

	note := "moderate volatility"
	switch {
	case atrPct > 3:
		note = "high volatility relative to price"
	case width > 12:
		note = "bollinger band blowout"
	case atrPct < 1:
		note = "low volatility"
	}
	return score, note
}

// momentumScore blends rate of change with the direction of RSI.
func momentumScore(s models.IndicatorSet) (float64, string) {
	roc, _ := s.Get(models.IndROC)
	dRSI := delta(s.History(models.IndRSI))
	score := 100 * (0.65*logistic(roc/4) + 0.35*(0.5+0.5*math.Tanh(dRSI/10)))

	note := "flat momentum"
	switch {
	case roc > 0 && dRSI >= 0:
		note = "positive momentum, rsi rising"
	case roc > 0:
		note = "positive momentum, rsi fading"
	case roc < 0 && dRSI <= 0:
		note = "negative momentum, rsi falling"
	case roc < 0:
		note = "negative momentum, rsi recovering"
	}
	return score, note
}
