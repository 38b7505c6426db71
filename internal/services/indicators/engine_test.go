package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinScore/internal/domain/models"
)

func makeSeries(t *testing.T, closes []float64, volume float64) *models.PriceSeries {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, len(closes))
	for i, c := range closes {
		bars[i] = models.Bar{
			Time:   start.AddDate(0, 0, i),
			Open:   c,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: volume,
		}
	}
	s, err := models.NewPriceSeries("TEST", "1d", bars)
	require.NoError(t, err)
	return s
}

func rising(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestRSIMonotonicIncreaseIs100(t *testing.T) {
	closes := rising(20, 10, 0.5)
	rsi := RSI(closes, 14)
	v, ok := last(rsi)
	require.True(t, ok)
	assert.Equal(t, 100.0, v)
}

func TestRSIFlatIsNeutral(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 10
	}
	v, ok := last(RSI(closes, 14))
	require.True(t, ok)
	assert.Equal(t, 50.0, v)
}

func TestRSIStaysInRange(t *testing.T) {
	closes := []float64{10, 11, 10.5, 12, 11, 13, 12.5, 12, 11, 14, 13, 15, 14, 13, 16, 15, 14, 17, 16, 15}
	for _, v := range RSI(closes, 5) {
		if math.IsNaN(v) {
			continue
		}
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
}

func TestSMAAndEMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	sma := SMA(values, 3)
	assert.True(t, math.IsNaN(sma[1]))
	assert.InDelta(t, 2.0, sma[2], 1e-12)
	assert.InDelta(t, 4.0, sma[4], 1e-12)

	ema := EMA(values, 3)
	// seed = 2, k = 0.5
	assert.InDelta(t, 2.0, ema[2], 1e-12)
	assert.InDelta(t, 3.0, ema[3], 1e-12)
	assert.InDelta(t, 4.0, ema[4], 1e-12)
}

func TestMACDSignalNeedsSlowPlusSignal(t *testing.T) {
	closes := rising(30, 100, 1)
	line, sig, hist := MACD(closes, 12, 26, 9)
	_, ok := last(line)
	assert.True(t, ok)
	_, ok = last(sig)
	assert.False(t, ok, "signal needs 34 bars")
	_, ok = last(hist)
	assert.False(t, ok)

	closes = rising(34, 100, 1)
	_, sig, _ = MACD(closes, 12, 26, 9)
	_, ok = last(sig)
	assert.True(t, ok)
}

func TestBollingerZeroWidth(t *testing.T) {
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 20
	}
	u, m, l, ok := Bollinger(closes, 20, 2)
	require.True(t, ok)
	assert.Equal(t, 20.0, u)
	assert.Equal(t, 20.0, m)
	assert.Equal(t, 20.0, l)
}

func TestATRWilder(t *testing.T) {
	high := []float64{11, 12, 13, 14}
	low := []float64{9, 10, 11, 12}
	close := []float64{10, 11, 12, 13}
	atr := ATR(high, low, close, 2)
	// true ranges are 2 from index 1 onwards
	assert.InDelta(t, 2.0, atr[2], 1e-12)
	assert.InDelta(t, 2.0, atr[3], 1e-12)
}

func TestSwingLevels(t *testing.T) {
	high := []float64{10, 11, 15, 11, 10, 9, 10, 11, 12, 11, 10}
	low := []float64{9, 8, 9, 8, 7, 5, 7, 8, 9, 10, 9}
	sup, res, hasSup, hasRes := SwingLevels(high, low, 10, 60, 2)
	require.True(t, hasSup)
	require.True(t, hasRes)
	assert.Equal(t, 5.0, sup)
	assert.Equal(t, 12.0, res)
}

func TestComputeIsDeterministic(t *testing.T) {
	closes := make([]float64, 120)
	for i := range closes {
		closes[i] = 50 + 5*math.Sin(float64(i)/7) + float64(i)*0.1
	}
	s := makeSeries(t, closes, 1e6)
	e := NewEngine()
	a, err := e.Compute(s, models.DefaultParams())
	require.NoError(t, err)
	b, err := e.Compute(s, models.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestComputeFullHistory(t *testing.T) {
	s := makeSeries(t, rising(120, 100, 0.5), 1000)
	set, err := NewEngine().Compute(s, models.DefaultParams())
	require.NoError(t, err)
	for name, ind := range set.Values {
		if name == models.IndResistance || name == models.IndSupport {
			continue
		}
		assert.Truef(t, ind.Available, "%s unavailable: %s", name, ind.Reason)
	}
	v, _ := set.Get(models.IndVolumeRatio)
	assert.InDelta(t, 1.0, v, 1e-12)
	assert.Len(t, set.History(models.IndRSI), 5)
	assert.Len(t, set.History(models.IndMAMedium), 5)
	assert.True(t, set.Quality.Clean())
}

func TestComputeLimitStreaks(t *testing.T) {
	closes := append(rising(30, 100, 0.5), 0)
	closes[30] = closes[29] * 1.1
	closes = append(closes, closes[30]*1.1)
	s := makeSeries(t, closes, 1000)
	set, err := NewEngine().Compute(s, models.DefaultParams())
	require.NoError(t, err)

	v, ok := set.Get(models.IndLimitStreak)
	require.True(t, ok)
	assert.Equal(t, 2.0, v)
	v, ok = set.Get(models.IndPrevLimitStreak)
	require.True(t, ok)
	assert.Equal(t, 1.0, v)

	set, err = NewEngine().Compute(makeSeries(t, []float64{100}, 1000), models.DefaultParams())
	require.NoError(t, err)
	_, ok = set.Get(models.IndLimitStreak)
	assert.False(t, ok)
}

func TestComputeShortHistoryDegrades(t *testing.T) {
	s := makeSeries(t, rising(30, 100, 0.5), 1000)
	set, err := NewEngine().Compute(s, models.DefaultParams())
	require.NoError(t, err)

	_, ok := set.Get(models.IndMALong)
	assert.False(t, ok)
	assert.Contains(t, set.Values[models.IndMALong].Reason, "insufficient history")
	_, ok = set.Get(models.IndMACDHist)
	assert.False(t, ok)
	_, ok = set.Get(models.IndRSI)
	assert.True(t, ok)
}

func TestComputeSanitizesBadPrices(t *testing.T) {
	closes := rising(40, 100, 1)
	s0 := makeSeries(t, closes, 1000)
	bars := s0.Bars()
	bars[0].Close = math.NaN()
	bars[10].Close = math.Inf(1)
	bars[11].Close = -1
	bars[20].Volume = math.NaN()
	bars[21].High = math.NaN()
	s, err := models.NewPriceSeries("TEST", "1d", bars)
	require.NoError(t, err)

	set, err := NewEngine().Compute(s, models.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 1, set.Quality.DroppedLeading)
	assert.Equal(t, 2, set.Quality.ForwardFilled)
	assert.Equal(t, 1, set.Quality.MissingVolume)
	assert.Equal(t, 39, set.Bars)
	for _, ind := range set.Values {
		if ind.Available {
			assert.False(t, math.IsNaN(ind.Value))
			assert.False(t, math.IsInf(ind.Value, 0))
		}
	}
}

func TestComputeRejectsInvalidParams(t *testing.T) {
	s := makeSeries(t, rising(70, 100, 1), 1000)
	p := models.DefaultParams()
	p.ShortMA = 30
	_, err := NewEngine().Compute(s, p)
	assert.ErrorIs(t, err, models.ErrInvalidParameters)
}

func TestComputeAllInvalidCloses(t *testing.T) {
	s := makeSeries(t, []float64{math.NaN(), math.NaN()}, 1)
	_, err := NewEngine().Compute(s, models.DefaultParams())
	assert.ErrorIs(t, err, models.ErrDataUnavailable)
}
