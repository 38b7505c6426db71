package scoring

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinScore/internal/domain/models"
	"FinScore/internal/services/indicators"
)

func seriesFrom(t *testing.T, closes []float64, volume float64) *models.PriceSeries {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, len(closes))
	for i, c := range closes {
		bars[i] = models.Bar{Time: start.AddDate(0, 0, i), Open: c, High: c * 1.01, Low: c * 0.99, Close: c, Volume: volume}
	}
	s, err := models.NewPriceSeries("TEST", "1d", bars)
	require.NoError(t, err)
	return s
}

func scoreCloses(t *testing.T, closes []float64) models.CompositeScore {
	t.Helper()
	set, err := indicators.NewEngine().Compute(seriesFrom(t, closes, 1e6), models.DefaultParams())
	require.NoError(t, err)
	sc, err := NewScorer(models.DefaultWeights())
	require.NoError(t, err)
	return sc.Score(set)
}

func factor(t *testing.T, c models.CompositeScore, f models.Factor) models.FactorScore {
	t.Helper()
	fs, ok := c.Factor(f)
	require.True(t, ok)
	return fs
}

func TestSteadyWeeklyRiseScoresWell(t *testing.T) {
	daily := math.Pow(1.05, 1.0/5)
	closes := make([]float64, 60)
	closes[0] = 100
	for i := 1; i < len(closes); i++ {
		closes[i] = closes[i-1] * daily
	}
	c := scoreCloses(t, closes)

	assert.Greater(t, factor(t, c, models.FactorTrend).Score, 70.0)
	assert.InDelta(t, 50.0, factor(t, c, models.FactorVolume).Score, 10)
	assert.Greater(t, c.Score, 60.0)
	assert.False(t, c.Partial)
}

func TestFlatSeriesIsNeutral(t *testing.T) {
	closes := make([]float64, 80)
	for i := range closes {
		closes[i] = 100
	}
	c := scoreCloses(t, closes)
	assert.InDelta(t, 50.0, factor(t, c, models.FactorTrend).Score, 1)
	assert.Equal(t, 50.0, factor(t, c, models.FactorVolume).Score)
	assert.InDelta(t, 50.0, factor(t, c, models.FactorTechnical).Score, 1)
	assert.InDelta(t, 50.0, factor(t, c, models.FactorMomentum).Score, 1)
}

func TestShortSeriesIsPartial(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	c := scoreCloses(t, closes)
	assert.True(t, c.Partial)
	assert.GreaterOrEqual(t, c.Score, 0.0)
	assert.LessOrEqual(t, c.Score, 100.0)

	trend := factor(t, c, models.FactorTrend)
	assert.False(t, trend.Available)
	assert.Equal(t, models.NeutralScore, trend.Score)
	assert.Contains(t, trend.Missing, models.IndMALong)
}

func TestEmptySetScoresNeutral(t *testing.T) {
	sc, err := NewScorer(models.DefaultWeights())
	require.NoError(t, err)
	c := sc.Score(models.NewIndicatorSet(0, time.Time{}))
	assert.True(t, c.Partial)
	assert.InDelta(t, 50.0, c.Score, 1e-9)
	require.Len(t, c.Factors, len(models.Factors))
	for i, f := range models.Factors {
		assert.Equal(t, f, c.Factors[i].Factor)
	}
}

func TestCompositeAlwaysInRange(t *testing.T) {
	sc, err := NewScorer(models.DefaultWeights())
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(7))
	names := []string{
		models.IndClose, models.IndMAShort, models.IndMAMedium, models.IndMALong, models.IndMAMediumSlope,
		models.IndRSI, models.IndMACDHist, models.IndBollPercentB, models.IndBollWidth, models.IndATRPct,
		models.IndVolumeRatio, models.ReturnName(5), models.IndChangePct, models.IndROC,
	}
	for i := 0; i < 500; i++ {
		set := models.NewIndicatorSet(100, time.Time{})
		for _, n := range names {
			if rng.Float64() < 0.2 {
				continue
			}
			v := (rng.Float64() - 0.3) * math.Pow(10, float64(rng.Intn(5)))
			if n == models.IndRSI {
				v = rng.Float64() * 100
			}
			set.SetWithHistory(n, v, []float64{rng.Float64() * 100, v})
		}
		c := sc.Score(set)
		assert.GreaterOrEqual(t, c.Score, 0.0)
		assert.LessOrEqual(t, c.Score, 100.0)
		for _, fs := range c.Factors {
			assert.GreaterOrEqual(t, fs.Score, 0.0)
			assert.LessOrEqual(t, fs.Score, 100.0)
		}
	}
}

func TestNewScorerRejectsBadWeights(t *testing.T) {
	w := models.DefaultWeights()
	w.Momentum = 0.09
	_, err := NewScorer(w)
	assert.ErrorIs(t, err, models.ErrInvalidParameters)

	w = models.DefaultWeights()
	w.Trend = 1.2
	_, err = NewScorer(w)
	assert.ErrorIs(t, err, models.ErrInvalidParameters)
}

func TestCustomWeightsChangeComposite(t *testing.T) {
	set := models.NewIndicatorSet(100, time.Time{})
	set.Set(models.IndVolumeRatio, 4)
	set.Set(models.ReturnName(5), 9)
	sc, err := NewScorer(models.Weights{Volume: 1})
	require.NoError(t, err)
	c := sc.Score(set)
	v := factor(t, c, models.FactorVolume)
	assert.InDelta(t, v.Score, c.Score, 1e-9)
	assert.Greater(t, c.Score, 90.0)
}

func TestVolumeDirection(t *testing.T) {
	up := models.NewIndicatorSet(100, time.Time{})
	up.Set(models.IndVolumeRatio, 3)
	up.Set(models.ReturnName(5), 4)
	down := models.NewIndicatorSet(100, time.Time{})
	down.Set(models.IndVolumeRatio, 3)
	down.Set(models.ReturnName(5), -4)

	upScore, _, _ := volumeScore(up)
	downScore, _, _ := volumeScore(down)
	assert.Greater(t, upScore, 60.0)
	assert.Less(t, downScore, 40.0)

	fallback := models.NewIndicatorSet(100, time.Time{})
	fallback.Set(models.IndVolumeRatio, 3)
	fallback.Set(models.IndChangePct, 2)
	s, _, missing := volumeScore(fallback)
	assert.Empty(t, missing)
	assert.Greater(t, s, 50.0)
}

func TestOverboughtPenaltyDependsOnTrend(t *testing.T) {
	base := func(close float64) models.IndicatorSet {
		s := models.NewIndicatorSet(100, time.Time{})
		s.Set(models.IndRSI, 90)
		s.Set(models.IndMACDHist, 0)
		s.Set(models.IndBollPercentB, 0.5)
		s.Set(models.IndClose, close)
		s.Set(models.IndMAMedium, 100)
		s.Set(models.IndMALong, 90)
		return s
	}
	confirmed, _ := technicalScore(base(110))
	unconfirmed, _ := technicalScore(base(95))
	assert.Greater(t, confirmed, unconfirmed)
}

func TestVolatilityPrefersModerateATR(t *testing.T) {
	mk := func(atr, width float64) float64 {
		s := models.NewIndicatorSet(100, time.Time{})
		s.Set(models.IndATRPct, atr)
		s.Set(models.IndBollWidth, width)
		v, _ := volatilityScore(s)
		return v
	}
	assert.InDelta(t, 100.0, mk(2, 8), 1e-9)
	assert.Less(t, mk(8, 8), mk(2, 8))
	assert.Less(t, mk(2, 40), mk(2, 8))
}
