package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinScore/internal/domain/models"
)

func TestLogReturns(t *testing.T) {
	r := LogReturns([]float64{100, 110, 0, 121})
	require.Len(t, r, 3)
	assert.InDelta(t, math.Log(1.1), r[0], 1e-12)
	assert.Equal(t, 0.0, r[1])
	assert.Equal(t, 0.0, r[2])
	assert.Nil(t, LogReturns([]float64{1}))
}

func TestRealizedVolatilityConstantReturns(t *testing.T) {
	r := []float64{0.01, 0.01, 0.01, 0.01}
	v, ok := RealizedVolatility(r, 4, 252)
	require.True(t, ok)
	assert.InDelta(t, 0.0, v, 1e-9)

	_, ok = RealizedVolatility(r, 5, 252)
	assert.False(t, ok)
}

func TestPctChange(t *testing.T) {
	v, ok := PctChange([]float64{100, 105, 110}, 2)
	require.True(t, ok)
	assert.InDelta(t, 10.0, v, 1e-12)

	_, ok = PctChange([]float64{100, 105}, 2)
	assert.False(t, ok)
}

func TestLimitStreak(t *testing.T) {
	// 10 -> 11 -> 12.1 -> 13.31 is three boards, 13.31 -> 13.5 breaks it
	closes := []float64{10, 11, 12.1, 13.31, 13.5, 14.85}
	assert.Equal(t, 1, LimitStreak(closes, 5, 9.9))
	assert.Equal(t, 0, LimitStreak(closes, 4, 9.9))
	assert.Equal(t, 3, LimitStreak(closes, 3, 9.9))
	assert.Equal(t, 0, LimitStreak(closes, 0, 9.9))
	assert.Equal(t, 0, LimitStreak(closes, 6, 9.9))
	assert.Equal(t, 0, LimitStreak([]float64{0, 5}, 1, 9.9))
}

func TestMeanSlopePct(t *testing.T) {
	v, ok := MeanSlopePct([]float64{100, 110, 121}, 2)
	require.True(t, ok)
	assert.InDelta(t, 10.0, v, 1e-9)
}

func TestBarsPerYear(t *testing.T) {
	assert.Equal(t, 252.0, BarsPerYear(models.TF1d))
	assert.Equal(t, 252.0*48, BarsPerYear(models.TF5m))
}

func TestAlignRangeIntraday(t *testing.T) {
	from := time.Date(2024, 5, 10, 9, 37, 12, 0, time.UTC)
	to := time.Date(2024, 5, 10, 10, 2, 0, 0, time.UTC)
	rng := AlignRange(models.DateRange{From: from, To: to}, models.TF5m)
	assert.Equal(t, time.Date(2024, 5, 10, 9, 35, 0, 0, time.UTC), rng.From)
	assert.True(t, rng.Contains(time.Date(2024, 5, 10, 10, 4, 0, 0, time.UTC)))
}
