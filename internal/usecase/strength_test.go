package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinScore/internal/domain/models"
)

func TestStrengthLevel(t *testing.T) {
	cases := []struct {
		rps  float64
		want string
	}{
		{100, StrengthVeryStrong},
		{90, StrengthVeryStrong},
		{89.9, StrengthStrong},
		{80, StrengthStrong},
		{60, StrengthAboveAverage},
		{40, StrengthAverage},
		{20, StrengthWeak},
		{19.9, StrengthVeryWeak},
		{0, StrengthVeryWeak},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.want, StrengthLevel(tc.rps), "rps %v", tc.rps)
	}
}

func TestPeriodStrengthBestGets100(t *testing.T) {
	got := PeriodStrength(map[string]float64{"A": 5, "B": -2, "C": 12, "D": 0})
	assert.InDelta(t, 100, got["C"], 1e-9)
	assert.InDelta(t, 75, got["A"], 1e-9)
	assert.InDelta(t, 50, got["D"], 1e-9)
	assert.InDelta(t, 25, got["B"], 1e-9)
	assert.Nil(t, PeriodStrength(nil))
}

func TestApplyRelativeStrength(t *testing.T) {
	mk := func(sym string, r5, r20 float64) models.ScanEntry {
		set := models.NewIndicatorSet(100, testNow)
		set.Set(models.ReturnName(5), r5)
		set.Set(models.ReturnName(20), r20)
		return models.ScanEntry{Symbol: sym, Status: models.ScanOK, Indicators: &set}
	}
	entries := []models.ScanEntry{
		mk("A", 10, 10),
		mk("B", 1, 1),
		{Symbol: "X", Status: models.ScanFailed, Reason: models.ReasonDataUnavailable},
	}
	ApplyRelativeStrength(entries)

	// only ret_5 and ret_20 exist, so weights renormalize over 0.4 and 0.2
	assert.InDelta(t, 100, entries[0].RelativeStrength, 1e-9)
	assert.Equal(t, StrengthVeryStrong, entries[0].StrengthLevel)
	assert.InDelta(t, 50, entries[1].RelativeStrength, 1e-9)
	assert.Equal(t, StrengthAverage, entries[1].StrengthLevel)
	assert.Zero(t, entries[2].RelativeStrength)
	assert.Empty(t, entries[2].StrengthLevel)
}

func TestApplyRelativeStrengthMixedPeriods(t *testing.T) {
	a := models.NewIndicatorSet(100, testNow)
	a.Set(models.ReturnName(5), 3)
	a.Set(models.ReturnName(60), -10)
	b := models.NewIndicatorSet(100, testNow)
	b.Set(models.ReturnName(5), 1)
	b.Set(models.ReturnName(60), 20)
	entries := []models.ScanEntry{
		{Symbol: "A", Status: models.ScanOK, Indicators: &a},
		{Symbol: "B", Status: models.ScanOK, Indicators: &b},
	}
	ApplyRelativeStrength(entries)

	require.NotZero(t, entries[0].RelativeStrength)
	// A: (100*0.4 + 50*0.1)/0.5 = 90; B: (50*0.4 + 100*0.1)/0.5 = 60
	assert.InDelta(t, 90, entries[0].RelativeStrength, 1e-9)
	assert.InDelta(t, 60, entries[1].RelativeStrength, 1e-9)
}

func TestApplyRelativeStrengthWithoutReturns(t *testing.T) {
	set := models.NewIndicatorSet(1, testNow)
	entries := []models.ScanEntry{{Symbol: "A", Status: models.ScanOK, Indicators: &set}}
	ApplyRelativeStrength(entries)
	assert.Zero(t, entries[0].RelativeStrength)
	assert.Empty(t, entries[0].StrengthLevel)
}
