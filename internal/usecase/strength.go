package usecase

import (
	"sort"

	"FinScore/internal/domain/models"
)

// strengthWeights favour short horizons. Missing horizons are dropped and
// the remaining weights renormalized.
var strengthWeights = map[int]float64{5: 0.4, 10: 0.3, 20: 0.2, 60: 0.1}

// Strength levels by composite relative strength.
const (
	StrengthVeryStrong   = "very_strong"
	StrengthStrong       = "strong"
	StrengthAboveAverage = "above_average"
	StrengthAverage      = "average"
	StrengthWeak         = "weak"
	StrengthVeryWeak     = "very_weak"
)

// StrengthLevel buckets a relative strength score.
func StrengthLevel(rps float64) string {
	switch {
	case rps >= 90:
		return StrengthVeryStrong
	case rps >= 80:
		return StrengthStrong
	case rps >= 60:
		return StrengthAboveAverage
	case rps >= 40:
		return StrengthAverage
	case rps >= 20:
		return StrengthWeak
	default:
		return StrengthVeryWeak
	}
}

// PeriodStrength ranks symbols by return and maps rank to (count-i)/count*100,
// so the best return gets 100. Ties keep symbol order.
func PeriodStrength(returns map[string]float64) map[string]float64 {
	if len(returns) == 0 {
		return nil
	}
	type sr struct {
		symbol string
		ret    float64
	}
	list := make([]sr, 0, len(returns))
	for s, r := range returns {
		list = append(list, sr{s, r})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].ret != list[j].ret {
			return list[i].ret > list[j].ret
		}
		return list[i].symbol < list[j].symbol
	})
	n := float64(len(list))
	out := make(map[string]float64, len(list))
	for i, e := range list {
		out[e.symbol] = (n - float64(i)) / n * 100
	}
	return out
}

// ApplyRelativeStrength sets RelativeStrength and StrengthLevel on every ok
// entry that carries at least one ret_N indicator.
func ApplyRelativeStrength(entries []models.ScanEntry) {
	perPeriod := make(map[int]map[string]float64, len(models.ReturnPeriods))
	for _, p := range models.ReturnPeriods {
		returns := make(map[string]float64)
		name := models.ReturnName(p)
		for _, e := range entries {
			if !e.OK() || e.Indicators == nil {
				continue
			}
			if v, ok := e.Indicators.Get(name); ok {
				returns[e.Symbol] = v
			}
		}
		perPeriod[p] = PeriodStrength(returns)
	}

	for i := range entries {
		e := &entries[i]
		if !e.OK() {
			continue
		}
		var total, weight float64
		for _, p := range models.ReturnPeriods {
			if v, ok := perPeriod[p][e.Symbol]; ok {
				total += v * strengthWeights[p]
				weight += strengthWeights[p]
			}
		}
		if weight == 0 {
			continue
		}
		e.RelativeStrength = total / weight
		e.StrengthLevel = StrengthLevel(e.RelativeStrength)
	}
}
