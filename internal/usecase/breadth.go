package usecase

import (
	"math"

	"FinScore/internal/domain/models"
)

// StrongMovePct is the last-bar change above which a symbol counts as strong.
const StrongMovePct = 3.0

// MoneyFlowFullScale is the net main inflow that saturates the money flow
// sentiment at 0 or 1.
const MoneyFlowFullScale = 1e10

// Sentiment levels by index.
const (
	SentimentEuphoric          = "euphoric"
	SentimentOptimistic        = "optimistic"
	SentimentMildlyOptimistic  = "mildly_optimistic"
	SentimentMildlyPessimistic = "mildly_pessimistic"
	SentimentPessimistic       = "pessimistic"
	SentimentPanic             = "panic"
	SentimentNeutral           = "neutral"
)

// Board heat by limit-up count.
const (
	HeatExtreme = "extreme"
	HeatHot     = "hot"
	HeatNormal  = "normal"
	HeatCool    = "cool"
	HeatCold    = "cold"
)

const (
	limitRatioWeight  = 0.25
	upRatioWeight     = 0.30
	strongRatioWeight = 0.20
	moneyFlowWeight   = 0.25
)

// SentimentLevel buckets a sentiment index.
func SentimentLevel(index float64) string {
	switch {
	case index >= 80:
		return SentimentEuphoric
	case index >= 65:
		return SentimentOptimistic
	case index >= 50:
		return SentimentMildlyOptimistic
	case index >= 35:
		return SentimentMildlyPessimistic
	case index >= 20:
		return SentimentPessimistic
	default:
		return SentimentPanic
	}
}

// BoardHeat buckets a limit-up count into a heat level and a 1-5 score.
func BoardHeat(limitUp int) (string, int) {
	switch {
	case limitUp >= 100:
		return HeatExtreme, 5
	case limitUp >= 60:
		return HeatHot, 4
	case limitUp >= 30:
		return HeatNormal, 3
	case limitUp >= 10:
		return HeatCool, 2
	default:
		return HeatCold, 1
	}
}

// MoneyFlowSentiment maps a net main inflow onto [0,1] around a neutral 0.5.
func MoneyFlowSentiment(mainNet float64) float64 {
	return math.Max(0, math.Min(1, 0.5+mainNet/MoneyFlowFullScale))
}

// ComputeBreadth summarizes the last-bar change of the ok entries. mainNet is
// the universe's latest net main inflow, nil when no flow data was found.
//
// The sentiment index weighs the limit ratio, up ratio, strong ratio and money
// flow sentiment; a part without data drops out and the rest are
// renormalized. With no usable entries it reports a neutral index of 50.
func ComputeBreadth(entries []models.ScanEntry, mainNet *float64) *models.Breadth {
	b := &models.Breadth{}
	var (
		sum    float64
		boards models.BoardSummary
		streak bool
	)
	for _, e := range entries {
		if !e.OK() || e.Indicators == nil {
			continue
		}
		chg, ok := e.Indicators.Get(models.IndChangePct)
		if !ok {
			continue
		}
		b.Total++
		sum += chg
		switch {
		case chg > 0:
			b.Up++
		case chg < 0:
			b.Down++
		default:
			b.Flat++
		}
		if chg > StrongMovePct {
			b.Strong++
		}
		if chg >= models.LimitMovePct {
			b.LimitUp++
		} else if chg <= -models.LimitMovePct {
			b.LimitDown++
		}
		if countBoards(&boards, *e.Indicators) {
			streak = true
		}
	}

	if b.Total == 0 {
		b.SentimentIndex = 50
		b.SentimentLevel = SentimentNeutral
		return b
	}

	n := float64(b.Total)
	b.UpRatio = float64(b.Up) / n
	b.StrongRatio = float64(b.Strong) / n
	b.AvgChange = sum / n

	score := b.UpRatio*upRatioWeight + b.StrongRatio*strongRatioWeight
	weight := upRatioWeight + strongRatioWeight
	if limits := b.LimitUp + b.LimitDown; limits > 0 {
		r := float64(b.LimitUp) / float64(limits)
		b.LimitRatio = &r
		score += r * limitRatioWeight
		weight += limitRatioWeight
	}
	if mainNet != nil {
		net := *mainNet
		m := MoneyFlowSentiment(net)
		b.MainNetInflow = &net
		b.MoneyFlowSentiment = &m
		score += m * moneyFlowWeight
		weight += moneyFlowWeight
	}
	b.SentimentIndex = math.Max(0, math.Min(100, score/weight*100))
	b.SentimentLevel = SentimentLevel(b.SentimentIndex)

	if streak {
		if boards.PrevLimitUp > 0 {
			boards.PromotionRate = float64(boards.Promoted) / float64(boards.PrevLimitUp) * 100
		}
		boards.Heat, boards.HeatScore = BoardHeat(b.LimitUp)
		b.Boards = &boards
	}
	return b
}

// countBoards folds one symbol's limit streaks into s and reports whether the
// symbol carried them.
func countBoards(s *models.BoardSummary, set models.IndicatorSet) bool {
	cur, ok := set.Get(models.IndLimitStreak)
	if !ok {
		return false
	}
	if prev, ok := set.Get(models.IndPrevLimitStreak); ok && prev >= 1 {
		s.PrevLimitUp++
	}
	n := int(cur)
	if n < 1 {
		return true
	}
	if s.Streaks == nil {
		s.Streaks = make(map[int]int)
	}
	s.Streaks[n]++
	s.MaxStreak = max(s.MaxStreak, n)
	if n >= 2 {
		s.Promoted++
	}
	return true
}
