package service

import (
	"FinScore/internal/domain/models"
)

// IndicatorEngine turns a price series into an indicator set. It is pure:
// the same series and params always produce the same set.
type IndicatorEngine interface {
	Compute(series *models.PriceSeries, params models.Params) (models.IndicatorSet, error)
}

// Scorer maps an indicator set to a composite score.
type Scorer interface {
	Score(set models.IndicatorSet) models.CompositeScore
	Weights() models.Weights
}
