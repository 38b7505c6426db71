package scoring

import (
	"fmt"

	"FinScore/internal/domain/models"
	domsvc "FinScore/internal/domain/service"
)

// Scorer turns an IndicatorSet into five factor scores and a weighted composite.
type Scorer struct {
	weights models.Weights
}

var _ domsvc.Scorer = (*Scorer)(nil)

// NewScorer rejects weights outside [0,1] or not summing to 1.
func NewScorer(weights models.Weights) (*Scorer, error) {
	if err := weights.Validate(); err != nil {
		return nil, fmt.Errorf("new scorer: %w", err)
	}
	return &Scorer{weights: weights}, nil
}

func (sc *Scorer) Weights() models.Weights { return sc.weights }

// Score never fails. A factor with a missing input scores NeutralScore and
// marks the composite as partial.
func (sc *Scorer) Score(set models.IndicatorSet) models.CompositeScore {
	out := models.CompositeScore{Factors: make([]models.FactorScore, 0, len(models.Factors))}
	total := 0.0
	for _, f := range models.Factors {
		fs := sc.factor(f, set)
		fs.Weight = sc.weights.Of(f)
		fs.Weighted = fs.Weight * fs.Score
		total += fs.Weighted
		if !fs.Available {
			out.Partial = true
		}
		out.Factors = append(out.Factors, fs)
	}
	out.Score = clamp(total, 0, 100)
	return out
}

func (sc *Scorer) factor(f models.Factor, set models.IndicatorSet) models.FactorScore {
	fs := models.FactorScore{Factor: f}
	var (
		score   float64
		note    string
		missing []string
	)
	switch f {
	case models.FactorTrend:
		if missing = set.Missing(trendInputs...); len(missing) == 0 {
			score, note = trendScore(set)
		}
	case models.FactorTechnical:
		if missing = set.Missing(technicalInputs...); len(missing) == 0 {
			score, note = technicalScore(set)
		}
	case models.FactorVolume:
		score, note, missing = volumeScore(set)
	case models.FactorVolatility:
		if missing = set.Missing(volatilityInputs...); len(missing) == 0 {
			score, note = volatilityScore(set)
		}
	case models.FactorMomentum:
		if missing = set.Missing(momentumInputs...); len(missing) == 0 {
			score, note = momentumScore(set)
		}
	}
	if len(missing) > 0 {
		fs.Score = models.NeutralScore
		fs.Missing = missing
		fs.Commentary = "insufficient data, neutral score"
		return fs
	}
	fs.Available = true
	fs.Score = clamp(finite(score, models.NeutralScore), 0, 100)
	fs.Commentary = note
	return fs
}
