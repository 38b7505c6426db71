package models

// Factor is one of the five scoring dimensions.
type Factor string

const (
	FactorTrend      Factor = "trend"
	FactorTechnical  Factor = "technical"
	FactorVolume     Factor = "volume"
	FactorVolatility Factor = "volatility"
	FactorMomentum   Factor = "momentum"
)

// Factors lists the factors in reporting order.
var Factors = []Factor{FactorTrend, FactorTechnical, FactorVolume, FactorVolatility, FactorMomentum}

// NeutralScore is used for a factor whose inputs are unavailable.
const NeutralScore = 50.0

type FactorScore struct {
	Factor     Factor   `json:"factor"`
	Score      float64  `json:"score"`
	Weight     float64  `json:"weight"`
	Weighted   float64  `json:"weighted"`
	Available  bool     `json:"available"`
	Missing    []string `json:"missing,omitempty"`
	Commentary string   `json:"commentary,omitempty"`
}

type CompositeScore struct {
	Score   float64       `json:"score"`
	Factors []FactorScore `json:"factors"`
	Partial bool          `json:"partial"`
}

// Factor returns the breakdown entry for f.
func (c CompositeScore) Factor(f Factor) (FactorScore, bool) {
	for _, fs := range c.Factors {
		if fs.Factor == f {
			return fs, true
		}
	}
	return FactorScore{}, false
}
