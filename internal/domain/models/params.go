package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"FinScore/pkg/cache"
)

var validate = validator.New()

// WeightTolerance is the allowed deviation of the factor weight sum from 1.
const WeightTolerance = 1e-9

// Weights are the composite weights per factor. A zero weight switches its
// factor off, so defaults apply to the set as a whole and never per field.
type Weights struct {
	Trend      float64 `json:"trend" yaml:"trend" validate:"gte=0,lte=1"`
	Technical  float64 `json:"technical" yaml:"technical" validate:"gte=0,lte=1"`
	Volume     float64 `json:"volume" yaml:"volume" validate:"gte=0,lte=1"`
	Volatility float64 `json:"volatility" yaml:"volatility" validate:"gte=0,lte=1"`
	Momentum   float64 `json:"momentum" yaml:"momentum" validate:"gte=0,lte=1"`
}

func DefaultWeights() Weights {
	return Weights{Trend: 0.30, Technical: 0.25, Volume: 0.20, Volatility: 0.15, Momentum: 0.10}
}

// SetDefaults is called by defaults.Set. Only an entirely unset block gets
// the default weights.
func (w *Weights) SetDefaults() {
	if *w == (Weights{}) {
		*w = DefaultWeights()
	}
}

// UnmarshalJSON replaces the whole set. Factors missing from the object are
// off rather than inherited from a base set.
func (w *Weights) UnmarshalJSON(b []byte) error {
	type plain Weights
	var v plain
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*w = Weights(v)
	w.SetDefaults()
	return nil
}

// UnmarshalYAML behaves like UnmarshalJSON for config files.
func (w *Weights) UnmarshalYAML(node *yaml.Node) error {
	type plain Weights
	var v plain
	if err := node.Decode(&v); err != nil {
		return err
	}
	*w = Weights(v)
	w.SetDefaults()
	return nil
}

func (w Weights) Sum() float64 {
	return w.Trend + w.Technical + w.Volume + w.Volatility + w.Momentum
}

// Of returns the weight of one factor.
func (w Weights) Of(f Factor) float64 {
	switch f {
	case FactorTrend:
		return w.Trend
	case FactorTechnical:
		return w.Technical
	case FactorVolume:
		return w.Volume
	case FactorVolatility:
		return w.Volatility
	case FactorMomentum:
		return w.Momentum
	}
	return 0
}

// Validate checks ranges and that the weights sum to 1.
func (w Weights) Validate() error {
	if err := validate.Struct(w); err != nil {
		return toParamError(err)
	}
	if sum := w.Sum(); math.Abs(sum-1) > WeightTolerance {
		return &ParamError{Field: "weights", Reason: fmt.Sprintf("must sum to 1.0, got %.6f", sum)}
	}
	return nil
}

// Params configures the indicator engine and the scorer.
type Params struct {
	ShortMA  int `json:"short_ma" yaml:"short_ma" default:"5" validate:"gte=1,lte=500"`
	MediumMA int `json:"medium_ma" yaml:"medium_ma" default:"20" validate:"gte=2,lte=500,gtfield=ShortMA"`
	LongMA   int `json:"long_ma" yaml:"long_ma" default:"60" validate:"gte=3,lte=1000,gtfield=MediumMA"`

	RSIPeriod int `json:"rsi_period" yaml:"rsi_period" default:"14" validate:"gte=2,lte=250"`

	MACDFast   int `json:"macd_fast" yaml:"macd_fast" default:"12" validate:"gte=1,lte=250"`
	MACDSlow   int `json:"macd_slow" yaml:"macd_slow" default:"26" validate:"gte=2,lte=500,gtfield=MACDFast"`
	MACDSignal int `json:"macd_signal" yaml:"macd_signal" default:"9" validate:"gte=1,lte=250"`

	BollPeriod int     `json:"boll_period" yaml:"boll_period" default:"20" validate:"gte=2,lte=500"`
	BollStdDev float64 `json:"boll_std_dev" yaml:"boll_std_dev" default:"2" validate:"gt=0,lte=10"`

	ATRPeriod int `json:"atr_period" yaml:"atr_period" default:"14" validate:"gte=1,lte=250"`

	VolumePeriod    int     `json:"volume_period" yaml:"volume_period" default:"20" validate:"gte=1,lte=500"`
	VolumeThreshold float64 `json:"volume_threshold" yaml:"volume_threshold" default:"2" validate:"gt=1,lte=100"`

	LevelLookback int `json:"level_lookback" yaml:"level_lookback" default:"60" validate:"gte=5,lte=2000"`
	SwingStrength int `json:"swing_strength" yaml:"swing_strength" default:"2" validate:"gte=1,lte=20"`

	MomentumPeriod int `json:"momentum_period" yaml:"momentum_period" default:"10" validate:"gte=1,lte=250"`
	SlopeLookback  int `json:"slope_lookback" yaml:"slope_lookback" default:"5" validate:"gte=1,lte=100"`
	HistoryLen     int `json:"history_len" yaml:"history_len" default:"5" validate:"gte=2,lte=100"`

	Weights Weights `json:"weights" yaml:"weights"`
}

// DefaultParams returns the documented defaults.
func DefaultParams() Params {
	var p Params
	_ = defaults.Set(&p)
	return p
}

// ApplyDefaults fills zero-valued fields with their defaults.
func (p *Params) ApplyDefaults() error {
	return defaults.Set(p)
}

// Validate rejects out-of-range values before any computation starts.
func (p Params) Validate() error {
	if err := validate.Struct(p); err != nil {
		return toParamError(err)
	}
	return p.Weights.Validate()
}

// Fingerprint identifies the parameter set for cache keys.
func (p Params) Fingerprint() string {
	b, _ := json.Marshal(p)
	return cache.HashKey(string(b))
}

// MaxLookback is the number of bars needed for every indicator to be available.
func (p Params) MaxLookback() int {
	need := []int{
		p.LongMA,
		p.MediumMA + p.SlopeLookback,
		p.RSIPeriod + p.HistoryLen,
		p.MACDSlow + p.MACDSignal + p.HistoryLen - 1,
		p.BollPeriod,
		p.ATRPeriod + p.HistoryLen,
		p.VolumePeriod,
		p.MomentumPeriod + 1,
		61, // ret_60
	}
	m := 0
	for _, n := range need {
		if n > m {
			m = n
		}
	}
	return m
}

func toParamError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	parts := make([]string, 0, len(verrs))
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return &ParamError{Field: strings.Join(fields, ","), Reason: strings.Join(parts, "; ")}
}
