package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestApplyDefaultsKeepsZeroWeights(t *testing.T) {
	p := Params{Weights: Weights{Trend: 0.5, Technical: 0.5}}
	require.NoError(t, p.ApplyDefaults())
	assert.Equal(t, Weights{Trend: 0.5, Technical: 0.5}, p.Weights)
	assert.Equal(t, 14, p.RSIPeriod)
	assert.NoError(t, p.Validate())

	var unset Params
	require.NoError(t, unset.ApplyDefaults())
	assert.Equal(t, DefaultWeights(), unset.Weights)
	assert.Equal(t, DefaultParams(), unset)
}

func TestWeightsDecodeReplacesWholeSet(t *testing.T) {
	p := DefaultParams()
	require.NoError(t, json.Unmarshal([]byte(`{"weights":{"trend":0.6,"momentum":0.4}}`), &p))
	assert.Equal(t, Weights{Trend: 0.6, Momentum: 0.4}, p.Weights)
	assert.Equal(t, 20, p.MediumMA)

	p = DefaultParams()
	require.NoError(t, yaml.Unmarshal([]byte("weights: {trend: 1}"), &p))
	assert.Equal(t, Weights{Trend: 1}, p.Weights)

	p = DefaultParams()
	require.NoError(t, json.Unmarshal([]byte(`{"weights":{}}`), &p))
	assert.Equal(t, DefaultWeights(), p.Weights)
}

func TestWeightsValidate(t *testing.T) {
	assert.NoError(t, DefaultWeights().Validate())
	assert.NoError(t, Weights{Volume: 1}.Validate())
	assert.ErrorIs(t, Weights{Trend: 0.5, Technical: 0.49}.Validate(), ErrInvalidParameters)
	assert.ErrorIs(t, Weights{Trend: 1.5, Technical: -0.5}.Validate(), ErrInvalidParameters)
}

func TestFingerprintTracksParams(t *testing.T) {
	a := DefaultParams()
	b := DefaultParams()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	b.RSIPeriod = 9
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}
