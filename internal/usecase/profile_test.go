package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinScore/internal/domain/models"
)

type fakeFundamentals struct {
	fund    *models.Fundamentals
	fundErr error
	flows   []models.CapitalFlow
	flowErr error
	gotRng  models.DateRange
}

func (f *fakeFundamentals) FetchFundamentals(_ context.Context, symbol string) (*models.Fundamentals, error) {
	return f.fund, f.fundErr
}

func (f *fakeFundamentals) FetchCapitalFlow(_ context.Context, _ string, rng models.DateRange) ([]models.CapitalFlow, error) {
	f.gotRng = rng
	return f.flows, f.flowErr
}

func okAnalyzer() *fakeAnalyzer {
	return &fakeAnalyzer{fn: func(_ context.Context, sym string) (*models.AnalysisResult, error) {
		return scored(sym, 66, nil), nil
	}}
}

func TestGetProfileCombinesParts(t *testing.T) {
	ff := &fakeFundamentals{
		fund: &models.Fundamentals{Symbol: "AAPL", PE: 28},
		flows: []models.CapitalFlow{
			{Time: testNow.AddDate(0, 0, -1), MainNet: 10, TotalNet: 12, MainNetPct: 1},
			{Time: testNow, MainNet: -4, TotalNet: -2, MainNetPct: -0.5},
		},
	}
	uc := NewProfileUseCase(okAnalyzer(), ff, models.DefaultParams(), time.Second)
	uc.now = func() time.Time { return testNow }

	p, err := uc.GetProfile(context.Background(), GetProfileParams{Symbol: "aapl", FlowDays: 10})
	require.NoError(t, err)

	assert.Equal(t, "AAPL", p.Symbol)
	require.NotNil(t, p.Analysis)
	assert.Equal(t, 66.0, p.Analysis.Score.Score)
	require.NotNil(t, p.Fundamentals)
	assert.Equal(t, 28.0, p.Fundamentals.PE)
	require.NotNil(t, p.CapitalFlow)
	assert.Equal(t, 2, p.CapitalFlow.Periods)
	assert.Equal(t, 6.0, p.CapitalFlow.MainNetSum)
	assert.Equal(t, -4.0, p.CapitalFlow.LastMainNet)
	assert.Equal(t, 1, p.CapitalFlow.InflowDays)
	assert.Nil(t, p.Errors)
	assert.Equal(t, testNow.AddDate(0, 0, -10), ff.gotRng.From)
}

func TestGetProfileKeepsPartialFailures(t *testing.T) {
	ff := &fakeFundamentals{fundErr: errors.New("no fundamentals"), flowErr: models.ErrDataUnavailable}
	uc := NewProfileUseCase(okAnalyzer(), ff, models.DefaultParams(), time.Second)

	p, err := uc.GetProfile(context.Background(), GetProfileParams{Symbol: "AAPL"})
	require.NoError(t, err)
	assert.NotNil(t, p.Analysis)
	assert.Nil(t, p.Fundamentals)
	assert.Nil(t, p.CapitalFlow)
	assert.Contains(t, p.Errors, "fundamentals")
	assert.Contains(t, p.Errors, "capital_flow")
}

func TestGetProfileAnalysisFailureIsPartial(t *testing.T) {
	a := &fakeAnalyzer{fn: func(context.Context, string) (*models.AnalysisResult, error) {
		return nil, models.ErrDataUnavailable
	}}
	uc := NewProfileUseCase(a, nil, models.DefaultParams(), time.Second)

	p, err := uc.GetProfile(context.Background(), GetProfileParams{Symbol: "AAPL"})
	require.NoError(t, err)
	assert.Nil(t, p.Analysis)
	assert.Contains(t, p.Errors["analysis"], "data unavailable")
}

func TestGetProfileRejectsBadRequest(t *testing.T) {
	uc := NewProfileUseCase(okAnalyzer(), nil, models.DefaultParams(), time.Second)
	_, err := uc.GetProfile(context.Background(), GetProfileParams{Symbol: " "})
	assert.ErrorIs(t, err, models.ErrInvalidParameters)

	a := &fakeAnalyzer{fn: func(context.Context, string) (*models.AnalysisResult, error) {
		return nil, &models.ParamError{Field: "bars", Reason: "too many"}
	}}
	uc = NewProfileUseCase(a, nil, models.DefaultParams(), time.Second)
	_, err = uc.GetProfile(context.Background(), GetProfileParams{Symbol: "AAPL"})
	assert.ErrorIs(t, err, models.ErrInvalidParameters)
}
