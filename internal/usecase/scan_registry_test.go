package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinScore/internal/domain/models"
)

func quickScanner() *Scanner {
	a := &fakeAnalyzer{fn: func(_ context.Context, sym string) (*models.AnalysisResult, error) {
		return scored(sym, 60, nil), nil
	}}
	return NewScanner(a, testScannerConfig())
}

func TestRegistryStartGetCancel(t *testing.T) {
	r := NewScanRegistry(quickScanner(), time.Minute, 4, nil)

	job, err := r.Start(context.Background(), ScanRequest{Symbols: []string{"A", "B"}})
	require.NoError(t, err)

	got, err := r.Get(job.ID())
	require.NoError(t, err)
	assert.Same(t, job, got)

	_, err = job.Wait(context.Background())
	require.NoError(t, err)

	_, err = r.Cancel(job.ID())
	assert.NoError(t, err, "cancelling a finished scan is a no-op")

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, ErrScanNotFound)

	list := r.List()
	require.Len(t, list, 1)
	assert.True(t, list[0].Done)
	assert.Nil(t, list[0].Result)
}

func TestRegistryRejectsInvalidRequest(t *testing.T) {
	r := NewScanRegistry(quickScanner(), time.Minute, 4, nil)
	_, err := r.Start(context.Background(), ScanRequest{})
	assert.ErrorIs(t, err, models.ErrInvalidParameters)
	assert.Empty(t, r.List())
}

func TestRegistryPrunesAfterRetention(t *testing.T) {
	r := NewScanRegistry(quickScanner(), time.Minute, 4, nil)
	now := time.Now()
	r.now = func() time.Time { return now }

	job, err := r.Start(context.Background(), ScanRequest{Symbols: []string{"A"}})
	require.NoError(t, err)
	_, err = job.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, r.Prune())
	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, r.Prune())
	_, err = r.Get(job.ID())
	assert.ErrorIs(t, err, ErrScanNotFound)
}

func TestRegistryLimitsRunningScans(t *testing.T) {
	gate := make(chan struct{})
	a := &fakeAnalyzer{fn: func(_ context.Context, sym string) (*models.AnalysisResult, error) {
		<-gate
		return scored(sym, 60, nil), nil
	}}
	r := NewScanRegistry(NewScanner(a, testScannerConfig()), time.Minute, 2, nil)

	j1, err := r.Start(context.Background(), ScanRequest{Symbols: []string{"A"}})
	require.NoError(t, err)
	_, err = r.Start(context.Background(), ScanRequest{Symbols: []string{"B"}})
	require.NoError(t, err)

	_, err = r.Start(context.Background(), ScanRequest{Symbols: []string{"C"}})
	assert.ErrorIs(t, err, ErrTooManyScans)
	assert.ErrorIs(t, err, models.ErrRateLimited)

	close(gate)
	_, err = j1.Wait(context.Background())
	require.NoError(t, err)

	// a finished scan gives up its slot when the registry is full
	_, err = r.Start(context.Background(), ScanRequest{Symbols: []string{"C"}})
	require.NoError(t, err)
}
