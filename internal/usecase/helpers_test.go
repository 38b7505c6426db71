package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"FinScore/internal/domain/models"
)

var testNow = time.Date(2024, 5, 10, 20, 0, 0, 0, time.UTC)

func dailySeries(t *testing.T, symbol string, n int, start, step float64) *models.PriceSeries {
	t.Helper()
	bars := make([]models.Bar, n)
	first := testNow.AddDate(0, 0, -n)
	for i := range bars {
		c := start + float64(i)*step
		bars[i] = models.Bar{
			Time:   first.AddDate(0, 0, i),
			Open:   c,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: 1000,
		}
	}
	s, err := models.NewPriceSeries(symbol, string(models.TF1d), bars)
	require.NoError(t, err)
	return s
}

// fakeProvider answers FetchSeries from a per-symbol function and counts calls.
type fakeProvider struct {
	fn    func(ctx context.Context, symbol string, call int) (*models.PriceSeries, error)
	mu    sync.Mutex
	calls map[string]int
}

func newFakeProvider(fn func(ctx context.Context, symbol string, call int) (*models.PriceSeries, error)) *fakeProvider {
	return &fakeProvider{fn: fn, calls: map[string]int{}}
}

func (p *fakeProvider) FetchSeries(ctx context.Context, symbol string, _ models.DateRange, _ models.Timeframe) (*models.PriceSeries, error) {
	p.mu.Lock()
	p.calls[symbol]++
	n := p.calls[symbol]
	p.mu.Unlock()
	return p.fn(ctx, symbol, n)
}

func (p *fakeProvider) Calls(symbol string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[symbol]
}

// fakeAnalyzer returns canned outcomes per symbol.
type fakeAnalyzer struct {
	fn    func(ctx context.Context, symbol string) (*models.AnalysisResult, error)
	calls atomic.Int64
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, symbol string, w models.Window, p models.Params) (*models.AnalysisResult, bool, error) {
	a.calls.Add(1)
	res, err := a.fn(ctx, symbol)
	return res, false, err
}

func scored(symbol string, score float64, inds map[string]float64) *models.AnalysisResult {
	set := models.NewIndicatorSet(120, testNow)
	for k, v := range inds {
		set.Set(k, v)
	}
	return &models.AnalysisResult{
		Symbol:     symbol,
		Indicators: set,
		Score:      models.CompositeScore{Score: score},
		ComputedAt: testNow,
	}
}

// recordingPublisher captures published scans.
type recordingPublisher struct {
	mu  sync.Mutex
	got []*models.ScanResult
	err error
}

func (p *recordingPublisher) PublishScan(_ context.Context, res *models.ScanResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, res)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Published() []*models.ScanResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*models.ScanResult(nil), p.got...)
}
