package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinScore/internal/domain/models"
	icache "FinScore/internal/service/cache"
	"FinScore/internal/services/indicators"
)

type sleepRecorder struct{ waits []time.Duration }

func (r *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return ctx.Err()
}

func newTestAnalyzer(t *testing.T, p *fakeProvider, opts ...AnalyzerOption) *Analyzer {
	t.Helper()
	cache := icache.NewResultCache(100, icache.FixedPolicy{TTL: time.Minute}, icache.WithClock(func() time.Time { return testNow }))
	cfg := AnalyzerConfig{
		RetryMax:      3,
		BackoffMin:    10 * time.Millisecond,
		BackoffMax:    40 * time.Millisecond,
		DefaultWindow: models.Window{Timeframe: models.TF1d, Bars: 120},
	}
	opts = append([]AnalyzerOption{WithAnalyzerClock(func() time.Time { return testNow })}, opts...)
	return NewAnalyzer(p, indicators.NewEngine(), cache, cfg, opts...)
}

func TestAnalyzeComputesAndCaches(t *testing.T) {
	p := newFakeProvider(func(_ context.Context, sym string, _ int) (*models.PriceSeries, error) {
		return dailySeries(t, sym, 150, 100, 0.5), nil
	})
	a := newTestAnalyzer(t, p)

	res, cached, err := a.Analyze(context.Background(), " aapl ", models.Window{}, models.Params{})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "AAPL", res.Symbol)
	assert.Equal(t, 120, res.Indicators.Bars)
	assert.Equal(t, models.TF1d, res.Window.Timeframe)
	assert.GreaterOrEqual(t, res.Score.Score, 0.0)
	assert.LessOrEqual(t, res.Score.Score, 100.0)
	assert.Equal(t, models.DefaultParams().Fingerprint(), res.Fingerprint)

	again, cached, err := a.Analyze(context.Background(), "AAPL", models.Window{}, models.DefaultParams())
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Same(t, res, again)
	assert.Equal(t, 1, p.Calls("AAPL"))
}

func TestAnalyzeDifferentParamsAreDifferentEntries(t *testing.T) {
	p := newFakeProvider(func(_ context.Context, sym string, _ int) (*models.PriceSeries, error) {
		return dailySeries(t, sym, 150, 100, 0.5), nil
	})
	a := newTestAnalyzer(t, p)

	_, _, err := a.Analyze(context.Background(), "AAPL", models.Window{}, models.Params{})
	require.NoError(t, err)
	_, cached, err := a.Analyze(context.Background(), "AAPL", models.Window{}, models.Params{RSIPeriod: 7})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 2, p.Calls("AAPL"))
}

func TestAnalyzeRetriesRateLimit(t *testing.T) {
	p := newFakeProvider(func(_ context.Context, sym string, call int) (*models.PriceSeries, error) {
		if call <= 2 {
			return nil, &models.RateLimitError{RetryAfter: 500 * time.Millisecond}
		}
		return dailySeries(t, sym, 150, 100, 0.5), nil
	})
	rec := &sleepRecorder{}
	a := newTestAnalyzer(t, p, WithAnalyzerSleep(rec.Sleep))

	res, _, err := a.Analyze(context.Background(), "MSFT", models.Window{}, models.Params{})
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Equal(t, 3, p.Calls("MSFT"))
	require.Len(t, rec.waits, 2)
	for _, w := range rec.waits {
		assert.GreaterOrEqual(t, w, 500*time.Millisecond, "retry hint must be honoured")
	}
}

func TestAnalyzeGivesUpAfterRetryMax(t *testing.T) {
	p := newFakeProvider(func(context.Context, string, int) (*models.PriceSeries, error) {
		return nil, &models.RateLimitError{}
	})
	rec := &sleepRecorder{}
	a := newTestAnalyzer(t, p, WithAnalyzerSleep(rec.Sleep))

	_, _, err := a.Analyze(context.Background(), "MSFT", models.Window{}, models.Params{})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrRateLimited)
	assert.Equal(t, models.ReasonRateLimited, models.Reason(err))
	assert.Equal(t, 3, p.Calls("MSFT"))
	require.Len(t, rec.waits, 2)
	for _, w := range rec.waits {
		assert.GreaterOrEqual(t, w, 5*time.Millisecond)
		assert.LessOrEqual(t, w, 40*time.Millisecond)
	}
}

func TestAnalyzeDoesNotRetryOtherErrors(t *testing.T) {
	p := newFakeProvider(func(context.Context, string, int) (*models.PriceSeries, error) {
		return nil, models.ErrDataUnavailable
	})
	a := newTestAnalyzer(t, p)

	_, _, err := a.Analyze(context.Background(), "NONE", models.Window{}, models.Params{})
	assert.ErrorIs(t, err, models.ErrDataUnavailable)
	assert.Equal(t, 1, p.Calls("NONE"))
}

func TestAnalyzeRejectsInvalidInputBeforeFetching(t *testing.T) {
	p := newFakeProvider(func(_ context.Context, sym string, _ int) (*models.PriceSeries, error) {
		return dailySeries(t, sym, 150, 100, 0.5), nil
	})
	a := newTestAnalyzer(t, p)

	cases := []struct {
		name   string
		symbol string
		w      models.Window
		p      models.Params
	}{
		{"empty symbol", "  ", models.Window{}, models.Params{}},
		{"bad timeframe", "AAPL", models.Window{Timeframe: "7m"}, models.Params{}},
		{"too few bars", "AAPL", models.Window{Bars: 1}, models.Params{}},
		{"weights off", "AAPL", models.Window{}, models.Params{Weights: models.Weights{Trend: 0.5}}},
		{"ma order", "AAPL", models.Window{}, models.Params{ShortMA: 30, MediumMA: 20}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := a.Analyze(context.Background(), tc.symbol, tc.w, tc.p)
			assert.ErrorIs(t, err, models.ErrInvalidParameters)
		})
	}
	assert.Equal(t, 0, p.Calls("AAPL"))
}

func TestAnalyzeSingleBarIsInsufficient(t *testing.T) {
	p := newFakeProvider(func(_ context.Context, sym string, _ int) (*models.PriceSeries, error) {
		return dailySeries(t, sym, 1, 100, 0), nil
	})
	a := newTestAnalyzer(t, p)

	_, _, err := a.Analyze(context.Background(), "NEW", models.Window{}, models.Params{})
	assert.ErrorIs(t, err, models.ErrInsufficientHistory)
}

func TestAnalyzeShortHistoryIsPartial(t *testing.T) {
	p := newFakeProvider(func(_ context.Context, sym string, _ int) (*models.PriceSeries, error) {
		return dailySeries(t, sym, 30, 100, 0.5), nil
	})
	a := newTestAnalyzer(t, p)

	res, _, err := a.Analyze(context.Background(), "IPO", models.Window{}, models.Params{})
	require.NoError(t, err)
	assert.True(t, res.Score.Partial)
	_, ok := res.Indicators.Get(models.IndMALong)
	assert.False(t, ok)
}

func TestAnalyzeHonoursContext(t *testing.T) {
	p := newFakeProvider(func(ctx context.Context, _ string, _ int) (*models.PriceSeries, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	a := newTestAnalyzer(t, p)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err := a.Analyze(ctx, "SLOW", models.Window{}, models.Params{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, models.ReasonTimeout, models.Reason(err))
}

func TestAnalyzeAcceptsZeroWeights(t *testing.T) {
	p := newFakeProvider(func(_ context.Context, sym string, _ int) (*models.PriceSeries, error) {
		return dailySeries(t, sym, 150, 100, 0.5), nil
	})
	a := newTestAnalyzer(t, p)

	w := models.Weights{Trend: 0.5, Technical: 0.5}
	res, _, err := a.Analyze(context.Background(), "AAPL", models.Window{}, models.Params{Weights: w})
	require.NoError(t, err)
	require.Len(t, res.Score.Factors, 5)
	for _, f := range res.Score.Factors {
		assert.Equalf(t, w.Of(f.Factor), f.Weight, "factor %s", f.Factor)
	}
	assert.InDelta(t, 0.5*res.Score.Factors[0].Score+0.5*res.Score.Factors[1].Score, res.Score.Score, 1e-9)
}
