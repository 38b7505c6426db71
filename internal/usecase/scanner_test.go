package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinScore/internal/domain/models"
)

func testScannerConfig() ScannerConfig {
	return ScannerConfig{
		DefaultConcurrency: 4,
		MaxConcurrency:     16,
		SymbolTimeout:      time.Second,
		MaxSymbols:         100,
	}
}

func TestScanIsolatesFailures(t *testing.T) {
	a := &fakeAnalyzer{fn: func(_ context.Context, sym string) (*models.AnalysisResult, error) {
		switch sym {
		case "A":
			return scored(sym, 70, nil), nil
		case "B":
			return nil, fmt.Errorf("fetch B: %w", models.ErrDataUnavailable)
		default:
			return scored(sym, 40, nil), nil
		}
	}}
	s := NewScanner(a, testScannerConfig())

	res, err := s.Scan(context.Background(), ScanRequest{Symbols: []string{"A", "B", "C"}, MinScore: 50})
	require.NoError(t, err)

	require.Len(t, res.Entries, 3)
	require.Len(t, res.Ranking, 1)
	assert.Equal(t, "A", res.Ranking[0].Symbol)
	assert.Equal(t, 1, res.Ranking[0].Rank)

	b, ok := res.Entry("B")
	require.True(t, ok)
	assert.Equal(t, models.ScanFailed, b.Status)
	assert.Equal(t, models.ReasonDataUnavailable, b.Reason)

	c, ok := res.Entry("C")
	require.True(t, ok)
	assert.True(t, c.OK())
	assert.Equal(t, 0, c.Rank)
	assert.False(t, res.Cancelled)
	assert.Equal(t, 3, res.Requested)
}

func TestScanRankingTiesBreakBySymbol(t *testing.T) {
	a := &fakeAnalyzer{fn: func(_ context.Context, sym string) (*models.AnalysisResult, error) {
		if sym == "TOP" {
			return scored(sym, 90, nil), nil
		}
		return scored(sym, 60, nil), nil
	}}
	s := NewScanner(a, testScannerConfig())

	for i := 0; i < 5; i++ {
		res, err := s.Scan(context.Background(), ScanRequest{Symbols: []string{"ZZ", "MM", "TOP", "AA"}, Concurrency: 4})
		require.NoError(t, err)
		var got []string
		for _, e := range res.Ranking {
			got = append(got, e.Symbol)
		}
		assert.Equal(t, []string{"TOP", "AA", "MM", "ZZ"}, got)
	}
}

func TestScanValidation(t *testing.T) {
	a := &fakeAnalyzer{fn: func(_ context.Context, sym string) (*models.AnalysisResult, error) {
		return scored(sym, 50, nil), nil
	}}
	s := NewScanner(a, testScannerConfig())

	cases := []struct {
		name string
		req  ScanRequest
	}{
		{"no symbols", ScanRequest{}},
		{"duplicates", ScanRequest{Symbols: []string{"AAPL", "aapl"}}},
		{"blank symbol", ScanRequest{Symbols: []string{"AAPL", " "}}},
		{"concurrency too high", ScanRequest{Symbols: []string{"AAPL"}, Concurrency: 17}},
		{"negative concurrency", ScanRequest{Symbols: []string{"AAPL"}, Concurrency: -1}},
		{"min score", ScanRequest{Symbols: []string{"AAPL"}, MinScore: 101}},
		{"bad params", ScanRequest{Symbols: []string{"AAPL"}, Params: models.Params{RSIPeriod: 1}}},
		{"bad window", ScanRequest{Symbols: []string{"AAPL"}, Window: models.Window{Timeframe: "2h"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Scan(context.Background(), tc.req)
			assert.ErrorIs(t, err, models.ErrInvalidParameters)
		})
	}
	assert.Zero(t, a.calls.Load())
}

func TestScanCancelMarksUndispatched(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	a := &fakeAnalyzer{fn: func(_ context.Context, sym string) (*models.AnalysisResult, error) {
		once.Do(func() { close(started) })
		<-release
		return scored(sym, 80, nil), nil
	}}
	s := NewScanner(a, testScannerConfig())

	job, err := s.Start(context.Background(), ScanRequest{Symbols: []string{"S1", "S2", "S3", "S4"}, Concurrency: 1})
	require.NoError(t, err)
	<-started
	job.Cancel()
	// give the dispatcher a moment to observe the cancellation
	time.Sleep(20 * time.Millisecond)
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := job.Wait(ctx)
	require.NoError(t, err)

	assert.True(t, res.Cancelled)
	require.Len(t, res.Entries, 4)
	s1, _ := res.Entry("S1")
	assert.True(t, s1.OK(), "in-flight symbol keeps its result")
	for _, sym := range []string{"S2", "S3", "S4"} {
		e, ok := res.Entry(sym)
		require.True(t, ok)
		assert.Equal(t, models.ReasonCancelled, e.Reason)
	}
	assert.Equal(t, int64(1), a.calls.Load())
}

func TestScanContextCancelStopsSyncScan(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &fakeAnalyzer{fn: func(_ context.Context, sym string) (*models.AnalysisResult, error) {
		cancel()
		return scored(sym, 80, nil), nil
	}}
	s := NewScanner(a, testScannerConfig())

	res, err := s.Scan(ctx, ScanRequest{Symbols: []string{"A", "B", "C"}, Concurrency: 1})
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.Len(t, res.Entries, 3)
	assert.Len(t, res.Failed(), 2)
	assert.Equal(t, int64(1), a.calls.Load())
}

func TestScanNeverAnalyzesAfterCancel(t *testing.T) {
	// the worker frees up in the same instant the scan is cancelled
	for i := 0; i < 50; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		a := &fakeAnalyzer{fn: func(_ context.Context, sym string) (*models.AnalysisResult, error) {
			cancel()
			return scored(sym, 80, nil), nil
		}}
		s := NewScanner(a, testScannerConfig())

		res, err := s.Scan(ctx, ScanRequest{Symbols: []string{"A", "B", "C", "D"}, Concurrency: 2})
		require.NoError(t, err)
		assert.True(t, res.Cancelled)
		assert.LessOrEqual(t, a.calls.Load(), int64(2), "only units handed out before the cancel run")
		for _, e := range res.Failed() {
			assert.Equal(t, models.ReasonCancelled, e.Reason)
		}
		cancel()
	}
}

func TestScanSymbolTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	a := &fakeAnalyzer{fn: func(ctx context.Context, sym string) (*models.AnalysisResult, error) {
		switch sym {
		case "HANG":
			// ignores its context entirely
			<-block
			return nil, errors.New("unreachable")
		case "SLOW":
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return scored(sym, 60, nil), nil
	}}
	cfg := testScannerConfig()
	cfg.SymbolTimeout = 30 * time.Millisecond
	s := NewScanner(a, cfg)

	start := time.Now()
	res, err := s.Scan(context.Background(), ScanRequest{Symbols: []string{"HANG", "SLOW", "FAST"}})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)

	for _, sym := range []string{"HANG", "SLOW"} {
		e, _ := res.Entry(sym)
		assert.Equal(t, models.ReasonTimeout, e.Reason, sym)
	}
	fast, _ := res.Entry("FAST")
	assert.True(t, fast.OK())
}

func TestScanRetriesThroughAnalyzer(t *testing.T) {
	p := newFakeProvider(func(_ context.Context, sym string, call int) (*models.PriceSeries, error) {
		switch {
		case sym == "FLAKY" && call <= 2:
			return nil, &models.RateLimitError{}
		case sym == "THROTTLED":
			return nil, &models.RateLimitError{}
		}
		return dailySeries(t, sym, 150, 100, 0.3), nil
	})
	rec := &sleepRecorder{}
	var mu sync.Mutex
	sleep := func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		return rec.Sleep(ctx, d)
	}
	a := newTestAnalyzer(t, p, WithAnalyzerSleep(sleep))
	s := NewScanner(a, testScannerConfig())

	res, err := s.Scan(context.Background(), ScanRequest{Symbols: []string{"FLAKY", "THROTTLED", "OK"}})
	require.NoError(t, err)

	flaky, _ := res.Entry("FLAKY")
	assert.True(t, flaky.OK())
	throttled, _ := res.Entry("THROTTLED")
	assert.Equal(t, models.ReasonRateLimited, throttled.Reason)
	assert.Equal(t, 3, p.Calls("THROTTLED"))
	assert.Equal(t, 3, p.Calls("FLAKY"))
}

func TestScanProgressIsMonotonic(t *testing.T) {
	a := &fakeAnalyzer{fn: func(_ context.Context, sym string) (*models.AnalysisResult, error) {
		time.Sleep(time.Millisecond)
		return scored(sym, 55, nil), nil
	}}
	s := NewScanner(a, testScannerConfig())

	syms := make([]string, 40)
	for i := range syms {
		syms[i] = fmt.Sprintf("S%02d", i)
	}
	job, err := s.Start(context.Background(), ScanRequest{Symbols: syms, Concurrency: 3})
	require.NoError(t, err)

	last := 0
	for {
		p, changed := job.Watch()
		require.GreaterOrEqual(t, p.Completed, last)
		last = p.Completed
		if p.Done {
			assert.Equal(t, len(syms), p.Completed)
			assert.Len(t, p.Ranking, len(syms))
			break
		}
		select {
		case <-changed:
		case <-time.After(2 * time.Second):
			t.Fatal("no progress")
		}
	}
}

func TestScanPartialRankingDuringProgress(t *testing.T) {
	gate := make(chan struct{})
	a := &fakeAnalyzer{fn: func(_ context.Context, sym string) (*models.AnalysisResult, error) {
		if sym == "LATE" {
			<-gate
		}
		return scored(sym, map[string]float64{"HI": 90, "LO": 30, "LATE": 70}[sym], nil), nil
	}}
	s := NewScanner(a, testScannerConfig())

	job, err := s.Start(context.Background(), ScanRequest{Symbols: []string{"HI", "LO", "LATE"}, MinScore: 50, Concurrency: 3})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return job.Progress().Completed == 2 }, time.Second, 5*time.Millisecond)
	p := job.Progress()
	assert.False(t, p.Done)
	require.Len(t, p.Ranking, 1)
	assert.Equal(t, "HI", p.Ranking[0].Symbol)

	close(gate)
	res, err := job.Wait(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Ranking, 2)
	assert.Equal(t, "LATE", res.Ranking[1].Symbol)
}

func TestScanAttachesStrengthAndBreadth(t *testing.T) {
	a := &fakeAnalyzer{fn: func(_ context.Context, sym string) (*models.AnalysisResult, error) {
		ret := map[string]float64{"UP": 8, "FLAT": 0, "DOWN": -4}[sym]
		return scored(sym, 50, map[string]float64{
			models.IndChangePct:   ret / 2,
			models.ReturnName(5):  ret,
			models.ReturnName(20): ret,
		}), nil
	}}
	s := NewScanner(a, testScannerConfig())

	res, err := s.Scan(context.Background(), ScanRequest{Symbols: []string{"UP", "FLAT", "DOWN"}})
	require.NoError(t, err)

	up, _ := res.Entry("UP")
	assert.InDelta(t, 100, up.RelativeStrength, 1e-9)
	assert.Equal(t, StrengthVeryStrong, up.StrengthLevel)
	down, _ := res.Entry("DOWN")
	assert.InDelta(t, 100.0/3, down.RelativeStrength, 1e-9)

	require.NotNil(t, res.Breadth)
	assert.Equal(t, 3, res.Breadth.Total)
	assert.Equal(t, 1, res.Breadth.Up)
	assert.Equal(t, 1, res.Breadth.Down)
	assert.Equal(t, 1, res.Breadth.Strong)
}

type countingObserver struct {
	mu       sync.Mutex
	started  int
	finished []*models.ScanResult
}

func (o *countingObserver) ScanStarted(int) {
	o.mu.Lock()
	o.started++
	o.mu.Unlock()
}

func (o *countingObserver) ScanFinished(res *models.ScanResult) {
	o.mu.Lock()
	o.finished = append(o.finished, res)
	o.mu.Unlock()
}

func TestScanPublishesBestEffort(t *testing.T) {
	a := &fakeAnalyzer{fn: func(_ context.Context, sym string) (*models.AnalysisResult, error) {
		return scored(sym, 75, nil), nil
	}}
	pub := &recordingPublisher{err: errors.New("broker down")}
	obs := &countingObserver{}
	s := NewScanner(a, testScannerConfig(), WithScanPublisher(pub), WithScanObserver(obs))

	res, err := s.Scan(context.Background(), ScanRequest{Symbols: []string{"A", "B"}})
	require.NoError(t, err)
	require.Len(t, pub.Published(), 1)
	assert.Equal(t, res.ID, pub.Published()[0].ID)
	assert.Equal(t, 1, obs.started)
	require.Len(t, obs.finished, 1)
	assert.Same(t, res, obs.finished[0])
}

func TestScanAcceptsZeroWeights(t *testing.T) {
	p := newFakeProvider(func(_ context.Context, sym string, _ int) (*models.PriceSeries, error) {
		return dailySeries(t, sym, 150, 100, 0.5), nil
	})
	s := NewScanner(newTestAnalyzer(t, p), testScannerConfig())

	w := models.Weights{Trend: 0.7, Momentum: 0.3}
	res, err := s.Scan(context.Background(), ScanRequest{
		Symbols: []string{"AAPL", "MSFT"},
		Params:  models.Params{Weights: w},
		Window:  models.Window{Timeframe: models.TF1d, Bars: 120},
	})
	require.NoError(t, err)
	require.Len(t, res.Ranking, 2)
	for _, e := range res.Entries {
		assert.Equal(t, models.ScanOK, e.Status)
		for _, f := range e.Factors {
			assert.Equal(t, w.Of(f.Factor), f.Weight)
		}
	}
}

// symbolFlows serves capital flow per symbol.
type symbolFlows map[string][]models.CapitalFlow

func (f symbolFlows) FetchFundamentals(context.Context, string) (*models.Fundamentals, error) {
	return nil, models.ErrDataUnavailable
}

func (f symbolFlows) FetchCapitalFlow(_ context.Context, symbol string, rng models.DateRange) ([]models.CapitalFlow, error) {
	if symbol == "C" {
		return nil, errors.New("flow store down")
	}
	var out []models.CapitalFlow
	for _, fl := range f[symbol] {
		if rng.Contains(fl.Time) {
			out = append(out, fl)
		}
	}
	return out, nil
}

func TestScanBreadthUsesLatestCapitalFlow(t *testing.T) {
	a := &fakeAnalyzer{fn: func(_ context.Context, sym string) (*models.AnalysisResult, error) {
		switch sym {
		case "A":
			return scored(sym, 80, map[string]float64{models.IndChangePct: 10, models.IndLimitStreak: 1, models.IndPrevLimitStreak: 0}), nil
		case "D":
			return nil, models.ErrDataUnavailable
		default:
			return scored(sym, 60, map[string]float64{models.IndChangePct: 4}), nil
		}
	}}
	flows := symbolFlows{
		"A": {
			{Time: testNow.AddDate(0, 0, -1), MainNet: 9e9},
			{Time: testNow, MainNet: 2e9},
		},
		// outside the lookback
		"B": {{Time: testNow.AddDate(0, 0, -30), MainNet: -5e9}},
		"D": {{Time: testNow, MainNet: 7e9}},
	}
	s := NewScanner(a, testScannerConfig(), WithCapitalFlow(flows), WithScannerClock(func() time.Time { return testNow }))

	res, err := s.Scan(context.Background(), ScanRequest{Symbols: []string{"A", "B", "C", "D"}})
	require.NoError(t, err)
	b := res.Breadth
	require.NotNil(t, b)
	require.NotNil(t, b.MainNetInflow)
	assert.Equal(t, 2e9, *b.MainNetInflow)
	assert.InDelta(t, 0.7, *b.MoneyFlowSentiment, 1e-9)
	assert.Equal(t, 1, b.LimitUp)
	// up, strong and limit ratios are all 1: (0.3+0.2+0.25+0.7*0.25)/1
	assert.InDelta(t, 92.5, b.SentimentIndex, 1e-9)
	require.NotNil(t, b.Boards)
	assert.Equal(t, map[int]int{1: 1}, b.Boards.Streaks)

	s = NewScanner(a, testScannerConfig(), WithCapitalFlow(symbolFlows{}))
	res, err = s.Scan(context.Background(), ScanRequest{Symbols: []string{"A", "B"}})
	require.NoError(t, err)
	assert.Nil(t, res.Breadth.MainNetInflow)
	assert.Nil(t, res.Breadth.MoneyFlowSentiment)
}
