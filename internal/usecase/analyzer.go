package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FinScore/internal/domain/models"
	"FinScore/internal/domain/repository"
	domsvc "FinScore/internal/domain/service"
	icache "FinScore/internal/service/cache"
	"FinScore/internal/services/scoring"
	applogger "FinScore/pkg/logger"
	"FinScore/pkg/util"
)

// ScorerFactory builds a scorer for one weight set.
type ScorerFactory func(w models.Weights) (domsvc.Scorer, error)

// DefaultScorerFactory builds the five-factor scorer.
func DefaultScorerFactory(w models.Weights) (domsvc.Scorer, error) {
	sc, err := scoring.NewScorer(w)
	if err != nil {
		return nil, err
	}
	return sc, nil
}

// AnalyzerConfig controls provider retries and request defaults.
type AnalyzerConfig struct {
	RetryMax      int
	BackoffMin    time.Duration
	BackoffMax    time.Duration
	DefaultWindow models.Window
}

type AnalyzerOption func(*Analyzer)

func WithAnalyzerClock(now func() time.Time) AnalyzerOption {
	return func(a *Analyzer) { a.now = now }
}

// WithAnalyzerSleep replaces the backoff wait, mainly for tests.
func WithAnalyzerSleep(sleep func(ctx context.Context, d time.Duration) error) AnalyzerOption {
	return func(a *Analyzer) { a.sleep = sleep }
}

func WithAnalyzerLogger(l *applogger.Logger) AnalyzerOption {
	return func(a *Analyzer) { a.log = l }
}

func WithAnalyzerMetrics(m repository.Metrics) AnalyzerOption {
	return func(a *Analyzer) { a.metrics = m }
}

func WithScorerFactory(f ScorerFactory) AnalyzerOption {
	return func(a *Analyzer) { a.newScorer = f }
}

// Analyzer produces the analysis of one symbol: cache, then provider,
// indicator engine and scorer.
type Analyzer struct {
	provider  repository.MarketDataProvider
	engine    domsvc.IndicatorEngine
	cache     *icache.ResultCache
	newScorer ScorerFactory
	cfg       AnalyzerConfig

	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	log     *applogger.Logger
	metrics repository.Metrics
}

func NewAnalyzer(provider repository.MarketDataProvider, engine domsvc.IndicatorEngine, cache *icache.ResultCache, cfg AnalyzerConfig, opts ...AnalyzerOption) *Analyzer {
	if cfg.RetryMax < 1 {
		cfg.RetryMax = 1
	}
	if cfg.DefaultWindow.Timeframe == "" {
		cfg.DefaultWindow.Timeframe = models.DefaultTimeframe()
	}
	if cfg.DefaultWindow.Bars == 0 {
		cfg.DefaultWindow.Bars = 120
	}
	a := &Analyzer{
		provider:  provider,
		engine:    engine,
		cache:     cache,
		newScorer: DefaultScorerFactory,
		cfg:       cfg,
		now:       time.Now,
		sleep:     util.Sleep,
		log:       applogger.Nop(),
		metrics:   repository.NopMetrics{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Normalize fills request defaults and validates symbol, window and params.
func (a *Analyzer) Normalize(symbol string, w models.Window, p models.Params) (string, models.Window, models.Params, error) {
	sym := models.NormalizeSymbol(symbol)
	if sym == "" {
		return "", w, p, &models.ParamError{Field: "symbol", Reason: "required"}
	}
	if w.Timeframe == "" {
		w.Timeframe = a.cfg.DefaultWindow.Timeframe
	}
	if w.Bars == 0 {
		w.Bars = a.cfg.DefaultWindow.Bars
	}
	if err := w.Validate(); err != nil {
		return "", w, p, err
	}
	if err := p.ApplyDefaults(); err != nil {
		return "", w, p, fmt.Errorf("%w: %v", models.ErrInvalidParameters, err)
	}
	if err := p.Validate(); err != nil {
		return "", w, p, err
	}
	return sym, w, p, nil
}

// Analyze returns the analysis for symbol over w. cached reports whether the
// result came from the cache.
func (a *Analyzer) Analyze(ctx context.Context, symbol string, w models.Window, p models.Params) (res *models.AnalysisResult, cached bool, err error) {
	sym, w, p, err := a.Normalize(symbol, w, p)
	if err != nil {
		return nil, false, err
	}
	key := icache.NewKey(sym, w, p)
	if a.cache == nil {
		res, err = a.compute(ctx, sym, w, p)
		return res, false, err
	}
	return a.cache.GetOrCompute(ctx, key, func(ctx context.Context) (*models.AnalysisResult, error) {
		return a.compute(ctx, sym, w, p)
	})
}

func (a *Analyzer) compute(ctx context.Context, symbol string, w models.Window, p models.Params) (*models.AnalysisResult, error) {
	start := time.Now()
	defer func() { a.metrics.RecordLatency("analyze", time.Since(start).Seconds()) }()

	series, err := a.fetch(ctx, symbol, w)
	if err != nil {
		return nil, err
	}
	series = series.Tail(w.Bars)
	if series.Len() < 2 {
		return nil, fmt.Errorf("%s: %d bar(s): %w", symbol, series.Len(), models.ErrInsufficientHistory)
	}

	set, err := a.engine.Compute(series, p)
	if err != nil {
		return nil, fmt.Errorf("indicators %s: %w", symbol, err)
	}
	scorer, err := a.newScorer(p.Weights)
	if err != nil {
		return nil, err
	}

	return &models.AnalysisResult{
		Symbol:      symbol,
		Window:      w,
		Fingerprint: p.Fingerprint(),
		Indicators:  set,
		Score:       scorer.Score(set),
		ComputedAt:  a.now(),
	}, nil
}

// fetch retries rate-limited provider calls with jittered exponential
// backoff, waiting at least the provider's RetryAfter hint.
func (a *Analyzer) fetch(ctx context.Context, symbol string, w models.Window) (*models.PriceSeries, error) {
	rng := w.Range(a.now())
	for attempt := 1; ; attempt++ {
		start := time.Now()
		series, err := a.provider.FetchSeries(ctx, symbol, rng, w.Timeframe)
		a.metrics.RecordLatency("provider_fetch", time.Since(start).Seconds())
		if err == nil {
			if series == nil {
				return nil, fmt.Errorf("fetch %s: %w", symbol, models.ErrDataUnavailable)
			}
			return series, nil
		}
		if !errors.Is(err, models.ErrRateLimited) || attempt >= a.cfg.RetryMax {
			return nil, fmt.Errorf("fetch %s: %w", symbol, err)
		}

		wait := util.BackoffWithJitter(a.cfg.BackoffMin, a.cfg.BackoffMax, attempt)
		var rl *models.RateLimitError
		if errors.As(err, &rl) && rl.RetryAfter > wait {
			wait = rl.RetryAfter
		}
		a.metrics.RecordProviderRetry(models.ReasonRateLimited)
		a.log.Debug("provider rate limited, retrying",
			applogger.String("symbol", symbol),
			applogger.Int("attempt", attempt),
			applogger.Duration("wait_ms", wait),
		)
		if err := a.sleep(ctx, wait); err != nil {
			return nil, fmt.Errorf("fetch %s: %w", symbol, err)
		}
	}
}
