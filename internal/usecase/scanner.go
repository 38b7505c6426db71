package usecase

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"FinScore/internal/domain/models"
	"FinScore/internal/domain/repository"
	applogger "FinScore/pkg/logger"
	"FinScore/pkg/util"
)

// SymbolAnalyzer analyzes one symbol. *Analyzer implements it.
type SymbolAnalyzer interface {
	Analyze(ctx context.Context, symbol string, w models.Window, p models.Params) (*models.AnalysisResult, bool, error)
}

var _ SymbolAnalyzer = (*Analyzer)(nil)

// ScanObserver is told when scans start and finish.
type ScanObserver interface {
	ScanStarted(symbols int)
	ScanFinished(res *models.ScanResult)
}

// ScanRequest describes one scan. Zero Window fields and zero Params fields
// take their defaults; zero Concurrency takes the configured default.
type ScanRequest struct {
	Symbols     []string
	Params      models.Params
	Window      models.Window
	MinScore    float64
	Concurrency int
}

type ScannerConfig struct {
	DefaultConcurrency int
	MaxConcurrency     int
	SymbolTimeout      time.Duration
	MaxSymbols         int
	DefaultWindow      models.Window
	PublishTimeout     time.Duration
}

type ScannerOption func(*Scanner)

func WithScanPublisher(p repository.ResultPublisher) ScannerOption {
	return func(s *Scanner) { s.publisher = p }
}

func WithScanObserver(o ScanObserver) ScannerOption {
	return func(s *Scanner) { s.observer = o }
}

func WithScannerLogger(l *applogger.Logger) ScannerOption {
	return func(s *Scanner) { s.log = l }
}

func WithScannerMetrics(m repository.Metrics) ScannerOption {
	return func(s *Scanner) { s.metrics = m }
}

// WithCapitalFlow feeds the latest main net flow of the scanned symbols into
// the breadth sentiment.
func WithCapitalFlow(f repository.FundamentalProvider) ScannerOption {
	return func(s *Scanner) { s.flows = f }
}

func WithScannerClock(now func() time.Time) ScannerOption {
	return func(s *Scanner) { s.now = now }
}

// Scanner analyzes many symbols with a bounded worker pool. One symbol's
// failure never affects the others.
type Scanner struct {
	analyzer  SymbolAnalyzer
	cfg       ScannerConfig
	publisher repository.ResultPublisher
	observer  ScanObserver
	log       *applogger.Logger
	metrics   repository.Metrics
	flows     repository.FundamentalProvider
	now       func() time.Time
}

// flowLookbackDays bounds how stale a symbol's latest capital flow may be.
const flowLookbackDays = 7

func NewScanner(analyzer SymbolAnalyzer, cfg ScannerConfig, opts ...ScannerOption) *Scanner {
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = 64
	}
	if cfg.DefaultConcurrency < 1 || cfg.DefaultConcurrency > cfg.MaxConcurrency {
		cfg.DefaultConcurrency = min(8, cfg.MaxConcurrency)
	}
	if cfg.SymbolTimeout <= 0 {
		cfg.SymbolTimeout = 10 * time.Second
	}
	if cfg.MaxSymbols < 1 {
		cfg.MaxSymbols = 5000
	}
	if cfg.DefaultWindow.Timeframe == "" {
		cfg.DefaultWindow.Timeframe = models.DefaultTimeframe()
	}
	if cfg.DefaultWindow.Bars == 0 {
		cfg.DefaultWindow.Bars = 120
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	s := &Scanner{
		analyzer: analyzer,
		cfg:      cfg,
		log:      applogger.Nop(),
		metrics:  repository.NopMetrics{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate normalizes req in place and rejects it before any work starts.
func (s *Scanner) Validate(req *ScanRequest) error {
	if len(req.Symbols) == 0 {
		return &models.ParamError{Field: "symbols", Reason: "at least one symbol is required"}
	}
	if len(req.Symbols) > s.cfg.MaxSymbols {
		return &models.ParamError{Field: "symbols", Reason: fmt.Sprintf("at most %d symbols per scan", s.cfg.MaxSymbols)}
	}
	syms := make([]string, len(req.Symbols))
	for i, raw := range req.Symbols {
		sym := models.NormalizeSymbol(raw)
		if sym == "" {
			return &models.ParamError{Field: "symbols", Reason: fmt.Sprintf("empty symbol at index %d", i)}
		}
		syms[i] = sym
	}
	if _, dups := util.Dedupe(syms); len(dups) > 0 {
		return &models.ParamError{Field: "symbols", Reason: fmt.Sprintf("duplicate symbols %v", dups)}
	}
	req.Symbols = syms

	if req.Concurrency == 0 {
		req.Concurrency = s.cfg.DefaultConcurrency
	}
	if req.Concurrency < 1 || req.Concurrency > s.cfg.MaxConcurrency {
		return &models.ParamError{Field: "concurrency", Reason: fmt.Sprintf("must be between 1 and %d", s.cfg.MaxConcurrency)}
	}
	if math.IsNaN(req.MinScore) || req.MinScore < 0 || req.MinScore > 100 {
		return &models.ParamError{Field: "min_score", Reason: "must be between 0 and 100"}
	}

	if req.Window.Timeframe == "" {
		req.Window.Timeframe = s.cfg.DefaultWindow.Timeframe
	}
	if req.Window.Bars == 0 {
		req.Window.Bars = s.cfg.DefaultWindow.Bars
	}
	if err := req.Window.Validate(); err != nil {
		return err
	}
	if err := req.Params.ApplyDefaults(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidParameters, err)
	}
	return req.Params.Validate()
}

// Scan runs a scan to completion. When ctx is cancelled the undispatched
// symbols are reported as cancelled and the result has Cancelled set.
func (s *Scanner) Scan(ctx context.Context, req ScanRequest) (*models.ScanResult, error) {
	if err := s.Validate(&req); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	job := s.newJob(req, cancel)
	s.run(ctx, job, req)
	return job.result, nil
}

// Start launches a scan in the background. The scan outlives ctx; use the
// job's Cancel to stop it.
func (s *Scanner) Start(ctx context.Context, req ScanRequest) (*ScanJob, error) {
	if err := s.Validate(&req); err != nil {
		return nil, err
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	job := s.newJob(req, cancel)
	go s.run(runCtx, job, req)
	return job, nil
}

func (s *Scanner) newJob(req ScanRequest, cancel context.CancelFunc) *ScanJob {
	return &ScanJob{
		id:        uuid.NewString(),
		total:     len(req.Symbols),
		minScore:  req.MinScore,
		startedAt: s.now(),
		cancel:    cancel,
		done:      make(chan struct{}),
		changed:   make(chan struct{}),
	}
}

func (s *Scanner) run(ctx context.Context, job *ScanJob, req ScanRequest) {
	defer job.cancel()
	log := s.log.With(applogger.String("scan_id", job.id))
	log.Info("scan started",
		applogger.Int("symbols", job.total),
		applogger.Int("concurrency", req.Concurrency),
		applogger.String("window", req.Window.ID()),
	)
	if s.observer != nil {
		s.observer.ScanStarted(job.total)
	}

	entries := make([]models.ScanEntry, len(req.Symbols))
	dispatch := make(chan int)
	var (
		wg      sync.WaitGroup
		skipped atomic.Int64
	)
	for w := 0; w < req.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range dispatch {
				var e models.ScanEntry
				// select may hand out a unit in the same instant ctx is cancelled
				if ctx.Err() != nil {
					e = cancelledEntry(req.Symbols[idx])
					skipped.Add(1)
				} else {
					e = s.scanSymbol(ctx, req, req.Symbols[idx])
				}
				entries[idx] = e
				job.record(e)
			}
		}()
	}

	dispatched := 0
dispatchLoop:
	for i := range req.Symbols {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break dispatchLoop
		case dispatch <- i:
			dispatched++
		}
	}
	close(dispatch)
	wg.Wait()
	cancelled := dispatched < len(req.Symbols) || skipped.Load() > 0

	for i := dispatched; i < len(req.Symbols); i++ {
		e := cancelledEntry(req.Symbols[i])
		entries[i] = e
		job.record(e)
	}
	for _, e := range entries {
		s.metrics.RecordScanSymbol(string(e.Status), e.Reason)
	}

	ApplyRelativeStrength(entries)
	breadth := ComputeBreadth(entries, s.latestMainNet(ctx, log, req, entries))
	ordered, ranking := models.RankEntries(entries, req.MinScore)
	res := &models.ScanResult{
		ID:         job.id,
		Requested:  job.total,
		MinScore:   req.MinScore,
		Entries:    ordered,
		Ranking:    ranking,
		Breadth:    breadth,
		Cancelled:  cancelled,
		StartedAt:  job.startedAt,
		FinishedAt: s.now(),
	}

	s.publish(ctx, log, res)
	if s.observer != nil {
		s.observer.ScanFinished(res)
	}
	log.Info("scan finished",
		applogger.Int("ranked", len(res.Ranking)),
		applogger.Int("failed", len(res.Failed())),
		applogger.Bool("cancelled", cancelled),
		applogger.Duration("elapsed_ms", res.FinishedAt.Sub(res.StartedAt)),
	)
	job.finish(res)
}

func cancelledEntry(symbol string) models.ScanEntry {
	return models.ScanEntry{
		Symbol: symbol,
		Status: models.ScanFailed,
		Reason: models.ReasonCancelled,
		Error:  models.ErrCancelled.Error(),
	}
}

// latestMainNet sums the most recent main net flow of the ok entries, or
// returns nil when none of them has flow data in the lookback.
func (s *Scanner) latestMainNet(ctx context.Context, log *applogger.Logger, req ScanRequest, entries []models.ScanEntry) *float64 {
	if s.flows == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.SymbolTimeout)
	defer cancel()
	end := req.Window.End
	if end.IsZero() {
		end = s.now()
	}
	rng := models.DateRange{From: end.AddDate(0, 0, -flowLookbackDays), To: end}

	var (
		mu    sync.Mutex
		sum   float64
		found int
		g     errgroup.Group
	)
	g.SetLimit(req.Concurrency)
	for _, e := range entries {
		if !e.OK() {
			continue
		}
		symbol := e.Symbol
		g.Go(func() error {
			flows, err := s.flows.FetchCapitalFlow(ctx, symbol, rng)
			if err != nil {
				log.Debug("capital flow unavailable", applogger.String("symbol", symbol), applogger.Error(err))
				return nil
			}
			if len(flows) == 0 {
				return nil
			}
			latest := flows[0]
			for _, f := range flows[1:] {
				if f.Time.After(latest.Time) {
					latest = f
				}
			}
			mu.Lock()
			sum += latest.MainNet
			found++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	if found == 0 {
		return nil
	}
	return &sum
}

// scanSymbol analyzes one symbol on its own clock: scan cancellation does not
// interrupt it, the per-symbol timeout does.
func (s *Scanner) scanSymbol(scanCtx context.Context, req ScanRequest, symbol string) models.ScanEntry {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(scanCtx), s.cfg.SymbolTimeout)
	defer cancel()

	type outcome struct {
		res    *models.AnalysisResult
		cached bool
		err    error
	}
	ch := make(chan outcome, 1)
	go func() {
		res, cached, err := s.analyzer.Analyze(ctx, symbol, req.Window, req.Params)
		ch <- outcome{res, cached, err}
	}()

	var out outcome
	select {
	case out = <-ch:
	case <-ctx.Done():
		out.err = fmt.Errorf("%s: %w", symbol, models.ErrTimeout)
	}
	if out.err == nil && out.res == nil {
		out.err = fmt.Errorf("%s: empty analysis result", symbol)
	}
	if out.err != nil {
		reason := models.Reason(out.err)
		s.log.Debug("symbol failed",
			applogger.String("symbol", symbol),
			applogger.String("reason", reason),
			applogger.Error(out.err),
		)
		return models.ScanEntry{Symbol: symbol, Status: models.ScanFailed, Reason: reason, Error: out.err.Error()}
	}

	set := out.res.Indicators
	return models.ScanEntry{
		Symbol:     symbol,
		Status:     models.ScanOK,
		Score:      out.res.Score.Score,
		Factors:    out.res.Score.Factors,
		Partial:    out.res.Score.Partial,
		Cached:     out.cached,
		Indicators: &set,
	}
}

func (s *Scanner) publish(ctx context.Context, log *applogger.Logger, res *models.ScanResult) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.PublishTimeout)
	defer cancel()
	if err := s.publisher.PublishScan(ctx, res); err != nil {
		s.metrics.RecordError("scan_publish")
		log.Warn("publish scan result failed", applogger.Error(err))
	}
}

// ScanJob is a running or finished scan.
type ScanJob struct {
	id        string
	total     int
	minScore  float64
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}

	mu        sync.Mutex
	completed int
	failed    int
	ranking   []models.ScanEntry
	result    *models.ScanResult
	// changed is closed and replaced on every update
	changed chan struct{}
}

func (j *ScanJob) ID() string { return j.id }

// Done is closed once the result is available.
func (j *ScanJob) Done() <-chan struct{} { return j.done }

// Cancel stops dispatching new symbols. In-flight symbols still complete.
func (j *ScanJob) Cancel() { j.cancel() }

// Wait blocks until the scan finishes or ctx is done.
func (j *ScanJob) Wait(ctx context.Context) (*models.ScanResult, error) {
	select {
	case <-j.done:
		return j.Result(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the final result, or nil while the scan is running.
func (j *ScanJob) Result() *models.ScanResult {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// Progress returns a snapshot. Completed never decreases.
func (j *ScanJob) Progress() models.ScanProgress {
	p, _ := j.Watch()
	return p
}

// Watch returns a snapshot and a channel that is closed on the next update.
func (j *ScanJob) Watch() (models.ScanProgress, <-chan struct{}) {
	j.mu.Lock()
	defer j.mu.Unlock()
	ranking := make([]models.ScanEntry, len(j.ranking))
	copy(ranking, j.ranking)
	p := models.ScanProgress{
		ID:        j.id,
		Total:     j.total,
		Completed: j.completed,
		Failed:    j.failed,
		Done:      j.result != nil,
		StartedAt: j.startedAt,
		Ranking:   ranking,
		Result:    j.result,
	}
	if j.result != nil {
		p.Cancelled = j.result.Cancelled
		p.Ranking = j.result.Ranking
	}
	return p, j.changed
}

// FinishedAt is zero while the scan is running.
func (j *ScanJob) FinishedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.result == nil {
		return time.Time{}
	}
	return j.result.FinishedAt
}

func (j *ScanJob) record(e models.ScanEntry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.completed++
	if !e.OK() {
		j.failed++
	} else if e.Score >= j.minScore {
		e.Indicators = nil
		e.Rank = 0
		j.ranking = append(j.ranking, e)
		models.SortRanked(j.ranking)
		for i := range j.ranking {
			j.ranking[i].Rank = i + 1
		}
	}
	j.notifyLocked()
}

func (j *ScanJob) finish(res *models.ScanResult) {
	j.mu.Lock()
	j.result = res
	j.ranking = nil
	j.notifyLocked()
	j.mu.Unlock()
	close(j.done)
}

func (j *ScanJob) notifyLocked() {
	close(j.changed)
	j.changed = make(chan struct{})
}
