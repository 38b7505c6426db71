package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"FinScore/internal/domain/models"
	"FinScore/internal/domain/repository"
	icache "FinScore/internal/service/cache"
	"FinScore/internal/service/ratelimit"
	"FinScore/internal/service/session"
	"FinScore/internal/usecase"
	applogger "FinScore/pkg/logger"
)

// Config holds cron specs in the market's timezone.
type Config struct {
	SweepSpec     string
	WarmupEnabled bool
	WarmupSpec    string
	Watchlist     []string
	WarmupTimeout time.Duration
}

// Scheduler runs the periodic maintenance around the result cache and scans.
type Scheduler struct {
	cron     *cron.Cron
	cfg      Config
	cal      *session.Calendar
	cache    *icache.ResultCache
	scanner  *usecase.Scanner
	registry *usecase.ScanRegistry
	limiter  *ratelimit.Limiter
	metrics  repository.Metrics
	log      *applogger.Logger
	now      func() time.Time
	locker   Locker

	warmupMu sync.Mutex
}

// Locker is a lock shared between instances, such as the Redis cache.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

const warmupLockKey = "lock:warmup"

func New(
	cfg Config,
	cal *session.Calendar,
	cache *icache.ResultCache,
	scanner *usecase.Scanner,
	registry *usecase.ScanRegistry,
	limiter *ratelimit.Limiter,
	metrics repository.Metrics,
	log *applogger.Logger,
) *Scheduler {
	if cfg.WarmupTimeout <= 0 {
		cfg.WarmupTimeout = 20 * time.Minute
	}
	if metrics == nil {
		metrics = repository.NopMetrics{}
	}
	if log == nil {
		log = applogger.Nop()
	}
	log = log.With(applogger.String("component", "scheduler"))
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(cal.Location()),
			cron.WithChain(cron.Recover(cronLogger{log})),
			cron.WithLogger(cronLogger{log}),
		),
		cfg:      cfg,
		cal:      cal,
		cache:    cache,
		scanner:  scanner,
		registry: registry,
		limiter:  limiter,
		metrics:  metrics,
		log:      log,
		now:      time.Now,
	}
}

// Register adds every job. The session-close flush fires at the configured
// close time on weekdays; holidays are skipped at run time.
func (s *Scheduler) Register() error {
	h, m := s.cal.CloseClock()
	closeSpec := fmt.Sprintf("%d %d * * 1-5", m, h)
	if _, err := s.cron.AddFunc(closeSpec, s.SessionClose); err != nil {
		return fmt.Errorf("register session close: %w", err)
	}
	if s.cfg.SweepSpec != "" {
		if _, err := s.cron.AddFunc(s.cfg.SweepSpec, func() { s.Sweep() }); err != nil {
			return fmt.Errorf("register sweep: %w", err)
		}
	}
	if s.cfg.WarmupEnabled && len(s.cfg.Watchlist) > 0 {
		if _, err := s.cron.AddFunc(s.cfg.WarmupSpec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WarmupTimeout)
			defer cancel()
			_, _ = s.Warmup(ctx)
		}); err != nil {
			return fmt.Errorf("register warmup: %w", err)
		}
	}
	return nil
}

// SetLocker makes warmups exclusive across instances.
func (s *Scheduler) SetLocker(l Locker) { s.locker = l }

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", applogger.Int("jobs", len(s.cron.Entries())))
}

// Stop halts the cron and waits for running jobs until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
		s.log.Info("scheduler stopped")
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out", applogger.Error(ctx.Err()))
	}
}

// SessionClose drops every cached result once the session has ended.
func (s *Scheduler) SessionClose() {
	now := s.now()
	if !s.cal.IsTradingDay(now) {
		s.log.Debug("session close skipped on non-trading day", applogger.String("date", now.In(s.cal.Location()).Format("2006-01-02")))
		return
	}
	n := s.cache.InvalidateAll(context.Background())
	s.log.Info("session closed, result cache flushed", applogger.Int("removed", n))
}

// SweepStats reports what one sweep removed.
type SweepStats struct {
	ExpiredEntries int
	PrunedScans    int
	PrunedLimiters int
}

// Sweep removes expired cache entries, stale scans and idle limiter buckets.
func (s *Scheduler) Sweep() SweepStats {
	st := SweepStats{ExpiredEntries: s.cache.InvalidateExpired()}
	if s.registry != nil {
		st.PrunedScans = s.registry.Prune()
	}
	if s.limiter != nil {
		st.PrunedLimiters = s.limiter.Prune()
	}
	if st.ExpiredEntries+st.PrunedScans+st.PrunedLimiters > 0 {
		s.log.Debug("sweep",
			applogger.Int("expired", st.ExpiredEntries),
			applogger.Int("scans", st.PrunedScans),
			applogger.Int("limiters", st.PrunedLimiters),
		)
	}
	return st
}

// Warmup scans the watchlist so the first requests of the session hit the
// cache. It returns ok=false without scanning when a warmup is already running
// here or on another instance, or the market is closed for the day.
func (s *Scheduler) Warmup(ctx context.Context) (*models.ScanResult, bool) {
	if !s.warmupMu.TryLock() {
		s.log.Warn("warmup already running, skipping")
		return nil, false
	}
	defer s.warmupMu.Unlock()

	if !s.cal.IsTradingDay(s.now()) {
		return nil, false
	}
	if s.locker != nil {
		got, err := s.locker.TryLock(ctx, warmupLockKey, s.cfg.WarmupTimeout)
		switch {
		case err != nil:
			// run anyway when the lock backend is down
			s.log.Warn("warmup lock failed, running unlocked", applogger.Error(err))
		case !got:
			s.log.Info("warmup held by another instance, skipping")
			return nil, false
		default:
			defer func() {
				if err := s.locker.Unlock(context.WithoutCancel(ctx), warmupLockKey); err != nil {
					s.log.Warn("warmup unlock failed", applogger.Error(err))
				}
			}()
		}
	}
	start := time.Now()
	res, err := s.scanner.Scan(ctx, usecase.ScanRequest{Symbols: s.cfg.Watchlist})
	if err != nil {
		s.metrics.RecordError("warmup")
		s.log.Error("warmup scan failed", applogger.Error(err))
		return nil, false
	}
	s.metrics.RecordLatency("warmup", time.Since(start).Seconds())
	s.log.Info("warmup finished",
		applogger.String("scan_id", res.ID),
		applogger.Int("symbols", res.Requested),
		applogger.Int("failed", len(res.Failed())),
		applogger.Bool("cancelled", res.Cancelled),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return res, true
}

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct{ l *applogger.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(kvFields(keysAndValues), applogger.Error(err))...)
}

func kvFields(kv []interface{}) []applogger.Field {
	out := make([]applogger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, applogger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
