package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"FinScore/internal/domain/models"
	applogger "FinScore/pkg/logger"
)

// ErrTooManyScans is returned when every registry slot holds a running scan.
var ErrTooManyScans = fmt.Errorf("too many running scans: %w", models.ErrRateLimited)

// ErrScanNotFound is returned for unknown or pruned scan ids.
var ErrScanNotFound = errors.New("scan not found")

// ScanRegistry keeps background scans addressable by id so clients can poll
// or cancel them. Finished scans are kept for the retention period.
type ScanRegistry struct {
	scanner   *Scanner
	retention time.Duration
	maxJobs   int
	now       func() time.Time
	log       *applogger.Logger

	mu   sync.Mutex
	jobs map[string]*registeredJob
}

type registeredJob struct {
	job     *ScanJob
	created time.Time
}

func NewScanRegistry(scanner *Scanner, retention time.Duration, maxJobs int, log *applogger.Logger) *ScanRegistry {
	if retention <= 0 {
		retention = 30 * time.Minute
	}
	if maxJobs < 1 {
		maxJobs = 64
	}
	if log == nil {
		log = applogger.Nop()
	}
	return &ScanRegistry{
		scanner:   scanner,
		retention: retention,
		maxJobs:   maxJobs,
		now:       time.Now,
		log:       log,
		jobs:      make(map[string]*registeredJob),
	}
}

// Start launches req and registers the job.
func (r *ScanRegistry) Start(ctx context.Context, req ScanRequest) (*ScanJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pruneLocked()
	if len(r.jobs) >= r.maxJobs {
		return nil, ErrTooManyScans
	}
	job, err := r.scanner.Start(ctx, req)
	if err != nil {
		return nil, err
	}
	r.jobs[job.ID()] = &registeredJob{job: job, created: r.now()}
	return job, nil
}

func (r *ScanRegistry) Get(id string) (*ScanJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rj, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrScanNotFound, id)
	}
	return rj.job, nil
}

// Cancel stops a running scan. Cancelling a finished scan is a no-op.
func (r *ScanRegistry) Cancel(id string) (*ScanJob, error) {
	job, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	job.Cancel()
	r.log.Info("scan cancel requested", applogger.String("scan_id", id))
	return job, nil
}

// List returns progress of every registered scan, newest first.
func (r *ScanRegistry) List() []models.ScanProgress {
	r.mu.Lock()
	jobs := make([]*registeredJob, 0, len(r.jobs))
	for _, rj := range r.jobs {
		jobs = append(jobs, rj)
	}
	r.mu.Unlock()

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].created.After(jobs[j].created) })
	out := make([]models.ScanProgress, 0, len(jobs))
	for _, rj := range jobs {
		p := rj.job.Progress()
		// keep list responses small
		p.Result = nil
		p.Ranking = nil
		out = append(out, p)
	}
	return out
}

// Prune drops finished scans older than the retention period.
func (r *ScanRegistry) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pruneLocked()
}

// CancelAll cancels every running scan, used at shutdown.
func (r *ScanRegistry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rj := range r.jobs {
		rj.job.Cancel()
	}
}

func (r *ScanRegistry) pruneLocked() int {
	now := r.now()
	removed := 0
	for id, rj := range r.jobs {
		fin := rj.job.FinishedAt()
		if !fin.IsZero() && now.Sub(fin) >= r.retention {
			delete(r.jobs, id)
			removed++
		}
	}
	if len(r.jobs) < r.maxJobs {
		return removed
	}

	// still full: drop the oldest finished scans
	var finished []string
	for id, rj := range r.jobs {
		if !rj.job.FinishedAt().IsZero() {
			finished = append(finished, id)
		}
	}
	sort.Slice(finished, func(i, j int) bool {
		return r.jobs[finished[i]].job.FinishedAt().Before(r.jobs[finished[j]].job.FinishedAt())
	})
	for _, id := range finished {
		if len(r.jobs) < r.maxJobs {
			break
		}
		delete(r.jobs, id)
		removed++
	}
	return removed
}
