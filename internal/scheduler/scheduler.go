// Package scheduler runs the periodic maintenance jobs: metric recompute,
// lifecycle evaluation, revenue snapshots, and outbox retries. Every job runs
// per tenant with its own timeout; one tenant's failure never stops the
// sweep for the others.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/fieldstone/opportunity-engine/internal/logger"
	"github.com/fieldstone/opportunity-engine/internal/models"
	"github.com/fieldstone/opportunity-engine/internal/repository"
	"github.com/fieldstone/opportunity-engine/internal/services"
	"github.com/fieldstone/opportunity-engine/pkg/config"
)

// Job is one scheduled task, run once per active tenant per tick.
type Job struct {
	Name    string
	Spec    string
	Timeout time.Duration
	Run     func(ctx context.Context, tenantID uuid.UUID) error
}

// JobStats tracks the run history of one job.
type JobStats struct {
	Runs           int       `json:"runs"`
	TenantFailures int       `json:"tenant_failures"`
	LastRun        time.Time `json:"last_run"`
	LastError      string    `json:"last_error,omitempty"`
}

// Scheduler owns the cron runner and the job registry.
type Scheduler struct {
	cron    *cron.Cron
	tenants repository.TenantRepository
	jobs    []Job
	logger  logger.Logger

	mu    sync.Mutex
	stats map[string]*JobStats
}

// New builds the scheduler with the standard job registry wired to the
// service layer. Snapshot periods cover the previous calendar month.
func New(svcs *services.Services, tenants repository.TenantRepository, cfg *config.Config) *Scheduler {
	timeout := cfg.JobTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	jobs := []Job{
		{
			Name:    "recompute-metrics",
			Spec:    cfg.RecomputeSchedule,
			Timeout: timeout,
			Run: func(ctx context.Context, tenantID uuid.UUID) error {
				batch, err := svcs.Recompute.RecomputeAllAccounts(ctx, tenantID)
				if err != nil {
					return err
				}
				if batch.Failed > 0 {
					return fmt.Errorf("%d of %d accounts failed", batch.Failed, batch.Processed+batch.Failed)
				}
				return nil
			},
		},
		{
			Name:    "lifecycle-evaluate",
			Spec:    cfg.LifecycleSchedule,
			Timeout: timeout,
			Run: func(ctx context.Context, tenantID uuid.UUID) error {
				_, err := svcs.Lifecycle.EvaluateLifecycle(ctx, tenantID)
				return err
			},
		},
		{
			Name:    "revenue-snapshots",
			Spec:    cfg.SnapshotSchedule,
			Timeout: timeout,
			Run: func(ctx context.Context, tenantID uuid.UUID) error {
				start, end := previousMonth(time.Now())
				_, err := svcs.Lifecycle.GenerateSnapshots(ctx, tenantID, start, end, false)
				return err
			},
		},
		{
			Name:    "sync-retry",
			Spec:    cfg.SyncRetrySchedule,
			Timeout: timeout,
			Run: func(ctx context.Context, tenantID uuid.UUID) error {
				_, err := svcs.Sync.Drain(ctx, tenantID, 100)
				return err
			},
		},
	}

	return &Scheduler{
		cron:    cron.New(),
		tenants: tenants,
		jobs:    jobs,
		logger:  logger.NewSimpleLogger(),
		stats:   make(map[string]*JobStats),
	}
}

// Start registers the jobs and begins the cron loop.
func (s *Scheduler) Start() error {
	for _, job := range s.jobs {
		job := job
		if _, err := s.cron.AddFunc(job.Spec, func() { s.runJob(job) }); err != nil {
			return fmt.Errorf("failed to schedule job %s: %w", job.Name, err)
		}
		s.stats[job.Name] = &JobStats{}
	}
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop halts scheduling and waits for in-flight jobs to finish or the
// context to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out with jobs still running")
	}
}

// RunOnce triggers a named job immediately, outside its schedule.
func (s *Scheduler) RunOnce(ctx context.Context, name string) error {
	for _, job := range s.jobs {
		if job.Name == name {
			return s.runForTenants(ctx, job)
		}
	}
	return fmt.Errorf("unknown job %q", name)
}

// Stats returns a copy of the per-job run history.
func (s *Scheduler) Stats() map[string]JobStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]JobStats, len(s.stats))
	for name, st := range s.stats {
		out[name] = *st
	}
	return out
}

func (s *Scheduler) runJob(job Job) {
	ctx := context.Background()
	err := s.runForTenants(ctx, job)

	s.mu.Lock()
	st, ok := s.stats[job.Name]
	if !ok {
		st = &JobStats{}
		s.stats[job.Name] = st
	}
	st.Runs++
	st.LastRun = time.Now()
	if err != nil {
		st.LastError = err.Error()
	} else {
		st.LastError = ""
	}
	s.mu.Unlock()
}

// runForTenants sweeps the job over every active tenant. Tenant failures are
// isolated: each gets its own timeout and panic recovery, and the sweep
// always visits every tenant.
func (s *Scheduler) runForTenants(ctx context.Context, job Job) error {
	tenants, err := s.tenants.ListActive(ctx)
	if err != nil {
		s.logger.Error("failed to list tenants", err, "job", job.Name)
		return err
	}

	var failed int
	for _, tenant := range tenants {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.runForTenant(ctx, job, tenant); err != nil {
			failed++
			s.logger.Error("job failed for tenant", err, "job", job.Name, "tenant", tenant.ID)
			s.mu.Lock()
			if st, ok := s.stats[job.Name]; ok {
				st.TenantFailures++
			}
			s.mu.Unlock()
		}
	}
	if failed > 0 {
		return fmt.Errorf("job %s failed for %d of %d tenants", job.Name, failed, len(tenants))
	}
	return nil
}

func (s *Scheduler) runForTenant(ctx context.Context, job Job, tenant models.Tenant) (err error) {
	jobCtx, cancel := context.WithTimeout(ctx, job.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job.Run(jobCtx, tenant.ID)
}

// previousMonth returns the bounds of the calendar month before the given
// instant, in UTC.
func previousMonth(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	end := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	start := end.AddDate(0, -1, 0)
	return start, end
}
