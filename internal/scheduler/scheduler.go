// Package scheduler runs periodic maintenance jobs on 5-field cron
// expressions.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/testyard/internal/bug"
	"github.com/zulandar/testyard/internal/config"
	"github.com/zulandar/testyard/internal/kv"
	"github.com/zulandar/testyard/internal/ticket"
	"gorm.io/gorm"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Job is a named maintenance task.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Scheduler wraps a cron runner that logs every job outcome.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// New registers jobs. It fails on the first invalid expression.
func New(logger *slog.Logger, jobs ...Job) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:   cron.New(cron.WithParser(cronParser)),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, job := range jobs {
		if _, err := s.cron.AddFunc(job.Spec, s.wrap(job)); err != nil {
			cancel()
			return nil, fmt.Errorf("scheduler: job %s %q: %w", job.Name, job.Spec, err)
		}
		s.logger.Info("job scheduled", "job", job.Name, "spec", job.Spec, "next_in", NextRun(job.Spec).Round(time.Second))
	}
	return s, nil
}

func (s *Scheduler) wrap(job Job) func() {
	return func() {
		start := time.Now()
		if err := job.Run(s.ctx); err != nil {
			s.logger.Error("job failed", "job", job.Name, "error", err)
			return
		}
		s.logger.Info("job done", "job", job.Name, "took", time.Since(start))
	}
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops scheduling and waits for running jobs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}

// NextRun parses a 5-field cron expression and returns the duration
// until the next fire time. Returns 0 on parse error.
func NextRun(expr string) time.Duration {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return 0
	}
	d := time.Until(sched.Next(time.Now()))
	if d < 0 {
		return 0
	}
	return d
}

// MaintenanceJobs returns the reconcile and kv_gc jobs.
func MaintenanceJobs(cfg config.ScheduleConfig, db *gorm.DB, store kv.Store, logger *slog.Logger) []Job {
	return []Job{
		{
			Name: "reconcile",
			Spec: cfg.Reconcile,
			Run: func(ctx context.Context) error {
				return Reconcile(db.WithContext(ctx), logger)
			},
		},
		{
			Name: "kv_gc",
			Spec: cfg.KVGC,
			Run: func(context.Context) error {
				return store.GC()
			},
		},
	}
}

// Reconcile rebuilds the ticket and bug histograms of every version.
func Reconcile(db *gorm.DB, logger *slog.Logger) error {
	n, err := ticket.RecomputeStatistics(db)
	if err != nil {
		return err
	}
	m, err := bug.RecomputeCounts(db)
	if err != nil {
		return err
	}
	logger.Debug("histograms rebuilt", "statistics", n, "bug_counts", m)
	return nil
}
