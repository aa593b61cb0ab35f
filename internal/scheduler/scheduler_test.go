package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/zulandar/testyard/internal/alias"
	"github.com/zulandar/testyard/internal/config"
	"github.com/zulandar/testyard/internal/dbtest"
	"github.com/zulandar/testyard/internal/kv"
	"github.com/zulandar/testyard/internal/models"
	"github.com/zulandar/testyard/internal/project"
	"github.com/zulandar/testyard/internal/ticket"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNextRun_ValidExpression(t *testing.T) {
	d := NextRun("0 3 * * *")
	if d <= 0 || d > 24*time.Hour {
		t.Errorf("NextRun = %v, want within a day", d)
	}
}

func TestNextRun_InvalidExpression(t *testing.T) {
	if d := NextRun("not a cron"); d != 0 {
		t.Errorf("NextRun = %v, want 0", d)
	}
}

func TestNextRun_EveryMinute(t *testing.T) {
	if d := NextRun("* * * * *"); d > time.Minute {
		t.Errorf("NextRun = %v, want <= 1m", d)
	}
}

func TestNew_RejectsBadExpression(t *testing.T) {
	_, err := New(testLogger(), Job{Name: "bad", Spec: "61 * * * *", Run: func(context.Context) error { return nil }})
	if err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s, err := New(testLogger(), Job{Name: "noop", Spec: "0 0 1 1 *", Run: func(context.Context) error { return nil }})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestWrap_LogsFailure(t *testing.T) {
	s, _ := New(testLogger())
	ran := false
	s.wrap(Job{Name: "boom", Run: func(context.Context) error {
		ran = true
		return errors.New("boom")
	}})()
	if !ran {
		t.Error("job did not run")
	}
}

func TestReconcile(t *testing.T) {
	db := dbtest.Open(t)
	p, err := project.Register(db, alias.NewRegistry(), "P")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := project.CreateVersion(db, p, "1.0"); err != nil {
		t.Fatal(err)
	}
	if _, err := ticket.Create(db, p, "1.0", ticket.CreateOpts{Reference: "T-1"}); err != nil {
		t.Fatal(err)
	}
	db.Model(&models.Version{}).Where("version = ?", "1.0").UpdateColumn("stat_open", 9)

	if err := Reconcile(db, testLogger()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	v, _ := project.GetVersion(db, p, "1.0")
	if v.Statistics.Open != 1 {
		t.Errorf("stat_open = %d, want 1", v.Statistics.Open)
	}
}

func TestMaintenanceJobs(t *testing.T) {
	db := dbtest.Open(t)
	store, err := kv.OpenInMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	jobs := MaintenanceJobs(config.ScheduleConfig{Reconcile: "0 3 * * *", KVGC: "*/10 * * * *"}, db, store, testLogger())
	if len(jobs) != 2 {
		t.Fatalf("jobs = %d, want 2", len(jobs))
	}
	for _, job := range jobs {
		if err := job.Run(context.Background()); err != nil {
			t.Errorf("%s: %v", job.Name, err)
		}
	}
	if _, err := New(testLogger(), jobs...); err != nil {
		t.Errorf("New: %v", err)
	}
}
