package db

import (
	"strings"
	"testing"

	"github.com/zulandar/testyard/internal/config"
	"github.com/zulandar/testyard/internal/models"
	"gorm.io/gorm"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DatabaseConfig
		want string
	}{
		{
			name: "postgres",
			cfg:  config.DatabaseConfig{Driver: "postgres", URL: "db.internal", Port: 5432, User: "qa", Password: "pw", Name: "testyard"},
			want: "host=db.internal port=5432 user=qa password=pw dbname=testyard sslmode=disable",
		},
		{
			name: "mysql",
			cfg:  config.DatabaseConfig{Driver: "mysql", URL: "10.0.0.5", Port: 3307, User: "qa", Password: "pw", Name: "testyard"},
			want: "qa:pw@tcp(10.0.0.5:3307)/testyard?parseTime=true",
		},
		{
			name: "sqlite",
			cfg:  config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"},
			want: ":memory:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DSN(tt.cfg)
			if err != nil {
				t.Fatalf("DSN() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDSN_UnknownDriver(t *testing.T) {
	_, err := DSN(config.DatabaseConfig{Driver: "oracle"})
	if err == nil || !strings.Contains(err.Error(), "unsupported driver") {
		t.Fatalf("DSN(oracle) error = %v, want unsupported driver", err)
	}
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gormDB, err := Connect(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return gormDB
}

func TestAutoMigrate_CreatesAllTables(t *testing.T) {
	gormDB := openTestDB(t)
	if err := AutoMigrate(gormDB); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	for _, table := range []string{
		"projects", "versions", "tickets", "epics", "features", "scenarios",
		"campaigns", "campaign_tickets", "campaign_ticket_scenarios",
		"scenario_result", "feature_result", "epic_result",
		"bugs", "bugs_issues", "users", "operations",
	} {
		if !gormDB.Migrator().HasTable(table) {
			t.Errorf("table %q not created", table)
		}
	}
}

func TestAutoMigrate_Idempotent(t *testing.T) {
	gormDB := openTestDB(t)
	for i := 0; i < 2; i++ {
		if err := AutoMigrate(gormDB); err != nil {
			t.Fatalf("AutoMigrate run %d: %v", i+1, err)
		}
	}

	ops, err := AppliedOperations(gormDB)
	if err != nil {
		t.Fatalf("AppliedOperations: %v", err)
	}
	if len(ops) != len(Migrations()) {
		t.Errorf("recorded %d operations, want %d", len(ops), len(Migrations()))
	}
}

func TestRunOnce(t *testing.T) {
	gormDB := openTestDB(t)
	if err := AutoMigrate(gormDB); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	calls := 0
	step := Step{
		Type:        OpSetup,
		Order:       7,
		Description: "seed",
		Apply: func(tx *gorm.DB) error {
			calls++
			return tx.Create(&models.Project{Name: "Seeded", Alias: "seeded"}).Error
		},
	}

	ran, err := RunOnce(gormDB, step)
	if err != nil || !ran {
		t.Fatalf("first RunOnce = (%v, %v), want (true, nil)", ran, err)
	}
	ran, err = RunOnce(gormDB, step)
	if err != nil || ran {
		t.Fatalf("second RunOnce = (%v, %v), want (false, nil)", ran, err)
	}
	if calls != 1 {
		t.Errorf("Apply called %d times, want 1", calls)
	}
}

func TestRunOnce_RollsBackOnError(t *testing.T) {
	gormDB := openTestDB(t)
	if err := AutoMigrate(gormDB); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	_, err := RunOnce(gormDB, Step{
		Type:  OpSetup,
		Order: 9,
		Apply: func(tx *gorm.DB) error {
			if err := tx.Create(&models.Project{Name: "Ghost", Alias: "ghost"}).Error; err != nil {
				return err
			}
			return gorm.ErrInvalidData
		},
	})
	if err == nil {
		t.Fatal("expected error")
	}

	var count int64
	gormDB.Model(&models.Project{}).Where("alias = ?", "ghost").Count(&count)
	if count != 0 {
		t.Errorf("project rows = %d, want 0 after rollback", count)
	}
	gormDB.Model(&models.Operation{}).Where("type = ? AND op_order = ?", OpSetup, 9).Count(&count)
	if count != 0 {
		t.Errorf("operation rows = %d, want 0 after rollback", count)
	}
}
