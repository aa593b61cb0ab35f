package db

import (
	"errors"
	"fmt"

	"github.com/zulandar/testyard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Operation types recorded in the operations table.
const (
	OpMigration = "migration"
	OpSetup     = "setup"
)

// AllModels returns every GORM model for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Project{},
		&models.Version{},
		&models.Ticket{},
		&models.Epic{},
		&models.Feature{},
		&models.Scenario{},
		&models.Campaign{},
		&models.CampaignTicket{},
		&models.CampaignTicketScenario{},
		&models.ScenarioResult{},
		&models.FeatureResult{},
		&models.EpicResult{},
		&models.Bug{},
		&models.BugIssue{},
		&models.User{},
		&models.Operation{},
	}
}

// Step is one idempotent migration or setup operation.
type Step struct {
	Type        string
	Order       int
	Description string
	Apply       func(tx *gorm.DB) error
}

// Migrations returns the ordered schema migrations applied after AutoMigrate.
func Migrations() []Step {
	return []Step{
		{
			Type:        OpMigration,
			Order:       1,
			Description: "index scenario results by project and run date",
			Apply: func(tx *gorm.DB) error {
				if tx.Migrator().HasIndex(&models.ScenarioResult{}, "idx_scenario_result_project_date") {
					return nil
				}
				return tx.Exec("CREATE INDEX idx_scenario_result_project_date ON scenario_result (project_id, run_date)").Error
			},
		},
		{
			Type:        OpMigration,
			Order:       2,
			Description: "clear soft-delete marker on rows created before it existed",
			Apply: func(tx *gorm.DB) error {
				return tx.Model(&models.Scenario{}).Where("is_deleted IS NULL").Update("is_deleted", false).Error
			},
		},
	}
}

// AutoMigrate creates or updates all tables, then applies pending migrations.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	for _, step := range Migrations() {
		if _, err := RunOnce(db, step); err != nil {
			return err
		}
	}
	return nil
}

// RunOnce applies step unless the operations table already records it.
// It reports whether the step ran.
func RunOnce(db *gorm.DB, step Step) (bool, error) {
	ran := false
	err := db.Transaction(func(tx *gorm.DB) error {
		var existing models.Operation
		err := tx.Where("type = ? AND op_order = ?", step.Type, step.Order).First(&existing).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("check operation: %w", err)
		}

		if err := step.Apply(tx); err != nil {
			return err
		}

		op := models.Operation{Type: step.Type, OpOrder: step.Order, Description: step.Description}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&op).Error; err != nil {
			return fmt.Errorf("record operation: %w", err)
		}
		ran = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("db: %s %d (%s): %w", step.Type, step.Order, step.Description, err)
	}
	return ran, nil
}

// AppliedOperations returns recorded operations ordered by type and order.
func AppliedOperations(db *gorm.DB) ([]models.Operation, error) {
	var ops []models.Operation
	if err := db.Order("type ASC, op_order ASC").Find(&ops).Error; err != nil {
		return nil, fmt.Errorf("db: list operations: %w", err)
	}
	return ops, nil
}
