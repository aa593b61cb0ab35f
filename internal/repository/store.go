// Package repository stores a project's test repository (epics, features,
// scenarios) and imports it from CSV.
package repository

import (
	"errors"
	"fmt"

	"github.com/zulandar/testyard/internal/apperr"
	"github.com/zulandar/testyard/internal/models"
	"gorm.io/gorm"
)

// GetEpic loads an epic of p by name.
func GetEpic(db *gorm.DB, p *models.Project, name string) (*models.Epic, error) {
	var e models.Epic
	if err := db.Where("project_id = ? AND name = ?", p.ID, name).First(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("repository: epic %s: %w", name, apperr.ErrEpicNotFound)
		}
		return nil, fmt.Errorf("repository: get epic %s: %w", name, err)
	}
	return &e, nil
}

// GetFeature loads a feature of epic by name.
func GetFeature(db *gorm.DB, epic *models.Epic, name string) (*models.Feature, error) {
	var f models.Feature
	if err := db.Where("epic_id = ? AND name = ?", epic.ID, name).First(&f).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("repository: feature %s/%s: %w", epic.Name, name, apperr.ErrFeatureNotFound)
		}
		return nil, fmt.Errorf("repository: get feature %s: %w", name, err)
	}
	return &f, nil
}

// ListEpics returns the epics of p ordered by name.
func ListEpics(db *gorm.DB, p *models.Project) ([]models.Epic, error) {
	var epics []models.Epic
	if err := db.Where("project_id = ?", p.ID).Order("name ASC").Find(&epics).Error; err != nil {
		return nil, fmt.Errorf("repository: list epics: %w", err)
	}
	return epics, nil
}

// ListFeatures returns the features of an epic ordered by name.
func ListFeatures(db *gorm.DB, p *models.Project, epic string) ([]models.Feature, error) {
	e, err := GetEpic(db, p, epic)
	if err != nil {
		return nil, err
	}
	var features []models.Feature
	if err := db.Where("epic_id = ?", e.ID).Order("name ASC").Find(&features).Error; err != nil {
		return nil, fmt.Errorf("repository: list features of %s: %w", epic, err)
	}
	return features, nil
}

// ListScenarios returns the live scenarios of a feature ordered by id.
func ListScenarios(db *gorm.DB, p *models.Project, epic, feature string) ([]models.Scenario, error) {
	e, err := GetEpic(db, p, epic)
	if err != nil {
		return nil, err
	}
	f, err := GetFeature(db, e, feature)
	if err != nil {
		return nil, err
	}
	var scenarios []models.Scenario
	if err := db.Where("feature_id = ? AND is_deleted = ?", f.ID, false).
		Order("scenario_id ASC").Find(&scenarios).Error; err != nil {
		return nil, fmt.Errorf("repository: list scenarios of %s: %w", feature, err)
	}
	return scenarios, nil
}

// SoftDeleteScenario marks a scenario deleted. Existing campaign links keep
// pointing at it; new ones refuse it.
func SoftDeleteScenario(db *gorm.DB, p *models.Project, epic, feature, scenarioID string) error {
	e, err := GetEpic(db, p, epic)
	if err != nil {
		return err
	}
	f, err := GetFeature(db, e, feature)
	if err != nil {
		return err
	}
	res := db.Model(&models.Scenario{}).
		Where("feature_id = ? AND scenario_id = ? AND is_deleted = ?", f.ID, scenarioID, false).
		Update("is_deleted", true)
	if res.Error != nil {
		return fmt.Errorf("repository: delete scenario %s: %w", scenarioID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("repository: scenario %s: %w", scenarioID, apperr.ErrScenarioNotFound)
	}
	return nil
}

// ResolveScenarios maps scenario ids of one feature to live scenarios.
// Ids that are missing or soft-deleted are returned in notFound, in input
// order.
func ResolveScenarios(db *gorm.DB, p *models.Project, epic, feature string, ids []string) (found []models.Scenario, notFound []string, err error) {
	e, err := GetEpic(db, p, epic)
	if err != nil {
		return nil, nil, err
	}
	f, err := GetFeature(db, e, feature)
	if err != nil {
		return nil, nil, err
	}

	var live []models.Scenario
	if len(ids) > 0 {
		if err := db.Where("feature_id = ? AND scenario_id IN ? AND is_deleted = ?", f.ID, ids, false).
			Find(&live).Error; err != nil {
			return nil, nil, fmt.Errorf("repository: resolve scenarios of %s: %w", feature, err)
		}
	}
	byID := make(map[string]models.Scenario, len(live))
	for _, s := range live {
		byID[s.ScenarioID] = s
	}
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			found = append(found, s)
		} else {
			notFound = append(notFound, id)
		}
	}
	return found, notFound, nil
}

// ScenarioKey identifies a scenario by the names used in result files.
type ScenarioKey struct {
	Epic       string
	Feature    string
	ScenarioID string
}

// ScenarioRef carries the technical ids of a resolved scenario.
type ScenarioRef struct {
	EpicID     uint
	FeatureID  uint
	ScenarioID uint
}

// ScenarioIndex loads every scenario of p, deleted or not, keyed by
// (epic name, feature name, scenario id).
func ScenarioIndex(db *gorm.DB, p *models.Project) (map[ScenarioKey]ScenarioRef, error) {
	type row struct {
		EpicID      uint
		EpicName    string
		FeatureID   uint
		FeatureName string
		ID          uint
		ScenarioID  string
	}
	var rows []row
	err := db.Table("scenarios").
		Select("epics.id AS epic_id, epics.name AS epic_name, features.id AS feature_id, features.name AS feature_name, scenarios.id AS id, scenarios.scenario_id AS scenario_id").
		Joins("JOIN features ON features.id = scenarios.feature_id").
		Joins("JOIN epics ON epics.id = features.epic_id").
		Where("epics.project_id = ?", p.ID).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("repository: index scenarios: %w", err)
	}
	idx := make(map[ScenarioKey]ScenarioRef, len(rows))
	for _, r := range rows {
		idx[ScenarioKey{Epic: r.EpicName, Feature: r.FeatureName, ScenarioID: r.ScenarioID}] =
			ScenarioRef{EpicID: r.EpicID, FeatureID: r.FeatureID, ScenarioID: r.ID}
	}
	return idx, nil
}
