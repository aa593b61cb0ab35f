package models

import "time"

// ScenarioResult is one scenario-level test outcome of a results import.
type ScenarioResult struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	RunDate    time.Time `gorm:"not null;index:idx_scenario_result_run"`
	ProjectID  uint      `gorm:"not null;index:idx_scenario_result_run"`
	VersionID  uint      `gorm:"not null;index:idx_scenario_result_run"`
	CampaignID uint      `gorm:"not null;index"`
	EpicID     uint      `gorm:"not null"`
	FeatureID  uint      `gorm:"not null"`
	ScenarioID uint      `gorm:"not null"`
	Status     string    `gorm:"size:8;not null"`
	IsPartial  bool      `gorm:"default:false"`
}

// TableName pins the singular table name.
func (ScenarioResult) TableName() string { return "scenario_result" }

// FeatureResult is the roll-up of scenario results for one feature.
type FeatureResult struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	RunDate    time.Time `gorm:"not null;index:idx_feature_result_run"`
	ProjectID  uint      `gorm:"not null;index:idx_feature_result_run"`
	VersionID  uint      `gorm:"not null;index:idx_feature_result_run"`
	CampaignID uint      `gorm:"not null;index"`
	EpicID     uint      `gorm:"not null"`
	FeatureID  uint      `gorm:"not null"`
	Status     string    `gorm:"size:8;not null"`
	IsPartial  bool      `gorm:"default:false"`
}

// TableName pins the singular table name.
func (FeatureResult) TableName() string { return "feature_result" }

// EpicResult is the roll-up of feature results for one epic.
type EpicResult struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	RunDate    time.Time `gorm:"not null;index:idx_epic_result_run"`
	ProjectID  uint      `gorm:"not null;index:idx_epic_result_run"`
	VersionID  uint      `gorm:"not null;index:idx_epic_result_run"`
	CampaignID uint      `gorm:"not null;index"`
	EpicID     uint      `gorm:"not null"`
	Status     string    `gorm:"size:8;not null"`
	IsPartial  bool      `gorm:"default:false"`
}

// TableName pins the singular table name.
func (EpicResult) TableName() string { return "epic_result" }
