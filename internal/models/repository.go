package models

import (
	"time"

	"gorm.io/datatypes"
)

// Epic groups features of a project's test repository.
type Epic struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	ProjectID uint      `gorm:"not null;uniqueIndex:idx_epic_project_name" json:"-"`
	Name      string    `gorm:"size:255;not null;uniqueIndex:idx_epic_project_name" json:"name"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// Feature is a feature file bound to exactly one epic.
type Feature struct {
	ID          uint                         `gorm:"primaryKey;autoIncrement" json:"-"`
	ProjectID   uint                         `gorm:"not null;uniqueIndex:idx_feature_project_filename" json:"-"`
	EpicID      uint                         `gorm:"not null;index" json:"-"`
	Name        string                       `gorm:"size:255;not null;index" json:"name"`
	Filename    string                       `gorm:"size:512;not null;uniqueIndex:idx_feature_project_filename" json:"filename"`
	Description string                       `gorm:"type:text" json:"description"`
	Tags        datatypes.JSONType[[]string] `gorm:"type:json" json:"tags"`
	CreatedAt   time.Time                    `json:"-"`
	UpdatedAt   time.Time                    `json:"-"`

	Epic Epic `gorm:"foreignKey:EpicID" json:"-"`
}

// Scenario is a test scenario of a feature. IsDeleted is a soft-delete
// marker: deleted scenarios stay referenced by past campaign executions.
type Scenario struct {
	ID          uint                         `gorm:"primaryKey;autoIncrement" json:"-"`
	FeatureID   uint                         `gorm:"not null;uniqueIndex:idx_scenario_feature_sid" json:"-"`
	ScenarioID  string                       `gorm:"size:128;not null;uniqueIndex:idx_scenario_feature_sid" json:"scenario_id"`
	Name        string                       `gorm:"size:512" json:"name"`
	Description string                       `gorm:"type:text" json:"description"`
	Steps       string                       `gorm:"type:text" json:"steps"`
	Tags        datatypes.JSONType[[]string] `gorm:"type:json" json:"tags"`
	IsOutline   bool                         `gorm:"default:false" json:"is_outline"`
	IsDeleted   bool                         `gorm:"default:false;index" json:"is_deleted"`
	CreatedAt   time.Time                    `json:"-"`
	UpdatedAt   time.Time                    `json:"-"`

	Feature Feature `gorm:"foreignKey:FeatureID" json:"-"`
}
