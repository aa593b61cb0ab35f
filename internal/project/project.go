// Package project provides projects and the version lifecycle.
package project

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zulandar/testyard/internal/alias"
	"github.com/zulandar/testyard/internal/apperr"
	"github.com/zulandar/testyard/internal/models"
	"gorm.io/gorm"
)

// Register creates a project and records its alias in reg. Names are unique
// case-insensitively through their alias.
func Register(db *gorm.DB, reg *alias.Registry, name string) (*models.Project, error) {
	if err := alias.Validate(name); err != nil {
		return nil, err
	}
	a := alias.Sanitize(name)

	var count int64
	if err := db.Model(&models.Project{}).Where("alias = ?", a).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("project: check %s: %w", name, err)
	}
	if count > 0 {
		return nil, fmt.Errorf("project: %s: %w", name, apperr.ErrDuplicateProject)
	}

	p := models.Project{Name: name, Alias: a}
	if err := db.Create(&p).Error; err != nil {
		return nil, fmt.Errorf("project: create %s: %w", name, err)
	}
	if _, err := reg.Register(name, a); err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns every project ordered by name.
func List(db *gorm.DB) ([]models.Project, error) {
	var projects []models.Project
	if err := db.Order("name ASC").Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("project: list: %w", err)
	}
	return projects, nil
}

// Get resolves name (display name or alias) through reg and loads the project.
func Get(db *gorm.DB, reg *alias.Registry, name string) (*models.Project, error) {
	a, err := reg.Resolve(name)
	if err != nil {
		return nil, err
	}
	return GetByAlias(db, a)
}

// GetByAlias loads a project by its alias.
func GetByAlias(db *gorm.DB, a string) (*models.Project, error) {
	var p models.Project
	if err := db.Where("alias = ?", strings.ToLower(a)).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("project: %s: %w", a, apperr.ErrProjectNotRegistered)
		}
		return nil, fmt.Errorf("project: get %s: %w", a, err)
	}
	return &p, nil
}
