// Package campaign stores campaign occurrences, the tickets they cover and
// the per-scenario executions of those tickets.
package campaign

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/zulandar/testyard/internal/apperr"
	"github.com/zulandar/testyard/internal/models"
	"github.com/zulandar/testyard/internal/project"
	"gorm.io/gorm"
)

// Campaign statuses.
const (
	StatusRecorded   = "recorded"
	StatusInProgress = "in_progress"
	StatusCancelled  = "cancelled"
	StatusDone       = "done"
	StatusClosed     = "closed"
	StatusPaused     = "paused"
)

// Statuses lists every campaign status.
var Statuses = []string{StatusRecorded, StatusInProgress, StatusCancelled, StatusDone, StatusClosed, StatusPaused}

// ValidTransitions maps each campaign status to its valid next statuses.
var ValidTransitions = map[string][]string{
	StatusRecorded:   {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusDone, StatusPaused, StatusCancelled},
	StatusPaused:     {StatusInProgress, StatusCancelled},
	StatusCancelled:  {StatusRecorded},
	StatusDone:       {StatusClosed},
	StatusClosed:     {},
}

// Transition checks a campaign status change.
func Transition(from, to string) error {
	if !slices.Contains(Statuses, to) {
		return fmt.Errorf("campaign: status %q: %w", to, apperr.ErrUnknownStatus)
	}
	if !slices.Contains(ValidTransitions[from], to) {
		return fmt.Errorf("campaign: status %q to %q (valid: %v): %w",
			from, to, ValidTransitions[from], apperr.ErrStatusTransitionForbidden)
	}
	return nil
}

// CreateOpts holds optional fields of a new campaign.
type CreateOpts struct {
	Description string
	Status      string // defaults to recorded
}

// UpdateOpts holds the optional fields of a campaign patch.
type UpdateOpts struct {
	Status      *string
	Description *string
}

// Create allocates the next occurrence of (p, version). The occurrence is
// computed and inserted by a single statement; the unique index on
// (project, version, occurrence) rejects a concurrent duplicate.
func Create(db *gorm.DB, p *models.Project, version string, opts CreateOpts) (*models.Campaign, error) {
	if opts.Status == "" {
		opts.Status = StatusRecorded
	}
	if !slices.Contains(Statuses, opts.Status) {
		return nil, fmt.Errorf("campaign: status %q: %w", opts.Status, apperr.ErrUnknownStatus)
	}

	var c models.Campaign
	err := db.Transaction(func(tx *gorm.DB) error {
		v, err := project.GetVersion(tx, p, version)
		if err != nil {
			return err
		}
		now := time.Now()
		res := tx.Exec(`INSERT INTO campaigns (project_id, version_id, occurrence, description, status, created_at, updated_at)
SELECT ?, ?, COALESCE(MAX(occurrence), 0) + 1, ?, ?, ?, ?
FROM campaigns WHERE project_id = ? AND version_id = ?`,
			p.ID, v.ID, opts.Description, opts.Status, now, now, p.ID, v.ID)
		if res.Error != nil {
			return fmt.Errorf("campaign: create for %s: %w", version, res.Error)
		}
		if res.RowsAffected != 1 {
			return fmt.Errorf("campaign: create for %s: %w", version, apperr.ErrInsertion)
		}
		if err := tx.Where("project_id = ? AND version_id = ?", p.ID, v.ID).
			Order("occurrence DESC").First(&c).Error; err != nil {
			return fmt.Errorf("campaign: reload new campaign: %w", err)
		}
		c.Version = *v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Get loads one campaign occurrence.
func Get(db *gorm.DB, p *models.Project, version string, occurrence int) (*models.Campaign, error) {
	v, err := project.GetVersion(db, p, version)
	if err != nil {
		return nil, err
	}
	var c models.Campaign
	if err := db.Where("project_id = ? AND version_id = ? AND occurrence = ?", p.ID, v.ID, occurrence).
		First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("campaign: %s %s #%d: %w", p.Alias, version, occurrence, apperr.ErrCampaignNotFound)
		}
		return nil, fmt.Errorf("campaign: get %s #%d: %w", version, occurrence, err)
	}
	c.Version = *v
	return &c, nil
}

// List returns the campaigns of p, optionally restricted to one version,
// newest first.
func List(db *gorm.DB, p *models.Project, version string) ([]models.Campaign, error) {
	q := db.Preload("Version").Where("campaigns.project_id = ?", p.ID)
	if version != "" {
		v, err := project.GetVersion(db, p, version)
		if err != nil {
			return nil, err
		}
		q = q.Where("campaigns.version_id = ?", v.ID)
	}
	var campaigns []models.Campaign
	if err := q.Order("created_at DESC, occurrence DESC").Find(&campaigns).Error; err != nil {
		return nil, fmt.Errorf("campaign: list: %w", err)
	}
	return campaigns, nil
}

// Update patches the status and description of a campaign.
func Update(db *gorm.DB, p *models.Project, version string, occurrence int, opts UpdateOpts) (*models.Campaign, error) {
	if opts.Status == nil && opts.Description == nil {
		return nil, fmt.Errorf("campaign: update: %w", apperr.ErrEmptyPayload)
	}
	var updated *models.Campaign
	err := db.Transaction(func(tx *gorm.DB) error {
		c, err := Get(tx, p, version, occurrence)
		if err != nil {
			return err
		}
		updates := map[string]interface{}{}
		if opts.Status != nil && *opts.Status != c.Status {
			if err := Transition(c.Status, *opts.Status); err != nil {
				return err
			}
			updates["status"] = *opts.Status
		}
		if opts.Description != nil {
			updates["description"] = *opts.Description
		}
		if len(updates) > 0 {
			res := tx.Model(&models.Campaign{}).Where("id = ?", c.ID).Updates(updates)
			if res.Error != nil {
				return fmt.Errorf("campaign: update #%d: %w", occurrence, res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("campaign: update #%d: %w", occurrence, apperr.ErrUpdate)
			}
		}
		updated, err = Get(tx, p, version, occurrence)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// View is the full shape of a campaign: its tickets and their scenario
// executions joined to the repository.
type View struct {
	Project     string       `json:"project_name"`
	Version     string       `json:"version"`
	Occurrence  int          `json:"occurrence"`
	Description string       `json:"description"`
	Status      string       `json:"status"`
	Created     time.Time    `json:"created"`
	Updated     time.Time    `json:"updated"`
	Tickets     []TicketView `json:"tickets"`
}

// TicketView is a campaign ticket with its executions.
type TicketView struct {
	Reference  string         `json:"reference"`
	Summary    string         `json:"summary"`
	Status     string         `json:"status"`
	Executions []ScenarioView `json:"scenarios"`
}

// ScenarioView is one scenario execution.
type ScenarioView struct {
	ID         uint   `json:"scenario_tech_id"`
	ScenarioID string `json:"scenario_id"`
	Name       string `json:"name"`
	Epic       string `json:"epic"`
	Feature    string `json:"feature_name"`
	Steps      string `json:"steps"`
	Status     string `json:"status"`
	IsDeleted  bool   `json:"is_deleted"`
}
