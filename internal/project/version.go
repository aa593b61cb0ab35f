package project

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/zulandar/testyard/internal/apperr"
	"github.com/zulandar/testyard/internal/models"
	"gorm.io/gorm"
)

// Version statuses in lifecycle order.
const (
	StatusRecorded         = "recorded"
	StatusTestPlanWriting  = "test_plan_writing"
	StatusTestPlanSent     = "test_plan_sent"
	StatusTestPlanAccepted = "test_plan_accepted"
	StatusCampaignStarted  = "campaign_started"
	StatusCampaignEnded    = "campaign_ended"
	StatusTerWriting       = "ter_writing"
	StatusTerSent          = "ter_sent"
	StatusCancelled        = "cancelled"
	StatusArchived         = "archived"
)

// DateLayout is the wire format of started and end_forecast.
const DateLayout = "2006-01-02"

// Statuses lists every version status.
var Statuses = []string{
	StatusRecorded, StatusTestPlanWriting, StatusTestPlanSent, StatusTestPlanAccepted,
	StatusCampaignStarted, StatusCampaignEnded, StatusTerWriting, StatusTerSent,
	StatusCancelled, StatusArchived,
}

// ValidTransitions maps each version status to its valid next statuses.
// Every state before ter_sent may also be cancelled; that edge is added by
// isValidTransition.
var ValidTransitions = map[string][]string{
	StatusRecorded:         {StatusTestPlanWriting},
	StatusTestPlanWriting:  {StatusTestPlanSent},
	StatusTestPlanSent:     {StatusTestPlanAccepted, StatusCampaignStarted},
	StatusTestPlanAccepted: {StatusCampaignStarted},
	StatusCampaignStarted:  {StatusCampaignEnded},
	StatusCampaignEnded:    {StatusTerWriting},
	StatusTerWriting:       {StatusTerSent},
	StatusTerSent:          {StatusArchived},
	StatusCancelled: {
		StatusRecorded, StatusTestPlanWriting, StatusTestPlanSent, StatusTestPlanAccepted,
		StatusCampaignStarted, StatusCampaignEnded, StatusTerWriting, StatusTerSent,
		StatusCancelled, StatusArchived,
	},
	StatusArchived: {},
}

// Transition checks a version status change.
func Transition(from, to string) error {
	if !slices.Contains(Statuses, to) {
		return fmt.Errorf("project: version status %q: %w", to, apperr.ErrUnknownStatus)
	}
	if !isValidTransition(from, to) {
		return fmt.Errorf("project: version status %q to %q (valid: %v): %w",
			from, to, ValidTransitions[from], apperr.ErrStatusTransitionForbidden)
	}
	return nil
}

func isValidTransition(from, to string) bool {
	if to == StatusCancelled && from != StatusTerSent && from != StatusArchived {
		return true
	}
	return slices.Contains(ValidTransitions[from], to)
}

// UpdateVersionOpts holds the optional fields of a version update.
// Dates use DateLayout.
type UpdateVersionOpts struct {
	Status      *string
	Started     *string
	EndForecast *string
}

func (o UpdateVersionOpts) empty() bool {
	return o.Status == nil && o.Started == nil && o.EndForecast == nil
}

// CreateVersion adds version to p in status recorded.
func CreateVersion(db *gorm.DB, p *models.Project, version string) (*models.Version, error) {
	if version == "" {
		return nil, fmt.Errorf("project: version is required: %w", apperr.ErrMissingField)
	}
	var count int64
	if err := db.Model(&models.Version{}).
		Where("project_id = ? AND version = ?", p.ID, version).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("project: check version %s: %w", version, err)
	}
	if count > 0 {
		return nil, fmt.Errorf("project: %s version %s: %w", p.Alias, version, apperr.ErrDuplicateVersion)
	}

	v := models.Version{ProjectID: p.ID, Version: version, Status: StatusRecorded}
	if err := db.Create(&v).Error; err != nil {
		return nil, fmt.Errorf("project: create version %s: %w", version, err)
	}
	if v.ID == 0 {
		return nil, fmt.Errorf("project: create version %s: %w", version, apperr.ErrInsertion)
	}
	return &v, nil
}

// GetVersion loads one version of p.
func GetVersion(db *gorm.DB, p *models.Project, version string) (*models.Version, error) {
	var v models.Version
	if err := db.Where("project_id = ? AND version = ?", p.ID, version).First(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("project: %s version %s: %w", p.Alias, version, apperr.ErrVersionNotFound)
		}
		return nil, fmt.Errorf("project: get version %s: %w", version, err)
	}
	return &v, nil
}

// ListVersions returns the versions of p, newest first.
func ListVersions(db *gorm.DB, p *models.Project) ([]models.Version, error) {
	var versions []models.Version
	if err := db.Where("project_id = ?", p.ID).Order("created_at DESC, id DESC").Find(&versions).Error; err != nil {
		return nil, fmt.Errorf("project: list versions of %s: %w", p.Alias, err)
	}
	return versions, nil
}

// UpdateVersion applies opts to a version. Status changes are checked
// against ValidTransitions.
func UpdateVersion(db *gorm.DB, p *models.Project, version string, opts UpdateVersionOpts) (*models.Version, error) {
	if opts.empty() {
		return nil, fmt.Errorf("project: update version %s: %w", version, apperr.ErrEmptyPayload)
	}

	updates := map[string]interface{}{}
	if opts.Started != nil {
		t, err := parseDate("started", *opts.Started)
		if err != nil {
			return nil, err
		}
		updates["started"] = t
	}
	if opts.EndForecast != nil {
		t, err := parseDate("end_forecast", *opts.EndForecast)
		if err != nil {
			return nil, err
		}
		updates["end_forecast"] = t
	}

	var updated *models.Version
	err := db.Transaction(func(tx *gorm.DB) error {
		v, err := GetVersion(tx, p, version)
		if err != nil {
			return err
		}
		if opts.Status != nil {
			if err := Transition(v.Status, *opts.Status); err != nil {
				return err
			}
			updates["status"] = *opts.Status
		}
		res := tx.Model(&models.Version{}).Where("id = ?", v.ID).Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("project: update version %s: %w", version, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("project: update version %s: %w", version, apperr.ErrUpdate)
		}
		updated, err = GetVersion(tx, p, version)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("project: %s %q is not YYYY-MM-DD: %w", field, value, apperr.ErrMalformedInput)
	}
	return t, nil
}
