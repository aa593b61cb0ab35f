// Package bug records defects found during campaigns and keeps each
// version's bug_counts histogram in step with them.
package bug

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/zulandar/testyard/internal/apperr"
	"github.com/zulandar/testyard/internal/models"
	"github.com/zulandar/testyard/internal/project"
	"gorm.io/gorm"
)

// Criticalities.
const (
	CriticalityBlocking = "blocking"
	CriticalityMajor    = "major"
	CriticalityMinor    = "minor"
)

// Statuses.
const (
	StatusOpen             = "open"
	StatusClosed           = "closed"
	StatusClosedNotADefect = "closed_not_a_defect"
	StatusFixReady         = "fix_ready"
)

var (
	Criticalities = []string{CriticalityBlocking, CriticalityMajor, CriticalityMinor}
	Statuses      = []string{StatusOpen, StatusClosed, StatusClosedNotADefect, StatusFixReady}
)

// bucket returns the bug_counts column a bug of status and criticality
// is counted in.
func bucket(status, criticality string) (string, error) {
	if !slices.Contains(Criticalities, criticality) {
		return "", fmt.Errorf("bug: criticality %q: %w", criticality, apperr.ErrUnknownStatus)
	}
	switch status {
	case StatusOpen, StatusFixReady:
		return "bugs_open_" + criticality, nil
	case StatusClosed, StatusClosedNotADefect:
		return "bugs_closed_" + criticality, nil
	default:
		return "", fmt.Errorf("bug: status %q: %w", status, apperr.ErrUnknownStatus)
	}
}

// IssueOpener files a bug in an external tracker and returns its URL.
type IssueOpener interface {
	OpenIssue(ctx context.Context, title, body string) (string, error)
}

// Relation ties a bug to the scenario execution it was found in.
type Relation struct {
	TicketReference     string `json:"ticket_reference" binding:"required"`
	ScenarioExecutionID uint   `json:"scenario_execution_id" binding:"required"`
	CampaignOccurrence  int    `json:"campaign_occurrence" binding:"required"`
}

// CreateOpts holds parameters for creating a bug.
type CreateOpts struct {
	Version     string
	Title       string
	Description string
	Criticality string
	Status      string // defaults to open
	URL         string
	RelatedTo   []Relation
}

// UpdateOpts holds the optional fields of a bug update.
type UpdateOpts struct {
	Title       *string
	Description *string
	URL         *string
	Criticality *string
	Status      *string
}

func (o UpdateOpts) empty() bool {
	return o.Title == nil && o.Description == nil && o.URL == nil &&
		o.Criticality == nil && o.Status == nil
}

// Store is the bug store. Tracker may be nil.
type Store struct {
	DB      *gorm.DB
	Tracker IssueOpener
	Logger  *slog.Logger
}

// Create records a bug against opts.Version and counts it. When a tracker
// is configured and no URL is given, an issue is opened after the commit;
// tracker failures are logged and leave URL empty.
func (s *Store) Create(ctx context.Context, p *models.Project, opts CreateOpts) (*models.Bug, error) {
	if opts.Title == "" {
		return nil, fmt.Errorf("bug: title is required: %w", apperr.ErrMissingField)
	}
	if opts.Status == "" {
		opts.Status = StatusOpen
	}
	col, err := bucket(opts.Status, opts.Criticality)
	if err != nil {
		return nil, err
	}

	db := s.DB.WithContext(ctx)
	var b models.Bug
	err = db.Transaction(func(tx *gorm.DB) error {
		v, err := project.GetVersion(tx, p, opts.Version)
		if err != nil {
			return err
		}
		b = models.Bug{
			ProjectID:   p.ID,
			VersionID:   v.ID,
			Title:       opts.Title,
			Description: opts.Description,
			URL:         opts.URL,
			Criticality: opts.Criticality,
			Status:      opts.Status,
			VersionName: v.Version,
		}
		for _, r := range opts.RelatedTo {
			b.RelatedTo = append(b.RelatedTo, models.BugIssue{
				TicketReference:     r.TicketReference,
				ScenarioExecutionID: r.ScenarioExecutionID,
				CampaignOccurrence:  r.CampaignOccurrence,
			})
		}
		if err := tx.Create(&b).Error; err != nil {
			return fmt.Errorf("bug: create %q: %w", opts.Title, err)
		}
		if b.ID == 0 {
			return fmt.Errorf("bug: create %q: %w", opts.Title, apperr.ErrInsertion)
		}
		return adjust(tx, v.ID, col, 1)
	})
	if err != nil {
		return nil, err
	}
	if b.RelatedTo == nil {
		b.RelatedTo = []models.BugIssue{}
	}

	if b.URL == "" && s.Tracker != nil {
		url, err := s.Tracker.OpenIssue(ctx, b.Title, b.Description)
		if err != nil {
			s.logger().Warn("open tracker issue", "bug", b.ID, "project", p.Alias, "error", err)
			return &b, nil
		}
		if err := db.Model(&models.Bug{}).Where("id = ?", b.ID).UpdateColumn("url", url).Error; err != nil {
			s.logger().Warn("store tracker url", "bug", b.ID, "error", err)
			return &b, nil
		}
		b.URL = url
	}
	return &b, nil
}

func (s *Store) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// Get loads a bug of p with its relations.
func Get(db *gorm.DB, p *models.Project, id uint) (*models.Bug, error) {
	var b models.Bug
	err := db.Preload("RelatedTo").Where("project_id = ? AND id = ?", p.ID, id).First(&b).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("bug: %d: %w", id, apperr.ErrBugNotFound)
		}
		return nil, fmt.Errorf("bug: get %d: %w", id, err)
	}
	var v models.Version
	if err := db.Select("version").Where("id = ?", b.VersionID).First(&v).Error; err != nil {
		return nil, fmt.Errorf("bug: version of %d: %w", id, err)
	}
	b.VersionName = v.Version
	return &b, nil
}

// ListFilter narrows List. Empty fields match everything.
type ListFilter struct {
	Version string
	Status  string
}

// List returns the bugs of p, newest first.
func List(db *gorm.DB, p *models.Project, f ListFilter) ([]models.Bug, error) {
	q := db.Preload("RelatedTo").Where("bugs.project_id = ?", p.ID)
	if f.Status != "" {
		if !slices.Contains(Statuses, f.Status) {
			return nil, fmt.Errorf("bug: status %q: %w", f.Status, apperr.ErrUnknownStatus)
		}
		q = q.Where("bugs.status = ?", f.Status)
	}
	names := map[uint]string{}
	if f.Version != "" {
		v, err := project.GetVersion(db, p, f.Version)
		if err != nil {
			return nil, err
		}
		q = q.Where("bugs.version_id = ?", v.ID)
		names[v.ID] = v.Version
	} else {
		versions, err := project.ListVersions(db, p)
		if err != nil {
			return nil, err
		}
		for _, v := range versions {
			names[v.ID] = v.Version
		}
	}

	var bugs []models.Bug
	if err := q.Order("bugs.created_at DESC, bugs.id DESC").Find(&bugs).Error; err != nil {
		return nil, fmt.Errorf("bug: list: %w", err)
	}
	for i := range bugs {
		bugs[i].VersionName = names[bugs[i].VersionID]
	}
	return bugs, nil
}

// Update applies opts to bug id. A status or criticality change moves the
// bug between bug_counts buckets in the same transaction.
func Update(db *gorm.DB, p *models.Project, id uint, opts UpdateOpts) (*models.Bug, error) {
	if opts.empty() {
		return nil, fmt.Errorf("bug: update %d: %w", id, apperr.ErrEmptyPayload)
	}

	var updated *models.Bug
	err := db.Transaction(func(tx *gorm.DB) error {
		b, err := Get(tx, p, id)
		if err != nil {
			return err
		}

		status, criticality := b.Status, b.Criticality
		if opts.Status != nil {
			status = *opts.Status
		}
		if opts.Criticality != nil {
			criticality = *opts.Criticality
		}
		from, err := bucket(b.Status, b.Criticality)
		if err != nil {
			return err
		}
		to, err := bucket(status, criticality)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{
			"status":      status,
			"criticality": criticality,
		}
		if opts.Title != nil {
			if *opts.Title == "" {
				return fmt.Errorf("bug: title is required: %w", apperr.ErrMissingField)
			}
			updates["title"] = *opts.Title
		}
		if opts.Description != nil {
			updates["description"] = *opts.Description
		}
		if opts.URL != nil {
			updates["url"] = *opts.URL
		}
		res := tx.Model(&models.Bug{}).Where("id = ?", b.ID).Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("bug: update %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("bug: update %d: %w", id, apperr.ErrUpdate)
		}

		if from != to {
			if err := adjust(tx, b.VersionID, from, -1); err != nil {
				return err
			}
			if err := adjust(tx, b.VersionID, to, 1); err != nil {
				return err
			}
		}
		updated, err = Get(tx, p, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func adjust(tx *gorm.DB, versionID uint, col string, delta int) error {
	res := tx.Model(&models.Version{}).Where("id = ?", versionID).
		UpdateColumn(col, gorm.Expr(col+" + ?", delta))
	if res.Error != nil {
		return fmt.Errorf("bug: update bug counts: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("bug: update bug counts of version %d: %w", versionID, apperr.ErrUpdate)
	}
	return nil
}

// RecomputeCounts rebuilds every version's bug_counts from the bug table
// and returns how many versions were rewritten.
func RecomputeCounts(db *gorm.DB) (int, error) {
	type row struct {
		VersionID   uint
		Status      string
		Criticality string
		Count       int
	}

	n := 0
	err := db.Transaction(func(tx *gorm.DB) error {
		var rows []row
		if err := tx.Model(&models.Bug{}).
			Select("version_id, status, criticality, COUNT(*) AS count").
			Group("version_id, status, criticality").Scan(&rows).Error; err != nil {
			return fmt.Errorf("bug: count: %w", err)
		}

		counts := map[uint]map[string]interface{}{}
		for _, r := range rows {
			col, err := bucket(r.Status, r.Criticality)
			if err != nil {
				continue
			}
			m, ok := counts[r.VersionID]
			if !ok {
				m = zeroCounts()
				counts[r.VersionID] = m
			}
			m[col] = m[col].(int) + r.Count
		}

		var ids []uint
		if err := tx.Model(&models.Version{}).Pluck("id", &ids).Error; err != nil {
			return fmt.Errorf("bug: list versions: %w", err)
		}
		for _, id := range ids {
			m, ok := counts[id]
			if !ok {
				m = zeroCounts()
			}
			if err := tx.Model(&models.Version{}).Where("id = ?", id).UpdateColumns(m).Error; err != nil {
				return fmt.Errorf("bug: rewrite bug counts of version %d: %w", id, err)
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func zeroCounts() map[string]interface{} {
	m := map[string]interface{}{}
	for _, state := range []string{"open", "closed"} {
		for _, c := range Criticalities {
			m["bugs_"+state+"_"+c] = 0
		}
	}
	return m
}
