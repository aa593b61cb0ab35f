// Package ticket provides development tickets and keeps each version's
// ticket-status histogram in step with them.
package ticket

import (
	"errors"
	"fmt"
	"slices"

	"github.com/zulandar/testyard/internal/apperr"
	"github.com/zulandar/testyard/internal/models"
	"github.com/zulandar/testyard/internal/project"
	"gorm.io/gorm"
)

// Ticket statuses.
const (
	StatusOpen       = "open"
	StatusCancelled  = "cancelled"
	StatusBlocked    = "blocked"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
)

// Statuses lists every ticket status.
var Statuses = []string{StatusOpen, StatusCancelled, StatusBlocked, StatusInProgress, StatusDone}

// ValidTransitions maps each ticket status to its valid next statuses.
var ValidTransitions = map[string][]string{
	StatusOpen:       {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCancelled, StatusBlocked, StatusDone},
	StatusBlocked:    {StatusInProgress, StatusCancelled},
	StatusCancelled:  {StatusOpen, StatusInProgress},
	StatusDone:       {},
}

// statColumns maps a status to its histogram column on versions.
var statColumns = map[string]string{
	StatusOpen:       "stat_open",
	StatusCancelled:  "stat_cancelled",
	StatusBlocked:    "stat_blocked",
	StatusInProgress: "stat_in_progress",
	StatusDone:       "stat_done",
}

// Transition checks a ticket status change.
func Transition(from, to string) error {
	if !slices.Contains(Statuses, to) {
		return fmt.Errorf("ticket: status %q: %w", to, apperr.ErrUnknownStatus)
	}
	if !slices.Contains(ValidTransitions[from], to) {
		return fmt.Errorf("ticket: status %q to %q (valid: %v): %w",
			from, to, ValidTransitions[from], apperr.ErrStatusTransitionForbidden)
	}
	return nil
}

// CreateOpts holds parameters for creating a ticket.
type CreateOpts struct {
	Reference   string
	Description string
	Status      string // defaults to open
}

// UpdateOpts holds the optional fields of a ticket update. Version moves
// the ticket to another version of the same project.
type UpdateOpts struct {
	Description *string
	Status      *string
	Version     *string
}

func (o UpdateOpts) empty() bool {
	return o.Description == nil && o.Status == nil && o.Version == nil
}

// Create adds a ticket to version and counts it in the version histogram.
func Create(db *gorm.DB, p *models.Project, version string, opts CreateOpts) (*models.Ticket, error) {
	if opts.Reference == "" {
		return nil, fmt.Errorf("ticket: reference is required: %w", apperr.ErrMissingField)
	}
	if opts.Status == "" {
		opts.Status = StatusOpen
	}
	if !slices.Contains(Statuses, opts.Status) {
		return nil, fmt.Errorf("ticket: status %q: %w", opts.Status, apperr.ErrUnknownStatus)
	}

	var t models.Ticket
	err := db.Transaction(func(tx *gorm.DB) error {
		v, err := project.GetVersion(tx, p, version)
		if err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&models.Ticket{}).
			Where("project_id = ? AND reference = ?", p.ID, opts.Reference).Count(&count).Error; err != nil {
			return fmt.Errorf("ticket: check %s: %w", opts.Reference, err)
		}
		if count > 0 {
			return fmt.Errorf("ticket: %s: %w", opts.Reference, apperr.ErrDuplicateTicket)
		}

		t = models.Ticket{
			ProjectID:        p.ID,
			Reference:        opts.Reference,
			Description:      opts.Description,
			Status:           opts.Status,
			CurrentVersionID: v.ID,
			VersionName:      v.Version,
		}
		if err := tx.Create(&t).Error; err != nil {
			return fmt.Errorf("ticket: create %s: %w", opts.Reference, err)
		}
		if t.ID == 0 {
			return fmt.Errorf("ticket: create %s: %w", opts.Reference, apperr.ErrInsertion)
		}
		return bump(tx, v.ID, t.Status, 1)
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Get loads a ticket of p by reference.
func Get(db *gorm.DB, p *models.Project, reference string) (*models.Ticket, error) {
	var t models.Ticket
	err := db.Preload("CurrentVersion").
		Where("project_id = ? AND reference = ?", p.ID, reference).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("ticket: %s: %w", reference, apperr.ErrTicketNotFound)
		}
		return nil, fmt.Errorf("ticket: get %s: %w", reference, err)
	}
	t.VersionName = t.CurrentVersion.Version
	return &t, nil
}

// List returns the tickets currently in version, ordered by reference.
func List(db *gorm.DB, p *models.Project, version string) ([]models.Ticket, error) {
	v, err := project.GetVersion(db, p, version)
	if err != nil {
		return nil, err
	}
	var tickets []models.Ticket
	if err := db.Where("project_id = ? AND current_version_id = ?", p.ID, v.ID).
		Order("reference ASC").Find(&tickets).Error; err != nil {
		return nil, fmt.Errorf("ticket: list %s: %w", version, err)
	}
	for i := range tickets {
		tickets[i].VersionName = v.Version
	}
	return tickets, nil
}

// Update applies opts to the ticket reference of version. Status changes
// and version moves adjust the histograms in the same transaction.
func Update(db *gorm.DB, p *models.Project, version, reference string, opts UpdateOpts) (*models.Ticket, error) {
	if opts.empty() {
		return nil, fmt.Errorf("ticket: update %s: %w", reference, apperr.ErrEmptyPayload)
	}

	var updated *models.Ticket
	err := db.Transaction(func(tx *gorm.DB) error {
		from, err := project.GetVersion(tx, p, version)
		if err != nil {
			return err
		}
		t, err := Get(tx, p, reference)
		if err != nil {
			return err
		}
		if t.CurrentVersionID != from.ID {
			return fmt.Errorf("ticket: %s is not in version %s: %w", reference, version, apperr.ErrTicketNotFound)
		}

		updates := map[string]interface{}{}
		to := from
		newStatus := t.Status

		if opts.Description != nil {
			updates["description"] = *opts.Description
		}
		if opts.Status != nil && *opts.Status != t.Status {
			if err := Transition(t.Status, *opts.Status); err != nil {
				return err
			}
			newStatus = *opts.Status
			updates["status"] = newStatus
		}
		if opts.Version != nil && *opts.Version != from.Version {
			to, err = project.GetVersion(tx, p, *opts.Version)
			if err != nil {
				return err
			}
			updates["current_version_id"] = to.ID
		}

		if len(updates) > 0 {
			res := tx.Model(&models.Ticket{}).Where("id = ?", t.ID).Updates(updates)
			if res.Error != nil {
				return fmt.Errorf("ticket: update %s: %w", reference, res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("ticket: update %s: %w", reference, apperr.ErrUpdate)
			}
		}

		if to.ID != from.ID || newStatus != t.Status {
			if err := bump(tx, from.ID, t.Status, -1); err != nil {
				return err
			}
			if err := bump(tx, to.ID, newStatus, 1); err != nil {
				return err
			}
		}

		updated, err = Get(tx, p, reference)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// bump adds delta to the histogram bucket of status on version versionID.
func bump(tx *gorm.DB, versionID uint, status string, delta int) error {
	col, ok := statColumns[status]
	if !ok {
		return fmt.Errorf("ticket: status %q: %w", status, apperr.ErrUnknownStatus)
	}
	res := tx.Model(&models.Version{}).Where("id = ?", versionID).
		UpdateColumn(col, gorm.Expr(col+" + ?", delta))
	if res.Error != nil {
		return fmt.Errorf("ticket: update statistics: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("ticket: update statistics of version %d: %w", versionID, apperr.ErrUpdate)
	}
	return nil
}

// RecomputeStatistics rebuilds every version histogram from the ticket
// table and returns how many versions were rewritten.
func RecomputeStatistics(db *gorm.DB) (int, error) {
	type row struct {
		CurrentVersionID uint
		Status           string
		Count            int
	}

	n := 0
	err := db.Transaction(func(tx *gorm.DB) error {
		var rows []row
		if err := tx.Model(&models.Ticket{}).
			Select("current_version_id, status, COUNT(*) AS count").
			Group("current_version_id, status").Scan(&rows).Error; err != nil {
			return fmt.Errorf("ticket: count by status: %w", err)
		}

		stats := map[uint]*models.TicketStatistics{}
		for _, r := range rows {
			s, ok := stats[r.CurrentVersionID]
			if !ok {
				s = &models.TicketStatistics{}
				stats[r.CurrentVersionID] = s
			}
			switch r.Status {
			case StatusOpen:
				s.Open = r.Count
			case StatusCancelled:
				s.Cancelled = r.Count
			case StatusBlocked:
				s.Blocked = r.Count
			case StatusInProgress:
				s.InProgress = r.Count
			case StatusDone:
				s.Done = r.Count
			}
		}

		var ids []uint
		if err := tx.Model(&models.Version{}).Pluck("id", &ids).Error; err != nil {
			return fmt.Errorf("ticket: list versions: %w", err)
		}
		for _, id := range ids {
			s := stats[id]
			if s == nil {
				s = &models.TicketStatistics{}
			}
			if err := tx.Model(&models.Version{}).Where("id = ?", id).UpdateColumns(map[string]interface{}{
				"stat_open":        s.Open,
				"stat_cancelled":   s.Cancelled,
				"stat_blocked":     s.Blocked,
				"stat_in_progress": s.InProgress,
				"stat_done":        s.Done,
			}).Error; err != nil {
				return fmt.Errorf("ticket: rewrite statistics of version %d: %w", id, err)
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
