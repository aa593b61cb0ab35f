package campaign

import (
	"context"
	"fmt"
	"slices"

	"github.com/zulandar/testyard/internal/apperr"
	"github.com/zulandar/testyard/internal/models"
	"github.com/zulandar/testyard/internal/repository"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Scenario execution statuses.
const (
	ExecRecorded      = "recorded"
	ExecInProgress    = "in_progress"
	ExecCancelled     = "cancelled"
	ExecDone          = "done"
	ExecWaitingFix    = "waiting_fix"
	ExecWaitingAnswer = "waiting_answer"
)

// ExecutionStatuses lists every scenario execution status.
var ExecutionStatuses = []string{ExecRecorded, ExecInProgress, ExecCancelled, ExecDone, ExecWaitingFix, ExecWaitingAnswer}

// FillOpts names a ticket to attach and, optionally, scenarios of one
// feature to attach under it.
type FillOpts struct {
	TicketReference string
	Epic            string
	Feature         string
	ScenarioIDs     []string
}

// FillResult reports a fill. NotFound lists scenario ids that were missing
// or deleted and therefore skipped.
type FillResult struct {
	Inserted int      `json:"inserted"`
	NotFound []string `json:"-"`
}

// Fill attaches a ticket and scenarios to a campaign. Attaching something
// already attached succeeds without change.
func Fill(db *gorm.DB, p *models.Project, version string, occurrence int, opts FillOpts) (*FillResult, error) {
	if opts.TicketReference == "" {
		return nil, fmt.Errorf("campaign: ticket_reference is required: %w", apperr.ErrMissingField)
	}
	if len(opts.ScenarioIDs) > 0 && (opts.Epic == "" || opts.Feature == "") {
		return nil, fmt.Errorf("campaign: scenarios need epic and feature_name: %w", apperr.ErrMissingField)
	}

	result := &FillResult{NotFound: []string{}}
	err := db.Transaction(func(tx *gorm.DB) error {
		c, err := Get(tx, p, version, occurrence)
		if err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&models.Ticket{}).
			Where("project_id = ? AND reference = ? AND current_version_id = ?", p.ID, opts.TicketReference, c.VersionID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("campaign: check ticket %s: %w", opts.TicketReference, err)
		}
		if count == 0 {
			return fmt.Errorf("campaign: ticket %s in %s: %w", opts.TicketReference, version, apperr.ErrTicketNotFound)
		}

		attach := models.CampaignTicket{CampaignID: c.ID, TicketReference: opts.TicketReference}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&attach).Error; err != nil {
			return fmt.Errorf("campaign: attach ticket %s: %w", opts.TicketReference, err)
		}
		var link models.CampaignTicket
		if err := tx.Where("campaign_id = ? AND ticket_reference = ?", c.ID, opts.TicketReference).
			First(&link).Error; err != nil {
			return fmt.Errorf("campaign: reload ticket link: %w", err)
		}

		if len(opts.ScenarioIDs) == 0 {
			return nil
		}
		found, notFound, err := repository.ResolveScenarios(tx, p, opts.Epic, opts.Feature, opts.ScenarioIDs)
		if err != nil {
			return err
		}
		if notFound != nil {
			result.NotFound = notFound
		}
		if len(found) == 0 {
			return nil
		}
		execs := make([]models.CampaignTicketScenario, 0, len(found))
		for _, s := range found {
			execs = append(execs, models.CampaignTicketScenario{
				CampaignTicketID: link.ID,
				ScenarioID:       s.ID,
				Status:           ExecRecorded,
			})
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&execs)
		if res.Error != nil {
			return fmt.Errorf("campaign: attach scenarios: %w", res.Error)
		}
		result.Inserted = int(res.RowsAffected)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SetExecutionStatus sets the status of the execution of scenario (its
// technical id) under ticket reference and returns the new status.
func SetExecutionStatus(db *gorm.DB, p *models.Project, version string, occurrence int, reference string, scenario uint, status string) (string, error) {
	if !slices.Contains(ExecutionStatuses, status) {
		return "", fmt.Errorf("campaign: execution status %q: %w", status, apperr.ErrUnknownStatus)
	}
	c, err := Get(db, p, version, occurrence)
	if err != nil {
		return "", err
	}
	res := db.Model(&models.CampaignTicketScenario{}).
		Where("scenario_id = ?", scenario).
		Where("campaign_ticket_id IN (?)", db.Model(&models.CampaignTicket{}).Select("id").
			Where("campaign_id = ? AND ticket_reference = ?", c.ID, reference)).
		Update("status", status)
	if res.Error != nil {
		return "", fmt.Errorf("campaign: set execution status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return "", fmt.Errorf("campaign: %s scenario %d in #%d: %w", reference, scenario, occurrence, apperr.ErrTicketNotFound)
	}
	return status, nil
}

// GetView loads the full shape of a campaign. Tickets are ordered by
// reference descending.
func GetView(ctx context.Context, db *gorm.DB, p *models.Project, version string, occurrence int) (*View, error) {
	c, err := Get(db.WithContext(ctx), p, version, occurrence)
	if err != nil {
		return nil, err
	}

	type execRow struct {
		Reference  string
		ID         uint
		ScenarioID string
		Name       string
		Steps      string
		IsDeleted  bool
		Feature    string
		Epic       string
		Status     string
	}
	var (
		links   []models.CampaignTicket
		rows    []execRow
		tickets []models.Ticket
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := db.WithContext(gCtx).Where("campaign_id = ?", c.ID).
			Order("ticket_reference DESC").Find(&links).Error
		if err != nil {
			return fmt.Errorf("campaign: load tickets of #%d: %w", occurrence, err)
		}
		return nil
	})
	g.Go(func() error {
		err := db.WithContext(gCtx).Table("campaign_ticket_scenarios AS cts").
			Select("ct.ticket_reference AS reference, s.id AS id, s.scenario_id AS scenario_id, s.name AS name, "+
				"s.steps AS steps, s.is_deleted AS is_deleted, f.name AS feature, e.name AS epic, cts.status AS status").
			Joins("JOIN campaign_tickets AS ct ON ct.id = cts.campaign_ticket_id").
			Joins("JOIN scenarios AS s ON s.id = cts.scenario_id").
			Joins("JOIN features AS f ON f.id = s.feature_id").
			Joins("JOIN epics AS e ON e.id = f.epic_id").
			Where("ct.campaign_id = ?", c.ID).
			Order("e.name ASC, f.name ASC, s.scenario_id ASC").
			Scan(&rows).Error
		if err != nil {
			return fmt.Errorf("campaign: load executions of #%d: %w", occurrence, err)
		}
		return nil
	})
	g.Go(func() error {
		err := db.WithContext(gCtx).Where("project_id = ? AND reference IN (?)", p.ID,
			db.Model(&models.CampaignTicket{}).Select("ticket_reference").Where("campaign_id = ?", c.ID)).
			Find(&tickets).Error
		if err != nil {
			return fmt.Errorf("campaign: load ticket details of #%d: %w", occurrence, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byRef := make(map[string]models.Ticket, len(tickets))
	for _, t := range tickets {
		byRef[t.Reference] = t
	}
	execs := map[string][]ScenarioView{}
	for _, r := range rows {
		execs[r.Reference] = append(execs[r.Reference], ScenarioView{
			ID:         r.ID,
			ScenarioID: r.ScenarioID,
			Name:       r.Name,
			Epic:       r.Epic,
			Feature:    r.Feature,
			Steps:      r.Steps,
			Status:     r.Status,
			IsDeleted:  r.IsDeleted,
		})
	}

	view := &View{
		Project:     p.Name,
		Version:     version,
		Occurrence:  c.Occurrence,
		Description: c.Description,
		Status:      c.Status,
		Created:     c.CreatedAt,
		Updated:     c.UpdatedAt,
		Tickets:     make([]TicketView, 0, len(links)),
	}
	for _, l := range links {
		tv := TicketView{
			Reference:  l.TicketReference,
			Executions: execs[l.TicketReference],
		}
		if t, ok := byRef[l.TicketReference]; ok {
			tv.Summary = t.Description
			tv.Status = t.Status
		}
		if tv.Executions == nil {
			tv.Executions = []ScenarioView{}
		}
		view.Tickets = append(view.Tickets, tv)
	}
	return view, nil
}
