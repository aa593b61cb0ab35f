package results

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/zulandar/testyard/internal/apperr"
	"github.com/zulandar/testyard/internal/campaign"
	"github.com/zulandar/testyard/internal/models"
	"github.com/zulandar/testyard/internal/project"
	"github.com/zulandar/testyard/internal/repository"
	"gorm.io/gorm"
)

// Headers are the columns every results file must carry.
var Headers = []string{"epic_id", "feature_name", "scenario_id", "status"}

const batchSize = 500

// Row is one line of a results file.
type Row struct {
	Epic       string
	Feature    string
	ScenarioID string
	Status     string
}

// ParseCSV reads a results file. A missing header column fails with
// ErrMalformedInput.
func ParseCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("results: empty file: %w", apperr.ErrMalformedInput)
		}
		return nil, fmt.Errorf("results: read header: %v: %w", err, apperr.ErrMalformedInput)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	var missing []string
	for _, h := range Headers {
		if _, ok := col[h]; !ok {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("results: missing columns %s: %w", strings.Join(missing, ", "), apperr.ErrMalformedInput)
	}

	var rows []Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("results: line %d: %v: %w", line, err, apperr.ErrMalformedInput)
		}
		get := func(name string) string {
			if i := col[name]; i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}
		rows = append(rows, Row{
			Epic:       get("epic_id"),
			Feature:    get("feature_name"),
			ScenarioID: get("scenario_id"),
			Status:     strings.ToLower(get("status")),
		})
	}
	return rows, nil
}

// ParseRunDate accepts RFC 3339 timestamps and YYYY-MM-DD dates.
func ParseRunDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("results: result_date is required: %w", apperr.ErrMissingField)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(project.DateLayout, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("results: result_date %q: %w", s, apperr.ErrMalformedInput)
}

// ImportOpts describes one results import.
type ImportOpts struct {
	Version            string
	RunDate            time.Time
	IsPartial          bool
	CampaignOccurrence *int
}

// Summary reports what an import wrote.
type Summary struct {
	CampaignID         uint     `json:"campaign_id"`
	CampaignOccurrence int      `json:"campaign_occurrence"`
	Scenarios          int      `json:"scenarios"`
	Features           int      `json:"features"`
	Epics              int      `json:"epics"`
	Dropped            []string `json:"dropped"`
}

// String renders the summary for the status board.
func (s Summary) String() string {
	msg := fmt.Sprintf("campaign #%d: %d scenario, %d feature, %d epic results",
		s.CampaignOccurrence, s.Scenarios, s.Features, s.Epics)
	if len(s.Dropped) > 0 {
		msg += "; unresolved rows: " + strings.Join(s.Dropped, ", ")
	}
	return msg
}

// Check validates an import before it is queued: the version exists, a
// partial import names an existing campaign, and a full import does not
// repeat a run date.
func Check(db *gorm.DB, p *models.Project, opts ImportOpts) (*models.Version, error) {
	v, err := project.GetVersion(db, p, opts.Version)
	if err != nil {
		return nil, err
	}
	if opts.IsPartial {
		if opts.CampaignOccurrence == nil {
			return nil, fmt.Errorf("results: campaign_occurrence is required for a partial import: %w", apperr.ErrMissingField)
		}
		if _, err := campaign.Get(db, p, opts.Version, *opts.CampaignOccurrence); err != nil {
			return nil, err
		}
		return v, nil
	}

	var count int64
	if err := db.Model(&models.ScenarioResult{}).
		Where("project_id = ? AND version_id = ? AND run_date = ?", p.ID, v.ID, opts.RunDate).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("results: check run date: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("results: %s %s on %s: %w", p.Alias, opts.Version,
			opts.RunDate.Format(time.RFC3339), apperr.ErrDuplicateTestResults)
	}
	return v, nil
}

// Ingest resolves rows against the repository of p and writes scenario,
// feature and epic results in one transaction. Unresolvable rows are
// dropped and reported; an import where every row is dropped is rejected
// and writes nothing. A full import records a new closed campaign; a
// partial one attaches to the given occurrence.
func Ingest(ctx context.Context, db *gorm.DB, logger *slog.Logger, p *models.Project, opts ImportOpts, rows []Row) (*Summary, error) {
	sum := &Summary{Dropped: []string{}}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		v, err := Check(tx, p, opts)
		if err != nil {
			return err
		}

		var c *models.Campaign
		if opts.IsPartial {
			c, err = campaign.Get(tx, p, opts.Version, *opts.CampaignOccurrence)
		} else {
			c, err = campaign.Create(tx, p, opts.Version, campaign.CreateOpts{
				Description: "results import " + opts.RunDate.Format(time.RFC3339),
				Status:      campaign.StatusClosed,
			})
		}
		if err != nil {
			return err
		}
		sum.CampaignID = c.ID
		sum.CampaignOccurrence = c.Occurrence

		idx, err := repository.ScenarioIndex(tx, p)
		if err != nil {
			return err
		}
		scenarios := make([]models.ScenarioResult, 0, len(rows))
		for _, r := range rows {
			ref, ok := idx[repository.ScenarioKey{Epic: r.Epic, Feature: r.Feature, ScenarioID: r.ScenarioID}]
			if !ok || !slices.Contains(Statuses, r.Status) {
				logger.Warn("dropping result row",
					"project", p.Alias, "epic", r.Epic, "feature", r.Feature,
					"scenario_id", r.ScenarioID, "status", r.Status)
				sum.Dropped = append(sum.Dropped, r.Epic+"/"+r.Feature+"/"+r.ScenarioID)
				continue
			}
			scenarios = append(scenarios, models.ScenarioResult{
				RunDate:    opts.RunDate,
				ProjectID:  p.ID,
				VersionID:  v.ID,
				CampaignID: c.ID,
				EpicID:     ref.EpicID,
				FeatureID:  ref.FeatureID,
				ScenarioID: ref.ScenarioID,
				Status:     r.Status,
				IsPartial:  opts.IsPartial,
			})
		}
		if len(scenarios) == 0 {
			return fmt.Errorf("results: no row matches the repository of %s: %w", p.Alias, apperr.ErrIncorrectFieldsRequest)
		}

		SortForRollUp(scenarios)
		if err := tx.CreateInBatches(&scenarios, batchSize).Error; err != nil {
			return fmt.Errorf("results: insert scenario results: %w", err)
		}
		features, epics := RollUp(scenarios)
		if err := tx.CreateInBatches(&features, batchSize).Error; err != nil {
			return fmt.Errorf("results: insert feature results: %w", err)
		}
		if err := tx.CreateInBatches(&epics, batchSize).Error; err != nil {
			return fmt.Errorf("results: insert epic results: %w", err)
		}
		sum.Scenarios, sum.Features, sum.Epics = len(scenarios), len(features), len(epics)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sum, nil
}
