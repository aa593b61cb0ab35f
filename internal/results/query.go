package results

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/zulandar/testyard/internal/apperr"
	"github.com/zulandar/testyard/internal/models"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Categories and renderings accepted by Query.
const (
	CategoryEpics     = "epics"
	CategoryFeatures  = "features"
	CategoryScenarios = "scenarios"

	RenderingStacked = "stacked"
	RenderingMap     = "map"
)

// Categories lists the levels results can be queried at.
var Categories = []string{CategoryEpics, CategoryFeatures, CategoryScenarios}

// Renderings lists the accepted result shapes.
var Renderings = []string{RenderingStacked, RenderingMap}

// QueryOpts selects the results to return.
type QueryOpts struct {
	Category  string
	Rendering string
	// VersionID restricts to one version when non-zero.
	VersionID uint
}

// DailyCount is one bar of the stacked rendering.
type DailyCount struct {
	Date    time.Time `json:"date"`
	Passed  int       `json:"passed"`
	Failed  int       `json:"failed"`
	Skipped int       `json:"skipped"`
}

// Report is the answer to a query: Stacked for the stacked rendering,
// Latest (name to latest status) for the map rendering.
type Report struct {
	Category  string            `json:"category"`
	Rendering string            `json:"rendering"`
	Stacked   []DailyCount      `json:"-"`
	Latest    map[string]string `json:"-"`
}

// Value returns the JSON-ready body of the report.
func (r *Report) Value() interface{} {
	if r.Rendering == RenderingMap {
		return r.Latest
	}
	return r.Stacked
}

func (o QueryOpts) validate() error {
	if !slices.Contains(Categories, o.Category) {
		return fmt.Errorf("results: category %q not in %v: %w", o.Category, Categories, apperr.ErrIncorrectFieldsRequest)
	}
	if !slices.Contains(Renderings, o.Rendering) {
		return fmt.Errorf("results: rendering %q not in %v: %w", o.Rendering, Renderings, apperr.ErrIncorrectFieldsRequest)
	}
	return nil
}

func tableFor(category string) string {
	switch category {
	case CategoryEpics:
		return "epic_result"
	case CategoryFeatures:
		return "feature_result"
	default:
		return "scenario_result"
	}
}

// Query aggregates the results of p.
func Query(ctx context.Context, db *gorm.DB, p *models.Project, opts QueryOpts) (*Report, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	rep := &Report{Category: opts.Category, Rendering: opts.Rendering}
	var err error
	if opts.Rendering == RenderingMap {
		rep.Latest, err = latest(ctx, db, p, opts)
	} else {
		rep.Stacked, err = stacked(ctx, db, p, opts)
	}
	if err != nil {
		return nil, err
	}
	return rep, nil
}

// stacked counts results per run date, one query per status run in
// parallel.
func stacked(ctx context.Context, db *gorm.DB, p *models.Project, opts QueryOpts) ([]DailyCount, error) {
	type bucket struct {
		RunDate time.Time
		Count   int
	}
	counts := make([][]bucket, len(Statuses))

	g, gCtx := errgroup.WithContext(ctx)
	for i, status := range Statuses {
		g.Go(func() error {
			q := db.WithContext(gCtx).Table(tableFor(opts.Category)).
				Select("run_date, COUNT(*) AS count").
				Where("project_id = ? AND status = ?", p.ID, status)
			if opts.VersionID != 0 {
				q = q.Where("version_id = ?", opts.VersionID)
			}
			if err := q.Group("run_date").Scan(&counts[i]).Error; err != nil {
				return fmt.Errorf("results: count %s %s: %w", opts.Category, status, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byDate := map[int64]*DailyCount{}
	for i, status := range Statuses {
		for _, b := range counts[i] {
			key := b.RunDate.Unix()
			dc, ok := byDate[key]
			if !ok {
				dc = &DailyCount{Date: b.RunDate}
				byDate[key] = dc
			}
			switch status {
			case StatusPassed:
				dc.Passed += b.Count
			case StatusFailed:
				dc.Failed += b.Count
			case StatusSkipped:
				dc.Skipped += b.Count
			}
		}
	}
	out := make([]DailyCount, 0, len(byDate))
	for _, dc := range byDate {
		out = append(out, *dc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// latest returns the most recent status of every epic, feature or scenario.
func latest(ctx context.Context, db *gorm.DB, p *models.Project, opts QueryOpts) (map[string]string, error) {
	type row struct {
		Name   string
		Status string
	}
	var q *gorm.DB
	switch opts.Category {
	case CategoryEpics:
		q = db.WithContext(ctx).Table("epic_result AS r").
			Select("e.name AS name, r.status AS status").
			Joins("JOIN epics AS e ON e.id = r.epic_id")
	case CategoryFeatures:
		q = db.WithContext(ctx).Table("feature_result AS r").
			Select("f.name AS name, r.status AS status").
			Joins("JOIN features AS f ON f.id = r.feature_id")
	default:
		q = db.WithContext(ctx).Table("scenario_result AS r").
			Select("s.scenario_id AS name, r.status AS status").
			Joins("JOIN scenarios AS s ON s.id = r.scenario_id")
	}
	q = q.Where("r.project_id = ?", p.ID)
	if opts.VersionID != 0 {
		q = q.Where("r.version_id = ?", opts.VersionID)
	}

	var rows []row
	if err := q.Order("r.run_date ASC, r.id ASC").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("results: latest %s: %w", opts.Category, err)
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Name] = r.Status
	}
	return out, nil
}
