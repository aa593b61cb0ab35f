package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/zulandar/testyard/internal/apperr"
	"github.com/zulandar/testyard/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Headers are the columns every repository import must carry.
var Headers = []string{
	"epic", "feature_filename", "feature_name", "feature_description", "feature_tags",
	"scenario_id", "scenario_name", "scenario_tags", "scenario_description",
	"scenario_is_outline", "scenario_steps",
}

// PlaceholderPrefix marks scenario ids left behind by interrupted imports.
// Such scenarios are purged before every scenario upsert.
const PlaceholderPrefix = "placeholder-"

const batchSize = 200

// Row is one line of a repository import.
type Row struct {
	Epic                string
	FeatureFilename     string
	FeatureName         string
	FeatureDescription  string
	FeatureTags         string
	ScenarioID          string
	ScenarioName        string
	ScenarioTags        string
	ScenarioDescription string
	ScenarioIsOutline   string
	ScenarioSteps       string
}

// ParseCSV reads an import. A missing header column fails with
// ErrMalformedInput before any row is read.
func ParseCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("repository: empty file: %w", apperr.ErrMalformedInput)
		}
		return nil, fmt.Errorf("repository: read header: %v: %w", err, apperr.ErrMalformedInput)
	}
	col, err := columnIndex(header, Headers)
	if err != nil {
		return nil, err
	}

	var rows []Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("repository: line %d: %v: %w", line, err, apperr.ErrMalformedInput)
		}
		get := func(name string) string {
			if i := col[name]; i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}
		rows = append(rows, Row{
			Epic:                get("epic"),
			FeatureFilename:     get("feature_filename"),
			FeatureName:         get("feature_name"),
			FeatureDescription:  get("feature_description"),
			FeatureTags:         get("feature_tags"),
			ScenarioID:          get("scenario_id"),
			ScenarioName:        get("scenario_name"),
			ScenarioTags:        get("scenario_tags"),
			ScenarioDescription: get("scenario_description"),
			ScenarioIsOutline:   get("scenario_is_outline"),
			ScenarioSteps:       get("scenario_steps"),
		})
	}
	return rows, nil
}

// columnIndex maps each required column to its position in header.
func columnIndex(header, required []string) (map[string]int, error) {
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	var missing []string
	for _, h := range required {
		if _, ok := col[h]; !ok {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("repository: missing columns %s: %w", strings.Join(missing, ", "), apperr.ErrMalformedInput)
	}
	return col, nil
}

// Classification is the split of an import into row kinds.
type Classification struct {
	Epics             []string
	Features          []Row
	Scenarios         []Row
	ExcludedFeatures  []string
	ExcludedScenarios []string
}

// Classify sorts rows into epics, features and scenarios. A scenario is kept
// only when its feature is part of the same import. Rows matching no kind
// are ignored.
func Classify(rows []Row) Classification {
	var c Classification
	epics := map[string]bool{}
	features := map[string]bool{}
	addEpic := func(name string) {
		if !epics[name] {
			epics[name] = true
			c.Epics = append(c.Epics, name)
		}
	}

	for _, r := range rows {
		switch {
		case r.Epic != "" && r.FeatureFilename == "":
			addEpic(r.Epic)
		case r.Epic != "" && r.ScenarioSteps == "":
			addEpic(r.Epic)
			if !features[r.FeatureFilename] {
				features[r.FeatureFilename] = true
				c.Features = append(c.Features, r)
			}
		case r.Epic == "" && r.FeatureFilename != "" && r.ScenarioSteps == "":
			c.ExcludedFeatures = append(c.ExcludedFeatures, r.FeatureFilename)
		}
	}
	for _, r := range rows {
		if r.ScenarioSteps == "" {
			continue
		}
		if r.ScenarioID == "" || !features[r.FeatureFilename] {
			c.ExcludedScenarios = append(c.ExcludedScenarios, excludedName(r))
			continue
		}
		c.Scenarios = append(c.Scenarios, r)
	}
	return c
}

func excludedName(r Row) string {
	if r.ScenarioID != "" {
		return r.ScenarioID
	}
	if r.ScenarioName != "" {
		return r.ScenarioName
	}
	return r.FeatureFilename
}

// Summary reports what an import wrote.
type Summary struct {
	Epics             int      `json:"epics"`
	Features          int      `json:"features"`
	Scenarios         int      `json:"scenarios"`
	PlaceholdersPurge int      `json:"placeholders_purged"`
	ExcludedFeatures  []string `json:"excluded_features"`
	ExcludedScenarios []string `json:"excluded_scenarios"`
}

// String renders the summary for the status board.
func (s Summary) String() string {
	msg := fmt.Sprintf("%d epics, %d features, %d scenarios imported", s.Epics, s.Features, s.Scenarios)
	if len(s.ExcludedFeatures) > 0 {
		msg += "; excluded features: " + strings.Join(s.ExcludedFeatures, ", ")
	}
	if len(s.ExcludedScenarios) > 0 {
		msg += "; excluded scenarios: " + strings.Join(s.ExcludedScenarios, ", ")
	}
	return msg
}

// Ingest upserts rows into the repository of p in one transaction: epics,
// then features, then scenarios. Re-imported scenarios are undeleted.
func Ingest(ctx context.Context, db *gorm.DB, p *models.Project, rows []Row) (*Summary, error) {
	c := Classify(rows)
	sum := &Summary{ExcludedFeatures: c.ExcludedFeatures, ExcludedScenarios: c.ExcludedScenarios}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		epicIDs, err := upsertEpics(tx, p, c.Epics)
		if err != nil {
			return err
		}
		sum.Epics = len(epicIDs)

		featureIDs, err := upsertFeatures(tx, p, c.Features, epicIDs)
		if err != nil {
			return err
		}
		sum.Features = len(featureIDs)

		purged, err := purgePlaceholders(tx, p)
		if err != nil {
			return err
		}
		sum.PlaceholdersPurge = purged

		n, err := upsertScenarios(tx, c.Scenarios, featureIDs)
		if err != nil {
			return err
		}
		sum.Scenarios = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sum, nil
}

func upsertEpics(tx *gorm.DB, p *models.Project, names []string) (map[string]uint, error) {
	ids := map[string]uint{}
	if len(names) == 0 {
		return ids, nil
	}
	epics := make([]models.Epic, 0, len(names))
	for _, n := range names {
		epics = append(epics, models.Epic{ProjectID: p.ID, Name: n})
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"updated_at"}),
	}).CreateInBatches(&epics, batchSize).Error; err != nil {
		return nil, fmt.Errorf("repository: upsert epics: %w", err)
	}

	var stored []models.Epic
	if err := tx.Where("project_id = ? AND name IN ?", p.ID, names).Find(&stored).Error; err != nil {
		return nil, fmt.Errorf("repository: reload epics: %w", err)
	}
	for _, e := range stored {
		ids[e.Name] = e.ID
	}
	return ids, nil
}

func upsertFeatures(tx *gorm.DB, p *models.Project, rows []Row, epicIDs map[string]uint) (map[string]uint, error) {
	ids := map[string]uint{}
	if len(rows) == 0 {
		return ids, nil
	}
	features := make([]models.Feature, 0, len(rows))
	filenames := make([]string, 0, len(rows))
	for _, r := range rows {
		name := r.FeatureName
		if name == "" {
			name = r.FeatureFilename
		}
		features = append(features, models.Feature{
			ProjectID:   p.ID,
			EpicID:      epicIDs[r.Epic],
			Name:        name,
			Filename:    r.FeatureFilename,
			Description: r.FeatureDescription,
			Tags:        datatypes.NewJSONType(splitTags(r.FeatureTags)),
		})
		filenames = append(filenames, r.FeatureFilename)
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "filename"}},
		DoUpdates: clause.AssignmentColumns([]string{"epic_id", "name", "description", "tags", "updated_at"}),
	}).CreateInBatches(&features, batchSize).Error; err != nil {
		return nil, fmt.Errorf("repository: upsert features: %w", err)
	}

	var stored []models.Feature
	if err := tx.Where("project_id = ? AND filename IN ?", p.ID, filenames).Find(&stored).Error; err != nil {
		return nil, fmt.Errorf("repository: reload features: %w", err)
	}
	for _, f := range stored {
		ids[f.Filename] = f.ID
	}
	return ids, nil
}

// purgePlaceholders hard-deletes placeholder scenarios of p that no campaign
// references.
func purgePlaceholders(tx *gorm.DB, p *models.Project) (int, error) {
	res := tx.Where("scenario_id LIKE ?", PlaceholderPrefix+"%").
		Where("feature_id IN (?)", tx.Model(&models.Feature{}).Select("id").Where("project_id = ?", p.ID)).
		Where("id NOT IN (?)", tx.Model(&models.CampaignTicketScenario{}).Select("scenario_id")).
		Delete(&models.Scenario{})
	if res.Error != nil {
		return 0, fmt.Errorf("repository: purge placeholders: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func upsertScenarios(tx *gorm.DB, rows []Row, featureIDs map[string]uint) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	scenarios := make([]models.Scenario, 0, len(rows))
	seen := map[string]bool{}
	for _, r := range rows {
		key := r.FeatureFilename + "\x00" + r.ScenarioID
		if seen[key] {
			continue
		}
		seen[key] = true
		scenarios = append(scenarios, models.Scenario{
			FeatureID:   featureIDs[r.FeatureFilename],
			ScenarioID:  r.ScenarioID,
			Name:        r.ScenarioName,
			Description: r.ScenarioDescription,
			Steps:       r.ScenarioSteps,
			Tags:        datatypes.NewJSONType(splitTags(r.ScenarioTags)),
			IsOutline:   parseBool(r.ScenarioIsOutline),
		})
	}
	set := append(
		clause.AssignmentColumns([]string{"name", "description", "steps", "tags", "is_outline", "updated_at"}),
		clause.Assignment{Column: clause.Column{Name: "is_deleted"}, Value: false},
	)
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "feature_id"}, {Name: "scenario_id"}},
		DoUpdates: set,
	}).CreateInBatches(&scenarios, batchSize).Error
	if err != nil {
		return 0, fmt.Errorf("repository: upsert scenarios: %w", err)
	}
	return len(scenarios), nil
}

func splitTags(s string) []string {
	tags := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n'
	})
	if tags == nil {
		return []string{}
	}
	return slices.Compact(tags)
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(strings.ToLower(s))
	return err == nil && b
}
