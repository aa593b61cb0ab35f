package results

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/testyard/internal/alias"
	"github.com/zulandar/testyard/internal/apperr"
	"github.com/zulandar/testyard/internal/campaign"
	"github.com/zulandar/testyard/internal/dbtest"
	"github.com/zulandar/testyard/internal/models"
	"github.com/zulandar/testyard/internal/project"
	"github.com/zulandar/testyard/internal/repository"
	"gorm.io/gorm"
)

const repoCSV = "epic,feature_filename,feature_name,feature_description,feature_tags,scenario_id,scenario_name,scenario_tags,scenario_description,scenario_is_outline,scenario_steps\n" +
	"E1,,,,,,,,,,\n" +
	"E1,f1.feature,F1,,,,,,,,\n" +
	"E1,f1.feature,F1,,,S1,one,,,,Given one\n" +
	"E1,f1.feature,F1,,,S2,two,,,,Given two\n" +
	"E1,f1.feature,F1,,,S3,three,,,,Given three\n" +
	"E2,,,,,,,,,,\n" +
	"E2,f2.feature,F2,,,,,,,,\n" +
	"E2,f2.feature,F2,,,S4,four,,,,Given four\n"

const resultsCSV = "epic_id,feature_name,scenario_id,status\n" +
	"E1,F1,S1,passed\n" +
	"E1,F1,S2,skipped\n" +
	"E1,F1,S3,failed\n"

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func setup(t *testing.T) (*gorm.DB, *models.Project) {
	t.Helper()
	db := dbtest.Open(t)
	p, err := project.Register(db, alias.NewRegistry(), "P")
	require.NoError(t, err)
	_, err = project.CreateVersion(db, p, "1.0")
	require.NoError(t, err)
	rows, err := repository.ParseCSV(strings.NewReader(repoCSV))
	require.NoError(t, err)
	_, err = repository.Ingest(context.Background(), db, p, rows)
	require.NoError(t, err)
	return db, p
}

func mustRows(t *testing.T, data string) []Row {
	t.Helper()
	rows, err := ParseCSV(strings.NewReader(data))
	require.NoError(t, err)
	return rows
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestParseCSV(t *testing.T) {
	rows := mustRows(t, "status,scenario_id,feature_name,epic_id\nPASSED,S1,F1,E1\n")
	require.Len(t, rows, 1)
	assert.Equal(t, Row{Epic: "E1", Feature: "F1", ScenarioID: "S1", Status: "passed"}, rows[0])

	_, err := ParseCSV(strings.NewReader("epic_id,feature_name,status\n"))
	assert.ErrorIs(t, err, apperr.ErrMalformedInput)
	assert.Contains(t, err.Error(), "scenario_id")
}

func TestParseRunDate(t *testing.T) {
	got, err := ParseRunDate("2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, day("2024-05-01"), got)

	got, err = ParseRunDate("2024-05-01T10:30:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, 8, got.Hour())

	_, err = ParseRunDate("")
	assert.ErrorIs(t, err, apperr.ErrMissingField)
	_, err = ParseRunDate("May 1st")
	assert.ErrorIs(t, err, apperr.ErrMalformedInput)
}

func TestIngest_RollUp(t *testing.T) {
	db, p := setup(t)

	sum, err := Ingest(context.Background(), db, discard, p,
		ImportOpts{Version: "1.0", RunDate: day("2024-05-01")}, mustRows(t, resultsCSV))
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Scenarios)
	assert.Equal(t, 1, sum.Features)
	assert.Equal(t, 1, sum.Epics)
	assert.Equal(t, 1, sum.CampaignOccurrence)

	var features []models.FeatureResult
	require.NoError(t, db.Find(&features).Error)
	require.Len(t, features, 1)
	assert.Equal(t, StatusFailed, features[0].Status)

	var epics []models.EpicResult
	require.NoError(t, db.Find(&epics).Error)
	require.Len(t, epics, 1)
	assert.Equal(t, StatusFailed, epics[0].Status)

	c, err := campaign.Get(db, p, "1.0", 1)
	require.NoError(t, err)
	assert.Equal(t, campaign.StatusClosed, c.Status)
}

func TestIngest_DuplicateRunDate(t *testing.T) {
	db, p := setup(t)
	opts := ImportOpts{Version: "1.0", RunDate: day("2024-05-01")}
	rows := mustRows(t, resultsCSV)

	_, err := Ingest(context.Background(), db, discard, p, opts, rows)
	require.NoError(t, err)

	count := func(model interface{}) int64 {
		var n int64
		require.NoError(t, db.Model(model).Count(&n).Error)
		return n
	}
	before := []int64{count(&models.ScenarioResult{}), count(&models.FeatureResult{}), count(&models.EpicResult{}), count(&models.Campaign{})}

	_, err = Ingest(context.Background(), db, discard, p, opts, rows)
	assert.ErrorIs(t, err, apperr.ErrDuplicateTestResults)

	after := []int64{count(&models.ScenarioResult{}), count(&models.FeatureResult{}), count(&models.EpicResult{}), count(&models.Campaign{})}
	assert.Equal(t, before, after)
}

func TestIngest_Partial(t *testing.T) {
	db, p := setup(t)

	_, err := Check(db, p, ImportOpts{Version: "1.0", RunDate: day("2024-05-01"), IsPartial: true})
	require.ErrorIs(t, err, apperr.ErrMissingField)
	assert.Contains(t, err.Error(), "campaign_occurrence")

	occ := 1
	_, err = Check(db, p, ImportOpts{Version: "1.0", RunDate: day("2024-05-01"), IsPartial: true, CampaignOccurrence: &occ})
	assert.ErrorIs(t, err, apperr.ErrCampaignNotFound)

	c, err := campaign.Create(db, p, "1.0", campaign.CreateOpts{})
	require.NoError(t, err)

	opts := ImportOpts{Version: "1.0", RunDate: day("2024-05-01"), IsPartial: true, CampaignOccurrence: &occ}
	sum, err := Ingest(context.Background(), db, discard, p, opts, mustRows(t, resultsCSV))
	require.NoError(t, err)
	assert.Equal(t, c.ID, sum.CampaignID)

	// Partial imports may repeat a run date.
	_, err = Ingest(context.Background(), db, discard, p, opts, mustRows(t, resultsCSV))
	require.NoError(t, err)

	var partial int64
	require.NoError(t, db.Model(&models.ScenarioResult{}).Where("is_partial = ?", true).Count(&partial).Error)
	assert.EqualValues(t, 6, partial)
}

func TestIngest_DropsUnresolved(t *testing.T) {
	db, p := setup(t)
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	data := resultsCSV + "E1,F1,S99,passed\nE9,F1,S1,passed\nE1,F1,S1,broken\n"
	sum, err := Ingest(context.Background(), db, logger, p,
		ImportOpts{Version: "1.0", RunDate: day("2024-05-02")}, mustRows(t, data))
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Scenarios)
	assert.Len(t, sum.Dropped, 3)
	assert.Contains(t, sum.String(), "E1/F1/S99")
	assert.Contains(t, logs.String(), "dropping result row")
}

func TestIngest_NothingResolves(t *testing.T) {
	db, p := setup(t)

	data := "epic_id,feature_name,scenario_id,status\nE1,F1,S99,passed\nE9,F1,S1,passed\n"
	_, err := Ingest(context.Background(), db, discard, p,
		ImportOpts{Version: "1.0", RunDate: day("2024-05-03")}, mustRows(t, data))
	assert.ErrorIs(t, err, apperr.ErrIncorrectFieldsRequest)

	var n int64
	require.NoError(t, db.Model(&models.Campaign{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestIngest_UnknownVersion(t *testing.T) {
	db, p := setup(t)
	_, err := Ingest(context.Background(), db, discard, p,
		ImportOpts{Version: "9.9", RunDate: day("2024-05-01")}, mustRows(t, resultsCSV))
	assert.ErrorIs(t, err, apperr.ErrVersionNotFound)
	assert.False(t, errors.Is(err, apperr.ErrDuplicateTestResults))
}
