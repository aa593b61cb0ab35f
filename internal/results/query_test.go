package results

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/testyard/internal/apperr"
)

func TestQuery(t *testing.T) {
	db, p := setup(t)
	ctx := context.Background()

	_, err := Ingest(ctx, db, discard, p, ImportOpts{Version: "1.0", RunDate: day("2024-05-01")},
		mustRows(t, resultsCSV+"E2,F2,S4,passed\n"))
	require.NoError(t, err)
	_, err = Ingest(ctx, db, discard, p, ImportOpts{Version: "1.0", RunDate: day("2024-05-02")},
		mustRows(t, "epic_id,feature_name,scenario_id,status\nE1,F1,S3,passed\nE2,F2,S4,failed\n"))
	require.NoError(t, err)

	t.Run("stacked scenarios", func(t *testing.T) {
		rep, err := Query(ctx, db, p, QueryOpts{Category: CategoryScenarios, Rendering: RenderingStacked})
		require.NoError(t, err)
		require.Len(t, rep.Stacked, 2)
		assert.Equal(t, DailyCount{Date: rep.Stacked[0].Date, Passed: 2, Failed: 1, Skipped: 1}, rep.Stacked[0])
		assert.Equal(t, DailyCount{Date: rep.Stacked[1].Date, Passed: 1, Failed: 1}, rep.Stacked[1])
		assert.True(t, rep.Stacked[0].Date.Before(rep.Stacked[1].Date))
	})

	t.Run("stacked epics", func(t *testing.T) {
		rep, err := Query(ctx, db, p, QueryOpts{Category: CategoryEpics, Rendering: RenderingStacked})
		require.NoError(t, err)
		require.Len(t, rep.Stacked, 2)
		assert.Equal(t, 1, rep.Stacked[0].Failed)
		assert.Equal(t, 1, rep.Stacked[0].Passed)
	})

	t.Run("map features", func(t *testing.T) {
		rep, err := Query(ctx, db, p, QueryOpts{Category: CategoryFeatures, Rendering: RenderingMap})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"F1": StatusPassed, "F2": StatusFailed}, rep.Latest)
		assert.Equal(t, rep.Latest, rep.Value())
	})

	t.Run("map scenarios", func(t *testing.T) {
		rep, err := Query(ctx, db, p, QueryOpts{Category: CategoryScenarios, Rendering: RenderingMap})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{
			"S1": StatusPassed, "S2": StatusSkipped, "S3": StatusPassed, "S4": StatusFailed,
		}, rep.Latest)
	})

	t.Run("bad category", func(t *testing.T) {
		_, err := Query(ctx, db, p, QueryOpts{Category: "tickets", Rendering: RenderingMap})
		assert.ErrorIs(t, err, apperr.ErrIncorrectFieldsRequest)
	})
}

func TestReport_Render(t *testing.T) {
	rep := &Report{
		Category:  CategoryEpics,
		Rendering: RenderingMap,
		Latest:    map[string]string{"E2": StatusFailed, "E1": StatusPassed},
	}

	var csvOut bytes.Buffer
	require.NoError(t, rep.WriteCSV(&csvOut))
	assert.Equal(t, "name,status\nE1,passed\nE2,failed\n", csvOut.String())

	var htmlOut bytes.Buffer
	require.NoError(t, rep.WriteHTML(&htmlOut))
	assert.Contains(t, htmlOut.String(), "<th>name</th>")
	assert.Contains(t, htmlOut.String(), "<td>E2</td><td>failed</td>")

	rep = &Report{Category: "<b>", Rendering: RenderingMap, Latest: map[string]string{}}
	htmlOut.Reset()
	require.NoError(t, rep.WriteHTML(&htmlOut))
	assert.False(t, strings.Contains(htmlOut.String(), "<b>"))
}
