package repository

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/zulandar/testyard/internal/apperr"
	"github.com/zulandar/testyard/internal/models"
)

func TestParseCSV_MissingHeader(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"no steps column", "epic,feature_filename,feature_name,feature_description,feature_tags,scenario_id,scenario_name,scenario_tags,scenario_description,scenario_is_outline\n"},
		{"wrong file", "a,b,c\n1,2,3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tt.data))
			if !errors.Is(err, apperr.ErrMalformedInput) {
				t.Errorf("err = %v, want ErrMalformedInput", err)
			}
		})
	}
}

func TestParseCSV_ReorderedColumns(t *testing.T) {
	data := "scenario_steps,epic,feature_filename,feature_name,feature_description,feature_tags,scenario_id,scenario_name,scenario_tags,scenario_description,scenario_is_outline\n" +
		"Given x,E1,f.feature,F,,,S1,,,,\n"
	rows := mustParse(t, data)
	if len(rows) != 1 || rows[0].ScenarioSteps != "Given x" || rows[0].Epic != "E1" {
		t.Errorf("rows = %+v", rows)
	}
}

func TestClassify(t *testing.T) {
	c := Classify(mustParse(t, sampleCSV))

	if diff := cmp.Diff([]string{"E1"}, c.Epics); diff != "" {
		t.Errorf("epics (-want +got):\n%s", diff)
	}
	if len(c.Features) != 1 || c.Features[0].FeatureFilename != "f1.feature" {
		t.Errorf("features = %+v", c.Features)
	}
	var ids []string
	for _, s := range c.Scenarios {
		ids = append(ids, s.ScenarioID)
	}
	if diff := cmp.Diff([]string{"S1", "S2"}, ids); diff != "" {
		t.Errorf("scenarios (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"orphan.feature"}, c.ExcludedFeatures); diff != "" {
		t.Errorf("excluded features (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"no id", "S9"}, c.ExcludedScenarios); diff != "" {
		t.Errorf("excluded scenarios (-want +got):\n%s", diff)
	}
}

func TestClassify_FeatureImpliesEpic(t *testing.T) {
	c := Classify([]Row{{Epic: "E2", FeatureFilename: "g.feature", FeatureName: "G"}})
	if diff := cmp.Diff([]string{"E2"}, c.Epics); diff != "" {
		t.Errorf("epics (-want +got):\n%s", diff)
	}
}

func TestIngest(t *testing.T) {
	db, p := setupProject(t)
	ctx := context.Background()

	sum, err := Ingest(ctx, db, p, mustParse(t, sampleCSV))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if sum.Epics != 1 || sum.Features != 1 || sum.Scenarios != 2 {
		t.Errorf("summary = %+v", sum)
	}
	if !strings.Contains(sum.String(), "orphan.feature") {
		t.Errorf("summary message %q misses excluded feature", sum.String())
	}

	scenarios, err := ListScenarios(db, p, "E1", "F1")
	if err != nil {
		t.Fatal(err)
	}
	if len(scenarios) != 2 {
		t.Fatalf("scenarios = %+v", scenarios)
	}
	if scenarios[0].ScenarioID != "S1" || scenarios[0].IsOutline {
		t.Errorf("S1 = %+v", scenarios[0])
	}
	if !scenarios[1].IsOutline {
		t.Errorf("S2 should be an outline")
	}
	if diff := cmp.Diff([]string{"smoke"}, scenarios[0].Tags.Data()); diff != "" {
		t.Errorf("S1 tags (-want +got):\n%s", diff)
	}

	features, err := ListFeatures(db, p, "E1")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"smoke", "regression"}, features[0].Tags.Data()); diff != "" {
		t.Errorf("feature tags (-want +got):\n%s", diff)
	}

	var count int64
	db.Model(&models.Feature{}).Where("filename = ?", "orphan.feature").Count(&count)
	if count != 0 {
		t.Error("excluded feature was persisted")
	}
}

func TestIngest_IdempotentAndUndeletes(t *testing.T) {
	db, p := setupProject(t)
	ctx := context.Background()
	rows := mustParse(t, sampleCSV)

	if _, err := Ingest(ctx, db, p, rows); err != nil {
		t.Fatal(err)
	}
	if err := SoftDeleteScenario(db, p, "E1", "F1", "S2"); err != nil {
		t.Fatalf("SoftDeleteScenario: %v", err)
	}
	live, _ := ListScenarios(db, p, "E1", "F1")
	if len(live) != 1 {
		t.Fatalf("live after delete = %d, want 1", len(live))
	}

	if _, err := Ingest(ctx, db, p, rows); err != nil {
		t.Fatalf("re-Ingest: %v", err)
	}
	live, _ = ListScenarios(db, p, "E1", "F1")
	if len(live) != 2 {
		t.Errorf("live after re-import = %d, want 2", len(live))
	}

	var epics, features, scenarios int64
	db.Model(&models.Epic{}).Count(&epics)
	db.Model(&models.Feature{}).Count(&features)
	db.Model(&models.Scenario{}).Count(&scenarios)
	if epics != 1 || features != 1 || scenarios != 2 {
		t.Errorf("rows = %d epics, %d features, %d scenarios; want 1, 1, 2", epics, features, scenarios)
	}
}

func TestIngest_UpdatesScenario(t *testing.T) {
	db, p := setupProject(t)
	ctx := context.Background()
	if _, err := Ingest(ctx, db, p, mustParse(t, sampleCSV)); err != nil {
		t.Fatal(err)
	}
	changed := header +
		"E1,f1.feature,F1,,,,,,,,\n" +
		"E1,f1.feature,F1,,,S1,login v2,,,,Given an admin\n"
	if _, err := Ingest(ctx, db, p, mustParse(t, changed)); err != nil {
		t.Fatal(err)
	}
	var s models.Scenario
	if err := db.Where("scenario_id = ?", "S1").First(&s).Error; err != nil {
		t.Fatal(err)
	}
	if s.Name != "login v2" || s.Steps != "Given an admin" {
		t.Errorf("S1 = %+v", s)
	}
}

func TestIngest_PurgesPlaceholders(t *testing.T) {
	db, p := setupProject(t)
	ctx := context.Background()
	if _, err := Ingest(ctx, db, p, mustParse(t, sampleCSV)); err != nil {
		t.Fatal(err)
	}
	var f models.Feature
	if err := db.Where("filename = ?", "f1.feature").First(&f).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&models.Scenario{FeatureID: f.ID, ScenarioID: PlaceholderPrefix + "1", Steps: "x"}).Error; err != nil {
		t.Fatal(err)
	}

	sum, err := Ingest(ctx, db, p, mustParse(t, sampleCSV))
	if err != nil {
		t.Fatal(err)
	}
	if sum.PlaceholdersPurge != 1 {
		t.Errorf("purged = %d, want 1", sum.PlaceholdersPurge)
	}
	var count int64
	db.Model(&models.Scenario{}).Where("scenario_id LIKE ?", PlaceholderPrefix+"%").Count(&count)
	if count != 0 {
		t.Errorf("placeholders left = %d", count)
	}
}
