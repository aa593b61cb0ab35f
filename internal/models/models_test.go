package models

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"
)

// gormTag extracts the gorm tag from a struct field.
func gormTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("gorm")
}

// assertGormTag checks that a struct field's gorm tag contains the expected value.
func assertGormTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := gormTag(t, typ, fieldName)
	if !strings.Contains(tag, expected) {
		t.Errorf("%s.%s gorm tag = %q, want to contain %q", typ.Name(), fieldName, tag, expected)
	}
}

// assertFieldType checks that a struct field has the expected Go type.
func assertFieldType(t *testing.T, typ reflect.Type, fieldName, expectedType string) {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	got := f.Type.String()
	if got != expectedType {
		t.Errorf("%s.%s type = %q, want %q", typ.Name(), fieldName, got, expectedType)
	}
}

func TestProject_Fields(t *testing.T) {
	typ := reflect.TypeOf(Project{})

	assertGormTag(t, typ, "Alias", "uniqueIndex")
	assertGormTag(t, typ, "Alias", "size:63")
	assertGormTag(t, typ, "Name", "not null")
}

func TestVersion_Fields(t *testing.T) {
	typ := reflect.TypeOf(Version{})

	assertGormTag(t, typ, "ProjectID", "uniqueIndex:idx_project_version")
	assertGormTag(t, typ, "Version", "uniqueIndex:idx_project_version")
	assertGormTag(t, typ, "Status", "default:recorded")
	assertGormTag(t, typ, "Statistics", "embeddedPrefix:stat_")
	assertGormTag(t, typ, "BugCounts", "embeddedPrefix:bugs_")

	assertFieldType(t, typ, "Started", "*time.Time")
	assertFieldType(t, typ, "EndForecast", "*time.Time")
	assertFieldType(t, typ, "Statistics", "models.TicketStatistics")
	assertFieldType(t, typ, "BugCounts", "models.BugCounts")
}

func TestVersion_JSONOmitsUnsetDates(t *testing.T) {
	b, err := json.Marshal(Version{Version: "1.0", Status: "recorded"})
	if err != nil {
		t.Fatal(err)
	}
	s := string(b)
	if strings.Contains(s, "started") || strings.Contains(s, "end_forecast") {
		t.Errorf("unset dates should be omitted: %s", s)
	}
	for _, key := range []string{`"statistics"`, `"bug_counts"`, `"in_progress"`, `"blocking"`} {
		if !strings.Contains(s, key) {
			t.Errorf("JSON missing %s: %s", key, s)
		}
	}
}

func TestTicketStatistics_Total(t *testing.T) {
	s := TicketStatistics{Open: 1, Cancelled: 2, Blocked: 3, InProgress: 4, Done: 5}
	if got := s.Total(); got != 15 {
		t.Errorf("Total() = %d, want 15", got)
	}
}

func TestTicket_Fields(t *testing.T) {
	typ := reflect.TypeOf(Ticket{})

	assertGormTag(t, typ, "Reference", "uniqueIndex:idx_project_reference")
	assertGormTag(t, typ, "ProjectID", "uniqueIndex:idx_project_reference")
	assertGormTag(t, typ, "Status", "default:open")
	assertGormTag(t, typ, "VersionName", "-:all")
	assertGormTag(t, typ, "CurrentVersion", "foreignKey:CurrentVersionID")
}

func TestRepository_Fields(t *testing.T) {
	epic := reflect.TypeOf(Epic{})
	assertGormTag(t, epic, "Name", "uniqueIndex:idx_epic_project_name")

	feature := reflect.TypeOf(Feature{})
	assertGormTag(t, feature, "Filename", "uniqueIndex:idx_feature_project_filename")
	assertGormTag(t, feature, "Tags", "type:json")
	assertGormTag(t, feature, "Epic", "foreignKey:EpicID")

	scenario := reflect.TypeOf(Scenario{})
	assertGormTag(t, scenario, "ScenarioID", "uniqueIndex:idx_scenario_feature_sid")
	assertGormTag(t, scenario, "FeatureID", "uniqueIndex:idx_scenario_feature_sid")
	assertGormTag(t, scenario, "IsDeleted", "default:false")
	assertFieldType(t, scenario, "IsOutline", "bool")
}

func TestCampaign_Fields(t *testing.T) {
	typ := reflect.TypeOf(Campaign{})

	for _, f := range []string{"ProjectID", "VersionID", "Occurrence"} {
		assertGormTag(t, typ, f, "uniqueIndex:idx_campaign_occurrence")
	}
	assertGormTag(t, typ, "Status", "default:recorded")
	assertFieldType(t, typ, "Tickets", "[]models.CampaignTicket")

	link := reflect.TypeOf(CampaignTicketScenario{})
	assertGormTag(t, link, "CampaignTicketID", "uniqueIndex:idx_campaign_ticket_scenario")
	assertGormTag(t, link, "ScenarioID", "uniqueIndex:idx_campaign_ticket_scenario")
	assertGormTag(t, link, "Status", "default:recorded")
}

func TestResults_TableNames(t *testing.T) {
	tests := []struct {
		model interface{ TableName() string }
		want  string
	}{
		{ScenarioResult{}, "scenario_result"},
		{FeatureResult{}, "feature_result"},
		{EpicResult{}, "epic_result"},
		{BugIssue{}, "bugs_issues"},
	}
	for _, tt := range tests {
		if got := tt.model.TableName(); got != tt.want {
			t.Errorf("%T.TableName() = %q, want %q", tt.model, got, tt.want)
		}
	}
}

func TestBug_JSON(t *testing.T) {
	b := Bug{
		ID:          7,
		Title:       "crash",
		Criticality: "major",
		Status:      "open",
		VersionName: "1.0",
		CreatedAt:   time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		RelatedTo:   []BugIssue{{TicketReference: "T-1", ScenarioExecutionID: 3, CampaignOccurrence: 1}},
	}
	data, err := json.Marshal(b)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got["version"] != "1.0" {
		t.Errorf("version = %v, want 1.0", got["version"])
	}
	if _, ok := got["url"]; ok {
		t.Error("empty url should be omitted")
	}
	related, ok := got["related_to"].([]any)
	if !ok || len(related) != 1 {
		t.Fatalf("related_to = %v", got["related_to"])
	}
	if rel := related[0].(map[string]any); rel["ticket_reference"] != "T-1" {
		t.Errorf("ticket_reference = %v", rel["ticket_reference"])
	}
}

func TestUser_Fields(t *testing.T) {
	typ := reflect.TypeOf(User{})

	assertGormTag(t, typ, "Username", "uniqueIndex")
	assertGormTag(t, typ, "Scopes", "type:json")

	op := reflect.TypeOf(Operation{})
	assertGormTag(t, op, "Type", "uniqueIndex:idx_operation")
	assertGormTag(t, op, "OpOrder", "uniqueIndex:idx_operation")
}
