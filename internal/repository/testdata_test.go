package repository

import (
	"strings"
	"testing"

	"github.com/zulandar/testyard/internal/alias"
	"github.com/zulandar/testyard/internal/dbtest"
	"github.com/zulandar/testyard/internal/models"
	"github.com/zulandar/testyard/internal/project"
	"gorm.io/gorm"
)

const header = "epic,feature_filename,feature_name,feature_description,feature_tags,scenario_id,scenario_name,scenario_tags,scenario_description,scenario_is_outline,scenario_steps\n"

// sampleCSV has one epic, one feature with two scenarios, an orphan feature
// and two excluded scenarios.
const sampleCSV = header +
	"E1,,,,,,,,,,\n" +
	"E1,f1.feature,F1,first feature,smoke regression,,,,,,\n" +
	"E1,f1.feature,F1,,,S1,login,smoke,logs in,false,Given a user\n" +
	"E1,f1.feature,F1,,,S2,logout,,logs out,TRUE,Given a session\n" +
	",orphan.feature,Orphan,,,,,,,,\n" +
	"E1,f1.feature,F1,,,,no id,,,,Given nothing\n" +
	"E1,missing.feature,X,,,S9,ghost,,,,Given a ghost\n"

func setupProject(t *testing.T) (*gorm.DB, *models.Project) {
	t.Helper()
	db := dbtest.Open(t)
	p, err := project.Register(db, alias.NewRegistry(), "P")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return db, p
}

func mustParse(t *testing.T, data string) []Row {
	t.Helper()
	rows, err := ParseCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	return rows
}
