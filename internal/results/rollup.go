// Package results ingests scenario-level test results and rolls them up to
// features and epics.
package results

import (
	"sort"

	"github.com/zulandar/testyard/internal/models"
)

// Result statuses.
const (
	StatusPassed  = "passed"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Statuses lists every result status.
var Statuses = []string{StatusPassed, StatusFailed, StatusSkipped}

// WorseOf combines two statuses: failed wins, two skips stay skipped, and
// anything else is passed.
func WorseOf(a, b string) string {
	switch {
	case a == StatusFailed || b == StatusFailed:
		return StatusFailed
	case a == StatusSkipped && b == StatusSkipped:
		return StatusSkipped
	default:
		return StatusPassed
	}
}

// SortForRollUp orders rows by epic then feature, the order RollUp expects.
func SortForRollUp(rows []models.ScenarioResult) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].EpicID != rows[j].EpicID {
			return rows[i].EpicID < rows[j].EpicID
		}
		return rows[i].FeatureID < rows[j].FeatureID
	})
}

// RollUp walks rows sorted by (epic, feature) once and emits one feature row
// per contiguous feature run and one epic row per contiguous epic run.
func RollUp(rows []models.ScenarioResult) ([]models.FeatureResult, []models.EpicResult) {
	if len(rows) == 0 {
		return nil, nil
	}

	var (
		features []models.FeatureResult
		epics    []models.EpicResult
	)
	head := rows[0]
	featureStatus, epicStatus := head.Status, head.Status
	feature, epic := head, head

	flushFeature := func() {
		features = append(features, models.FeatureResult{
			RunDate:    feature.RunDate,
			ProjectID:  feature.ProjectID,
			VersionID:  feature.VersionID,
			CampaignID: feature.CampaignID,
			EpicID:     feature.EpicID,
			FeatureID:  feature.FeatureID,
			Status:     featureStatus,
			IsPartial:  feature.IsPartial,
		})
	}
	flushEpic := func() {
		epics = append(epics, models.EpicResult{
			RunDate:    epic.RunDate,
			ProjectID:  epic.ProjectID,
			VersionID:  epic.VersionID,
			CampaignID: epic.CampaignID,
			EpicID:     epic.EpicID,
			Status:     epicStatus,
			IsPartial:  epic.IsPartial,
		})
	}

	for _, r := range rows[1:] {
		if r.FeatureID != feature.FeatureID || r.EpicID != feature.EpicID {
			flushFeature()
			feature, featureStatus = r, r.Status
		} else {
			featureStatus = WorseOf(featureStatus, r.Status)
		}
		if r.EpicID != epic.EpicID {
			flushEpic()
			epic, epicStatus = r, r.Status
		} else {
			epicStatus = WorseOf(epicStatus, r.Status)
		}
	}
	flushFeature()
	flushEpic()
	return features, epics
}
