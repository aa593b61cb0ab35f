package models

import "time"

// Bug is a defect raised against a version.
type Bug struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID   uint      `gorm:"not null;index" json:"-"`
	VersionID   uint      `gorm:"not null;index" json:"-"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	URL         string    `gorm:"size:512" json:"url,omitempty"`
	Criticality string    `gorm:"size:16;not null" json:"criticality"`
	Status      string    `gorm:"size:24;default:open;index" json:"status"`
	CreatedAt   time.Time `json:"created"`
	UpdatedAt   time.Time `json:"updated"`

	VersionName string     `gorm:"-:all" json:"version"`
	RelatedTo   []BugIssue `gorm:"foreignKey:BugID" json:"related_to"`
}

// BugIssue links a bug to the ticket, scenario execution and campaign
// occurrence it was found in.
type BugIssue struct {
	ID                  uint   `gorm:"primaryKey;autoIncrement" json:"-"`
	BugID               uint   `gorm:"not null;uniqueIndex:idx_bug_issue" json:"-"`
	TicketReference     string `gorm:"size:128;not null;uniqueIndex:idx_bug_issue" json:"ticket_reference"`
	ScenarioExecutionID uint   `gorm:"not null;uniqueIndex:idx_bug_issue" json:"scenario_execution_id"`
	CampaignOccurrence  int    `gorm:"not null;uniqueIndex:idx_bug_issue" json:"campaign_occurrence"`
}

// TableName matches the historical table name.
func (BugIssue) TableName() string { return "bugs_issues" }
