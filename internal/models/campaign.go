package models

import "time"

// Campaign is one execution instance of a test plan for a (project, version).
// Occurrence is a per-(project, version) sequence starting at 1.
type Campaign struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	ProjectID   uint      `gorm:"not null;uniqueIndex:idx_campaign_occurrence" json:"-"`
	VersionID   uint      `gorm:"not null;uniqueIndex:idx_campaign_occurrence" json:"-"`
	Occurrence  int       `gorm:"not null;uniqueIndex:idx_campaign_occurrence" json:"occurrence"`
	Description string    `gorm:"type:text" json:"description"`
	Status      string    `gorm:"size:16;default:recorded;index" json:"status"`
	CreatedAt   time.Time `json:"created"`
	UpdatedAt   time.Time `json:"updated"`

	Version Version          `gorm:"foreignKey:VersionID" json:"-"`
	Tickets []CampaignTicket `gorm:"foreignKey:CampaignID" json:"-"`
}

// CampaignTicket links a ticket reference to a campaign. It carries no state.
type CampaignTicket struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	CampaignID      uint   `gorm:"not null;uniqueIndex:idx_campaign_ticket"`
	TicketReference string `gorm:"size:128;not null;uniqueIndex:idx_campaign_ticket"`

	Scenarios []CampaignTicketScenario `gorm:"foreignKey:CampaignTicketID"`
}

// CampaignTicketScenario is a scenario execution: the status-carrying link
// between a campaign ticket and a repository scenario.
type CampaignTicketScenario struct {
	ID               uint   `gorm:"primaryKey;autoIncrement"`
	CampaignTicketID uint   `gorm:"not null;uniqueIndex:idx_campaign_ticket_scenario"`
	ScenarioID       uint   `gorm:"not null;uniqueIndex:idx_campaign_ticket_scenario"`
	Status           string `gorm:"size:16;default:recorded"`
	UpdatedAt        time.Time

	Scenario Scenario `gorm:"foreignKey:ScenarioID"`
}
