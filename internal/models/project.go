package models

import "time"

// Project is a tracked software project. Alias is the durable key; Name is
// display only.
type Project struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	Name      string    `gorm:"size:63;not null" json:"name"`
	Alias     string    `gorm:"size:63;not null;uniqueIndex" json:"alias"`
	CreatedAt time.Time `json:"created"`
}

// Version is a release of a project moving through the version lifecycle.
type Version struct {
	ID          uint       `gorm:"primaryKey;autoIncrement" json:"-"`
	ProjectID   uint       `gorm:"not null;uniqueIndex:idx_project_version" json:"-"`
	Version     string     `gorm:"size:64;not null;uniqueIndex:idx_project_version" json:"version"`
	Status      string     `gorm:"size:32;default:recorded;index" json:"status"`
	Started     *time.Time `json:"started,omitempty"`
	EndForecast *time.Time `json:"end_forecast,omitempty"`
	CreatedAt   time.Time  `json:"created"`
	UpdatedAt   time.Time  `json:"updated"`

	Statistics TicketStatistics `gorm:"embedded;embeddedPrefix:stat_" json:"statistics"`
	BugCounts  BugCounts        `gorm:"embedded;embeddedPrefix:bugs_" json:"bug_counts"`

	Project Project `gorm:"foreignKey:ProjectID" json:"-"`
}

// TicketStatistics is the per-ticket-status histogram of a version.
type TicketStatistics struct {
	Open       int `gorm:"not null;default:0" json:"open"`
	Cancelled  int `gorm:"not null;default:0" json:"cancelled"`
	Blocked    int `gorm:"not null;default:0" json:"blocked"`
	InProgress int `gorm:"not null;default:0" json:"in_progress"`
	Done       int `gorm:"not null;default:0" json:"done"`
}

// Total returns the number of tickets counted by the histogram.
func (s TicketStatistics) Total() int {
	return s.Open + s.Cancelled + s.Blocked + s.InProgress + s.Done
}

// BugCounts is the {open,closed} x {blocking,major,minor} bug histogram.
type BugCounts struct {
	Open   CriticalityCounts `gorm:"embedded;embeddedPrefix:open_" json:"open"`
	Closed CriticalityCounts `gorm:"embedded;embeddedPrefix:closed_" json:"closed"`
}

// CriticalityCounts counts bugs per criticality.
type CriticalityCounts struct {
	Blocking int `gorm:"not null;default:0" json:"blocking"`
	Major    int `gorm:"not null;default:0" json:"major"`
	Minor    int `gorm:"not null;default:0" json:"minor"`
}

// Ticket is a development ticket tracked against a version.
type Ticket struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	ProjectID        uint      `gorm:"not null;uniqueIndex:idx_project_reference" json:"-"`
	Reference        string    `gorm:"size:128;not null;uniqueIndex:idx_project_reference" json:"reference"`
	Description      string    `gorm:"type:text" json:"description"`
	Status           string    `gorm:"size:16;default:open;index" json:"status"`
	CurrentVersionID uint      `gorm:"not null;index" json:"-"`
	CreatedAt        time.Time `json:"created"`
	UpdatedAt        time.Time `json:"updated"`

	// VersionName is filled by the ticket store from CurrentVersion.
	VersionName string `gorm:"-:all" json:"current_version"`

	CurrentVersion Version `gorm:"foreignKey:CurrentVersionID" json:"-"`
}
