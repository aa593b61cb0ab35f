package models

import (
	"time"

	"gorm.io/datatypes"
)

// User is a dashboard principal. Scopes maps a project alias (or "*") to a
// right, "admin" or "user".
type User struct {
	ID           uint                                  `gorm:"primaryKey;autoIncrement"`
	Username     string                                `gorm:"size:64;not null;uniqueIndex"`
	PasswordHash string                                `gorm:"size:72;not null"`
	Scopes       datatypes.JSONType[map[string]string] `gorm:"type:json"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Operation records an applied migration or setup step. (Type, OpOrder) is
// unique so each step runs once.
type Operation struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	Type        string `gorm:"size:32;not null;uniqueIndex:idx_operation"`
	OpOrder     int    `gorm:"not null;uniqueIndex:idx_operation"`
	Description string `gorm:"size:255"`
	CreatedAt   time.Time
}
