package models

import (
	"time"
)

// UserBalance holds durable points. Only the ledger mutates it.
type UserBalance struct {
	UserID       string `gorm:"primaryKey;type:varchar(64)" json:"user_id"` // links to profile service
	Points       int64  `gorm:"not null;default:0" json:"points"`
	WatchedCount int64  `gorm:"not null;default:0" json:"watched_count"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
