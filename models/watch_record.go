package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WatchRecord is one credited completion. The unique index guarantees at most
// one record per (user, video, eligibility window).
type WatchRecord struct {
	ID               string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID           string    `gorm:"not null;uniqueIndex:idx_watch_window,priority:1;index:idx_watch_latest,priority:1" json:"user_id"`
	VideoID          string    `gorm:"not null;uniqueIndex:idx_watch_window,priority:2;index:idx_watch_latest,priority:2" json:"video_id"`
	WindowKey        string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_watch_window,priority:3" json:"window_key"`
	WatchTimeSeconds int       `gorm:"not null;default:0" json:"watch_time_seconds"`
	CompletedAt      time.Time `gorm:"not null;index:idx_watch_latest,priority:3" json:"completed_at"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (r *WatchRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
