package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LedgerReason string

const (
	LedgerReasonWatchReward LedgerReason = "watch_reward"
)

// LedgerEntry is the append-only audit row written with every balance change.
type LedgerEntry struct {
	ID            string       `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID        string       `gorm:"not null;index:idx_ledger_user_created,priority:1" json:"user_id"`
	Delta         int64        `gorm:"not null" json:"delta"`
	Reason        LedgerReason `gorm:"type:varchar(32);not null" json:"reason"`
	VideoID       string       `gorm:"index" json:"video_id,omitempty"`
	WatchRecordID string       `gorm:"index" json:"watch_record_id,omitempty"`
	BalanceAfter  int64        `gorm:"not null" json:"balance_after"`
	CreatedAt     time.Time    `gorm:"not null;index:idx_ledger_user_created,priority:2" json:"created_at"`
}

func (e *LedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
