package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"watch-reward-system/eligibility"
	"watch-reward-system/models"
)

// newTestDB opens a private in-memory database with the service schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.Video{},
		&models.WatchRecord{},
		&models.UserBalance{},
		&models.LedgerEntry{},
	))
	return db
}

func seedVideo(t *testing.T, db *gorm.DB, title string, budget int64) *models.Video {
	t.Helper()
	v := &models.Video{
		Title:           title,
		MediaRef:        "https://cdn.example.com/" + title + ".mp4",
		PointBudget:     budget,
		DurationSeconds: 120,
		Status:          models.VideoStatusPublished,
	}
	require.NoError(t, db.Create(v).Error)
	return v
}

// t0 is a fixed instant in the middle of a UTC day.
var t0 = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

func newTestLedger(t *testing.T) (*LedgerService, *clockwork.FakeClock, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	clock := clockwork.NewFakeClockAt(t0)
	return NewLedgerService(db, eligibility.Daily(time.UTC), clock), clock, db
}
