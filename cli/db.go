package cli

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"watch-reward-system/models"
)

func openDB(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Migrate creates or updates the service schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Video{},
		&models.WatchRecord{},
		&models.UserBalance{},
		&models.LedgerEntry{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
