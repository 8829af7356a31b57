package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Rokibul1022/video-gen-using-llms-api/internal/models"
)

// InitDB opens the Postgres connection used by the service.
func InitDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// MigrateDB auto-migrates the persisted models.
func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(&models.User{}, &models.Video{})
}
