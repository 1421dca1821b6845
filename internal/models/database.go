package models

import (
	"fmt"

	"github.com/mergewise/mergewise/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func InitDB(cfg *config.DatabaseConfig) error {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}

	DB = db
	return nil
}

func AutoMigrate() error {
	return DB.AutoMigrate(
		&User{},
		&Repository{},
		&ModelConfig{},
		&ReviewRun{},
		&Finding{},
		&SystemConfig{},
	)
}

func GetDB() *gorm.DB {
	return DB
}

// SeedDefaultData creates default system config rows if absent.
func SeedDefaultData() error {
	defaults := []SystemConfig{
		{Key: "review.batch_threshold", Value: "20", Label: "File count above which review switches to batch mode"},
		{Key: "review.critical_findings_cap", Value: "5", Label: "Max critical findings persisted per run"},
		{Key: "review.dedup_window_minutes", Value: "5", Label: "Duplicate trigger suppression window"},
		{Key: "review.retention_days", Value: "90", Label: "Review run retention in days"},
		{Key: "review.stale_run_minutes", Value: "30", Label: "Pending runs older than this are marked failed"},
	}

	for _, cfg := range defaults {
		var count int64
		DB.Model(&SystemConfig{}).Where("key = ?", cfg.Key).Count(&count)
		if count == 0 {
			if err := DB.Create(&cfg).Error; err != nil {
				return err
			}
		}
	}

	return nil
}
