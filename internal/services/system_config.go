package services

import (
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mergewise/mergewise/internal/models"
)

// Tunables stored in the system_configs table.
const (
	ConfigBatchThreshold     = "review.batch_threshold"
	ConfigCriticalCap        = "review.critical_findings_cap"
	ConfigDedupWindowMinutes = "review.dedup_window_minutes"
	ConfigRetentionDays      = "review.retention_days"
	ConfigStaleRunMinutes    = "review.stale_run_minutes"
)

// SystemConfigService reads and writes the key/value tunables.
type SystemConfigService struct {
	db *gorm.DB
}

func NewSystemConfigService(db *gorm.DB) *SystemConfigService {
	return &SystemConfigService{db: db}
}

// Get returns the stored value, or the fallback when the key is absent.
func (s *SystemConfigService) Get(key, fallback string) string {
	var cfg models.SystemConfig
	if err := s.db.Where("key = ?", key).First(&cfg).Error; err != nil {
		return fallback
	}
	return cfg.Value
}

// GetInt returns the stored value as an int, or the fallback when absent
// or unparseable.
func (s *SystemConfigService) GetInt(key string, fallback int) int {
	v := s.Get(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// Set upserts one key.
func (s *SystemConfigService) Set(key, value string) error {
	cfg := models.SystemConfig{Key: key, Value: value}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&cfg).Error
}

// List returns every stored tunable.
func (s *SystemConfigService) List() ([]models.SystemConfig, error) {
	var items []models.SystemConfig
	if err := s.db.Order("key").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
