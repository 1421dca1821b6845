package models

import (
	"time"

	"gorm.io/gorm"
)

// Finding severities.
const (
	SeverityCritical   = "critical"
	SeverityNormal     = "normal"
	SeveritySuggestion = "suggestion"
)

// Finding is one severity-classified issue extracted from a model response.
// Only a bounded number of critical findings are persisted per run; the
// rest exist solely in the run's aggregate counts.
type Finding struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	ReviewRunID uint           `gorm:"index;not null" json:"review_run_id"`
	FilePath    string         `gorm:"size:500" json:"file_path"`
	StartLine   int            `json:"start_line"`
	EndLine     int            `json:"end_line"` // 0 when the finding is a single line
	Severity    string         `gorm:"size:20;default:normal" json:"severity"`
	Content     string         `gorm:"type:text" json:"content"`
	DiffHunk    string         `gorm:"type:text" json:"diff_hunk"`
	Posted      bool           `gorm:"default:false" json:"posted"`
	CommentID   string         `gorm:"size:100" json:"comment_id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Finding) TableName() string { return "findings" }
