package models

import (
	"time"

	"gorm.io/gorm"
)

// Prompt modes for a repository's custom review prompt.
const (
	PromptModeExtend  = "extend"  // appended to the base system prompt
	PromptModeReplace = "replace" // used instead of the base system prompt
)

// Repository is a watched GitLab project.
type Repository struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Name            string         `gorm:"size:200;not null" json:"name"`
	URL             string         `gorm:"size:500;not null" json:"url"`
	GitLabProjectID int            `gorm:"column:gitlab_project_id;index;not null" json:"gitlab_project_id"`
	AccessToken     string         `gorm:"size:500" json:"-"`
	WebhookSecret   string         `gorm:"size:255" json:"-"`
	Active          bool           `gorm:"default:true" json:"active"`
	AutoReview      bool           `gorm:"default:true" json:"auto_review"`
	BranchPattern   string         `gorm:"size:1000" json:"branch_pattern"` // comma-separated globs, empty = all
	CustomPrompt    string         `gorm:"type:text" json:"custom_prompt"`
	PromptMode      string         `gorm:"size:20;default:extend" json:"prompt_mode"`
	ModelConfigID   *uint          `json:"model_config_id"` // repository default model
	CreatedBy       uint           `json:"created_by"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Repository) TableName() string { return "repositories" }
