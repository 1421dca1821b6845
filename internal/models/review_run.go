package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// Review run lifecycle states.
const (
	RunStatusPending   = "pending"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Event types that start a run.
const (
	EventMergeRequest = "merge_request"
	EventPush         = "push"
)

// BatchReviewKey is the synthetic file key used when all files are reviewed
// in a single model call.
const BatchReviewKey = "batch_review"

// ReviewRun is one execution of the review pipeline for one change.
// MRNumber zero means the run reviews a pushed commit rather than a
// merge request.
type ReviewRun struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	RepositoryID uint        `gorm:"index;not null" json:"repository_id"`
	Repository   *Repository `gorm:"foreignKey:RepositoryID" json:"repository,omitempty"`
	EventType    string      `gorm:"size:50;not null" json:"event_type"`
	MRNumber     int         `gorm:"index" json:"mr_number"`
	SourceBranch string      `gorm:"size:200" json:"source_branch"`
	TargetBranch string      `gorm:"size:200" json:"target_branch"`
	CommitSHA    string      `gorm:"size:100;index" json:"commit_sha"`
	ShortSHA     string      `gorm:"size:16" json:"short_sha"`
	Author       string      `gorm:"size:200" json:"author"`
	AuthorHandle string      `gorm:"size:200" json:"author_handle"`
	Title        string      `gorm:"size:500" json:"title"`
	Description  string      `gorm:"type:text" json:"description"`

	Status         string `gorm:"size:50;default:pending;index" json:"status"`
	TotalFiles     int    `json:"total_files"`
	ReviewedFiles  int    `json:"reviewed_files"`
	CriticalIssues int    `json:"critical_issues"`
	NormalIssues   int    `json:"normal_issues"`
	Suggestions    int    `json:"suggestions"`
	Summary        string `gorm:"type:text" json:"summary"`

	// Raw model responses and prompts keyed by file path (or BatchReviewKey),
	// JSON-encoded for audit and replay.
	FileResponses string `gorm:"type:text" json:"-"`
	FilePrompts   string `gorm:"type:text" json:"-"`

	ModelProvider string `gorm:"size:50" json:"model_provider"`
	ModelName     string `gorm:"size:100" json:"model_name"`
	ErrorMessage  string `gorm:"type:text" json:"error_message"`

	// Placeholder comment created when the run starts; publish must update
	// it in place rather than create a new comment. Immutable once set.
	PlaceholderDiscussionID string `gorm:"size:100" json:"placeholder_discussion_id"`
	PlaceholderNoteID       int    `json:"placeholder_note_id"`

	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (ReviewRun) TableName() string { return "review_runs" }

// IsTerminal reports whether the run reached a final state.
func (r *ReviewRun) IsTerminal() bool {
	return r.Status == RunStatusCompleted || r.Status == RunStatusFailed
}

// ResponseMap decodes the per-file model responses.
func (r *ReviewRun) ResponseMap() map[string]string {
	return decodeStringMap(r.FileResponses)
}

// PromptMap decodes the per-file prompts.
func (r *ReviewRun) PromptMap() map[string]string {
	return decodeStringMap(r.FilePrompts)
}

// SetResponseMap encodes and stores the per-file model responses.
func (r *ReviewRun) SetResponseMap(m map[string]string) {
	r.FileResponses = encodeStringMap(m)
}

// SetPromptMap encodes and stores the per-file prompts.
func (r *ReviewRun) SetPromptMap(m map[string]string) {
	r.FilePrompts = encodeStringMap(m)
}

func decodeStringMap(s string) map[string]string {
	m := make(map[string]string)
	if s == "" {
		return m
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return make(map[string]string)
	}
	return m
}

func encodeStringMap(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	data, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(data)
}
