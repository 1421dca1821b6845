package services

import (
	"time"

	"gorm.io/gorm"

	"github.com/mergewise/mergewise/internal/models"
	"github.com/mergewise/mergewise/pkg/logger"
	"github.com/mergewise/mergewise/pkg/response"
)

// ReviewRunService owns run listing, inspection, retry reset and the
// maintenance sweeps.
type ReviewRunService struct {
	db *gorm.DB
}

func NewReviewRunService(db *gorm.DB) *ReviewRunService {
	return &ReviewRunService{db: db}
}

type ReviewRunListParams struct {
	Page         int
	PageSize     int
	RepositoryID uint
	Status       string
	EventType    string
}

func (s *ReviewRunService) List(params ReviewRunListParams) ([]models.ReviewRun, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}

	query := s.db.Model(&models.ReviewRun{})
	if params.RepositoryID > 0 {
		query = query.Where("repository_id = ?", params.RepositoryID)
	}
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.EventType != "" {
		query = query.Where("event_type = ?", params.EventType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var runs []models.ReviewRun
	offset := (params.Page - 1) * params.PageSize
	err := query.Preload("Repository").
		Order("id DESC").
		Offset(offset).Limit(params.PageSize).
		Find(&runs).Error
	return runs, total, err
}

// GetByID returns the run with its repository and findings.
func (s *ReviewRunService) GetByID(id uint) (*models.ReviewRun, []models.Finding, error) {
	var run models.ReviewRun
	if err := s.db.Preload("Repository").First(&run, id).Error; err != nil {
		return nil, nil, err
	}

	var findings []models.Finding
	if err := s.db.Where("review_run_id = ?", id).
		Order("file_path, start_line").Find(&findings).Error; err != nil {
		return nil, nil, err
	}
	return &run, findings, nil
}

// Reset prepares a terminal run for re-execution: derived fields are
// cleared, prior findings deleted, status back to pending. The
// placeholder reference survives so publish updates the same comment.
func (s *ReviewRunService) Reset(id uint) (*models.ReviewRun, error) {
	var run models.ReviewRun
	if err := s.db.First(&run, id).Error; err != nil {
		return nil, err
	}
	if !run.IsTerminal() {
		return nil, response.NewConflict("run is still pending")
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("review_run_id = ?", id).Delete(&models.Finding{}).Error; err != nil {
			return err
		}
		return tx.Model(&run).Updates(map[string]interface{}{
			"status":          models.RunStatusPending,
			"total_files":     0,
			"reviewed_files":  0,
			"critical_issues": 0,
			"normal_issues":   0,
			"suggestions":     0,
			"summary":         "",
			"file_responses":  "",
			"file_prompts":    "",
			"model_provider":  "",
			"model_name":      "",
			"error_message":   "",
			"completed_at":    nil,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	logger.Infof("[ReviewRun] run %d reset for retry", id)
	run.Status = models.RunStatusPending
	return &run, nil
}

// MarkStaleFailed fails pending runs that started more than the given
// number of minutes ago, usually leftovers from a crashed process.
func (s *ReviewRunService) MarkStaleFailed(olderThanMinutes int) (int64, error) {
	cutoff := time.Now().Add(-time.Duration(olderThanMinutes) * time.Minute)
	res := s.db.Model(&models.ReviewRun{}).
		Where("status = ? AND created_at < ?", models.RunStatusPending, cutoff).
		Updates(map[string]interface{}{
			"status":        models.RunStatusFailed,
			"error_message": "run abandoned: exceeded the stale run limit",
			"completed_at":  time.Now(),
		})
	return res.RowsAffected, res.Error
}

// CleanupOlderThan deletes terminal runs, and their findings, past the
// retention period.
func (s *ReviewRunService) CleanupOlderThan(days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)

	var ids []uint
	if err := s.db.Model(&models.ReviewRun{}).
		Where("status IN ? AND created_at < ?", []string{models.RunStatusCompleted, models.RunStatusFailed}, cutoff).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("review_run_id IN ?", ids).Delete(&models.Finding{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.ReviewRun{}, ids).Error
	})
	return int64(len(ids)), err
}

// RunStats aggregates run outcomes for the digest log.
type RunStats struct {
	Total     int64
	Completed int64
	Failed    int64
	Critical  int64
}

// StatsSince aggregates runs created after the given time.
func (s *ReviewRunService) StatsSince(since time.Time) (*RunStats, error) {
	stats := &RunStats{}
	base := s.db.Model(&models.ReviewRun{}).Where("created_at > ?", since)

	if err := base.Session(&gorm.Session{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := base.Session(&gorm.Session{}).Where("status = ?", models.RunStatusCompleted).Count(&stats.Completed).Error; err != nil {
		return nil, err
	}
	if err := base.Session(&gorm.Session{}).Where("status = ?", models.RunStatusFailed).Count(&stats.Failed).Error; err != nil {
		return nil, err
	}

	var critical struct{ N int64 }
	err := s.db.Model(&models.ReviewRun{}).
		Select("COALESCE(SUM(critical_issues), 0) AS n").
		Where("created_at > ?", since).
		Scan(&critical).Error
	stats.Critical = critical.N
	return stats, err
}
