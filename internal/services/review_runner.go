package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/mergewise/mergewise/internal/config"
	"github.com/mergewise/mergewise/internal/llm"
	"github.com/mergewise/mergewise/internal/models"
	"github.com/mergewise/mergewise/internal/review"
	"github.com/mergewise/mergewise/internal/vcs"
	"github.com/mergewise/mergewise/pkg/logger"
)

// ReviewRunner executes queued review runs. It binds a GitLab client to
// the run's repository and builds a pipeline with the current tunables.
type ReviewRunner struct {
	db       *gorm.DB
	invoker  llm.Invoker
	sysCfg   *SystemConfigService
	fallback llm.ModelSpec
}

func NewReviewRunner(db *gorm.DB, invoker llm.Invoker, modelCfg *config.ModelConfig) *ReviewRunner {
	r := &ReviewRunner{
		db:      db,
		invoker: invoker,
		sysCfg:  NewSystemConfigService(db),
	}
	if modelCfg != nil {
		r.fallback = llm.ModelSpec{
			Provider: modelCfg.Provider,
			BaseURL:  modelCfg.BaseURL,
			APIKey:   modelCfg.APIKey,
			Model:    modelCfg.Model,
		}
	}
	return r
}

// Process is the TaskQueue/Worker handler for one review task.
func (r *ReviewRunner) Process(ctx context.Context, task *ReviewTask) error {
	var run models.ReviewRun
	if err := r.db.Preload("Repository").First(&run, task.RunID).Error; err != nil {
		return fmt.Errorf("load run %d: %w", task.RunID, err)
	}
	if run.Repository == nil {
		return fmt.Errorf("run %d has no repository", task.RunID)
	}

	info, err := vcs.ParseProjectURL(run.Repository.URL)
	if err != nil {
		return err
	}
	client := vcs.NewGitLabClient(info.BaseURL, run.Repository.GitLabProjectID, run.Repository.AccessToken)

	opts := review.Options{
		BatchThreshold: r.sysCfg.GetInt(ConfigBatchThreshold, 20),
		CriticalCap:    r.sysCfg.GetInt(ConfigCriticalCap, 5),
		FallbackModel:  r.fallback,
	}

	logger.Infof("[Runner] executing run %d for %s", run.ID, run.Repository.Name)
	return review.NewPipeline(r.db, client, r.invoker, opts).Execute(ctx, run.ID)
}
