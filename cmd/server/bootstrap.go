package main

import (
	"time"

	"github.com/mergewise/mergewise/internal/config"
	"github.com/mergewise/mergewise/internal/handlers"
	"github.com/mergewise/mergewise/internal/llm"
	"github.com/mergewise/mergewise/internal/models"
	"github.com/mergewise/mergewise/internal/review"
	"github.com/mergewise/mergewise/internal/services"
	"github.com/mergewise/mergewise/internal/utils"
	"github.com/mergewise/mergewise/pkg/logger"
)

// appServices holds the wired services and handlers the router needs.
type appServices struct {
	taskQueue services.TaskQueue
	worker    *services.Worker
	scheduler *services.Scheduler

	authHandler         *handlers.AuthHandler
	webhookHandler      *handlers.WebhookHandler
	repositoryHandler   *handlers.RepositoryHandler
	reviewRunHandler    *handlers.ReviewRunHandler
	modelConfigHandler  *handlers.ModelConfigHandler
	systemConfigHandler *handlers.SystemConfigHandler
}

// bootstrap initializes the database, the review execution path and all
// HTTP handlers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	if err := models.SeedDefaultData(); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default data")
	}

	db := models.GetDB()
	sysCfg := services.NewSystemConfigService(db)
	authService := services.NewAuthService(db, cfg.JWT.ExpireHour)
	if err := authService.EnsureAdmin(); err != nil {
		logger.Warn().Err(err).Msg("Failed to create admin user")
	}

	// Review execution path: runner behind the task queue, plus the
	// asynq worker when Redis is enabled.
	runner := services.NewReviewRunner(db, llm.NewClient(), &cfg.Model)
	taskQueue := services.NewTaskQueue(cfg)
	if syncQueue, ok := taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(runner.Process)
	}
	// The worker only runs when the queue actually went async; an
	// unreachable Redis falls back to the sync queue above.
	var worker *services.Worker
	if taskQueue.IsAsync() {
		worker = services.NewWorker(&cfg.Redis)
		if worker != nil {
			worker.SetProcessor(runner.Process)
			if err := worker.Start(); err != nil {
				logger.Fatalf("Failed to start async worker: %v", err)
			}
		}
	}

	dedupWindow := time.Duration(sysCfg.GetInt(services.ConfigDedupWindowMinutes, 5)) * time.Minute
	trigger := review.NewTrigger(db, dedupWindow, func(runID uint) {
		if err := taskQueue.Enqueue(&services.ReviewTask{RunID: runID}); err != nil {
			logger.Errorf("Failed to enqueue review run %d: %v", runID, err)
		}
	})

	scheduler := services.NewScheduler(db)
	scheduler.Start()

	runService := services.NewReviewRunService(db)
	repoService := services.NewRepositoryService(db)

	return &appServices{
		taskQueue: taskQueue,
		worker:    worker,
		scheduler: scheduler,

		authHandler:         handlers.NewAuthHandler(authService),
		webhookHandler:      handlers.NewWebhookHandler(db, trigger),
		repositoryHandler:   handlers.NewRepositoryHandler(repoService),
		reviewRunHandler:    handlers.NewReviewRunHandler(runService, repoService, trigger),
		modelConfigHandler:  handlers.NewModelConfigHandler(services.NewModelConfigService(db)),
		systemConfigHandler: handlers.NewSystemConfigHandler(sysCfg),
	}
}

// shutdown stops the background machinery in reverse start order.
func (s *appServices) shutdown() {
	s.scheduler.Stop()
	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		s.taskQueue.Close()
	}
	logger.Info().Msg("Background services stopped")
}
