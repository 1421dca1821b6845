package main

import (
	"github.com/gin-gonic/gin"

	"github.com/mergewise/mergewise/internal/middleware"
	"github.com/mergewise/mergewise/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS())

	// Webhooks and login share a limiter so a misbehaving GitLab
	// instance cannot starve the API.
	limiter := middleware.NewRateLimiter(10, 20)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "mergewise"})
	})

	api := r.Group("/api")
	{
		// Public routes (signature-verified or rate-limited)
		api.POST("/webhook/gitlab", limiter.Middleware(), svc.webhookHandler.HandleGitLab)
		api.POST("/auth/login", limiter.Middleware(), svc.authHandler.Login)

		protected := api.Group("")
		protected.Use(middleware.AuthRequired())
		{
			protected.GET("/auth/me", svc.authHandler.Me)
			protected.POST("/auth/change-password", svc.authHandler.ChangePassword)

			protected.GET("/runs", svc.reviewRunHandler.List)
			protected.GET("/runs/:id", svc.reviewRunHandler.Get)
			protected.POST("/runs/:id/retry", svc.reviewRunHandler.Retry)

			protected.GET("/repositories", svc.repositoryHandler.List)
			protected.GET("/repositories/:id", svc.repositoryHandler.Get)

			protected.GET("/model-configs", svc.modelConfigHandler.List)
			protected.GET("/system-configs", svc.systemConfigHandler.List)
		}

		admin := api.Group("")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			admin.POST("/repositories", svc.repositoryHandler.Create)
			admin.PUT("/repositories/:id", svc.repositoryHandler.Update)
			admin.DELETE("/repositories/:id", svc.repositoryHandler.Delete)
			admin.POST("/repositories/:id/review", svc.reviewRunHandler.TriggerManual)

			admin.POST("/model-configs", svc.modelConfigHandler.Create)
			admin.PUT("/model-configs/:id", svc.modelConfigHandler.Update)
			admin.DELETE("/model-configs/:id", svc.modelConfigHandler.Delete)
			admin.POST("/model-configs/:id/set-default", svc.modelConfigHandler.SetDefault)

			admin.PUT("/system-configs", svc.systemConfigHandler.Set)
		}
	}
}
