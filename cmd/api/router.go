package api

import (
	"net/http"

	authdelivery "deskmail-backend/internal/auth/delivery"
	jobdelivery "deskmail-backend/internal/job/delivery"
	syncdelivery "deskmail-backend/internal/sync/delivery"
	tenantdelivery "deskmail-backend/internal/tenant/delivery"
	threaddelivery "deskmail-backend/internal/thread/delivery"
	"deskmail-backend/pkg/config"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	r *gin.Engine,
	cfg *config.Config,
	threadHandler *threaddelivery.ThreadHandler,
	syncHandler *syncdelivery.SyncHandler,
	tenantHandler *tenantdelivery.TenantHandler,
	jobHandler *jobdelivery.JobHandler,
) {
	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Pub/Sub push webhook (authenticated by webhook token, not JWT)
		api.POST("/push", syncHandler.HandlePush)

		// Agent routes (protected)
		threads := api.Group("/threads")
		threads.Use(authdelivery.AuthMiddleware(cfg.JWTSecret))
		{
			threads.GET("", threadHandler.ListThreads)
			threads.GET("/workload", threadHandler.GetWorkload)
			threads.GET("/:id", threadHandler.GetThread)
			threads.PATCH("/:id", threadHandler.UpdateThread)
			threads.POST("/:id/reply", threadHandler.ReplyToThread)
		}

		api.GET("/audit", authdelivery.AuthMiddleware(cfg.JWTSecret), tenantHandler.GetAuditLog)

		// Sync triggers (protected, admin)
		api.POST("/sync", authdelivery.AuthMiddleware(cfg.JWTSecret), authdelivery.AdminOnly(), syncHandler.TriggerSync)
		api.POST("/watch", authdelivery.AuthMiddleware(cfg.JWTSecret), authdelivery.AdminOnly(), syncHandler.WatchMailbox)

		// Admin routes (protected, admin)
		admin := api.Group("/admin")
		admin.Use(authdelivery.AuthMiddleware(cfg.JWTSecret), authdelivery.AdminOnly())
		{
			admin.GET("/settings", tenantHandler.GetSettings)
			admin.PUT("/settings", tenantHandler.UpdateSettings)
			admin.GET("/routing", tenantHandler.GetRoutingRules)
			admin.PUT("/routing", tenantHandler.UpdateRoutingRules)
			admin.GET("/jobs", jobHandler.ListJobs)
			admin.POST("/jobs/run", jobHandler.RunJobs)
			admin.GET("/ai-usage", tenantHandler.GetAIUsage)
		}
	}
}
