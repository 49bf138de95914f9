package api

import (
	jobdelivery "deskmail-backend/internal/job/delivery"
	syncdelivery "deskmail-backend/internal/sync/delivery"
	tenantdelivery "deskmail-backend/internal/tenant/delivery"
	threaddelivery "deskmail-backend/internal/thread/delivery"
	"deskmail-backend/pkg/config"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	config        *config.Config
	threadHandler *threaddelivery.ThreadHandler
	syncHandler   *syncdelivery.SyncHandler
	tenantHandler *tenantdelivery.TenantHandler
	jobHandler    *jobdelivery.JobHandler
}

func NewHandler(
	cfg *config.Config,
	threadHandler *threaddelivery.ThreadHandler,
	syncHandler *syncdelivery.SyncHandler,
	tenantHandler *tenantdelivery.TenantHandler,
	jobHandler *jobdelivery.JobHandler,
) *Handler {
	return &Handler{
		config:        cfg,
		threadHandler: threadHandler,
		syncHandler:   syncHandler,
		tenantHandler: tenantHandler,
		jobHandler:    jobHandler,
	}
}

func (h *Handler) Start(addr string) error {
	r := gin.Default()
	gin.SetMode(gin.ReleaseMode)

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.config, h.threadHandler, h.syncHandler, h.tenantHandler, h.jobHandler)

	return r.Run(addr)
}
