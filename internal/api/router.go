package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"engagement-service/internal/config"
	"engagement-service/internal/logging"
	"engagement-service/internal/providers"
)

func NewRouter(svc Engagement, hub *providers.Hub, logger *logging.Logger, cfg config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	basePath := cfg.API.BasePath
	if basePath == "" {
		basePath = "/api/v0"
	}

	h := NewHandler(svc, hub, logger)
	api := r.Group(basePath)
	{
		// Inbox
		api.GET("/leads/ranked", h.RankLeads)
		api.GET("/leads/:id/sla", h.GetLeadSla)
		api.GET("/leads/:id/hours-without-response", h.GetHoursWithoutResponse)
		api.POST("/leads/:id/messages", h.AppendMessage)
		api.POST("/leads/:id/messages/:message_id/read", h.MarkRead)

		// Follow-ups
		api.GET("/follow-ups", h.GetFollowUps)
		api.POST("/deals/:id/contacted", h.MarkContacted)
		api.POST("/deals/:id/postpone", h.Postpone)
		api.POST("/deals/:id/discard", h.Discard)

		// Notifications
		api.GET("/notifications/suppressed", h.GetSuppressed)
		api.POST("/evaluate", h.Evaluate)
		api.GET("/ws", h.ServeWebSocket)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}
