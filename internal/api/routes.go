package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupRoutes registers the REST endpoints and mounts the dashboard socket at /ws.
func SetupRoutes(router *gin.Engine, h *Handler, ws http.Handler) {
	router.GET("/health", h.Health)

	api := router.Group("/api")
	{
		api.GET("/forecast", h.GetForecast)
		api.GET("/models", h.GetModels)
		api.PUT("/model", h.SetModel)
		api.GET("/metrics", h.GetMetrics)
		api.POST("/refresh", h.Refresh)
		api.GET("/history", h.GetHistory)
		api.GET("/horizon", h.GetHorizon)
	}

	if ws != nil {
		router.GET("/ws", gin.WrapH(ws))
	}
}

// NewRouter builds a gin engine with recovery and request logging.
func NewRouter(h *Handler, ws http.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(h.logger))
	SetupRoutes(router, h, ws)
	return router
}
