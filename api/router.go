package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/bossjones/boss-bot/api/handlers"
	"github.com/bossjones/boss-bot/api/middleware"
	"github.com/bossjones/boss-bot/internal/app"
	"github.com/bossjones/boss-bot/pkg/logger"
)

// SetupRouter wires middleware, handlers and routes for the HTTP API.
func SetupRouter(
	queue *app.QueueManager,
	manager *app.DownloadManager,
	events *logger.MultiLogger,
	log *zap.Logger,
	logsDir string,
	version string,
) *gin.Engine {
	// Set Gin mode
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Middleware
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log, events))
	router.Use(middleware.Metrics())

	// Health and metrics endpoints
	healthHandler := handlers.NewHealthHandler(queue, manager, version)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Download endpoints
		downloadHandler := handlers.NewDownloadHandler(manager, log)
		downloads := v1.Group("/downloads")
		{
			downloads.POST("", downloadHandler.AddDownload)
			downloads.GET("", downloadHandler.ListDownloads)
			downloads.GET("/stats", downloadHandler.GetStats)
			downloads.GET("/:id", downloadHandler.GetDownload)
			downloads.POST("/:id/cancel", downloadHandler.CancelDownload)
			downloads.POST("/:id/requeue", downloadHandler.RequeueDownload)
			downloads.DELETE("/:id", downloadHandler.DeleteDownload)
		}

		// Archived history
		v1.GET("/history", downloadHandler.GetHistory)

		// Log endpoints
		logHandler := handlers.NewLogHandler(logsDir)
		streamHandler := handlers.NewLogStreamHandler(logsDir, log)
		logs := v1.Group("/logs")
		{
			logs.GET("/categories", logHandler.GetCategories)
			logs.GET("/:category", logHandler.GetLogs)
			logs.GET("/:category/search", logHandler.SearchLogs)
			logs.GET("/:category/export", logHandler.ExportLogs)
			logs.GET("/:category/stream", streamHandler.Stream)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
