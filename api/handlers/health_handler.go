package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bossjones/boss-bot/internal/app"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	queue   *app.QueueManager
	manager *app.DownloadManager
	version string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(queue *app.QueueManager, manager *app.DownloadManager, version string) *HealthHandler {
	return &HealthHandler{
		queue:   queue,
		manager: manager,
		version: version,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Queue   struct {
		Running  bool `json:"running"`
		Draining bool `json:"draining"`
	} `json:"queue"`
	Platforms []string `json:"platforms"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	response := HealthResponse{
		Status:    "ok",
		Version:   h.version,
		Platforms: h.manager.Platforms(),
	}
	response.Queue.Running = h.queue.IsRunning()
	response.Queue.Draining = h.queue.IsDraining()

	c.JSON(http.StatusOK, response)
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if !h.queue.IsRunning() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "queue manager not running",
		})
		return
	}
	if h.queue.IsDraining() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "queue draining",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
