package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bossjones/boss-bot/internal/app"
	"github.com/bossjones/boss-bot/internal/domain"
)

// DownloadHandler handles download-related HTTP requests
type DownloadHandler struct {
	manager *app.DownloadManager
	logger  *zap.Logger
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(manager *app.DownloadManager, logger *zap.Logger) *DownloadHandler {
	return &DownloadHandler{
		manager: manager,
		logger:  logger,
	}
}

// AddDownloadRequest represents a request to add a download
type AddDownloadRequest struct {
	URL         string         `json:"url" binding:"required"`
	UserID      string         `json:"user_id,omitempty"`
	Platform    string         `json:"platform,omitempty"`
	Priority    int            `json:"priority,omitempty"`
	Preferences map[string]any `json:"preferences,omitempty"`
}

// statusFor maps orchestration errors onto HTTP status codes. Errors outside
// the sentinel set fall back to the given status.
func statusFor(err error, fallback int) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrQueueFull):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrQueueDraining):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrAlreadyTerminal), errors.Is(err, domain.ErrNotTerminal):
		return http.StatusConflict
	default:
		return fallback
	}
}

// AddDownload handles POST /api/v1/downloads
func (h *DownloadHandler) AddDownload(c *gin.Context) {
	var req AddDownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	prefs := make(map[string]any, len(req.Preferences)+1)
	for k, v := range req.Preferences {
		prefs[k] = v
	}
	if req.Platform != "" {
		prefs["platform"] = req.Platform
	}
	if len(prefs) == 0 {
		prefs = nil
	}

	item, err := h.manager.Submit(req.URL, req.UserID, prefs, req.Priority)
	if err != nil {
		h.logger.Warn("Failed to add download", zap.String("url", req.URL), zap.Error(err))
		c.JSON(statusFor(err, http.StatusBadRequest), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, item)
}

// GetDownload handles GET /api/v1/downloads/:id
func (h *DownloadHandler) GetDownload(c *gin.Context) {
	item, err := h.manager.Status(c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err, http.StatusInternalServerError), gin.H{"error": "download not found"})
		return
	}

	c.JSON(http.StatusOK, item)
}

// ListDownloads handles GET /api/v1/downloads
func (h *DownloadHandler) ListDownloads(c *gin.Context) {
	status := c.Query("status")
	if status != "" && !validStatus(status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter: " + status})
		return
	}

	items := h.manager.List(status)
	c.JSON(http.StatusOK, gin.H{
		"downloads": items,
		"count":     len(items),
	})
}

// GetStats handles GET /api/v1/downloads/stats
func (h *DownloadHandler) GetStats(c *gin.Context) {
	stats, err := h.manager.Stats()
	if err != nil {
		h.logger.Error("Failed to get stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// CancelDownload handles POST /api/v1/downloads/:id/cancel
func (h *DownloadHandler) CancelDownload(c *gin.Context) {
	id := c.Param("id")

	cancelled, err := h.manager.Cancel(id)
	if err != nil {
		c.JSON(statusFor(err, http.StatusInternalServerError), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"cancelled": cancelled})
}

// RequeueDownload handles POST /api/v1/downloads/:id/requeue
func (h *DownloadHandler) RequeueDownload(c *gin.Context) {
	id := c.Param("id")

	item, err := h.manager.Requeue(id)
	if err != nil {
		h.logger.Warn("Failed to requeue download", zap.String("id", id), zap.Error(err))
		c.JSON(statusFor(err, http.StatusInternalServerError), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, item)
}

// DeleteDownload handles DELETE /api/v1/downloads/:id, archiving the item and
// removing it from the live queue.
func (h *DownloadHandler) DeleteDownload(c *gin.Context) {
	id := c.Param("id")

	if err := h.manager.Evict(id); err != nil {
		h.logger.Warn("Failed to evict download", zap.String("id", id), zap.Error(err))
		c.JSON(statusFor(err, http.StatusInternalServerError), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "download archived"})
}

// GetHistory handles GET /api/v1/history
func (h *DownloadHandler) GetHistory(c *gin.Context) {
	status := c.Query("status")
	if status != "" && !domain.ItemStatus(status).IsTerminal() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "history status must be terminal: " + status})
		return
	}
	platform := c.Query("platform")

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	records, err := h.manager.History(status, platform, limit)
	if err != nil {
		h.logger.Error("Failed to read history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"history": records,
		"count":   len(records),
	})
}

func validStatus(status string) bool {
	switch domain.ItemStatus(status) {
	case domain.StatusQueued, domain.StatusRunning, domain.StatusSucceeded,
		domain.StatusFailed, domain.StatusCancelled:
		return true
	default:
		return false
	}
}
