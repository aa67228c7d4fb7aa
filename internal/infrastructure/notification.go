package infrastructure

import (
	"fmt"
	"os/exec"

	"go.uber.org/zap"

	"github.com/bossjones/boss-bot/internal/domain"
)

// NotificationService sends desktop notifications for download outcomes.
type NotificationService struct {
	config domain.NotificationConfig
	logger *zap.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(config domain.NotificationConfig, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		config: config,
		logger: logger,
	}
}

// Send sends a notification
func (n *NotificationService) Send(title, message string) error {
	if !n.config.Enabled {
		n.logger.Debug("notifications disabled, skipping",
			zap.String("title", title),
			zap.String("message", message))
		return nil
	}

	switch n.config.Method {
	case "osascript":
		return n.sendOSAScript(title, message)
	case "notify-send":
		return n.sendNotifySend(title, message)
	default:
		n.logger.Warn("unknown notification method", zap.String("method", n.config.Method))
		return nil
	}
}

// sendOSAScript sends notification using macOS osascript
func (n *NotificationService) sendOSAScript(title, message string) error {
	script := fmt.Sprintf(`display notification "%s" with title "%s"`, message, title)
	cmd := exec.Command("osascript", "-e", script)

	if err := cmd.Run(); err != nil {
		n.logger.Error("failed to send notification",
			zap.String("method", "osascript"),
			zap.Error(err))
		return err
	}
	return nil
}

// sendNotifySend sends notification using Linux notify-send
func (n *NotificationService) sendNotifySend(title, message string) error {
	cmd := exec.Command("notify-send", title, message)

	if err := cmd.Run(); err != nil {
		n.logger.Error("failed to send notification",
			zap.String("method", "notify-send"),
			zap.Error(err))
		return err
	}
	return nil
}

// NotifyDownloadCompleted sends notification when a download succeeds
func (n *NotificationService) NotifyDownloadCompleted(url, platform string) {
	title := "Download Completed"
	message := fmt.Sprintf("Success: %s (%s)", truncateString(url, 30), platform)
	n.Send(title, message)
}

// NotifyDownloadFailed sends notification when a download fails for good
func (n *NotificationService) NotifyDownloadFailed(url, platform string) {
	title := "Download Failed"
	message := fmt.Sprintf("Failed: %s (%s)", truncateString(url, 30), platform)
	n.Send(title, message)
}

// NotifyQueueDrained sends notification when a drain completes
func (n *NotificationService) NotifyQueueDrained() {
	n.Send("Queue Drained", "All running downloads finished")
}

// truncateString truncates a string to the specified length
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
