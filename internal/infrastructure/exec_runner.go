package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bossjones/boss-bot/internal/domain"
	"github.com/bossjones/boss-bot/pkg/logger"
)

// ArgsBuilder builds a tool's argument list once the staging directory for
// the run is known.
type ArgsBuilder func(stagingDir string) []string

// ToolRunner executes download tools (yt-dlp, gallery-dl) and turns their
// output into download results. Each run gets its own staging directory under
// incoming/; files that survive the run are promoted to completed/. Tool
// stdout and stderr go straight to a per-day download log file, not through
// the structured logger.
type ToolRunner struct {
	cfg         domain.DownloadConfig
	eventLogger *logger.MultiLogger
}

// NewToolRunner creates a runner over the download directories in cfg.
func NewToolRunner(cfg domain.DownloadConfig, eventLogger *logger.MultiLogger) *ToolRunner {
	return &ToolRunner{
		cfg:         cfg,
		eventLogger: eventLogger,
	}
}

// WriteMetadata reports whether runs should collect tool metadata sidecars.
func (r *ToolRunner) WriteMetadata() bool {
	return r.cfg.WriteMetadata
}

// Download runs the tool and collects its output. Cancelling ctx kills the
// process. The returned error always carries an ExecutionError kind.
func (r *ToolRunner) Download(ctx context.Context, platform, url, binary string, buildArgs ArgsBuilder) (*domain.DownloadResult, error) {
	runID := uuid.New().String()
	staging := filepath.Join(r.cfg.IncomingDir(), runID)
	if err := os.MkdirAll(staging, 0755); err != nil {
		return nil, domain.NewRetryableError(fmt.Errorf("failed to create staging directory: %w", err))
	}

	args := buildArgs(staging)

	downloadLog, err := r.openLogFile()
	if err != nil {
		return nil, domain.NewRetryableError(fmt.Errorf("failed to open download log: %w", err))
	}
	defer downloadLog.Close()

	// Header shows the exact command with shell escaping for display;
	// exec.CommandContext passes args directly without a shell.
	cmdLine := ShellEscapeCommand(binary, args...)
	r.writeLogHeader(downloadLog, runID, url, cmdLine)

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = downloadLog
	cmd.Stderr = downloadLog

	if err := cmd.Run(); err != nil {
		r.writeLogFooter(downloadLog, false, fmt.Sprintf("%s failed: %v", binary, err))
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return nil, domain.NewRetryableError(fmt.Errorf("%s timed out: %w", binary, ctxErr))
			}
			return nil, domain.NewCancelledError(fmt.Errorf("%s cancelled: %w", binary, ctxErr))
		}
		return nil, domain.NewRetryableError(fmt.Errorf("%s failed: %w", binary, err))
	}

	files, err := collectMediaFiles(staging)
	if err != nil {
		r.writeLogFooter(downloadLog, false, fmt.Sprintf("failed to scan staging directory: %v", err))
		return nil, domain.NewRetryableError(fmt.Errorf("failed to scan staging directory: %w", err))
	}
	if len(files) == 0 {
		r.writeLogFooter(downloadLog, false, "no media files produced")
		os.RemoveAll(staging)
		return nil, domain.NewFatalError(fmt.Errorf("no media files produced for %s", url))
	}

	completed, err := r.promote(files)
	if err != nil {
		r.writeLogFooter(downloadLog, false, fmt.Sprintf("failed to move files: %v", err))
		return nil, domain.NewRetryableError(fmt.Errorf("failed to move files to completed: %w", err))
	}

	var metadata map[string]any
	if r.cfg.WriteMetadata {
		metadata = r.loadMetadata(url, platform, completed)
	}

	os.RemoveAll(staging)
	r.writeLogFooter(downloadLog, true, fmt.Sprintf("downloaded %d file(s)", len(completed)))

	return &domain.DownloadResult{
		Success:  true,
		FileRefs: completed,
		Platform: platform,
		Metadata: metadata,
	}, nil
}

// openLogFile opens the per-day download log. All tool output, stdout and
// stderr combined, goes to this single file.
func (r *ToolRunner) openLogFile() (*os.File, error) {
	logsDir := r.cfg.LogsDir()
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	dateStr := time.Now().Format("20060102")
	downloadPath := filepath.Join(logsDir, "download-"+dateStr+".log")
	return os.OpenFile(downloadPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

// writeLogHeader writes the run start marker
func (r *ToolRunner) writeLogHeader(file *os.File, runID, url, cmdLine string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	file.WriteString(fmt.Sprintf("\n=== [%s] Download run: %s ===\n", timestamp, runID))
	file.WriteString(fmt.Sprintf("URL: %s\n", url))
	file.WriteString(fmt.Sprintf("$ %s\n", cmdLine))
}

// writeLogFooter writes the run end marker
func (r *ToolRunner) writeLogFooter(file *os.File, success bool, message string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	status := "SUCCESS"
	if !success {
		status = "FAILED"
	}
	file.WriteString(fmt.Sprintf("[%s] %s: %s\n", timestamp, status, message))
	file.WriteString("=== END ===\n\n")
}

// collectMediaFiles walks the staging directory and returns every media file
// in it, sorted. Metadata sidecars are excluded; promote moves them alongside
// their media file.
func collectMediaFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && isMediaFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// promote moves media files and their metadata sidecars from staging to the
// completed directory.
func (r *ToolRunner) promote(files []string) ([]string, error) {
	completedDir := r.cfg.CompletedDir()
	if err := os.MkdirAll(completedDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create completed directory: %w", err)
	}

	var completed []string
	for _, file := range files {
		destPath := filepath.Join(completedDir, filepath.Base(file))
		if err := moveFile(file, destPath); err != nil {
			return nil, fmt.Errorf("failed to move file %s: %w", file, err)
		}
		completed = append(completed, destPath)

		// yt-dlp writes <base>.info.json, gallery-dl writes <file>.json.
		for _, sidecar := range sidecarPaths(file) {
			if fileExists(sidecar) {
				dest := filepath.Join(completedDir, filepath.Base(sidecar))
				moveFile(sidecar, dest)
			}
		}
	}
	return completed, nil
}

// sidecarPaths returns the metadata sidecar locations a tool may have written
// for a media file.
func sidecarPaths(mediaFile string) []string {
	base := strings.TrimSuffix(mediaFile, filepath.Ext(mediaFile))
	return []string{
		base + ".info.json",
		mediaFile + ".json",
	}
}

// loadMetadata reads the first metadata sidecar found next to the completed
// files and flattens it into result metadata. Falls back to a minimal record
// when no sidecar exists.
func (r *ToolRunner) loadMetadata(url, platform string, files []string) map[string]any {
	for _, file := range files {
		for _, sidecar := range sidecarPaths(file) {
			data, err := os.ReadFile(sidecar)
			if err != nil {
				continue
			}
			var infoData map[string]any
			if err := json.Unmarshal(data, &infoData); err != nil {
				if r.eventLogger != nil {
					r.eventLogger.LogAppError("failed to parse metadata sidecar",
						zap.String("path", sidecar),
						zap.Error(err))
				}
				continue
			}
			return buildMetadata(infoData, url, platform, files)
		}
	}
	return minimalMetadata(url, platform, files)
}

// buildMetadata extracts the common fields tools agree on from a metadata
// sidecar and normalizes them into one shape.
func buildMetadata(infoData map[string]any, url, platform string, files []string) map[string]any {
	metadata := map[string]any{
		"id":          getStringFromMap(infoData, "id"),
		"title":       getStringFromMap(infoData, "title"),
		"description": getStringFromMap(infoData, "description"),
		"uploader":    getStringFromMap(infoData, "uploader"),
		"uploader_id": getStringFromMap(infoData, "uploader_id"),
		"extractor":   getStringFromMap(infoData, "extractor"),
	}

	webpageURL := getStringFromMap(infoData, "webpage_url")
	if webpageURL == "" {
		webpageURL = url
	}
	metadata["webpage_url"] = webpageURL

	timestamp := time.Now().Unix()
	uploadDate := time.Now().Format("20060102")
	if ts, ok := infoData["timestamp"].(float64); ok {
		timestamp = int64(ts)
		uploadDate = time.Unix(int64(ts), 0).Format("20060102")
	}
	metadata["timestamp"] = timestamp
	metadata["upload_date"] = uploadDate

	var tags []string
	if tagsRaw, ok := infoData["tags"].([]any); ok {
		for _, tag := range tagsRaw {
			if tagStr, ok := tag.(string); ok {
				tags = append(tags, tagStr)
			}
		}
	}
	tags = append(tags, platform)
	metadata["tags"] = tags

	if ext, ok := infoData["ext"].(string); ok {
		metadata["ext"] = ext
	}

	metadata["url"] = url
	metadata["platform"] = platform
	metadata["files"] = files

	return metadata
}

// minimalMetadata records what is known without a sidecar.
func minimalMetadata(url, platform string, files []string) map[string]any {
	return map[string]any{
		"url":         url,
		"platform":    platform,
		"files":       files,
		"timestamp":   time.Now().Unix(),
		"upload_date": time.Now().Format("20060102"),
		"tags":        []string{platform},
	}
}

// moveFile renames src to dest, falling back to copy and delete across
// filesystems.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	if err := copyFile(src, dest); err != nil {
		return err
	}
	return os.Remove(src)
}

// copyFile copies src to dest
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

// getStringFromMap safely extracts a string from a map
func getStringFromMap(data map[string]any, key string) string {
	if val, ok := data[key].(string); ok {
		return val
	}
	return ""
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// isMediaFile checks if a file is a media file. Metadata sidecars (.json,
// .info.json) are excluded and handled separately.
func isMediaFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".mp4", ".mkv", ".avi", ".mov", ".webm", ".m4v", ".flv",
		".mp3", ".m4a", ".ogg", ".opus", ".wav",
		".jpg", ".jpeg", ".png", ".gif", ".webp":
		return true
	default:
		return false
	}
}
