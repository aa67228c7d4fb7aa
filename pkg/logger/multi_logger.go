package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogCategory represents different log categories
type LogCategory string

const (
	CategoryQueue    LogCategory = "queue"    // Queue lifecycle events (JSON)
	CategoryWorkflow LogCategory = "workflow" // Workflow phase transitions (JSON)
	CategoryError    LogCategory = "error"    // Application errors (JSON)
)

// Categories lists every log category the multi-logger writes.
func Categories() []LogCategory {
	return []LogCategory{CategoryQueue, CategoryWorkflow, CategoryError}
}

// MultiLogger provides categorized logging with separate daily output files.
// Note: Raw download output (stdout/stderr from yt-dlp/gallery-dl) is handled
// directly by the strategies using file redirects, not through this logger.
type MultiLogger struct {
	loggers     map[LogCategory]*zap.Logger
	files       map[LogCategory]*os.File
	config      MultiLoggerConfig
	level       zapcore.Level
	mu          sync.RWMutex
	currentDate string // files roll over when this changes
}

// MultiLoggerConfig contains configuration for multi-output logging
type MultiLoggerConfig struct {
	Level   string // debug, info, warn, error
	LogsDir string // Directory for log files
}

// NewMultiLogger creates a new multi-output logger
func NewMultiLogger(config MultiLoggerConfig) (*MultiLogger, error) {
	if config.LogsDir == "" {
		return nil, fmt.Errorf("logs_dir must be specified")
	}

	if err := os.MkdirAll(config.LogsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	level, err := zapcore.ParseLevel(config.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	ml := &MultiLogger{
		loggers:     make(map[LogCategory]*zap.Logger),
		files:       make(map[LogCategory]*os.File),
		config:      config,
		level:       level,
		currentDate: time.Now().Format("20060102"),
	}

	if err := ml.openAll(); err != nil {
		return nil, err
	}

	return ml, nil
}

// openAll (re)creates the logger for every category against today's files.
// Caller must hold the write lock, or be the constructor.
func (ml *MultiLogger) openAll() error {
	for _, category := range Categories() {
		level := ml.level
		if category == CategoryError {
			level = zapcore.ErrorLevel
		}
		logger, file, err := ml.createStructuredLogger(category, level)
		if err != nil {
			return fmt.Errorf("failed to create %s logger: %w", category, err)
		}
		ml.loggers[category] = logger
		ml.files[category] = file
	}
	return nil
}

// createStructuredLogger creates a JSON-formatted logger for a category
func (ml *MultiLogger) createStructuredLogger(category LogCategory, level zapcore.Level) (*zap.Logger, *os.File, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "ts"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.MessageKey = "msg"
	encoderConfig.LevelKey = "level"
	encoderConfig.CallerKey = "" // Don't include caller for cleaner logs

	encoder := zapcore.NewJSONEncoder(encoderConfig)

	logPath := ml.getCategoryLogPath(category)
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, err
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(file), level)

	return zap.New(core), file, nil
}

// getCategoryLogPath generates a log file path for a category with current date
func (ml *MultiLogger) getCategoryLogPath(category LogCategory) string {
	dateStr := time.Now().Format("20060102")
	filename := fmt.Sprintf("%s-%s.log", category, dateStr)
	return filepath.Join(ml.config.LogsDir, filename)
}

// rotateIfNeeded reopens all category files when the date has rolled over.
func (ml *MultiLogger) rotateIfNeeded() {
	today := time.Now().Format("20060102")

	ml.mu.RLock()
	current := ml.currentDate
	ml.mu.RUnlock()
	if current == today {
		return
	}

	ml.mu.Lock()
	defer ml.mu.Unlock()
	if ml.currentDate == today {
		return
	}
	ml.closeAllLocked()
	if err := ml.openAll(); err != nil {
		// Keep writing to yesterday's files rather than dropping events.
		return
	}
	ml.currentDate = today
}

// GetLogsDir returns the logs directory path
func (ml *MultiLogger) GetLogsDir() string {
	return ml.config.LogsDir
}

// GetLogger returns the structured logger for a specific category
func (ml *MultiLogger) GetLogger(category LogCategory) *zap.Logger {
	ml.mu.RLock()
	defer ml.mu.RUnlock()

	if logger, ok := ml.loggers[category]; ok {
		return logger
	}
	return ml.loggers[CategoryError]
}

// Queue returns the queue logger (JSON format)
func (ml *MultiLogger) Queue() *zap.Logger {
	return ml.GetLogger(CategoryQueue)
}

// Workflow returns the workflow logger (JSON format)
func (ml *MultiLogger) Workflow() *zap.Logger {
	return ml.GetLogger(CategoryWorkflow)
}

// Error returns the error logger (JSON format)
func (ml *MultiLogger) Error() *zap.Logger {
	return ml.GetLogger(CategoryError)
}

// LogQueueEvent logs a queue lifecycle event with structured data
func (ml *MultiLogger) LogQueueEvent(event string, fields ...zap.Field) {
	ml.rotateIfNeeded()
	ml.Queue().Info(event, fields...)
}

// LogWorkflowEvent logs a workflow phase transition with structured data
func (ml *MultiLogger) LogWorkflowEvent(event string, fields ...zap.Field) {
	ml.rotateIfNeeded()
	ml.Workflow().Info(event, fields...)
}

// LogAppError logs an application-level error (Go errors, panics)
func (ml *MultiLogger) LogAppError(msg string, fields ...zap.Field) {
	ml.rotateIfNeeded()
	ml.Error().Error(msg, fields...)
}

// Sync flushes all loggers
func (ml *MultiLogger) Sync() error {
	ml.mu.RLock()
	defer ml.mu.RUnlock()

	var lastErr error
	for _, logger := range ml.loggers {
		if err := logger.Sync(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Close flushes and closes all log files
func (ml *MultiLogger) Close() error {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	var lastErr error
	for _, logger := range ml.loggers {
		if err := logger.Sync(); err != nil {
			lastErr = err
		}
	}
	ml.closeAllLocked()
	return lastErr
}

func (ml *MultiLogger) closeAllLocked() {
	for category, file := range ml.files {
		file.Close()
		delete(ml.files, category)
	}
}
