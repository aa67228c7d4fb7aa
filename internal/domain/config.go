package domain

import (
	"path/filepath"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Flags        FeatureFlags       `mapstructure:"flags"`
	Download     DownloadConfig     `mapstructure:"download"`
	Queue        QueueConfig        `mapstructure:"queue"`
	AI           AIConfig           `mapstructure:"ai"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// FeatureFlags holds the process-wide toggles that shape orchestration
// behavior: whether the AI paths run at all, and the hard bounds on queueing,
// concurrency, and retries. Loaded once at startup and passed by value into
// component constructors so tests can vary flag combinations freely.
type FeatureFlags struct {
	AIStrategySelection    bool          `mapstructure:"ai_strategy_selection"`
	AIContentAnalysis      bool          `mapstructure:"ai_content_analysis"`
	AIFallbackOnFailure    bool          `mapstructure:"ai_fallback_on_failure"`
	MaxConcurrentDownloads int           `mapstructure:"max_concurrent_downloads"`
	MaxQueueSize           int           `mapstructure:"max_queue_size"`
	MaxRetries             int           `mapstructure:"max_retries"`
	AITimeout              time.Duration `mapstructure:"ai_timeout"`
	ExecutionTimeout       time.Duration `mapstructure:"execution_timeout"`
}

// DownloadConfig contains download-execution configuration
type DownloadConfig struct {
	BaseDir          string        `mapstructure:"base_dir"`
	YTDLPBinary      string        `mapstructure:"ytdlp_binary"`
	GalleryDLBinary  string        `mapstructure:"gallerydl_binary"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
	PerPlatformLimit int           `mapstructure:"per_platform_limit"`
	WriteMetadata    bool          `mapstructure:"write_metadata"`
	AutoStartWorkers bool          `mapstructure:"auto_start_workers"`
}

// IncomingDir returns the directory downloads land in before completion.
func (c DownloadConfig) IncomingDir() string {
	return filepath.Join(c.BaseDir, "incoming")
}

// CompletedDir returns the directory finished downloads are moved to.
func (c DownloadConfig) CompletedDir() string {
	return filepath.Join(c.BaseDir, "completed")
}

// LogsDir returns the directory for category and per-download logs.
func (c DownloadConfig) LogsDir() string {
	return filepath.Join(c.BaseDir, "logs")
}

// ConfigDir returns the directory for the archive database and other state.
func (c DownloadConfig) ConfigDir() string {
	return filepath.Join(c.BaseDir, "config")
}

// QueueConfig contains queue housekeeping configuration
type QueueConfig struct {
	DatabasePath     string        `mapstructure:"database_path"`
	CheckInterval    time.Duration `mapstructure:"check_interval"`
	RetentionPeriod  time.Duration `mapstructure:"retention_period"`
	ArchiveRetention time.Duration `mapstructure:"archive_retention"`
}

// AIConfig contains model-provider configuration
type AIConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	APIKeyEnv   string        `mapstructure:"api_key_env"`
	Temperature float64       `mapstructure:"temperature"`
	CacheSize   int           `mapstructure:"cache_size"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

// NotificationConfig contains desktop-notification configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Sound   bool   `mapstructure:"sound"`
	Method  string `mapstructure:"method"` // osascript, notify-send
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8765,
		},
		Flags: FeatureFlags{
			AIStrategySelection:    false,
			AIContentAnalysis:      false,
			AIFallbackOnFailure:    true,
			MaxConcurrentDownloads: 3,
			MaxQueueSize:           50,
			MaxRetries:             3,
			AITimeout:              8 * time.Second,
			ExecutionTimeout:       10 * time.Minute,
		},
		Download: DownloadConfig{
			BaseDir:          "$HOME/Downloads/boss-bot",
			YTDLPBinary:      "yt-dlp",
			GalleryDLBinary:  "gallery-dl",
			RetryDelay:       10 * time.Second,
			PerPlatformLimit: 2,
			WriteMetadata:    true,
			AutoStartWorkers: true,
		},
		Queue: QueueConfig{
			DatabasePath:     "$HOME/Downloads/boss-bot/config/queue-archive.db",
			CheckInterval:    30 * time.Second,
			RetentionPeriod:  time.Hour,
			ArchiveRetention: 30 * 24 * time.Hour,
		},
		AI: AIConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			Temperature: 0,
			CacheSize:   256,
			CacheTTL:    10 * time.Minute,
		},
		Notification: NotificationConfig{
			Enabled: false,
			Sound:   false,
			Method:  "notify-send",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}
