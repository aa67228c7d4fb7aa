package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/bossjones/boss-bot/internal/domain"
)

// LoadConfig loads configuration from file and environment. Defaults come
// from domain.DefaultConfig; a YAML config file may override them; BOSSBOT_
// environment variables override both.
func LoadConfig(configPath string) (*domain.Config, error) {
	// Start with default config
	config := domain.DefaultConfig()

	// Set up viper
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, config)

	// If config path is provided, use it
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in standard locations
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.boss-bot")
		v.AddConfigPath("/etc/boss-bot")
	}

	// Read environment variables
	v.SetEnvPrefix("BOSSBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Try to read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults
	}

	// Unmarshal into config struct
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Expand environment variables in paths
	config = expandPaths(config)

	// Validate config
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults registers every key with viper. Without registered keys,
// environment-only overrides are invisible to Unmarshal.
func setDefaults(v *viper.Viper, config *domain.Config) {
	v.SetDefault("server.host", config.Server.Host)
	v.SetDefault("server.port", config.Server.Port)

	v.SetDefault("flags.ai_strategy_selection", config.Flags.AIStrategySelection)
	v.SetDefault("flags.ai_content_analysis", config.Flags.AIContentAnalysis)
	v.SetDefault("flags.ai_fallback_on_failure", config.Flags.AIFallbackOnFailure)
	v.SetDefault("flags.max_concurrent_downloads", config.Flags.MaxConcurrentDownloads)
	v.SetDefault("flags.max_queue_size", config.Flags.MaxQueueSize)
	v.SetDefault("flags.max_retries", config.Flags.MaxRetries)
	v.SetDefault("flags.ai_timeout", config.Flags.AITimeout)
	v.SetDefault("flags.execution_timeout", config.Flags.ExecutionTimeout)

	v.SetDefault("download.base_dir", config.Download.BaseDir)
	v.SetDefault("download.ytdlp_binary", config.Download.YTDLPBinary)
	v.SetDefault("download.gallerydl_binary", config.Download.GalleryDLBinary)
	v.SetDefault("download.retry_delay", config.Download.RetryDelay)
	v.SetDefault("download.per_platform_limit", config.Download.PerPlatformLimit)
	v.SetDefault("download.write_metadata", config.Download.WriteMetadata)
	v.SetDefault("download.auto_start_workers", config.Download.AutoStartWorkers)

	v.SetDefault("queue.database_path", config.Queue.DatabasePath)
	v.SetDefault("queue.check_interval", config.Queue.CheckInterval)
	v.SetDefault("queue.retention_period", config.Queue.RetentionPeriod)
	v.SetDefault("queue.archive_retention", config.Queue.ArchiveRetention)

	v.SetDefault("ai.base_url", config.AI.BaseURL)
	v.SetDefault("ai.model", config.AI.Model)
	v.SetDefault("ai.api_key_env", config.AI.APIKeyEnv)
	v.SetDefault("ai.temperature", config.AI.Temperature)
	v.SetDefault("ai.cache_size", config.AI.CacheSize)
	v.SetDefault("ai.cache_ttl", config.AI.CacheTTL)

	v.SetDefault("notification.enabled", config.Notification.Enabled)
	v.SetDefault("notification.sound", config.Notification.Sound)
	v.SetDefault("notification.method", config.Notification.Method)

	v.SetDefault("logging.level", config.Logging.Level)
	v.SetDefault("logging.format", config.Logging.Format)
	v.SetDefault("logging.output_path", config.Logging.OutputPath)
}

// expandPaths expands environment variables in path configurations
func expandPaths(config *domain.Config) *domain.Config {
	config.Download.BaseDir = expandPath(config.Download.BaseDir)
	config.Queue.DatabasePath = expandPath(config.Queue.DatabasePath)

	if config.Logging.OutputPath != "stdout" && config.Logging.OutputPath != "stderr" {
		config.Logging.OutputPath = expandPath(config.Logging.OutputPath)
	}

	return config
}

// expandPath expands environment variables and ~ in paths
func expandPath(path string) string {
	// Expand environment variables
	path = os.ExpandEnv(path)

	// Expand home directory
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	// Replace $HOME
	if strings.Contains(path, "$HOME") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = strings.ReplaceAll(path, "$HOME", home)
		}
	}

	return path
}

// validateConfig validates the configuration
func validateConfig(config *domain.Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Download.BaseDir == "" {
		return fmt.Errorf("download base directory not configured")
	}

	if config.Flags.MaxConcurrentDownloads < 1 {
		return fmt.Errorf("max concurrent downloads must be at least 1")
	}

	if config.Flags.MaxQueueSize < 1 {
		return fmt.Errorf("max queue size must be at least 1")
	}

	if config.Flags.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}

	if config.Download.PerPlatformLimit < 1 {
		return fmt.Errorf("per-platform limit must be at least 1")
	}

	if config.Queue.DatabasePath == "" {
		return fmt.Errorf("queue database path not configured")
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return nil
}

// SaveConfig saves configuration to file. Keys mirror setDefaults so a saved
// file loads back unchanged.
func SaveConfig(config *domain.Config, path string) error {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, config)

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Write config file
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
