package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bossjones/boss-bot/api"
	"github.com/bossjones/boss-bot/internal/app"
	"github.com/bossjones/boss-bot/internal/domain"
	"github.com/bossjones/boss-bot/internal/infrastructure"
	"github.com/bossjones/boss-bot/pkg/logger"
)

const version = "1.0.0"

var (
	serverMode = flag.Bool("server-mode", false, "Internal flag: run in server mode (called by daemon)")
	configPath = flag.String("config", "", "Path to config file")
)

func main() {
	flag.Parse()

	// If not in server mode, run as daemon
	if !*serverMode {
		startAsDaemon()
		return
	}

	// Run as server (called by daemon)
	runServer()
}

// startAsDaemon forks the current process and runs the server in background
func startAsDaemon() {
	// Get the executable path
	execPath, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get executable path: %v\n", err)
		os.Exit(1)
	}

	// Get current working directory
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "/"
	}

	// Fork the process
	args := []string{"-server-mode"}
	if *configPath != "" {
		args = append(args, "-config", *configPath)
	}
	cmd := exec.Command(execPath, args...)
	cmd.Dir = cwd
	cmd.Env = os.Environ()

	// Detach from parent process
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true, // Create new session
	}

	// Redirect output to /dev/null
	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open /dev/null: %v\n", err)
		os.Exit(1)
	}
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull

	// Start the child process
	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start daemon: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Server started as daemon (PID: %d)\n", cmd.Process.Pid)
	os.Exit(0)
}

func runServer() {
	// Load configuration
	config, err := app.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Create directories
	if err := createDirectories(config); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	// Initialize main logger
	log, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Initialize category event logger (queue, workflow, error)
	events, err := logger.NewMultiLogger(logger.MultiLoggerConfig{
		Level:   config.Logging.Level,
		LogsDir: config.Download.LogsDir(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize event logger: %v\n", err)
		os.Exit(1)
	}
	defer events.Close()

	log.Info("Starting boss-bot server",
		zap.String("version", version),
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port),
		zap.Bool("ai_strategy_selection", config.Flags.AIStrategySelection),
		zap.Bool("ai_content_analysis", config.Flags.AIContentAnalysis),
		zap.Int("max_concurrent_downloads", config.Flags.MaxConcurrentDownloads))

	// Initialize archive repository
	archive, err := infrastructure.NewSQLiteArchiveRepository(config.Queue.DatabasePath)
	if err != nil {
		log.Fatal("Failed to initialize archive repository", zap.Error(err))
	}
	defer archive.Close()

	// Initialize notification service
	notifier := infrastructure.NewNotificationService(config.Notification, log)

	// Model client only exists when an AI path is enabled
	var model domain.ModelClient
	if config.Flags.AIStrategySelection || config.Flags.AIContentAnalysis {
		model = infrastructure.NewOpenAIModelClient(config.AI, log)
	}

	// Download tooling and platform strategies, most specific first
	runner := infrastructure.NewToolRunner(config.Download, events)
	registry := app.NewStrategyRegistry()
	strategies := []domain.Strategy{
		infrastructure.NewTwitterStrategy(config.Download, runner),
		infrastructure.NewRedditStrategy(config.Download, runner),
		infrastructure.NewYouTubeStrategy(config.Download, runner),
		infrastructure.NewInstagramStrategy(config.Download, runner),
		infrastructure.NewGenericStrategy(config.Download, runner),
	}
	for _, strategy := range strategies {
		if err := registry.Register(strategy); err != nil {
			log.Fatal("Failed to register strategy", zap.String("strategy", strategy.Name()), zap.Error(err))
		}
	}

	// Orchestration core
	gate := app.NewPlatformGate(config.Download.PerPlatformLimit)
	selector := app.NewStrategySelector(config.Flags, config.AI, registry, model, log)
	analyzer := app.NewContentAnalyzer(config.Flags, model, log)
	workflow := app.NewDownloadWorkflow(config.Flags, config.Download.RetryDelay, selector, analyzer, registry, gate, events, log)
	queueMgr := app.NewQueueManager(config.Flags, config.Queue, workflow, archive, notifier, events, log)
	downloadMgr := app.NewDownloadManager(queueMgr, registry, archive, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if config.Download.AutoStartWorkers {
		queueMgr.Start(ctx)
	}

	// Setup HTTP router
	router := api.SetupRouter(queueMgr, downloadMgr, events, log, config.Download.LogsDir(), version)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Received shutdown signal")

	log.Info("Shutting down server...")

	// Let running downloads finish, bounded, then stop the queue runtime
	drainCtx, drainCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer drainCancel()
	if err := queueMgr.Drain(drainCtx); err != nil {
		log.Warn("Drain did not finish cleanly", zap.Error(err))
	}
	queueMgr.Stop()

	// Shutdown HTTP server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

func createDirectories(config *domain.Config) error {
	dirs := []string{
		config.Download.BaseDir,
		config.Download.IncomingDir(),
		config.Download.CompletedDir(),
		config.Download.LogsDir(),
		config.Download.ConfigDir(),
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
