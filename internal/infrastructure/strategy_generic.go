package infrastructure

import (
	"context"
	"fmt"

	"github.com/bossjones/boss-bot/internal/domain"
)

// GenericStrategy is the catch-all fallback. It hands any HTTP(S) URL to
// yt-dlp, whose extractor list covers most media sites. Registered last so
// the platform-specific strategies always win.
type GenericStrategy struct {
	runner        *ToolRunner
	binary        string
	writeMetadata bool
}

// NewGenericStrategy creates the fallback download strategy.
func NewGenericStrategy(cfg domain.DownloadConfig, runner *ToolRunner) *GenericStrategy {
	return &GenericStrategy{
		runner:        runner,
		binary:        cfg.YTDLPBinary,
		writeMetadata: cfg.WriteMetadata,
	}
}

// Name returns the platform this strategy handles
func (s *GenericStrategy) Name() string {
	return domain.PlatformGeneric
}

// Supports accepts every HTTP(S) URL with a host.
func (s *GenericStrategy) Supports(rawURL string) bool {
	return urlHost(rawURL) != ""
}

// Execute hands the URL to yt-dlp and hopes an extractor matches.
func (s *GenericStrategy) Execute(ctx context.Context, rawURL string, options map[string]any) (*domain.DownloadResult, error) {
	if !s.Supports(rawURL) {
		return nil, domain.NewFatalError(fmt.Errorf("not an HTTP(S) URL: %s", rawURL))
	}
	return s.runner.Download(ctx, domain.PlatformGeneric, rawURL, s.binary, func(stagingDir string) []string {
		return ytdlpArgs(stagingDir, rawURL, options, s.writeMetadata, false)
	})
}
