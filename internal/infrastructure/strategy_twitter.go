package infrastructure

import (
	"context"
	"fmt"

	"github.com/bossjones/boss-bot/internal/domain"
)

// TwitterStrategy downloads media from X/Twitter posts via gallery-dl.
type TwitterStrategy struct {
	runner        *ToolRunner
	binary        string
	writeMetadata bool
}

// NewTwitterStrategy creates the X/Twitter download strategy.
func NewTwitterStrategy(cfg domain.DownloadConfig, runner *ToolRunner) *TwitterStrategy {
	return &TwitterStrategy{
		runner:        runner,
		binary:        cfg.GalleryDLBinary,
		writeMetadata: cfg.WriteMetadata,
	}
}

// Name returns the platform this strategy handles
func (s *TwitterStrategy) Name() string {
	return domain.PlatformTwitter
}

// Supports reports whether the URL points at X/Twitter.
func (s *TwitterStrategy) Supports(rawURL string) bool {
	host := urlHost(rawURL)
	return hostMatches(host, "x.com") || hostMatches(host, "twitter.com")
}

// Execute downloads the post's media with gallery-dl.
func (s *TwitterStrategy) Execute(ctx context.Context, rawURL string, options map[string]any) (*domain.DownloadResult, error) {
	if !s.Supports(rawURL) {
		return nil, domain.NewFatalError(fmt.Errorf("not an X/Twitter URL: %s", rawURL))
	}
	return s.runner.Download(ctx, domain.PlatformTwitter, rawURL, s.binary, func(stagingDir string) []string {
		return galleryDLArgs(stagingDir, rawURL, options, s.writeMetadata)
	})
}
