package infrastructure

import (
	"context"
	"fmt"

	"github.com/bossjones/boss-bot/internal/domain"
)

// InstagramStrategy downloads media from Instagram posts and reels via
// gallery-dl. Most Instagram content needs a cookies_file option to be
// reachable at all; without one gallery-dl usually gets a login wall.
type InstagramStrategy struct {
	runner        *ToolRunner
	binary        string
	writeMetadata bool
}

// NewInstagramStrategy creates the Instagram download strategy.
func NewInstagramStrategy(cfg domain.DownloadConfig, runner *ToolRunner) *InstagramStrategy {
	return &InstagramStrategy{
		runner:        runner,
		binary:        cfg.GalleryDLBinary,
		writeMetadata: cfg.WriteMetadata,
	}
}

// Name returns the platform this strategy handles
func (s *InstagramStrategy) Name() string {
	return domain.PlatformInstagram
}

// Supports reports whether the URL points at Instagram.
func (s *InstagramStrategy) Supports(rawURL string) bool {
	return hostMatches(urlHost(rawURL), "instagram.com")
}

// Execute downloads the post's media with gallery-dl.
func (s *InstagramStrategy) Execute(ctx context.Context, rawURL string, options map[string]any) (*domain.DownloadResult, error) {
	if !s.Supports(rawURL) {
		return nil, domain.NewFatalError(fmt.Errorf("not an Instagram URL: %s", rawURL))
	}
	return s.runner.Download(ctx, domain.PlatformInstagram, rawURL, s.binary, func(stagingDir string) []string {
		return galleryDLArgs(stagingDir, rawURL, options, s.writeMetadata)
	})
}
