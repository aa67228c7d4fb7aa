package infrastructure

import (
	"context"
	"fmt"

	"github.com/bossjones/boss-bot/internal/domain"
)

// RedditStrategy downloads media from Reddit posts via gallery-dl.
type RedditStrategy struct {
	runner        *ToolRunner
	binary        string
	writeMetadata bool
}

// NewRedditStrategy creates the Reddit download strategy.
func NewRedditStrategy(cfg domain.DownloadConfig, runner *ToolRunner) *RedditStrategy {
	return &RedditStrategy{
		runner:        runner,
		binary:        cfg.GalleryDLBinary,
		writeMetadata: cfg.WriteMetadata,
	}
}

// Name returns the platform this strategy handles
func (s *RedditStrategy) Name() string {
	return domain.PlatformReddit
}

// Supports reports whether the URL points at Reddit, including short redd.it
// links and direct video hosts.
func (s *RedditStrategy) Supports(rawURL string) bool {
	host := urlHost(rawURL)
	return hostMatches(host, "reddit.com") || hostMatches(host, "redd.it")
}

// Execute downloads the post's media with gallery-dl.
func (s *RedditStrategy) Execute(ctx context.Context, rawURL string, options map[string]any) (*domain.DownloadResult, error) {
	if !s.Supports(rawURL) {
		return nil, domain.NewFatalError(fmt.Errorf("not a Reddit URL: %s", rawURL))
	}
	return s.runner.Download(ctx, domain.PlatformReddit, rawURL, s.binary, func(stagingDir string) []string {
		return galleryDLArgs(stagingDir, rawURL, options, s.writeMetadata)
	})
}
