package infrastructure

import (
	"context"
	"fmt"

	"github.com/bossjones/boss-bot/internal/domain"
)

// YouTubeStrategy downloads videos from YouTube via yt-dlp.
type YouTubeStrategy struct {
	runner        *ToolRunner
	binary        string
	writeMetadata bool
}

// NewYouTubeStrategy creates the YouTube download strategy.
func NewYouTubeStrategy(cfg domain.DownloadConfig, runner *ToolRunner) *YouTubeStrategy {
	return &YouTubeStrategy{
		runner:        runner,
		binary:        cfg.YTDLPBinary,
		writeMetadata: cfg.WriteMetadata,
	}
}

// Name returns the platform this strategy handles
func (s *YouTubeStrategy) Name() string {
	return domain.PlatformYouTube
}

// Supports reports whether the URL points at YouTube, including youtu.be
// short links, Shorts, and Music.
func (s *YouTubeStrategy) Supports(rawURL string) bool {
	host := urlHost(rawURL)
	return hostMatches(host, "youtube.com") || hostMatches(host, "youtu.be")
}

// Execute downloads the video with yt-dlp. Playlist URLs resolve to the
// single video they point at, never the whole playlist.
func (s *YouTubeStrategy) Execute(ctx context.Context, rawURL string, options map[string]any) (*domain.DownloadResult, error) {
	if !s.Supports(rawURL) {
		return nil, domain.NewFatalError(fmt.Errorf("not a YouTube URL: %s", rawURL))
	}
	return s.runner.Download(ctx, domain.PlatformYouTube, rawURL, s.binary, func(stagingDir string) []string {
		return ytdlpArgs(stagingDir, rawURL, options, s.writeMetadata, true)
	})
}
