package infrastructure

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bossjones/boss-bot/internal/domain"
)

func testDownloadConfig(t *testing.T) domain.DownloadConfig {
	t.Helper()
	return domain.DownloadConfig{
		BaseDir:         t.TempDir(),
		YTDLPBinary:     "yt-dlp",
		GalleryDLBinary: "gallery-dl",
		WriteMetadata:   true,
	}
}

func TestStrategySupports(t *testing.T) {
	cfg := testDownloadConfig(t)
	runner := NewToolRunner(cfg, nil)

	twitter := NewTwitterStrategy(cfg, runner)
	reddit := NewRedditStrategy(cfg, runner)
	youtube := NewYouTubeStrategy(cfg, runner)
	instagram := NewInstagramStrategy(cfg, runner)
	generic := NewGenericStrategy(cfg, runner)

	tests := []struct {
		url       string
		twitter   bool
		reddit    bool
		youtube   bool
		instagram bool
		generic   bool
	}{
		{"https://x.com/user/status/123", true, false, false, false, true},
		{"https://twitter.com/user/status/123", true, false, false, false, true},
		{"https://www.twitter.com/user/status/123", true, false, false, false, true},
		{"https://mobile.twitter.com/user/status/123", true, false, false, false, true},
		{"https://reddit.com/r/videos/comments/abc/", false, true, false, false, true},
		{"https://old.reddit.com/r/videos/comments/abc/", false, true, false, false, true},
		{"https://v.redd.it/abc123", false, true, false, false, true},
		{"https://youtube.com/watch?v=dQw4w9WgXcQ", false, false, true, false, true},
		{"https://www.youtube.com/shorts/abc", false, false, true, false, true},
		{"https://music.youtube.com/watch?v=abc", false, false, true, false, true},
		{"https://youtu.be/dQw4w9WgXcQ", false, false, true, false, true},
		{"https://instagram.com/p/abc/", false, false, false, true, true},
		{"https://www.instagram.com/reel/abc/", false, false, false, true, true},
		{"https://vimeo.com/12345", false, false, false, false, true},
		{"http://example.com/video.mp4", false, false, false, false, true},
		{"ftp://example.com/video.mp4", false, false, false, false, false},
		{"not a url", false, false, false, false, false},
		{"", false, false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.twitter, twitter.Supports(tt.url), "twitter")
			assert.Equal(t, tt.reddit, reddit.Supports(tt.url), "reddit")
			assert.Equal(t, tt.youtube, youtube.Supports(tt.url), "youtube")
			assert.Equal(t, tt.instagram, instagram.Supports(tt.url), "instagram")
			assert.Equal(t, tt.generic, generic.Supports(tt.url), "generic")
		})
	}
}

func TestStrategyNames(t *testing.T) {
	cfg := testDownloadConfig(t)
	runner := NewToolRunner(cfg, nil)

	assert.Equal(t, domain.PlatformTwitter, NewTwitterStrategy(cfg, runner).Name())
	assert.Equal(t, domain.PlatformReddit, NewRedditStrategy(cfg, runner).Name())
	assert.Equal(t, domain.PlatformYouTube, NewYouTubeStrategy(cfg, runner).Name())
	assert.Equal(t, domain.PlatformInstagram, NewInstagramStrategy(cfg, runner).Name())
	assert.Equal(t, domain.PlatformGeneric, NewGenericStrategy(cfg, runner).Name())
}

func TestUrlHost(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://www.youtube.com/watch?v=abc", "youtube.com"},
		{"https://YouTube.com/watch", "youtube.com"},
		{"http://old.reddit.com/r/pics", "old.reddit.com"},
		{"ftp://example.com/file", ""},
		{"://broken", ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, urlHost(tt.url), tt.url)
	}
}

func TestYtdlpArgs_Defaults(t *testing.T) {
	args := ytdlpArgs("/tmp/staging", "https://youtu.be/abc", nil, true, true)

	assert.Contains(t, args, "--restrict-filenames")
	assert.Contains(t, args, "--write-info-json")
	assert.Contains(t, args, "--no-playlist")
	assert.Contains(t, args, "-P")
	assert.Contains(t, args, "/tmp/staging")
	// URL always comes last.
	assert.Equal(t, "https://youtu.be/abc", args[len(args)-1])
}

func TestYtdlpArgs_NoMetadataNoPlaylistFlag(t *testing.T) {
	args := ytdlpArgs("/tmp/staging", "https://example.com/v", nil, false, false)

	assert.NotContains(t, args, "--write-info-json")
	assert.NotContains(t, args, "--no-playlist")
}

func TestYtdlpArgs_QualityOption(t *testing.T) {
	args := ytdlpArgs("/tmp/staging", "https://youtu.be/abc", map[string]any{"quality": "720p"}, false, true)

	assert.Contains(t, args, "-S")
	assert.Contains(t, args, "res:720")
}

func TestYtdlpArgs_FormatOverridesQuality(t *testing.T) {
	options := map[string]any{"format": "bestaudio", "quality": "720p"}
	args := ytdlpArgs("/tmp/staging", "https://youtu.be/abc", options, false, true)

	assert.Contains(t, args, "-f")
	assert.Contains(t, args, "bestaudio")
	assert.NotContains(t, args, "-S")
}

func TestYtdlpArgs_AudioOnly(t *testing.T) {
	args := ytdlpArgs("/tmp/staging", "https://youtu.be/abc", map[string]any{"audio_only": true}, false, true)

	assert.Contains(t, args, "-x")
}

func TestYtdlpArgs_CookiesRequireExistingFile(t *testing.T) {
	tmpDir := t.TempDir()
	cookieFile := filepath.Join(tmpDir, "cookies.txt")
	require.NoError(t, os.WriteFile(cookieFile, []byte("# Netscape HTTP Cookie File\n"), 0644))

	args := ytdlpArgs("/tmp/staging", "https://youtu.be/abc", map[string]any{"cookies_file": cookieFile}, false, true)
	assert.Contains(t, args, "--cookies")
	assert.Contains(t, args, cookieFile)

	args = ytdlpArgs("/tmp/staging", "https://youtu.be/abc", map[string]any{"cookies_file": "/nonexistent/cookies.txt"}, false, true)
	assert.NotContains(t, args, "--cookies")
}

func TestGalleryDLArgs(t *testing.T) {
	args := galleryDLArgs("/tmp/staging", "https://x.com/u/status/1", nil, true)

	assert.Equal(t, "-D", args[0])
	assert.Equal(t, "/tmp/staging", args[1])
	assert.Contains(t, args, "--write-metadata")
	assert.Equal(t, "https://x.com/u/status/1", args[len(args)-1])
}

func TestGalleryDLArgs_RangeOption(t *testing.T) {
	args := galleryDLArgs("/tmp/staging", "https://x.com/u/status/1", map[string]any{"range": "1-5"}, false)

	assert.Contains(t, args, "--range")
	assert.Contains(t, args, "1-5")
	assert.NotContains(t, args, "--write-metadata")
}

func TestParseQualityHeight(t *testing.T) {
	tests := []struct {
		quality  string
		expected int
	}{
		{"1080p", 1080},
		{"720P", 720},
		{"480", 480},
		{"best", 0},
		{"", 0},
		{"-1", 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, parseQualityHeight(tt.quality), tt.quality)
	}
}

func TestStrategyExecute_RejectsForeignURL(t *testing.T) {
	cfg := testDownloadConfig(t)
	runner := NewToolRunner(cfg, nil)
	strategy := NewTwitterStrategy(cfg, runner)

	result, err := strategy.Execute(context.Background(), "https://example.com/video", nil)

	assert.Nil(t, result)
	require.Error(t, err)
	assert.Equal(t, domain.ErrKindFatal, domain.ClassifyError(err))
}
