package app

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bossjones/boss-bot/internal/domain"
)

// fakeStrategy claims URLs containing its match substring.
type fakeStrategy struct {
	name  string
	match string
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Supports(url string) bool {
	return f.match != "" && strings.Contains(url, f.match)
}

func (f *fakeStrategy) Execute(ctx context.Context, url string, options map[string]any) (*domain.DownloadResult, error) {
	return &domain.DownloadResult{Success: true, Platform: f.name}, nil
}

func TestRegistry_MatchFirstRegisteredWins(t *testing.T) {
	registry := NewStrategyRegistry()
	require.NoError(t, registry.Register(&fakeStrategy{name: domain.PlatformTwitter, match: "example.com"}))
	require.NoError(t, registry.Register(&fakeStrategy{name: domain.PlatformGeneric, match: "example.com"}))

	matched := registry.Match("https://example.com/post/1")
	require.NotNil(t, matched)
	assert.Equal(t, domain.PlatformTwitter, matched.Name(), "earlier registration should win")
}

func TestRegistry_MatchNone(t *testing.T) {
	registry := NewStrategyRegistry()
	require.NoError(t, registry.Register(&fakeStrategy{name: domain.PlatformTwitter, match: "twitter.com"}))

	assert.Nil(t, registry.Match("https://example.com/video"))
}

func TestRegistry_DuplicateNameRejected(t *testing.T) {
	registry := NewStrategyRegistry()
	require.NoError(t, registry.Register(&fakeStrategy{name: domain.PlatformReddit, match: "reddit.com"}))

	err := registry.Register(&fakeStrategy{name: domain.PlatformReddit, match: "redd.it"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistry_ByName(t *testing.T) {
	registry := NewStrategyRegistry()
	require.NoError(t, registry.Register(&fakeStrategy{name: domain.PlatformYouTube, match: "youtube.com"}))

	s, ok := registry.ByName(domain.PlatformYouTube)
	require.True(t, ok)
	assert.Equal(t, domain.PlatformYouTube, s.Name())

	_, ok = registry.ByName("tiktok")
	assert.False(t, ok)
}

func TestRegistry_NamesInRegistrationOrder(t *testing.T) {
	registry := NewStrategyRegistry()
	for _, name := range []string{domain.PlatformTwitter, domain.PlatformReddit, domain.PlatformGeneric} {
		require.NoError(t, registry.Register(&fakeStrategy{name: name, match: name}))
	}

	assert.Equal(t, []string{domain.PlatformTwitter, domain.PlatformReddit, domain.PlatformGeneric}, registry.Names())
}
