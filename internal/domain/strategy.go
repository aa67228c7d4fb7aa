package domain

import "context"

// Platform identifiers shared across strategies, results and archives.
const (
	PlatformTwitter   = "twitter"
	PlatformReddit    = "reddit"
	PlatformYouTube   = "youtube"
	PlatformInstagram = "instagram"
	PlatformGeneric   = "generic"
)

// KnownPlatforms lists every platform identifier a strategy can claim.
func KnownPlatforms() []string {
	return []string{
		PlatformTwitter,
		PlatformReddit,
		PlatformYouTube,
		PlatformInstagram,
		PlatformGeneric,
	}
}

// Strategy downloads media for the platforms it supports. Implementations
// must be safe for concurrent Execute calls; the queue runs several at once.
type Strategy interface {
	// Name returns the platform identifier the strategy handles.
	Name() string

	// Supports reports whether the strategy can handle the URL. Must be
	// fast and side-effect free; the registry calls it on every selection.
	Supports(url string) bool

	// Execute performs the download. Cancelling ctx is a best-effort kill
	// of any underlying work. Errors should carry an ExecutionError kind
	// so callers can tell retryable from fatal.
	Execute(ctx context.Context, url string, options map[string]any) (*DownloadResult, error)
}

// ModelClient talks to a language model endpoint. Implementations must honor
// ctx deadlines; callers budget a short timeout per call and fall back on
// failure.
type ModelClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
