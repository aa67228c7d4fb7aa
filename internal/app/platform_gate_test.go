package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bossjones/boss-bot/internal/domain"
)

func TestPlatformGate_LimitsConcurrentHolds(t *testing.T) {
	gate := NewPlatformGate(2)

	require.NoError(t, gate.Acquire(context.Background(), domain.PlatformTwitter))
	require.NoError(t, gate.Acquire(context.Background(), domain.PlatformTwitter))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := gate.Acquire(ctx, domain.PlatformTwitter)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, gate.InUse(domain.PlatformTwitter))
}

func TestPlatformGate_PlatformsAreIndependent(t *testing.T) {
	gate := NewPlatformGate(1)

	require.NoError(t, gate.Acquire(context.Background(), domain.PlatformTwitter))
	require.NoError(t, gate.Acquire(context.Background(), domain.PlatformReddit),
		"a saturated platform must not block others")
}

func TestPlatformGate_ReleaseFreesSlot(t *testing.T) {
	gate := NewPlatformGate(1)

	require.NoError(t, gate.Acquire(context.Background(), domain.PlatformYouTube))
	gate.Release(domain.PlatformYouTube)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.NoError(t, gate.Acquire(ctx, domain.PlatformYouTube))
}

func TestPlatformGate_AcquireHonorsCancel(t *testing.T) {
	gate := NewPlatformGate(1)
	require.NoError(t, gate.Acquire(context.Background(), domain.PlatformGeneric))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- gate.Acquire(ctx, domain.PlatformGeneric)
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Acquire did not return after cancellation")
	}
}

func TestPlatformGate_MinimumLimit(t *testing.T) {
	gate := NewPlatformGate(0)

	require.NoError(t, gate.Acquire(context.Background(), domain.PlatformTwitter))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, gate.Acquire(ctx, domain.PlatformTwitter), "zero limit should behave as one")
}
