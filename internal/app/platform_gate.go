package app

import (
	"context"
	"sync"
)

// PlatformGate bounds concurrent strategy executions per platform so a burst
// of requests for one site cannot monopolize the worker pool or trip the
// site's rate limits. Each platform gets an independent semaphore of the
// configured width, created on first use.
type PlatformGate struct {
	mu    sync.Mutex
	limit int
	slots map[string]chan struct{}
}

// NewPlatformGate creates a gate allowing limit concurrent executions per
// platform. A limit below 1 is treated as 1.
func NewPlatformGate(limit int) *PlatformGate {
	if limit < 1 {
		limit = 1
	}
	return &PlatformGate{
		limit: limit,
		slots: make(map[string]chan struct{}),
	}
}

func (g *PlatformGate) semaphore(platform string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()

	sem, ok := g.slots[platform]
	if !ok {
		sem = make(chan struct{}, g.limit)
		g.slots[platform] = sem
	}
	return sem
}

// Acquire blocks until a slot for the platform is free or ctx is done.
func (g *PlatformGate) Acquire(ctx context.Context, platform string) error {
	select {
	case g.semaphore(platform) <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot previously acquired for the platform.
func (g *PlatformGate) Release(platform string) {
	select {
	case <-g.semaphore(platform):
	default:
	}
}

// InUse returns the number of currently held slots for the platform.
func (g *PlatformGate) InUse(platform string) int {
	return len(g.semaphore(platform))
}
