package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDownloadRequest(t *testing.T) {
	url := "https://youtube.com/watch?v=abc123"
	prefs := map[string]any{"quality": "1080p"}

	req := NewDownloadRequest(url, "user-42", prefs, 5)

	assert.NotEmpty(t, req.ID)
	assert.Equal(t, url, req.URL)
	assert.Equal(t, "user-42", req.UserID)
	assert.Equal(t, prefs, req.Preferences)
	assert.Equal(t, 5, req.Priority)
	assert.False(t, req.RequestedAt.IsZero())
}

func TestNewQueueItem(t *testing.T) {
	req := NewDownloadRequest("https://x.com/user/status/1", "user-1", nil, 0)

	item := NewQueueItem(req)

	assert.Equal(t, StatusQueued, item.Status)
	assert.Equal(t, req, item.Request)
	assert.Equal(t, 0, item.Attempt)
	assert.False(t, item.EnqueuedAt.IsZero())
	assert.Nil(t, item.StartedAt)
	assert.Nil(t, item.FinishedAt)
}

func TestItemStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusQueued.IsTerminal())
	assert.False(t, StatusRunning.IsTerminal())
	assert.True(t, StatusSucceeded.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
}

func TestItemStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from    ItemStatus
		to      ItemStatus
		allowed bool
	}{
		{StatusQueued, StatusRunning, true},
		{StatusQueued, StatusCancelled, true},
		{StatusQueued, StatusSucceeded, false},
		{StatusQueued, StatusFailed, false},
		{StatusRunning, StatusSucceeded, true},
		{StatusRunning, StatusFailed, true},
		{StatusRunning, StatusCancelled, true},
		{StatusRunning, StatusQueued, false},
		{StatusSucceeded, StatusRunning, false},
		{StatusFailed, StatusQueued, false},
		{StatusCancelled, StatusRunning, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransition(tt.to))
		})
	}
}

func TestQueueItem_MarkRunning(t *testing.T) {
	item := NewQueueItem(NewDownloadRequest("https://x.com/test", "u", nil, 0))

	assert.True(t, item.MarkRunning())
	assert.Equal(t, StatusRunning, item.Status)
	assert.NotNil(t, item.StartedAt)

	// Already running, cannot run again.
	assert.False(t, item.MarkRunning())
}

func TestQueueItem_MarkSucceeded(t *testing.T) {
	item := NewQueueItem(NewDownloadRequest("https://x.com/test", "u", nil, 0))
	result := &DownloadResult{Success: true, Platform: PlatformTwitter, FileRefs: []string{"/tmp/a.mp4"}}

	// Succeeded is only reachable from running.
	assert.False(t, item.MarkSucceeded(result))

	item.MarkRunning()
	assert.True(t, item.MarkSucceeded(result))
	assert.Equal(t, StatusSucceeded, item.Status)
	assert.Equal(t, result, item.Result)
	assert.NotNil(t, item.FinishedAt)
}

func TestQueueItem_MarkFailed(t *testing.T) {
	item := NewQueueItem(NewDownloadRequest("https://x.com/test", "u", nil, 0))
	item.MarkRunning()

	errInfo := NewErrorInfo(NewFatalError(errors.New("unsupported URL")))
	assert.True(t, item.MarkFailed(errInfo, nil))
	assert.Equal(t, StatusFailed, item.Status)
	assert.Equal(t, errInfo, item.Error)
	assert.NotNil(t, item.FinishedAt)

	// Terminal, no further transitions.
	assert.False(t, item.MarkRunning())
	assert.False(t, item.MarkCancelled(nil))
}

func TestQueueItem_MarkCancelled_FromQueued(t *testing.T) {
	item := NewQueueItem(NewDownloadRequest("https://x.com/test", "u", nil, 0))

	assert.True(t, item.MarkCancelled(nil))
	assert.Equal(t, StatusCancelled, item.Status)
	assert.NotNil(t, item.FinishedAt)
	assert.Nil(t, item.StartedAt)
}

func TestQueueItem_Snapshot(t *testing.T) {
	item := NewQueueItem(NewDownloadRequest("https://x.com/test", "u", nil, 3))
	item.MarkRunning()
	item.Decision = &StrategyDecision{StrategyName: PlatformTwitter, Confidence: 0.7}
	item.Analysis = NeutralAnalysis()

	snap := item.Snapshot()
	require.NotNil(t, snap)

	// Mutating the snapshot must not touch the original.
	snap.Decision.Confidence = 0.1
	snap.Analysis.QualityScore = 9.9
	snap.Status = StatusFailed

	assert.Equal(t, 0.7, item.Decision.Confidence)
	assert.Equal(t, 5.0, item.Analysis.QualityScore)
	assert.Equal(t, StatusRunning, item.Status)
}
