package app

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bossjones/boss-bot/internal/domain"
	"github.com/bossjones/boss-bot/pkg/logger"
)

// scriptedStrategy claims every URL and returns pre-programmed outcomes call
// by call, repeating the last one. A nil outcome means success.
type scriptedStrategy struct {
	mu       sync.Mutex
	name     string
	outcomes []error
	calls    int
	urls     []string
	block    bool          // wait for ctx, then return its error
	sleep    time.Duration // simulated work, cancellable

	active    int32
	maxActive int32
}

func (s *scriptedStrategy) Name() string { return s.name }

func (s *scriptedStrategy) Supports(url string) bool { return true }

func (s *scriptedStrategy) Execute(ctx context.Context, url string, options map[string]any) (*domain.DownloadResult, error) {
	active := atomic.AddInt32(&s.active, 1)
	defer atomic.AddInt32(&s.active, -1)
	for {
		seen := atomic.LoadInt32(&s.maxActive)
		if active <= seen || atomic.CompareAndSwapInt32(&s.maxActive, seen, active) {
			break
		}
	}

	s.mu.Lock()
	call := s.calls
	s.calls++
	s.urls = append(s.urls, url)
	var outcome error
	if len(s.outcomes) > 0 {
		idx := call
		if idx >= len(s.outcomes) {
			idx = len(s.outcomes) - 1
		}
		outcome = s.outcomes[idx]
	}
	block, sleep := s.block, s.sleep
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if sleep > 0 {
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if outcome != nil {
		return nil, outcome
	}
	return &domain.DownloadResult{
		Success:  true,
		Platform: s.name,
		FileRefs: []string{"/downloads/" + s.name + ".mp4"},
	}, nil
}

func (s *scriptedStrategy) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *scriptedStrategy) seenURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.urls...)
}

func (s *scriptedStrategy) peakConcurrency() int {
	return int(atomic.LoadInt32(&s.maxActive))
}

func newTestEvents(t *testing.T) *logger.MultiLogger {
	t.Helper()
	events, err := logger.NewMultiLogger(logger.MultiLoggerConfig{Level: "info", LogsDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { events.Close() })
	return events
}

func workflowFlags(maxRetries int) domain.FeatureFlags {
	return domain.FeatureFlags{
		MaxRetries:       maxRetries,
		ExecutionTimeout: 5 * time.Second,
		AITimeout:        time.Second,
	}
}

func newTestWorkflow(t *testing.T, flags domain.FeatureFlags, strategy domain.Strategy) *DownloadWorkflow {
	t.Helper()
	registry := NewStrategyRegistry()
	require.NoError(t, registry.Register(strategy))
	selector := NewStrategySelector(flags, domain.AIConfig{CacheSize: 8, CacheTTL: time.Minute}, registry, nil, zap.NewNop())
	analyzer := NewContentAnalyzer(flags, nil, zap.NewNop())
	gate := NewPlatformGate(4)
	return NewDownloadWorkflow(flags, time.Millisecond, selector, analyzer, registry, gate, newTestEvents(t), zap.NewNop())
}

func TestRun_SucceedsFirstAttempt(t *testing.T) {
	strategy := &scriptedStrategy{name: domain.PlatformTwitter}
	wf := newTestWorkflow(t, workflowFlags(3), strategy)
	req := domain.NewDownloadRequest("https://twitter.com/user/status/1", "u1", nil, 0)

	var phases []domain.WorkflowPhase
	state := wf.Run(context.Background(), req, func(update domain.WorkflowUpdate) {
		phases = append(phases, update.Phase)
	})

	assert.Equal(t, domain.PhaseSucceeded, state.Phase)
	assert.Equal(t, 1, state.Attempt)
	require.NotNil(t, state.Result)
	assert.True(t, state.Result.Success)
	assert.Equal(t, 1, strategy.callCount())
	assert.Equal(t, []domain.WorkflowPhase{domain.PhaseExecute, domain.PhaseSucceeded}, phases,
		"analysis disabled should go straight to execute")
}

func TestRun_AnalysisPhaseEnrichesResult(t *testing.T) {
	strategy := &scriptedStrategy{name: domain.PlatformYouTube}
	flags := workflowFlags(1)
	flags.AIContentAnalysis = true

	registry := NewStrategyRegistry()
	require.NoError(t, registry.Register(strategy))
	selector := NewStrategySelector(flags, domain.AIConfig{CacheSize: 8, CacheTTL: time.Minute}, registry, nil, zap.NewNop())
	model := &mockModel{respond: routeProbes("9", `{"engagement": "high"}`, "SAFE")}
	analyzer := NewContentAnalyzer(flags, model, zap.NewNop())
	wf := NewDownloadWorkflow(flags, time.Millisecond, selector, analyzer, registry, NewPlatformGate(2), newTestEvents(t), zap.NewNop())

	req := domain.NewDownloadRequest("https://youtube.com/watch?v=abc", "u1", nil, 0)
	var phases []domain.WorkflowPhase
	state := wf.Run(context.Background(), req, func(update domain.WorkflowUpdate) {
		phases = append(phases, update.Phase)
	})

	assert.Equal(t, domain.PhaseSucceeded, state.Phase)
	require.NotNil(t, state.Analysis)
	assert.InDelta(t, 9.0, state.Analysis.QualityScore, 0.001)
	assert.Contains(t, phases, domain.PhaseAnalyzeContent)
	require.NotNil(t, state.Result)
	assert.Equal(t, 9.0, state.Result.Metadata["quality_score"])
	assert.Equal(t, "high", state.Result.Metadata["engagement_prediction"])
	assert.Equal(t, false, state.Result.Metadata["safety_flag"])
}

func TestRun_RetryableFailuresThenSuccess(t *testing.T) {
	strategy := &scriptedStrategy{
		name:     domain.PlatformReddit,
		outcomes: []error{domain.NewRetryableError(assert.AnError), domain.NewRetryableError(assert.AnError), nil},
	}
	wf := newTestWorkflow(t, workflowFlags(3), strategy)
	req := domain.NewDownloadRequest("https://reddit.com/r/pics/1", "u1", nil, 0)

	state := wf.Run(context.Background(), req, nil)

	assert.Equal(t, domain.PhaseSucceeded, state.Phase)
	assert.Equal(t, 3, state.Attempt, "success on the third attempt")
	assert.Equal(t, 3, strategy.callCount())
	require.NotNil(t, state.Result)
	assert.True(t, state.Result.Success)
}

func TestRun_RetriesExhausted(t *testing.T) {
	strategy := &scriptedStrategy{
		name:     domain.PlatformReddit,
		outcomes: []error{domain.NewRetryableError(assert.AnError)},
	}
	wf := newTestWorkflow(t, workflowFlags(2), strategy)
	req := domain.NewDownloadRequest("https://reddit.com/r/pics/2", "u1", nil, 0)

	state := wf.Run(context.Background(), req, nil)

	assert.Equal(t, domain.PhaseFailed, state.Phase)
	assert.Equal(t, 3, strategy.callCount(), "max_retries+1 total attempts")
	assert.Equal(t, domain.ErrKindRetryable, domain.ClassifyError(state.LastError))
	require.NotNil(t, state.Result)
	assert.False(t, state.Result.Success)
	assert.NotEmpty(t, state.Result.ErrorMessage)
}

func TestRun_ZeroRetriesSingleAttempt(t *testing.T) {
	strategy := &scriptedStrategy{
		name:     domain.PlatformGeneric,
		outcomes: []error{domain.NewRetryableError(assert.AnError)},
	}
	wf := newTestWorkflow(t, workflowFlags(0), strategy)
	req := domain.NewDownloadRequest("https://example.com/a", "u1", nil, 0)

	state := wf.Run(context.Background(), req, nil)

	assert.Equal(t, domain.PhaseFailed, state.Phase)
	assert.Equal(t, 1, strategy.callCount())
}

func TestRun_FatalFailureShortCircuits(t *testing.T) {
	strategy := &scriptedStrategy{
		name:     domain.PlatformTwitter,
		outcomes: []error{domain.NewFatalError(assert.AnError)},
	}
	wf := newTestWorkflow(t, workflowFlags(3), strategy)
	req := domain.NewDownloadRequest("https://twitter.com/user/status/2", "u1", nil, 0)

	state := wf.Run(context.Background(), req, nil)

	assert.Equal(t, domain.PhaseFailed, state.Phase)
	assert.Equal(t, 1, strategy.callCount(), "fatal errors must not retry")
	assert.Equal(t, domain.ErrKindFatal, domain.ClassifyError(state.LastError))
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	strategy := &scriptedStrategy{name: domain.PlatformTwitter}
	wf := newTestWorkflow(t, workflowFlags(3), strategy)
	req := domain.NewDownloadRequest("https://twitter.com/user/status/3", "u1", nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	state := wf.Run(ctx, req, nil)

	assert.Equal(t, domain.PhaseFailed, state.Phase)
	assert.Zero(t, strategy.callCount())
	assert.Equal(t, domain.ErrKindCancelled, domain.ClassifyError(state.LastError))
}

func TestRun_CancelledDuringExecution(t *testing.T) {
	strategy := &scriptedStrategy{name: domain.PlatformTwitter, block: true}
	wf := newTestWorkflow(t, workflowFlags(3), strategy)
	req := domain.NewDownloadRequest("https://twitter.com/user/status/4", "u1", nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	stateCh := make(chan *domain.WorkflowState, 1)
	go func() {
		stateCh <- wf.Run(ctx, req, nil)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case state := <-stateCh:
		assert.Equal(t, domain.PhaseFailed, state.Phase)
		assert.Equal(t, 1, strategy.callCount(), "cancellation must not retry")
		assert.Equal(t, domain.ErrKindCancelled, domain.ClassifyError(state.LastError))
	case <-time.After(2 * time.Second):
		t.Fatal("workflow did not finish after cancellation")
	}
}

func TestRun_ExecutionTimeoutRetries(t *testing.T) {
	strategy := &scriptedStrategy{name: domain.PlatformGeneric, sleep: 200 * time.Millisecond}
	flags := workflowFlags(1)
	flags.ExecutionTimeout = 15 * time.Millisecond
	wf := newTestWorkflow(t, flags, strategy)
	req := domain.NewDownloadRequest("https://example.com/slow", "u1", nil, 0)

	state := wf.Run(context.Background(), req, nil)

	assert.Equal(t, domain.PhaseFailed, state.Phase)
	assert.Equal(t, 2, strategy.callCount(), "deadline expiry is retryable")
	assert.Equal(t, domain.ErrKindRetryable, domain.ClassifyError(state.LastError))
}

func TestRun_UnregisteredStrategyIsFatal(t *testing.T) {
	strategy := &scriptedStrategy{name: domain.PlatformTwitter}
	flags := workflowFlags(3)

	selectorRegistry := NewStrategyRegistry()
	require.NoError(t, selectorRegistry.Register(strategy))
	selector := NewStrategySelector(flags, domain.AIConfig{CacheSize: 8, CacheTTL: time.Minute}, selectorRegistry, nil, zap.NewNop())
	analyzer := NewContentAnalyzer(flags, nil, zap.NewNop())
	// The execution registry does not know the selected strategy.
	wf := NewDownloadWorkflow(flags, time.Millisecond, selector, analyzer, NewStrategyRegistry(), NewPlatformGate(2), newTestEvents(t), zap.NewNop())

	req := domain.NewDownloadRequest("https://twitter.com/user/status/5", "u1", nil, 0)
	state := wf.Run(context.Background(), req, nil)

	assert.Equal(t, domain.PhaseFailed, state.Phase)
	assert.Zero(t, strategy.callCount())
	require.NotNil(t, state.Result)
	assert.Contains(t, state.Result.ErrorMessage, "not registered")
}

func TestExecutionOptions_Layering(t *testing.T) {
	wf := newTestWorkflow(t, workflowFlags(0), &scriptedStrategy{name: domain.PlatformYouTube})

	state := &domain.WorkflowState{
		Request: &domain.DownloadRequest{
			Preferences: map[string]any{"format": "mp4", "platform": domain.PlatformYouTube},
		},
		Decision: &domain.StrategyDecision{
			RecommendedOptions: map[string]any{"quality": "720p"},
		},
		Analysis: &domain.ContentAnalysis{QualityScore: 9},
	}

	options := wf.executionOptions(state)
	assert.Equal(t, "720p", options["quality"], "analysis tuning must not override a set quality")
	assert.Equal(t, "mp4", options["format"])
	_, hasPlatform := options["platform"]
	assert.False(t, hasPlatform, "platform preference is a selector input")
}

func TestExecutionOptions_AnalysisSetsQualityWhenUnset(t *testing.T) {
	wf := newTestWorkflow(t, workflowFlags(0), &scriptedStrategy{name: domain.PlatformGeneric})

	state := &domain.WorkflowState{
		Request:  &domain.DownloadRequest{},
		Decision: &domain.StrategyDecision{},
		Analysis: &domain.ContentAnalysis{QualityScore: 8},
	}
	assert.Equal(t, "1080p", wf.executionOptions(state)["quality"])

	state.Analysis.QualityScore = 5
	_, set := wf.executionOptions(state)["quality"]
	assert.False(t, set, "mid quality leaves the tool default")
}

func TestExecutionOptions_UserPreferenceWins(t *testing.T) {
	wf := newTestWorkflow(t, workflowFlags(0), &scriptedStrategy{name: domain.PlatformGeneric})

	state := &domain.WorkflowState{
		Request:  &domain.DownloadRequest{Preferences: map[string]any{"quality": "480p"}},
		Decision: &domain.StrategyDecision{RecommendedOptions: map[string]any{"quality": "1080p"}},
		Analysis: &domain.ContentAnalysis{QualityScore: 9},
	}
	assert.Equal(t, "480p", wf.executionOptions(state)["quality"])
}
