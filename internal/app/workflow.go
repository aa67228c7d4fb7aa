package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/bossjones/boss-bot/internal/domain"
	"github.com/bossjones/boss-bot/pkg/logger"
)

var workflowExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bossbot_workflow_executions_total",
	Help: "Total number of strategy execution attempts by platform and outcome.",
}, []string{"platform", "outcome"})

// DownloadWorkflow drives one request through the download state machine:
// select_strategy, optional analyze_content, execute with bounded retries,
// then a terminal succeeded or failed phase. Each run owns its WorkflowState
// exclusively; concurrency lives in the queue, not here.
type DownloadWorkflow struct {
	flags      domain.FeatureFlags
	retryDelay time.Duration
	selector   *StrategySelector
	analyzer   *ContentAnalyzer
	registry   *StrategyRegistry
	gate       *PlatformGate
	events     *logger.MultiLogger
	logger     *zap.Logger
}

// NewDownloadWorkflow creates a workflow engine over the given collaborators.
func NewDownloadWorkflow(
	flags domain.FeatureFlags,
	retryDelay time.Duration,
	selector *StrategySelector,
	analyzer *ContentAnalyzer,
	registry *StrategyRegistry,
	gate *PlatformGate,
	events *logger.MultiLogger,
	log *zap.Logger,
) *DownloadWorkflow {
	return &DownloadWorkflow{
		flags:      flags,
		retryDelay: retryDelay,
		selector:   selector,
		analyzer:   analyzer,
		registry:   registry,
		gate:       gate,
		events:     events,
		logger:     log,
	}
}

// Run executes the state machine for one request until a terminal phase.
// The returned state always has Phase succeeded or failed and a non-nil
// Result. observe, when non-nil, is called synchronously after every
// transition.
func (w *DownloadWorkflow) Run(ctx context.Context, req *domain.DownloadRequest, observe domain.WorkflowObserver) *domain.WorkflowState {
	state := &domain.WorkflowState{
		Request: req,
		Phase:   domain.PhaseSelectStrategy,
		Attempt: 1,
	}

	w.logger.Info("workflow started",
		zap.String("request_id", req.ID.String()),
		zap.String("url", req.URL))

	for !state.Phase.IsTerminal() {
		if err := ctx.Err(); err != nil {
			state.LastError = domain.NewCancelledError(err)
			w.advance(state, domain.EventCancelled, observe)
			continue
		}

		switch state.Phase {
		case domain.PhaseSelectStrategy:
			state.Decision = w.selector.Select(ctx, req)
			if w.flags.AIContentAnalysis {
				w.advance(state, domain.EventStrategySelected, observe)
			} else {
				w.advance(state, domain.EventAnalysisSkipped, observe)
			}

		case domain.PhaseAnalyzeContent:
			state.Analysis = w.analyzer.Analyze(ctx, req.URL)
			w.advance(state, domain.EventAnalysisDone, observe)

		case domain.PhaseExecute:
			w.advance(state, w.execute(ctx, state), observe)

		case domain.PhaseRetry:
			if !w.waitRetry(ctx) {
				state.LastError = domain.NewCancelledError(ctx.Err())
				w.advance(state, domain.EventCancelled, observe)
				continue
			}
			state.Attempt++
			w.advance(state, domain.EventRetryDue, observe)
		}
	}

	w.finalize(state)

	w.logger.Info("workflow finished",
		zap.String("request_id", req.ID.String()),
		zap.String("url", req.URL),
		zap.String("phase", string(state.Phase)),
		zap.Int("attempt", state.Attempt))
	return state
}

// advance applies one event to the state machine and notifies observers.
func (w *DownloadWorkflow) advance(state *domain.WorkflowState, ev domain.WorkflowEvent, observe domain.WorkflowObserver) {
	next, ok := domain.NextPhase(state.Phase, ev)
	if !ok {
		// Run only emits events legal for the current phase; a miss here
		// is a programming error.
		w.logger.Error("illegal workflow transition",
			zap.String("request_id", state.Request.ID.String()),
			zap.String("phase", string(state.Phase)),
			zap.String("event", string(ev)))
		next = domain.PhaseFailed
	}
	state.Phase = next

	w.events.LogWorkflowEvent("phase_changed",
		zap.String("request_id", state.Request.ID.String()),
		zap.String("url", state.Request.URL),
		zap.String("event", string(ev)),
		zap.String("phase", string(next)),
		zap.Int("attempt", state.Attempt))

	if observe != nil {
		observe(domain.WorkflowUpdate{
			RequestID: state.Request.ID.String(),
			URL:       state.Request.URL,
			Phase:     next,
			Event:     ev,
			Attempt:   state.Attempt,
			Decision:  state.Decision,
			Analysis:  state.Analysis,
		})
	}
}

// execute runs the chosen strategy once and maps the outcome to a workflow
// event. Retryable failures become retries_exhausted once the attempt count
// passes MaxRetries, so a request executes at most MaxRetries+1 times.
func (w *DownloadWorkflow) execute(ctx context.Context, state *domain.WorkflowState) domain.WorkflowEvent {
	strategy, ok := w.registry.ByName(state.Decision.StrategyName)
	if !ok {
		state.LastError = domain.NewFatalError(fmt.Errorf("strategy %q not registered", state.Decision.StrategyName))
		return domain.EventFatalFailure
	}
	platform := strategy.Name()

	if err := w.gate.Acquire(ctx, platform); err != nil {
		state.LastError = domain.NewCancelledError(err)
		return domain.EventCancelled
	}
	defer w.gate.Release(platform)

	execCtx := ctx
	if w.flags.ExecutionTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, w.flags.ExecutionTimeout)
		defer cancel()
	}

	result, err := strategy.Execute(execCtx, state.Request.URL, w.executionOptions(state))
	if err == nil {
		state.Result = result
		state.LastError = nil
		workflowExecutions.WithLabelValues(platform, "succeeded").Inc()
		return domain.EventExecuteSucceeded
	}

	state.LastError = err
	kind := domain.ClassifyError(err)
	// The caller cancelling outranks whatever the strategy reported.
	if ctx.Err() == context.Canceled {
		kind = domain.ErrKindCancelled
	}
	workflowExecutions.WithLabelValues(platform, string(kind)).Inc()

	w.logger.Warn("strategy execution failed",
		zap.String("request_id", state.Request.ID.String()),
		zap.String("platform", platform),
		zap.String("kind", string(kind)),
		zap.Int("attempt", state.Attempt),
		zap.Error(err))

	switch kind {
	case domain.ErrKindCancelled:
		return domain.EventCancelled
	case domain.ErrKindFatal:
		return domain.EventFatalFailure
	default:
		if state.Attempt > w.flags.MaxRetries {
			return domain.EventRetriesExhausted
		}
		return domain.EventRetryableFailure
	}
}

// executionOptions layers the option sources for a strategy call: decision
// recommendations first, then analysis tuning, then user preferences, with
// later layers winning.
func (w *DownloadWorkflow) executionOptions(state *domain.WorkflowState) map[string]any {
	options := make(map[string]any, len(state.Decision.RecommendedOptions))
	for k, v := range state.Decision.RecommendedOptions {
		options[k] = v
	}
	if state.Analysis != nil && state.Analysis.QualityScore >= 7.5 {
		if _, set := options["quality"]; !set {
			options["quality"] = "1080p"
		}
	}
	for k, v := range state.Request.Preferences {
		if k == "platform" {
			// Consumed by the selector, not the downloader.
			continue
		}
		options[k] = v
	}
	return options
}

// waitRetry sleeps the retry delay, honoring cancellation. Returns false if
// ctx was done before the delay elapsed.
func (w *DownloadWorkflow) waitRetry(ctx context.Context) bool {
	if w.retryDelay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(w.retryDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// finalize guarantees the terminal state carries a structured result and
// attaches the advisory analysis signals to its metadata.
func (w *DownloadWorkflow) finalize(state *domain.WorkflowState) {
	platform := ""
	if state.Decision != nil {
		platform = state.Decision.StrategyName
	}

	if state.Phase == domain.PhaseSucceeded {
		if state.Result == nil {
			state.Result = &domain.DownloadResult{Success: true, Platform: platform}
		}
	} else {
		message := "workflow failed"
		if state.LastError != nil {
			message = state.LastError.Error()
		}
		if state.Result == nil {
			state.Result = &domain.DownloadResult{Platform: platform}
		}
		state.Result.Success = false
		state.Result.ErrorMessage = message
	}

	if state.Analysis != nil {
		if state.Result.Metadata == nil {
			state.Result.Metadata = make(map[string]any)
		}
		state.Result.Metadata["quality_score"] = state.Analysis.QualityScore
		state.Result.Metadata["engagement_prediction"] = string(state.Analysis.EngagementPrediction)
		state.Result.Metadata["safety_flag"] = state.Analysis.SafetyFlag
	}
}
