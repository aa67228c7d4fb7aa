package domain

// WorkflowPhase is one step of the download workflow state machine.
type WorkflowPhase string

const (
	PhaseSelectStrategy WorkflowPhase = "select_strategy"
	PhaseAnalyzeContent WorkflowPhase = "analyze_content"
	PhaseExecute        WorkflowPhase = "execute"
	PhaseRetry          WorkflowPhase = "retry"
	PhaseSucceeded      WorkflowPhase = "succeeded"
	PhaseFailed         WorkflowPhase = "failed"
)

// IsTerminal reports whether the phase ends the workflow.
func (p WorkflowPhase) IsTerminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}

// WorkflowEvent is an occurrence that drives the workflow between phases.
type WorkflowEvent string

const (
	EventStrategySelected WorkflowEvent = "strategy_selected"
	EventAnalysisSkipped  WorkflowEvent = "analysis_skipped"
	EventAnalysisDone     WorkflowEvent = "analysis_done"
	EventExecuteSucceeded WorkflowEvent = "execute_succeeded"
	EventRetryableFailure WorkflowEvent = "retryable_failure"
	EventFatalFailure     WorkflowEvent = "fatal_failure"
	EventRetriesExhausted WorkflowEvent = "retries_exhausted"
	EventRetryDue         WorkflowEvent = "retry_due"
	EventCancelled        WorkflowEvent = "cancelled"
)

// NextPhase is the single transition function of the workflow state machine.
// It returns the phase that follows the given event in the given phase, and
// false when the pair is not a legal transition. Terminal phases absorb all
// events. EventCancelled is legal from every non-terminal phase and always
// lands in PhaseFailed.
func NextPhase(p WorkflowPhase, ev WorkflowEvent) (WorkflowPhase, bool) {
	if p.IsTerminal() {
		return p, false
	}
	if ev == EventCancelled {
		return PhaseFailed, true
	}
	switch p {
	case PhaseSelectStrategy:
		switch ev {
		case EventStrategySelected:
			return PhaseAnalyzeContent, true
		case EventAnalysisSkipped:
			return PhaseExecute, true
		}
	case PhaseAnalyzeContent:
		if ev == EventAnalysisDone {
			return PhaseExecute, true
		}
	case PhaseExecute:
		switch ev {
		case EventExecuteSucceeded:
			return PhaseSucceeded, true
		case EventRetryableFailure:
			return PhaseRetry, true
		case EventFatalFailure, EventRetriesExhausted:
			return PhaseFailed, true
		}
	case PhaseRetry:
		if ev == EventRetryDue {
			return PhaseExecute, true
		}
	}
	return p, false
}

// WorkflowState is the accumulating record of one workflow run. The engine
// owns it for the duration of the run and publishes snapshots through
// WorkflowUpdate callbacks.
type WorkflowState struct {
	Request   *DownloadRequest
	Phase     WorkflowPhase
	Decision  *StrategyDecision
	Analysis  *ContentAnalysis
	Result    *DownloadResult
	Attempt   int
	LastError error
}

// WorkflowUpdate notifies observers of a phase change mid-run.
type WorkflowUpdate struct {
	RequestID string
	URL       string
	Phase     WorkflowPhase
	Event     WorkflowEvent
	Attempt   int
	Decision  *StrategyDecision
	Analysis  *ContentAnalysis
}

// WorkflowObserver receives phase-change updates. Implementations must not
// block; the engine calls them synchronously between phases.
type WorkflowObserver func(WorkflowUpdate)
