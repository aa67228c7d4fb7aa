package domain

import (
	"time"

	"github.com/google/uuid"
)

// ItemStatus represents the lifecycle state of a queue item
type ItemStatus string

const (
	StatusQueued    ItemStatus = "queued"
	StatusRunning   ItemStatus = "running"
	StatusSucceeded ItemStatus = "succeeded"
	StatusFailed    ItemStatus = "failed"
	StatusCancelled ItemStatus = "cancelled"
)

// IsTerminal reports whether the status admits no further transitions.
func (s ItemStatus) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

// CanTransition reports whether moving from s to next is a legal forward
// transition. Statuses only move forward: queued→running→{succeeded,failed},
// or queued/running→cancelled. Terminal states admit nothing.
func (s ItemStatus) CanTransition(next ItemStatus) bool {
	switch s {
	case StatusQueued:
		return next == StatusRunning || next == StatusCancelled
	case StatusRunning:
		return next == StatusSucceeded || next == StatusFailed || next == StatusCancelled
	default:
		return false
	}
}

// DownloadRequest is the immutable description of one download submission.
// Created at submit time and never modified afterwards; owned exclusively by
// the queue item that wraps it.
type DownloadRequest struct {
	ID          uuid.UUID      `json:"id"`
	URL         string         `json:"url"`
	UserID      string         `json:"user_id"`
	RequestedAt time.Time      `json:"requested_at"`
	Preferences map[string]any `json:"preferences,omitempty"`
	Priority    int            `json:"priority"`
}

// NewDownloadRequest creates a request with a fresh ID and timestamp.
func NewDownloadRequest(url, userID string, prefs map[string]any, priority int) *DownloadRequest {
	return &DownloadRequest{
		ID:          uuid.New(),
		URL:         url,
		UserID:      userID,
		RequestedAt: time.Now(),
		Preferences: prefs,
		Priority:    priority,
	}
}

// QueueItem tracks one request through the queue. Mutated only by the queue
// manager (under its lock) and destroyed or archived after the retention
// window. Exactly one QueueItem exists per request ID.
type QueueItem struct {
	Request         *DownloadRequest  `json:"request"`
	Status          ItemStatus        `json:"status"`
	Phase           WorkflowPhase     `json:"phase,omitempty"`
	Attempt         int               `json:"attempt"`
	Decision        *StrategyDecision `json:"decision,omitempty"`
	Analysis        *ContentAnalysis  `json:"analysis,omitempty"`
	Result          *DownloadResult   `json:"result,omitempty"`
	Error           *ErrorInfo        `json:"error,omitempty"`
	CancelRequested bool              `json:"cancel_requested,omitempty"`
	EnqueuedAt      time.Time         `json:"enqueued_at"`
	StartedAt       *time.Time        `json:"started_at,omitempty"`
	FinishedAt      *time.Time        `json:"finished_at,omitempty"`
}

// NewQueueItem wraps a request in a freshly queued item.
func NewQueueItem(req *DownloadRequest) *QueueItem {
	return &QueueItem{
		Request:    req,
		Status:     StatusQueued,
		EnqueuedAt: time.Now(),
	}
}

// MarkRunning transitions the item to running. Returns false if the current
// status does not allow it.
func (qi *QueueItem) MarkRunning() bool {
	if !qi.Status.CanTransition(StatusRunning) {
		return false
	}
	qi.Status = StatusRunning
	now := time.Now()
	qi.StartedAt = &now
	return true
}

// MarkSucceeded transitions the item to succeeded with its result.
func (qi *QueueItem) MarkSucceeded(result *DownloadResult) bool {
	if !qi.Status.CanTransition(StatusSucceeded) {
		return false
	}
	qi.Status = StatusSucceeded
	qi.Result = result
	qi.finish()
	return true
}

// MarkFailed transitions the item to failed, recording the error and any
// partial result.
func (qi *QueueItem) MarkFailed(errInfo *ErrorInfo, result *DownloadResult) bool {
	if !qi.Status.CanTransition(StatusFailed) {
		return false
	}
	qi.Status = StatusFailed
	qi.Error = errInfo
	qi.Result = result
	qi.finish()
	return true
}

// MarkCancelled transitions the item to cancelled.
func (qi *QueueItem) MarkCancelled(errInfo *ErrorInfo) bool {
	if !qi.Status.CanTransition(StatusCancelled) {
		return false
	}
	qi.Status = StatusCancelled
	qi.Error = errInfo
	qi.finish()
	return true
}

func (qi *QueueItem) finish() {
	now := time.Now()
	qi.FinishedAt = &now
}

// Snapshot returns a copy safe to hand to callers while the original keeps
// mutating under the queue lock. Nested records are copied by value; the
// request itself is immutable and shared.
func (qi *QueueItem) Snapshot() *QueueItem {
	cp := *qi
	if qi.Decision != nil {
		d := *qi.Decision
		cp.Decision = &d
	}
	if qi.Analysis != nil {
		a := *qi.Analysis
		cp.Analysis = &a
	}
	if qi.Result != nil {
		r := *qi.Result
		cp.Result = &r
	}
	if qi.Error != nil {
		e := *qi.Error
		cp.Error = &e
	}
	if qi.StartedAt != nil {
		t := *qi.StartedAt
		cp.StartedAt = &t
	}
	if qi.FinishedAt != nil {
		t := *qi.FinishedAt
		cp.FinishedAt = &t
	}
	return &cp
}

// QueueStats summarizes the live queue by status.
type QueueStats struct {
	Total     int `json:"total"`
	Queued    int `json:"queued"`
	Running   int `json:"running"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}
