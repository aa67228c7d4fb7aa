package app

import (
	"container/heap"
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/bossjones/boss-bot/internal/domain"
	"github.com/bossjones/boss-bot/pkg/logger"
)

// MaxPriority is the highest admission priority; larger values are clamped.
const MaxPriority = 9

var (
	queueSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bossbot_queue_submitted_total",
		Help: "Total number of requests admitted to the queue.",
	})
	queueTerminal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bossbot_queue_terminal_total",
		Help: "Total number of queue items reaching a terminal status.",
	}, []string{"status"})
	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bossbot_queue_depth",
		Help: "Number of items currently waiting in the queue.",
	})
	queueRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bossbot_queue_running",
		Help: "Number of items currently being processed.",
	})
	workflowDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bossbot_workflow_duration_seconds",
		Help:    "Wall time of complete workflow runs.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	})
)

// Notifier delivers desktop notifications for terminal download states.
type Notifier interface {
	NotifyDownloadCompleted(url, platform string)
	NotifyDownloadFailed(url, platform string)
	NotifyQueueDrained()
}

// pendingEntry ties a queued item to its submission sequence number.
type pendingEntry struct {
	item *domain.QueueItem
	seq  uint64
}

// pendingHeap orders queued items by priority (high first), then submission
// order within equal priority.
type pendingHeap []*pendingEntry

func (h pendingHeap) Len() int { return len(h) }

func (h pendingHeap) Less(i, j int) bool {
	if h[i].item.Request.Priority != h[j].item.Request.Priority {
		return h[i].item.Request.Priority > h[j].item.Request.Priority
	}
	return h[i].seq < h[j].seq
}

func (h pendingHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *pendingHeap) Push(x any) { *h = append(*h, x.(*pendingEntry)) }

func (h *pendingHeap) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return entry
}

// QueueManager owns the live queue: admission, priority ordering, the worker
// pool that runs workflows, cancellation, and retention housekeeping. One
// mutex guards the item map and the pending heap; it is never held across a
// workflow run or an archive write.
type QueueManager struct {
	flags    domain.FeatureFlags
	cfg      domain.QueueConfig
	workflow *DownloadWorkflow
	archive  domain.ArchiveRepository
	notifier Notifier
	events   *logger.MultiLogger
	logger   *zap.Logger

	mu       sync.Mutex
	items    map[uuid.UUID]*domain.QueueItem
	pending  pendingHeap
	cancels  map[uuid.UUID]context.CancelFunc
	seq      uint64
	draining bool
	started  bool

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wake       chan struct{}
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// NewQueueManager creates a queue manager. archive and notifier may be nil;
// archiving and notifications are then skipped.
func NewQueueManager(
	flags domain.FeatureFlags,
	cfg domain.QueueConfig,
	workflow *DownloadWorkflow,
	archive domain.ArchiveRepository,
	notifier Notifier,
	events *logger.MultiLogger,
	log *zap.Logger,
) *QueueManager {
	return &QueueManager{
		flags:    flags,
		cfg:      cfg,
		workflow: workflow,
		archive:  archive,
		notifier: notifier,
		events:   events,
		logger:   log,
		items:    make(map[uuid.UUID]*domain.QueueItem),
		cancels:  make(map[uuid.UUID]context.CancelFunc),
		wake:     make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
	}
}

// Start launches the worker pool and the retention janitor. Items enqueued
// before Start wait until workers exist. Calling Start twice is a no-op.
func (qm *QueueManager) Start(ctx context.Context) {
	qm.mu.Lock()
	if qm.started {
		qm.mu.Unlock()
		return
	}
	qm.started = true
	qm.baseCtx, qm.baseCancel = context.WithCancel(ctx)
	workers := qm.flags.MaxConcurrentDownloads
	if workers < 1 {
		workers = 1
	}
	qm.mu.Unlock()

	for i := 0; i < workers; i++ {
		qm.wg.Add(1)
		go qm.worker()
	}
	qm.wg.Add(1)
	go qm.janitor()

	qm.logger.Info("queue manager started", zap.Int("workers", workers))
	qm.events.LogQueueEvent("queue_started", zap.Int("workers", workers))
}

// Enqueue admits a request and returns a snapshot of its freshly queued
// item. Priorities above MaxPriority are clamped before admission.
func (qm *QueueManager) Enqueue(req *domain.DownloadRequest) (*domain.QueueItem, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.Priority > MaxPriority {
		req.Priority = MaxPriority
	}

	qm.mu.Lock()
	if qm.draining {
		qm.mu.Unlock()
		return nil, domain.ErrQueueDraining
	}
	queued := 0
	for _, item := range qm.items {
		if item.Status == domain.StatusQueued {
			queued++
		}
	}
	if qm.flags.MaxQueueSize > 0 && queued >= qm.flags.MaxQueueSize {
		qm.mu.Unlock()
		return nil, domain.ErrQueueFull
	}
	item := domain.NewQueueItem(req)
	qm.items[req.ID] = item
	qm.seq++
	heap.Push(&qm.pending, &pendingEntry{item: item, seq: qm.seq})
	snapshot := item.Snapshot()
	qm.mu.Unlock()

	queueSubmitted.Inc()
	queueDepth.Inc()
	qm.events.LogQueueEvent("item_enqueued",
		zap.String("request_id", req.ID.String()),
		zap.String("url", req.URL),
		zap.String("user_id", req.UserID),
		zap.Int("priority", req.Priority))
	qm.signalWake()
	return snapshot, nil
}

// Status returns a snapshot of the item for id, or ErrNotFound.
func (qm *QueueManager) Status(id uuid.UUID) (*domain.QueueItem, error) {
	qm.mu.Lock()
	defer qm.mu.Unlock()

	item, ok := qm.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return item.Snapshot(), nil
}

// List returns snapshots of live items newest first, optionally filtered to
// one status. Empty status means all.
func (qm *QueueManager) List(status domain.ItemStatus) []*domain.QueueItem {
	qm.mu.Lock()
	defer qm.mu.Unlock()

	out := make([]*domain.QueueItem, 0, len(qm.items))
	for _, item := range qm.items {
		if status != "" && item.Status != status {
			continue
		}
		out = append(out, item.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].EnqueuedAt.After(out[j].EnqueuedAt)
	})
	return out
}

// Stats summarizes the live queue by status.
func (qm *QueueManager) Stats() *domain.QueueStats {
	qm.mu.Lock()
	defer qm.mu.Unlock()

	stats := &domain.QueueStats{}
	for _, item := range qm.items {
		stats.Total++
		switch item.Status {
		case domain.StatusQueued:
			stats.Queued++
		case domain.StatusRunning:
			stats.Running++
		case domain.StatusSucceeded:
			stats.Succeeded++
		case domain.StatusFailed:
			stats.Failed++
		case domain.StatusCancelled:
			stats.Cancelled++
		}
	}
	return stats
}

// Cancel requests cancellation of an item. A queued item becomes cancelled
// immediately and never runs. A running item gets its context cancelled and
// keeps its running status until the workflow observes the cancellation.
// Terminal items return ErrAlreadyTerminal.
func (qm *QueueManager) Cancel(id uuid.UUID) (bool, error) {
	qm.mu.Lock()
	item, ok := qm.items[id]
	if !ok {
		qm.mu.Unlock()
		return false, domain.ErrNotFound
	}

	switch item.Status {
	case domain.StatusQueued:
		item.CancelRequested = true
		item.MarkCancelled(&domain.ErrorInfo{
			Kind:    domain.ErrKindCancelled,
			Message: "cancelled while queued",
			At:      time.Now(),
		})
		qm.mu.Unlock()
		queueDepth.Dec()
		queueTerminal.WithLabelValues(string(domain.StatusCancelled)).Inc()
		qm.events.LogQueueEvent("item_cancelled",
			zap.String("request_id", id.String()),
			zap.String("while", "queued"))
		return true, nil

	case domain.StatusRunning:
		item.CancelRequested = true
		cancel := qm.cancels[id]
		qm.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		qm.events.LogQueueEvent("cancel_requested",
			zap.String("request_id", id.String()),
			zap.String("while", "running"))
		return true, nil

	default:
		qm.mu.Unlock()
		return false, domain.ErrAlreadyTerminal
	}
}

// Evict archives a terminal item and removes it from memory on demand.
// Non-terminal items return ErrNotTerminal.
func (qm *QueueManager) Evict(id uuid.UUID) error {
	qm.mu.Lock()
	item, ok := qm.items[id]
	if !ok {
		qm.mu.Unlock()
		return domain.ErrNotFound
	}
	if !item.Status.IsTerminal() {
		qm.mu.Unlock()
		return domain.ErrNotTerminal
	}
	record := domain.NewArchivedDownload(item)
	qm.mu.Unlock()

	if qm.archive != nil {
		if err := qm.archive.Save(record); err != nil {
			return fmt.Errorf("archive item %s: %w", id, err)
		}
	}

	qm.mu.Lock()
	delete(qm.items, id)
	qm.mu.Unlock()

	qm.events.LogQueueEvent("item_evicted", zap.String("request_id", id.String()))
	return nil
}

// Drain stops admissions and dequeuing, then waits for running items to
// finish, bounded by ctx. Still-queued items stay queued.
func (qm *QueueManager) Drain(ctx context.Context) error {
	qm.mu.Lock()
	already := qm.draining
	qm.draining = true
	qm.mu.Unlock()

	if !already {
		qm.events.LogQueueEvent("queue_draining")
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		if qm.Stats().Running == 0 {
			if qm.notifier != nil {
				qm.notifier.NotifyQueueDrained()
			}
			qm.events.LogQueueEvent("queue_drained")
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Stop terminates workers and the janitor. Running items get their contexts
// cancelled; callers wanting a clean finish call Drain first.
func (qm *QueueManager) Stop() {
	qm.stopOnce.Do(func() {
		close(qm.stopCh)

		qm.mu.Lock()
		cancel := qm.baseCancel
		qm.mu.Unlock()
		if cancel != nil {
			cancel()
		}

		qm.wg.Wait()
		qm.logger.Info("queue manager stopped")
		qm.events.LogQueueEvent("queue_stopped")
	})
}

// IsRunning reports whether workers have been started and not yet stopped.
func (qm *QueueManager) IsRunning() bool {
	select {
	case <-qm.stopCh:
		return false
	default:
	}
	qm.mu.Lock()
	defer qm.mu.Unlock()
	return qm.started
}

// IsDraining reports whether the queue has stopped admitting work.
func (qm *QueueManager) IsDraining() bool {
	qm.mu.Lock()
	defer qm.mu.Unlock()
	return qm.draining
}

func (qm *QueueManager) signalWake() {
	select {
	case qm.wake <- struct{}{}:
	default:
	}
}

func (qm *QueueManager) worker() {
	defer qm.wg.Done()
	for {
		select {
		case <-qm.stopCh:
			return
		default:
		}

		item, ctx := qm.claimNext()
		if item != nil {
			// More work may be pending; nudge another idle worker.
			qm.signalWake()
			qm.process(ctx, item)
			continue
		}

		select {
		case <-qm.wake:
		case <-qm.stopCh:
			return
		}
	}
}

// claimNext pops the highest-priority queued item and transitions it to
// running, handing back its per-item context. Heap entries whose item left
// the queued state (cancelled while pending) are discarded lazily.
func (qm *QueueManager) claimNext() (*domain.QueueItem, context.Context) {
	qm.mu.Lock()
	defer qm.mu.Unlock()

	if qm.draining || !qm.started {
		return nil, nil
	}
	for qm.pending.Len() > 0 {
		entry := heap.Pop(&qm.pending).(*pendingEntry)
		item := entry.item
		if item.Status != domain.StatusQueued || !item.MarkRunning() {
			continue
		}
		ctx, cancel := context.WithCancel(qm.baseCtx)
		qm.cancels[item.Request.ID] = cancel
		queueDepth.Dec()
		queueRunning.Inc()
		return item, ctx
	}
	return nil, nil
}

// process runs the workflow for a claimed item and records its terminal
// status.
func (qm *QueueManager) process(ctx context.Context, item *domain.QueueItem) {
	req := item.Request
	qm.events.LogQueueEvent("item_started",
		zap.String("request_id", req.ID.String()),
		zap.String("url", req.URL))

	start := time.Now()
	state := qm.workflow.Run(ctx, req, qm.observer(req.ID))
	workflowDuration.Observe(time.Since(start).Seconds())

	qm.mu.Lock()
	cancel := qm.cancels[req.ID]
	delete(qm.cancels, req.ID)

	item.Attempt = state.Attempt
	item.Decision = state.Decision
	item.Analysis = state.Analysis
	switch {
	case state.Phase == domain.PhaseSucceeded:
		item.MarkSucceeded(state.Result)
	case domain.ClassifyError(state.LastError) == domain.ErrKindCancelled:
		item.MarkCancelled(domain.NewErrorInfo(state.LastError))
		item.Result = state.Result
	default:
		item.MarkFailed(domain.NewErrorInfo(state.LastError), state.Result)
	}
	status := item.Status
	platform := ""
	if state.Decision != nil {
		platform = state.Decision.StrategyName
	}
	qm.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	queueRunning.Dec()
	queueTerminal.WithLabelValues(string(status)).Inc()
	qm.events.LogQueueEvent("item_finished",
		zap.String("request_id", req.ID.String()),
		zap.String("status", string(status)),
		zap.Int("attempt", state.Attempt))

	qm.notifyTerminal(status, req.URL, platform)
}

// observer mirrors workflow phase progress onto the queue item so status
// queries see it mid-run.
func (qm *QueueManager) observer(id uuid.UUID) domain.WorkflowObserver {
	return func(update domain.WorkflowUpdate) {
		qm.mu.Lock()
		defer qm.mu.Unlock()

		item, ok := qm.items[id]
		if !ok || item.Status != domain.StatusRunning {
			return
		}
		item.Phase = update.Phase
		item.Attempt = update.Attempt
		if update.Decision != nil {
			item.Decision = update.Decision
		}
		if update.Analysis != nil {
			item.Analysis = update.Analysis
		}
	}
}

func (qm *QueueManager) notifyTerminal(status domain.ItemStatus, url, platform string) {
	if qm.notifier == nil {
		return
	}
	switch status {
	case domain.StatusSucceeded:
		qm.notifier.NotifyDownloadCompleted(url, platform)
	case domain.StatusFailed:
		qm.notifier.NotifyDownloadFailed(url, platform)
	}
}

// janitor periodically archives expired terminal items and prunes old
// archive rows.
func (qm *QueueManager) janitor() {
	defer qm.wg.Done()

	interval := qm.cfg.CheckInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			qm.sweep()
		case <-qm.stopCh:
			return
		}
	}
}

// sweep moves terminal items past the retention period into the archive and
// deletes archive rows past the archive retention. Items whose archive write
// fails stay in memory for the next sweep.
func (qm *QueueManager) sweep() {
	cutoff := time.Now().Add(-qm.cfg.RetentionPeriod)

	qm.mu.Lock()
	var expired []*domain.QueueItem
	for _, item := range qm.items {
		if item.Status.IsTerminal() && item.FinishedAt != nil && item.FinishedAt.Before(cutoff) {
			expired = append(expired, item)
		}
	}
	qm.mu.Unlock()

	for _, item := range expired {
		id := item.Request.ID
		if qm.archive != nil {
			if err := qm.archive.Save(domain.NewArchivedDownload(item)); err != nil {
				qm.events.LogAppError("archive write failed",
					zap.String("request_id", id.String()),
					zap.Error(err))
				continue
			}
		}
		qm.mu.Lock()
		delete(qm.items, id)
		qm.mu.Unlock()
		qm.events.LogQueueEvent("item_archived", zap.String("request_id", id.String()))
	}

	if qm.archive != nil && qm.cfg.ArchiveRetention > 0 {
		pruned, err := qm.archive.DeleteOlderThan(time.Now().Add(-qm.cfg.ArchiveRetention))
		if err != nil {
			qm.events.LogAppError("archive prune failed", zap.Error(err))
		} else if pruned > 0 {
			qm.events.LogQueueEvent("archive_pruned", zap.Int64("records", pruned))
		}
	}
}

// validateRequest checks admission requirements: an absolute http(s) URL and
// a non-negative priority.
func validateRequest(req *domain.DownloadRequest) error {
	if req == nil {
		return fmt.Errorf("nil request")
	}
	trimmed := strings.TrimSpace(req.URL)
	if trimmed == "" {
		return fmt.Errorf("url must not be empty")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("url must be absolute http or https: %q", req.URL)
	}
	if req.Priority < 0 {
		return fmt.Errorf("priority must not be negative: %d", req.Priority)
	}
	return nil
}
