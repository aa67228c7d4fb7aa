package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bossjones/boss-bot/internal/domain"
)

// StatsOverview combines live queue counts with archived history counts.
type StatsOverview struct {
	Queue   *domain.QueueStats   `json:"queue"`
	Archive *domain.ArchiveStats `json:"archive,omitempty"`
}

// DownloadManager is the public entry point for download orchestration. It
// builds requests, delegates queue operations, and bridges lookups across
// the live queue and the archive.
type DownloadManager struct {
	queue    *QueueManager
	registry *StrategyRegistry
	archive  domain.ArchiveRepository
	logger   *zap.Logger
}

// NewDownloadManager creates the facade over an assembled queue.
func NewDownloadManager(queue *QueueManager, registry *StrategyRegistry, archive domain.ArchiveRepository, log *zap.Logger) *DownloadManager {
	return &DownloadManager{
		queue:    queue,
		registry: registry,
		archive:  archive,
		logger:   log,
	}
}

// Start launches queue workers and the janitor.
func (dm *DownloadManager) Start(ctx context.Context) {
	dm.queue.Start(ctx)
}

// Drain stops admissions and waits for running downloads, bounded by ctx.
func (dm *DownloadManager) Drain(ctx context.Context) error {
	return dm.queue.Drain(ctx)
}

// Stop terminates the queue runtime.
func (dm *DownloadManager) Stop() {
	dm.queue.Stop()
}

// Submit queues a download and returns the queued item snapshot.
func (dm *DownloadManager) Submit(url, userID string, prefs map[string]any, priority int) (*domain.QueueItem, error) {
	req := domain.NewDownloadRequest(strings.TrimSpace(url), userID, prefs, priority)
	item, err := dm.queue.Enqueue(req)
	if err != nil {
		return nil, err
	}
	dm.logger.Info("download submitted",
		zap.String("request_id", req.ID.String()),
		zap.String("url", req.URL),
		zap.Int("priority", req.Priority))
	return item, nil
}

// Status returns the item snapshot for id. Items already evicted from the
// live queue are answered from the archive.
func (dm *DownloadManager) Status(id string) (*domain.QueueItem, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	item, err := dm.queue.Status(uid)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, domain.ErrNotFound) || dm.archive == nil {
		return nil, err
	}
	record, err := dm.archive.FindByID(uid.String())
	if err != nil {
		return nil, err
	}
	return record.Item(), nil
}

// Cancel requests cancellation of the item for id.
func (dm *DownloadManager) Cancel(id string) (bool, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return false, domain.ErrNotFound
	}
	return dm.queue.Cancel(uid)
}

// Evict archives a terminal item and drops it from the live queue.
func (dm *DownloadManager) Evict(id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return domain.ErrNotFound
	}
	return dm.queue.Evict(uid)
}

// List returns live item snapshots, optionally filtered by status.
func (dm *DownloadManager) List(status string) []*domain.QueueItem {
	return dm.queue.List(domain.ItemStatus(status))
}

// Stats returns live queue counts plus archive counts when available.
func (dm *DownloadManager) Stats() (*StatsOverview, error) {
	overview := &StatsOverview{Queue: dm.queue.Stats()}
	if dm.archive != nil {
		archiveStats, err := dm.archive.Stats()
		if err != nil {
			return nil, fmt.Errorf("archive stats: %w", err)
		}
		overview.Archive = archiveStats
	}
	return overview, nil
}

// History returns archived records newest first, optionally filtered to one
// terminal status and one platform.
func (dm *DownloadManager) History(status, platform string, limit int) ([]*domain.ArchivedDownload, error) {
	if dm.archive == nil {
		return nil, nil
	}
	return dm.archive.List(status, platform, limit)
}

// Requeue resubmits a finished download as a fresh request with the same
// URL, user, and priority. Works for terminal live items and archived ones;
// a still-active item returns ErrNotTerminal.
func (dm *DownloadManager) Requeue(id string) (*domain.QueueItem, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}

	item, err := dm.queue.Status(uid)
	if err == nil {
		if !item.Status.IsTerminal() {
			return nil, domain.ErrNotTerminal
		}
		return dm.Submit(item.Request.URL, item.Request.UserID, item.Request.Preferences, item.Request.Priority)
	}
	if !errors.Is(err, domain.ErrNotFound) || dm.archive == nil {
		return nil, err
	}

	record, err := dm.archive.FindByID(uid.String())
	if err != nil {
		return nil, err
	}
	return dm.Submit(record.URL, record.UserID, nil, record.Priority)
}

// Platforms lists the registered strategy names in match order.
func (dm *DownloadManager) Platforms() []string {
	return dm.registry.Names()
}
