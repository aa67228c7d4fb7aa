package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ArchivedDownload is the flattened persistent record of a terminal queue
// item, written when the janitor evicts the item from the live queue.
type ArchivedDownload struct {
	ID           string     `gorm:"primaryKey" json:"id"`
	URL          string     `gorm:"not null;index" json:"url"`
	UserID       string     `gorm:"index" json:"user_id"`
	Platform     string     `gorm:"index" json:"platform"`
	Priority     int        `json:"priority"`
	Status       string     `gorm:"not null;index" json:"status"`
	Confidence   float64    `json:"confidence"`
	AIEnhanced   bool       `json:"ai_enhanced"`
	Attempts     int        `json:"attempts"`
	FileRefs     string     `gorm:"type:text" json:"file_refs,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	EnqueuedAt   time.Time  `json:"enqueued_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	ArchivedAt   time.Time  `gorm:"autoCreateTime" json:"archived_at"`
}

// TableName returns the table name for GORM
func (ArchivedDownload) TableName() string {
	return "archived_downloads"
}

// NewArchivedDownload flattens a terminal queue item into its archive row.
func NewArchivedDownload(item *QueueItem) *ArchivedDownload {
	rec := &ArchivedDownload{
		ID:         item.Request.ID.String(),
		URL:        item.Request.URL,
		UserID:     item.Request.UserID,
		Priority:   item.Request.Priority,
		Status:     string(item.Status),
		Attempts:   item.Attempt,
		EnqueuedAt: item.EnqueuedAt,
		StartedAt:  item.StartedAt,
		FinishedAt: item.FinishedAt,
	}
	if item.Decision != nil {
		rec.Platform = item.Decision.StrategyName
		rec.Confidence = item.Decision.Confidence
		rec.AIEnhanced = item.Decision.AIEnhanced
	}
	if item.Result != nil && len(item.Result.FileRefs) > 0 {
		if data, err := json.Marshal(item.Result.FileRefs); err == nil {
			rec.FileRefs = string(data)
		}
	}
	if item.Error != nil {
		rec.ErrorMessage = item.Error.Message
	}
	return rec
}

// Item reconstructs a terminal queue item snapshot from the archive row so
// status lookups keep answering after the live item was evicted. Only what
// the archive preserves comes back: error kinds and analysis signals are not
// retained.
func (a *ArchivedDownload) Item() *QueueItem {
	id, err := uuid.Parse(a.ID)
	if err != nil {
		id = uuid.Nil
	}
	status := ItemStatus(a.Status)

	item := &QueueItem{
		Request: &DownloadRequest{
			ID:          id,
			URL:         a.URL,
			UserID:      a.UserID,
			RequestedAt: a.EnqueuedAt,
			Priority:    a.Priority,
		},
		Status:     status,
		Attempt:    a.Attempts,
		EnqueuedAt: a.EnqueuedAt,
		StartedAt:  a.StartedAt,
		FinishedAt: a.FinishedAt,
	}
	if status == StatusSucceeded {
		item.Phase = PhaseSucceeded
	} else {
		item.Phase = PhaseFailed
	}
	if a.Platform != "" {
		item.Decision = &StrategyDecision{
			StrategyName: a.Platform,
			Confidence:   a.Confidence,
			AIEnhanced:   a.AIEnhanced,
		}
	}
	item.Result = &DownloadResult{
		Success:      status == StatusSucceeded,
		FileRefs:     a.Files(),
		Platform:     a.Platform,
		ErrorMessage: a.ErrorMessage,
	}
	return item
}

// Files decodes the archived file reference list.
func (a *ArchivedDownload) Files() []string {
	if a.FileRefs == "" {
		return nil
	}
	var refs []string
	if err := json.Unmarshal([]byte(a.FileRefs), &refs); err != nil {
		return nil
	}
	return refs
}

// ArchiveStats summarizes the archive by terminal status.
type ArchiveStats struct {
	Total     int64 `json:"total"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Cancelled int64 `json:"cancelled"`
}

// ArchiveRepository persists terminal queue items beyond the retention
// window of the live queue.
type ArchiveRepository interface {
	// Save inserts or replaces an archived record.
	Save(record *ArchivedDownload) error

	// FindByID returns the record for a request ID, or ErrNotFound.
	FindByID(id string) (*ArchivedDownload, error)

	// List returns the most recent records, newest first, optionally
	// filtered to one status and one platform. Empty filters mean all.
	List(status, platform string, limit int) ([]*ArchivedDownload, error)

	// Stats counts archived records by terminal status.
	Stats() (*ArchiveStats, error)

	// DeleteOlderThan removes records archived before the cutoff and
	// returns how many were removed.
	DeleteOlderThan(cutoff time.Time) (int64, error)

	// Close releases the underlying store.
	Close() error
}
