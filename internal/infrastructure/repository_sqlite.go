package infrastructure

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/bossjones/boss-bot/internal/domain"
)

// SQLiteArchiveRepository implements domain.ArchiveRepository using SQLite.
// The live queue never touches it; only the janitor writes and the history
// surfaces read.
type SQLiteArchiveRepository struct {
	db *gorm.DB
}

// NewSQLiteArchiveRepository opens (or creates) the archive database.
func NewSQLiteArchiveRepository(dbPath string) (*SQLiteArchiveRepository, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}

	if err := db.AutoMigrate(&domain.ArchivedDownload{}); err != nil {
		return nil, fmt.Errorf("failed to migrate archive database: %w", err)
	}

	return &SQLiteArchiveRepository{db: db}, nil
}

// Save inserts or replaces an archived record.
func (r *SQLiteArchiveRepository) Save(record *domain.ArchivedDownload) error {
	return r.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(record).Error
}

// FindByID returns the record for a request ID.
func (r *SQLiteArchiveRepository) FindByID(id string) (*domain.ArchivedDownload, error) {
	var record domain.ArchivedDownload
	err := r.db.First(&record, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// List returns the most recent records, newest first, optionally filtered to
// one terminal status and one platform.
func (r *SQLiteArchiveRepository) List(status, platform string, limit int) ([]*domain.ArchivedDownload, error) {
	query := r.db.Order("archived_at DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if platform != "" {
		query = query.Where("platform = ?", platform)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []*domain.ArchivedDownload
	err := query.Find(&records).Error
	return records, err
}

// Stats counts archived records by terminal status.
func (r *SQLiteArchiveRepository) Stats() (*domain.ArchiveStats, error) {
	stats := &domain.ArchiveStats{}

	if err := r.db.Model(&domain.ArchivedDownload{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}

	var statusCounts []struct {
		Status string
		Count  int64
	}
	if err := r.db.Model(&domain.ArchivedDownload{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return nil, err
	}

	for _, sc := range statusCounts {
		switch domain.ItemStatus(sc.Status) {
		case domain.StatusSucceeded:
			stats.Succeeded = sc.Count
		case domain.StatusFailed:
			stats.Failed = sc.Count
		case domain.StatusCancelled:
			stats.Cancelled = sc.Count
		}
	}

	return stats, nil
}

// DeleteOlderThan removes records archived before the cutoff.
func (r *SQLiteArchiveRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result := r.db.Where("archived_at < ?", cutoff).Delete(&domain.ArchivedDownload{})
	return result.RowsAffected, result.Error
}

// Close closes the database connection.
func (r *SQLiteArchiveRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
