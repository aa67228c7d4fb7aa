package infrastructure

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bossjones/boss-bot/internal/domain"
)

func setupTestRepo(t *testing.T) (*SQLiteArchiveRepository, func()) {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "archive-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "test.db")
	repo, err := NewSQLiteArchiveRepository(dbPath)
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		os.RemoveAll(tmpDir)
	}
	return repo, cleanup
}

func archivedItem(t *testing.T, url string, status domain.ItemStatus) *domain.ArchivedDownload {
	t.Helper()
	item := domain.NewQueueItem(domain.NewDownloadRequest(url, "user-1", nil, 0))
	switch status {
	case domain.StatusSucceeded:
		item.MarkRunning()
		item.Decision = &domain.StrategyDecision{StrategyName: domain.PlatformTwitter, Confidence: 0.7}
		item.MarkSucceeded(&domain.DownloadResult{Success: true, Platform: domain.PlatformTwitter, FileRefs: []string{"/done/a.mp4"}})
	case domain.StatusFailed:
		item.MarkRunning()
		item.MarkFailed(domain.NewErrorInfo(domain.NewFatalError(errors.New("gone"))), nil)
	case domain.StatusCancelled:
		item.MarkCancelled(nil)
	}
	return domain.NewArchivedDownload(item)
}

func TestArchiveRepository_SaveAndFindByID(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	rec := archivedItem(t, "https://x.com/u/status/1", domain.StatusSucceeded)
	require.NoError(t, repo.Save(rec))

	found, err := repo.FindByID(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.URL, found.URL)
	assert.Equal(t, string(domain.StatusSucceeded), found.Status)
	assert.Equal(t, []string{"/done/a.mp4"}, found.Files())
}

func TestArchiveRepository_SaveIsIdempotent(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	rec := archivedItem(t, "https://x.com/u/status/1", domain.StatusFailed)
	require.NoError(t, repo.Save(rec))
	require.NoError(t, repo.Save(rec))

	stats, err := repo.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
}

func TestArchiveRepository_FindByID_NotFound(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	_, err := repo.FindByID("no-such-id")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestArchiveRepository_List_Filters(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	require.NoError(t, repo.Save(archivedItem(t, "https://x.com/u/status/1", domain.StatusSucceeded)))
	require.NoError(t, repo.Save(archivedItem(t, "https://x.com/u/status/2", domain.StatusFailed)))
	require.NoError(t, repo.Save(archivedItem(t, "https://x.com/u/status/3", domain.StatusFailed)))

	all, err := repo.List("", "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	failed, err := repo.List(string(domain.StatusFailed), "", 0)
	require.NoError(t, err)
	assert.Len(t, failed, 2)

	// Only the succeeded record carries a strategy decision, so only it
	// has a platform to match on.
	twitter, err := repo.List("", domain.PlatformTwitter, 0)
	require.NoError(t, err)
	assert.Len(t, twitter, 1)

	youtube, err := repo.List("", domain.PlatformYouTube, 0)
	require.NoError(t, err)
	assert.Empty(t, youtube)

	limited, err := repo.List("", "", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestArchiveRepository_Stats(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	require.NoError(t, repo.Save(archivedItem(t, "https://a.com/1", domain.StatusSucceeded)))
	require.NoError(t, repo.Save(archivedItem(t, "https://a.com/2", domain.StatusSucceeded)))
	require.NoError(t, repo.Save(archivedItem(t, "https://a.com/3", domain.StatusFailed)))
	require.NoError(t, repo.Save(archivedItem(t, "https://a.com/4", domain.StatusCancelled)))

	stats, err := repo.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, int64(2), stats.Succeeded)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(1), stats.Cancelled)
}

func TestArchiveRepository_DeleteOlderThan(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	rec := archivedItem(t, "https://a.com/1", domain.StatusSucceeded)
	require.NoError(t, repo.Save(rec))

	// Nothing is older than an hour ago.
	deleted, err := repo.DeleteOlderThan(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)

	// Everything is older than an hour from now.
	deleted, err = repo.DeleteOlderThan(time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.FindByID(rec.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
