// File: internal/storage/sqlite_test.go
package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logward/logward/internal/models"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store := NewSQLiteStore(&StorageConfig{
		Type:             "sqlite",
		ConnectionString: filepath.Join(t.TempDir(), "test.db"),
		MaxConnections:   5,
		MaxIdleTime:      time.Minute,
	})

	require.NoError(t, store.Connect())
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { store.Close() })

	return store
}

func sampleRecord(level models.Level, message string) *models.LogRecord {
	return &models.LogRecord{
		Level:       level,
		Channel:     "app",
		Message:     message,
		Environment: "production",
		Context:     map[string]interface{}{"host": "web-1"},
		CreatedAt:   time.Now().UTC(),
	}
}

func TestSQLiteAppendAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	record := sampleRecord(models.LevelError, "database connection lost")
	record.UserID = "user-7"
	record.Tags = []string{"db", "outage"}

	id, err := store.Append(ctx, record)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, id, record.ID)

	got, err := store.GetRecord(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.LevelError, got.Level)
	assert.Equal(t, "database connection lost", got.Message)
	assert.Equal(t, "user-7", got.UserID)
	assert.Equal(t, "web-1", got.Context["host"])
	assert.Equal(t, []string{"db", "outage"}, got.Tags)
}

func TestSQLiteGetRecordMissing(t *testing.T) {
	store := setupTestStore(t)

	got, err := store.GetRecord(context.Background(), 9999)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteAppendAssignsIncreasingIDs(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	var last int64
	for i := 0; i < 5; i++ {
		id, err := store.Append(ctx, sampleRecord(models.LevelInfo, "sequential"))
		require.NoError(t, err)
		assert.Greater(t, id, last)
		last = id
	}
}

func TestSQLiteQueryFilters(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	seed := []*models.LogRecord{
		sampleRecord(models.LevelError, "database timeout on checkout"),
		sampleRecord(models.LevelError, "payment declined"),
		sampleRecord(models.LevelInfo, "database migration finished"),
		sampleRecord(models.LevelWarning, "slow database query"),
	}
	for _, r := range seed {
		_, err := store.Append(ctx, r)
		require.NoError(t, err)
	}

	// Single dimension: level.
	records, err := store.QueryRecords(ctx, models.RecordFilter{
		Levels: []models.Level{models.LevelError},
	})
	require.NoError(t, err)
	assert.Len(t, records, 2)

	// Single dimension: search.
	records, err = store.QueryRecords(ctx, models.RecordFilter{Search: "database"})
	require.NoError(t, err)
	assert.Len(t, records, 3)

	// Filters compose conjunctively.
	records, err = store.QueryRecords(ctx, models.RecordFilter{
		Levels: []models.Level{models.LevelError},
		Search: "database",
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "database timeout on checkout", records[0].Message)

	count, err := store.CountRecords(ctx, models.RecordFilter{
		Levels: []models.Level{models.LevelError},
		Search: "database",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSQLiteQueryCursor(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.Append(ctx, sampleRecord(models.LevelInfo, "cursor event"))
		require.NoError(t, err)
	}

	records, err := store.QueryRecords(ctx, models.RecordFilter{AfterID: 3})
	require.NoError(t, err)
	require.Len(t, records, 2)
	// Cursor queries come back in ascending id order.
	assert.Equal(t, int64(4), records[0].ID)
	assert.Equal(t, int64(5), records[1].ID)
}

func TestSQLiteQueryPagination(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		record := sampleRecord(models.LevelInfo, "paged event")
		record.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		_, err := store.Append(ctx, record)
		require.NoError(t, err)
	}

	page1, err := store.QueryRecords(ctx, models.RecordFilter{Limit: 4})
	require.NoError(t, err)
	require.Len(t, page1, 4)
	// Listing order is newest first.
	assert.Equal(t, int64(10), page1[0].ID)

	page2, err := store.QueryRecords(ctx, models.RecordFilter{Limit: 4, Offset: 4})
	require.NoError(t, err)
	require.Len(t, page2, 4)
	assert.Equal(t, int64(6), page2[0].ID)
}

func TestSQLitePurgeOlderThan(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	cutoff := time.Now().UTC()

	old := sampleRecord(models.LevelInfo, "ancient event")
	old.CreatedAt = cutoff.Add(-48 * time.Hour)
	_, err := store.Append(ctx, old)
	require.NoError(t, err)

	boundary := sampleRecord(models.LevelInfo, "boundary event")
	boundary.CreatedAt = cutoff
	_, err = store.Append(ctx, boundary)
	require.NoError(t, err)

	recent := sampleRecord(models.LevelInfo, "recent event")
	_, err = store.Append(ctx, recent)
	require.NoError(t, err)

	deleted, err := store.PurgeOlderThan(ctx, cutoff, nil)
	require.NoError(t, err)
	// Strictly before the cutoff: the boundary record survives.
	assert.Equal(t, int64(1), deleted)

	count, err := store.CountRecords(ctx, models.RecordFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestSQLitePurgeByLevel(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	cutoff := time.Now().UTC()

	oldDebug := sampleRecord(models.LevelDebug, "old debug")
	oldDebug.CreatedAt = cutoff.Add(-time.Hour)
	_, err := store.Append(ctx, oldDebug)
	require.NoError(t, err)

	oldError := sampleRecord(models.LevelError, "old error")
	oldError.CreatedAt = cutoff.Add(-time.Hour)
	_, err = store.Append(ctx, oldError)
	require.NoError(t, err)

	deleted, err := store.PurgeOlderThan(ctx, cutoff, []models.Level{models.LevelDebug})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	records, err := store.QueryRecords(ctx, models.RecordFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.LevelError, records[0].Level)
}

func TestSQLiteGetStats(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Append(ctx, sampleRecord(models.LevelError, "boom"))
	require.NoError(t, err)
	_, err = store.Append(ctx, sampleRecord(models.LevelInfo, "fine"))
	require.NoError(t, err)
	_, err = store.Append(ctx, sampleRecord(models.LevelInfo, "also fine"))
	require.NoError(t, err)

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.TotalRecords)
	assert.Equal(t, int64(3), stats.LatestID)
	assert.Equal(t, int64(3), stats.RecordsToday)
	assert.Equal(t, int64(1), stats.ErrorsToday)
	assert.Equal(t, int64(2), stats.LevelCounts["info"])
	assert.Equal(t, int64(1), stats.LevelCounts["error"])
	require.NotNil(t, stats.OldestRecord)
	require.NotNil(t, stats.LatestRecord)
	assert.False(t, stats.LatestRecord.Before(*stats.OldestRecord))
}

func TestSQLiteGetStatsEmpty(t *testing.T) {
	store := setupTestStore(t)

	stats, err := store.GetStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(0), stats.TotalRecords)
	assert.Nil(t, stats.OldestRecord)
	assert.Nil(t, stats.LatestRecord)
}

func TestSQLiteHealth(t *testing.T) {
	store := setupTestStore(t)

	health := store.GetHealth()
	assert.True(t, health.Healthy)
	assert.Equal(t, "SQLite", health.StorageType)
}
