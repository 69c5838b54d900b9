// File: internal/pipeline/pipeline_test.go
package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logward/logward/internal/models"
	"github.com/logward/logward/internal/storage"
)

// memoryStore is an in-memory Store for pipeline tests
type memoryStore struct {
	mu      sync.Mutex
	records []*models.LogRecord
	nextID  int64
	failing bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{nextID: 1}
}

func (m *memoryStore) Connect() error { return nil }
func (m *memoryStore) Close() error   { return nil }
func (m *memoryStore) Ping() error    { return nil }
func (m *memoryStore) Migrate() error { return nil }

func (m *memoryStore) Append(ctx context.Context, record *models.LogRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return 0, errors.New("store unavailable")
	}
	record.ID = m.nextID
	m.nextID++
	copied := *record
	m.records = append(m.records, &copied)
	return record.ID, nil
}

func (m *memoryStore) GetRecord(ctx context.Context, id int64) (*models.LogRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, errors.New("not found")
}

func (m *memoryStore) QueryRecords(ctx context.Context, filter models.RecordFilter) ([]*models.LogRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.LogRecord
	for _, r := range m.records {
		if filter.Matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryStore) CountRecords(ctx context.Context, filter models.RecordFilter) (int64, error) {
	records, _ := m.QueryRecords(ctx, filter)
	return int64(len(records)), nil
}

func (m *memoryStore) PurgeOlderThan(ctx context.Context, cutoff time.Time, levels []models.Level) (int64, error) {
	return 0, nil
}

func (m *memoryStore) GetStats(ctx context.Context) (*storage.StorageStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &storage.StorageStats{
		TotalRecords: int64(len(m.records)),
		LatestID:     m.nextID - 1,
		GeneratedAt:  time.Now().UTC(),
	}, nil
}

func (m *memoryStore) GetHealth() *storage.StorageHealth {
	return &storage.StorageHealth{StorageType: "memory", Healthy: true}
}

func (m *memoryStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func newTestPipeline(store storage.Store) *Pipeline {
	guard := NewDeduplicationGuard(DefaultDedupCapacity)
	filters := NewFilterChain(FilterChainConfig{})
	return New(guard, filters, store, nil, Config{DefaultEnvironment: "production"})
}

func TestPipelineStoresAcceptedRecordExactlyOnce(t *testing.T) {
	store := newMemoryStore()
	p := newTestPipeline(store)

	record := testRecord("connection refused")
	result := p.Ingest(context.Background(), record)

	require.True(t, result.Accepted)
	assert.True(t, result.Stored)
	assert.Equal(t, int64(1), result.RecordID)
	assert.Equal(t, 1, store.count())
}

func TestPipelineAssignsIncreasingIDs(t *testing.T) {
	store := newMemoryStore()
	p := newTestPipeline(store)

	var lastID int64
	for i, msg := range []string{"first failure", "second failure", "third failure"} {
		result := p.Ingest(context.Background(), testRecord(msg))
		require.True(t, result.Accepted, "record %d", i)
		assert.Greater(t, result.RecordID, lastID)
		lastID = result.RecordID
	}
}

func TestPipelineRejectsDuplicate(t *testing.T) {
	store := newMemoryStore()
	p := newTestPipeline(store)

	first := p.Ingest(context.Background(), testRecord("same event"))
	require.True(t, first.Accepted)

	second := p.Ingest(context.Background(), testRecord("same event"))
	assert.False(t, second.Accepted)
	assert.Equal(t, GuardDuplicate, second.Reason)
	assert.Equal(t, 1, store.count())
}

func TestPipelineNormalizesRecordDefaults(t *testing.T) {
	store := newMemoryStore()
	p := newTestPipeline(store)

	record := &models.LogRecord{Message: "bare minimum", Level: "bogus"}
	result := p.Ingest(context.Background(), record)

	require.True(t, result.Accepted)
	assert.Equal(t, models.DefaultChannel, record.Channel)
	assert.Equal(t, models.LevelInfo, record.Level)
	assert.Equal(t, "production", record.Environment)
	assert.False(t, record.CreatedAt.IsZero())
}

func TestPipelineStoreFailureDoesNotErrorToCaller(t *testing.T) {
	store := newMemoryStore()
	store.failing = true
	p := newTestPipeline(store)

	result := p.Ingest(context.Background(), testRecord("storage is down"))

	// Fire and forget: the event is accepted even though persistence
	// failed, and the failure is visible in the result and the stats.
	require.True(t, result.Accepted)
	assert.False(t, result.Stored)
	assert.Zero(t, result.RecordID)

	stats := p.GetStats()
	assert.Equal(t, int64(1), stats.StoreFailures)
	assert.Equal(t, int64(0), stats.TotalStored)
}

func TestPipelineFilteredRecordIsNotStored(t *testing.T) {
	store := newMemoryStore()
	guard := NewDeduplicationGuard(DefaultDedupCapacity)
	filters := NewFilterChain(FilterChainConfig{AllowedEnvironments: []string{"production"}})
	p := New(guard, filters, store, nil, Config{})

	record := testRecord("dev noise")
	record.Environment = "development"

	result := p.Ingest(context.Background(), record)
	assert.False(t, result.Accepted)
	assert.Equal(t, FilterEnvironment, result.Reason)
	assert.Equal(t, 0, store.count())
}

func TestPipelineStatsAccumulate(t *testing.T) {
	store := newMemoryStore()
	p := newTestPipeline(store)

	p.Ingest(context.Background(), testRecord("one"))
	p.Ingest(context.Background(), testRecord("one")) // duplicate
	p.Ingest(context.Background(), testRecord("two"))

	stats := p.GetStats()
	assert.Equal(t, int64(3), stats.TotalReceived)
	assert.Equal(t, int64(2), stats.TotalAccepted)
	assert.Equal(t, int64(1), stats.TotalDeduplicated)
	assert.Equal(t, int64(2), stats.TotalStored)
}
