// File: internal/storage/storage.go
package storage

import (
	"context"
	"time"

	"github.com/logward/logward/internal/models"
)

// Store defines the interface for log record persistence
type Store interface {
	// Connection management
	Connect() error
	Close() error
	Ping() error
	Migrate() error

	// Record operations. Append assigns the record id and is the only
	// path that does so; an appended record is visible to subsequent
	// queries on the same store.
	Append(ctx context.Context, record *models.LogRecord) (int64, error)
	GetRecord(ctx context.Context, id int64) (*models.LogRecord, error)
	QueryRecords(ctx context.Context, filter models.RecordFilter) ([]*models.LogRecord, error)
	CountRecords(ctx context.Context, filter models.RecordFilter) (int64, error)

	// Maintenance operations
	PurgeOlderThan(ctx context.Context, cutoff time.Time, levels []models.Level) (int64, error)

	// Statistics and monitoring
	GetStats(ctx context.Context) (*StorageStats, error)
	GetHealth() *StorageHealth
}

// StorageStats provides aggregate statistics over stored records
type StorageStats struct {
	TotalRecords int64            `json:"total_records"`
	RecordsToday int64            `json:"records_today"`
	ErrorsToday  int64            `json:"errors_today"`
	LevelCounts  map[string]int64 `json:"level_counts"`
	OldestRecord *time.Time       `json:"oldest_record,omitempty"`
	LatestRecord *time.Time       `json:"latest_record,omitempty"`
	LatestID     int64            `json:"latest_id"`
	GeneratedAt  time.Time        `json:"generated_at"`
}

// StorageHealth provides health information
type StorageHealth struct {
	StorageType string            `json:"storage_type"`
	Healthy     bool              `json:"healthy"`
	Details     map[string]string `json:"details,omitempty"`
	LastPing    time.Time         `json:"last_ping"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type             string        `json:"type"`
	ConnectionString string        `json:"connection_string"`
	MaxConnections   int           `json:"max_connections"`
	MaxIdleTime      time.Duration `json:"max_idle_time"`
	RetentionDays    int           `json:"retention_days"`
}
