// File: internal/storage/postgres.go
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/logward/logward/internal/metrics"
	"github.com/logward/logward/internal/models"
	"github.com/logward/logward/pkg/utils"
)

// PostgreSQLStore implements Store using PostgreSQL
type PostgreSQLStore struct {
	db         *sql.DB
	config     *StorageConfig
	logger     *logrus.Logger
	migrations []*Migration

	metricsManager *metrics.Manager
}

// NewPostgreSQLStore creates a new PostgreSQL store instance
func NewPostgreSQLStore(config *StorageConfig) *PostgreSQLStore {
	return &PostgreSQLStore{
		config:     config,
		logger:     utils.GetLogger(),
		migrations: GetPostgreSQLMigrations(),
	}
}

// SetMetricsManager attaches a metrics manager for operation metrics
func (s *PostgreSQLStore) SetMetricsManager(mm *metrics.Manager) {
	s.metricsManager = mm
}

// Connect establishes database connection
func (s *PostgreSQLStore) Connect() error {
	db, err := sql.Open("postgres", s.config.ConnectionString)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to open PostgreSQL database", err.Error())
	}

	db.SetMaxOpenConns(s.config.MaxConnections)
	db.SetMaxIdleConns(s.config.MaxConnections / 2)
	db.SetConnMaxLifetime(s.config.MaxIdleTime)

	if err := db.Ping(); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to ping PostgreSQL database", err.Error())
	}

	s.db = db
	s.logger.Info("PostgreSQL database connected")

	return nil
}

// Close closes the database connection
func (s *PostgreSQLStore) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		s.logger.Info("PostgreSQL database connection closed")
		return err
	}
	return nil
}

// Ping checks database connectivity
func (s *PostgreSQLStore) Ping() error {
	if s.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}
	return s.db.Ping()
}

// Migrate runs database migrations
func (s *PostgreSQLStore) Migrate() error {
	if s.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}

	s.logger.Info("Starting database migrations")

	for _, migration := range s.migrations {
		s.logger.WithFields(logrus.Fields{
			"version":     migration.Version,
			"description": migration.Description,
		}).Info("Applying migration")

		if _, err := s.db.Exec(migration.SQL); err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase,
				fmt.Sprintf("Migration %s failed", migration.Version),
				err.Error())
		}
	}

	s.logger.Info("Database migrations completed")
	return nil
}

// Append inserts a record and assigns its id
func (s *PostgreSQLStore) Append(ctx context.Context, record *models.LogRecord) (int64, error) {
	start := time.Now()

	contextJSON, extraJSON, tagsJSON, err := marshalRecordBlobs(record)
	if err != nil {
		return 0, err
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO log_records
		(level, channel, message, context, extra, environment, user_id, session_id,
		 request_id, ip_address, user_agent, url, method, execution_time, memory_usage,
		 file_path, line_number, stack_trace, tags, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING id
	`

	var id int64
	err = s.db.QueryRowContext(ctx, query,
		string(record.Level), record.Channel, record.Message, contextJSON, extraJSON,
		record.Environment, record.UserID, record.SessionID, record.RequestID,
		record.IPAddress, record.UserAgent, record.URL, record.Method,
		record.ExecutionTime, record.MemoryUsage, record.FilePath, record.LineNumber,
		record.StackTrace, tagsJSON, record.CreatedAt).Scan(&id)

	s.recordOperation("append", err, time.Since(start))
	if err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to append record", err.Error())
	}

	record.ID = id
	return id, nil
}

// GetRecord retrieves a single record by id
func (s *PostgreSQLStore) GetRecord(ctx context.Context, id int64) (*models.LogRecord, error) {
	query := rebindPostgres("SELECT " + recordColumns + " FROM log_records WHERE id = ?")
	row := s.db.QueryRowContext(ctx, query, id)

	record, err := scanRecord(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to get record", err.Error())
	}
	return record, nil
}

// QueryRecords retrieves records based on filter
func (s *PostgreSQLStore) QueryRecords(ctx context.Context, filter models.RecordFilter) ([]*models.LogRecord, error) {
	start := time.Now()

	query := "SELECT " + recordColumns + " FROM log_records WHERE 1=1"
	where, args := buildRecordWhere(filter)
	query += where

	if filter.AfterID > 0 || filter.AscendingByID {
		query += " ORDER BY id ASC"
	} else {
		query += " ORDER BY created_at DESC, id DESC"
	}

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, rebindPostgres(query), args...)
	s.recordOperation("query", err, time.Since(start))
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query records", err.Error())
	}
	defer rows.Close()

	var records []*models.LogRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan record", err.Error())
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// CountRecords returns the count of records matching filter
func (s *PostgreSQLStore) CountRecords(ctx context.Context, filter models.RecordFilter) (int64, error) {
	query := "SELECT COUNT(*) FROM log_records WHERE 1=1"
	where, args := buildRecordWhere(filter)
	query += where

	var count int64
	err := s.db.QueryRowContext(ctx, rebindPostgres(query), args...).Scan(&count)
	if err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count records", err.Error())
	}

	return count, nil
}

// PurgeOlderThan deletes records created strictly before the cutoff
func (s *PostgreSQLStore) PurgeOlderThan(ctx context.Context, cutoff time.Time, levels []models.Level) (int64, error) {
	start := time.Now()

	query := "DELETE FROM log_records WHERE created_at < ?"
	args := []interface{}{cutoff}

	if len(levels) > 0 {
		placeholders := make([]string, len(levels))
		for i, level := range levels {
			placeholders[i] = "?"
			args = append(args, string(level))
		}
		query += " AND level IN (" + strings.Join(placeholders, ", ") + ")"
	}

	result, err := s.db.ExecContext(ctx, rebindPostgres(query), args...)
	s.recordOperation("purge", err, time.Since(start))
	if err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to purge records", err.Error())
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to get rows affected", err.Error())
	}

	if s.metricsManager != nil {
		s.metricsManager.GetPrometheusMetrics().RecordsPurgedTotal.Add(float64(deleted))
	}

	s.logger.WithFields(logrus.Fields{
		"deleted": deleted,
		"cutoff":  cutoff.Format(time.RFC3339),
	}).Info("Purged old records")
	return deleted, nil
}

// GetStats returns aggregate statistics over stored records
func (s *PostgreSQLStore) GetStats(ctx context.Context) (*StorageStats, error) {
	stats := &StorageStats{
		LevelCounts: make(map[string]int64),
		GeneratedAt: time.Now().UTC(),
	}

	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(MAX(id), 0) FROM log_records").
		Scan(&stats.TotalRecords, &stats.LatestID); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count records", err.Error())
	}

	todayStart := time.Now().UTC().Truncate(24 * time.Hour)
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM log_records WHERE created_at >= $1", todayStart).
		Scan(&stats.RecordsToday); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count today's records", err.Error())
	}

	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM log_records WHERE created_at >= $1 AND level IN ('error', 'critical', 'emergency', 'alert')",
		todayStart).Scan(&stats.ErrorsToday); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count today's errors", err.Error())
	}

	rows, err := s.db.QueryContext(ctx, "SELECT level, COUNT(*) FROM log_records GROUP BY level")
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count records by level", err.Error())
	}
	defer rows.Close()
	for rows.Next() {
		var level string
		var count int64
		if err := rows.Scan(&level, &count); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan level count", err.Error())
		}
		stats.LevelCounts[level] = count
	}

	var oldest, latest sql.NullTime
	if err := s.db.QueryRowContext(ctx,
		"SELECT MIN(created_at), MAX(created_at) FROM log_records").
		Scan(&oldest, &latest); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to read record time bounds", err.Error())
	}
	if oldest.Valid {
		stats.OldestRecord = &oldest.Time
	}
	if latest.Valid {
		stats.LatestRecord = &latest.Time
	}

	return stats, nil
}

// GetHealth returns store health information
func (s *PostgreSQLStore) GetHealth() *StorageHealth {
	return &StorageHealth{
		StorageType: "PostgreSQL",
		Healthy:     s.Ping() == nil,
		LastPing:    time.Now(),
	}
}

func (s *PostgreSQLStore) recordOperation(operation string, err error, duration time.Duration) {
	if s.metricsManager == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metricsManager.GetPrometheusMetrics().RecordDatabaseOperation(operation, status, duration)
}

// rebindPostgres converts ? placeholders to numbered $n parameters
func rebindPostgres(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
