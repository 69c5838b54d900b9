// File: internal/storage/sqlite.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/logward/logward/internal/metrics"
	"github.com/logward/logward/internal/models"
	"github.com/logward/logward/pkg/utils"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db         *sql.DB
	config     *StorageConfig
	logger     *logrus.Logger
	migrations []*Migration

	metricsManager *metrics.Manager
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(config *StorageConfig) *SQLiteStore {
	return &SQLiteStore{
		config:     config,
		logger:     utils.GetLogger(),
		migrations: GetSQLiteMigrations(),
	}
}

// SetMetricsManager attaches a metrics manager for operation metrics
func (s *SQLiteStore) SetMetricsManager(mm *metrics.Manager) {
	s.metricsManager = mm
}

// Connect establishes database connection
func (s *SQLiteStore) Connect() error {
	// Ensure directory exists
	dir := filepath.Dir(s.config.ConnectionString)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase, "Failed to create database directory", err.Error())
		}
	}

	db, err := sql.Open("sqlite", s.config.ConnectionString)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to open SQLite database", err.Error())
	}

	// Configure connection pool
	db.SetMaxOpenConns(s.config.MaxConnections)
	db.SetMaxIdleConns(s.config.MaxConnections / 2)
	db.SetConnMaxLifetime(s.config.MaxIdleTime)

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to enable WAL mode", err.Error())
	}

	s.db = db
	s.logger.WithField("path", s.config.ConnectionString).Info("SQLite database connected")

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		s.logger.Info("SQLite database connection closed")
		return err
	}
	return nil
}

// Ping checks database connectivity
func (s *SQLiteStore) Ping() error {
	if s.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}
	return s.db.Ping()
}

// Migrate runs database migrations
func (s *SQLiteStore) Migrate() error {
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

const recordColumns = `id, level, channel, message, context, extra, environment,
	user_id, session_id, request_id, ip_address, user_agent, url, method,
	execution_time, memory_usage, file_path, line_number, stack_trace, tags, created_at`

// Append inserts a record and assigns its id
func (s *SQLiteStore) Append(ctx context.Context, record *models.LogRecord) (int64, error) {
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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		string(record.Level), record.Channel, record.Message, contextJSON, extraJSON,
		record.Environment, record.UserID, record.SessionID, record.RequestID,
		record.IPAddress, record.UserAgent, record.URL, record.Method,
		record.ExecutionTime, record.MemoryUsage, record.FilePath, record.LineNumber,
		record.StackTrace, tagsJSON, record.CreatedAt)

	s.recordOperation("append", err, time.Since(start))
	if err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to append record", err.Error())
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to get record id", err.Error())
	}

	record.ID = id
	return id, nil
}

// GetRecord retrieves a single record by id
func (s *SQLiteStore) GetRecord(ctx context.Context, id int64) (*models.LogRecord, error) {
	query := "SELECT " + recordColumns + " FROM log_records WHERE id = ?"
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

// QueryRecords retrieves records based on filter. Listing queries are
// ordered by created_at descending; cursor queries (AfterID set) by id
// ascending.
func (s *SQLiteStore) QueryRecords(ctx context.Context, filter models.RecordFilter) ([]*models.LogRecord, error) {
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

	rows, err := s.db.QueryContext(ctx, query, args...)
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
func (s *SQLiteStore) CountRecords(ctx context.Context, filter models.RecordFilter) (int64, error) {
	query := "SELECT COUNT(*) FROM log_records WHERE 1=1"
	where, args := buildRecordWhere(filter)
	query += where

	var count int64
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&count)
	if err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count records", err.Error())
	}

	return count, nil
}

// PurgeOlderThan deletes records created strictly before the cutoff,
// optionally restricted to the given levels, and returns the count removed
func (s *SQLiteStore) PurgeOlderThan(ctx context.Context, cutoff time.Time, levels []models.Level) (int64, error) {
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

	result, err := s.db.ExecContext(ctx, query, args...)
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
func (s *SQLiteStore) GetStats(ctx context.Context) (*StorageStats, error) {
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
		"SELECT COUNT(*) FROM log_records WHERE created_at >= ?", todayStart).
		Scan(&stats.RecordsToday); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count today's records", err.Error())
	}

	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM log_records WHERE created_at >= ? AND level IN ('error', 'critical', 'emergency', 'alert')",
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

	// MIN/MAX aggregates lose the column's declared DATETIME type and
	// come back as strings, so select the boundary rows directly.
	var oldest time.Time
	err = s.db.QueryRowContext(ctx,
		"SELECT created_at FROM log_records ORDER BY created_at ASC, id ASC LIMIT 1").
		Scan(&oldest)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to read oldest record time", err.Error())
	default:
		stats.OldestRecord = &oldest
	}

	var latest time.Time
	err = s.db.QueryRowContext(ctx,
		"SELECT created_at FROM log_records ORDER BY created_at DESC, id DESC LIMIT 1").
		Scan(&latest)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to read latest record time", err.Error())
	default:
		stats.LatestRecord = &latest
	}

	return stats, nil
}

// GetHealth returns store health information
func (s *SQLiteStore) GetHealth() *StorageHealth {
	return &StorageHealth{
		StorageType: "SQLite",
		Healthy:     s.Ping() == nil,
		Details:     map[string]string{"connection_string": s.config.ConnectionString},
		LastPing:    time.Now(),
	}
}

func (s *SQLiteStore) recordOperation(operation string, err error, duration time.Duration) {
	if s.metricsManager == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metricsManager.GetPrometheusMetrics().RecordDatabaseOperation(operation, status, duration)
}

// buildRecordWhere builds the WHERE clause tail shared by query and
// count. It uses ? placeholders and is valid for both SQLite drivers.
func buildRecordWhere(filter models.RecordFilter) (string, []interface{}) {
	var query strings.Builder
	args := []interface{}{}

	if len(filter.Levels) > 0 {
		placeholders := make([]string, len(filter.Levels))
		for i, level := range filter.Levels {
			placeholders[i] = "?"
			args = append(args, string(level))
		}
		query.WriteString(" AND level IN (" + strings.Join(placeholders, ", ") + ")")
	}
	if filter.Channel != "" {
		query.WriteString(" AND channel = ?")
		args = append(args, filter.Channel)
	}
	if filter.Search != "" {
		query.WriteString(" AND (message LIKE ? OR context LIKE ?)")
		q := "%" + filter.Search + "%"
		args = append(args, q, q)
	}
	if filter.UserID != "" {
		query.WriteString(" AND user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Environment != "" {
		query.WriteString(" AND environment = ?")
		args = append(args, filter.Environment)
	}
	if filter.Since != nil {
		query.WriteString(" AND created_at >= ?")
		args = append(args, *filter.Since)
	}
	if filter.Until != nil {
		query.WriteString(" AND created_at <= ?")
		args = append(args, *filter.Until)
	}
	if filter.AfterID > 0 {
		query.WriteString(" AND id > ?")
		args = append(args, filter.AfterID)
	}

	return query.String(), args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*models.LogRecord, error) {
	var record models.LogRecord
	var levelStr string
	var contextJSON, extraJSON, tagsJSON sql.NullString
	var userID, sessionID, requestID, ipAddress, userAgent, url, method sql.NullString
	var filePath, stackTrace sql.NullString
	var executionTime sql.NullFloat64
	var memoryUsage sql.NullInt64
	var lineNumber sql.NullInt64

	err := row.Scan(&record.ID, &levelStr, &record.Channel, &record.Message,
		&contextJSON, &extraJSON, &record.Environment, &userID, &sessionID,
		&requestID, &ipAddress, &userAgent, &url, &method, &executionTime,
		&memoryUsage, &filePath, &lineNumber, &stackTrace, &tagsJSON, &record.CreatedAt)
	if err != nil {
		return nil, err
	}

	record.Level = models.Level(levelStr)
	record.UserID = userID.String
	record.SessionID = sessionID.String
	record.RequestID = requestID.String
	record.IPAddress = ipAddress.String
	record.UserAgent = userAgent.String
	record.URL = url.String
	record.Method = method.String
	record.ExecutionTime = executionTime.Float64
	record.MemoryUsage = memoryUsage.Int64
	record.FilePath = filePath.String
	record.LineNumber = int(lineNumber.Int64)
	record.StackTrace = stackTrace.String

	if contextJSON.Valid && contextJSON.String != "" {
		if err := json.Unmarshal([]byte(contextJSON.String), &record.Context); err != nil {
			return nil, err
		}
	}
	if extraJSON.Valid && extraJSON.String != "" {
		if err := json.Unmarshal([]byte(extraJSON.String), &record.Extra); err != nil {
			return nil, err
		}
	}
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &record.Tags); err != nil {
			return nil, err
		}
	}

	return &record, nil
}

func marshalRecordBlobs(record *models.LogRecord) (string, string, string, error) {
	contextJSON := ""
	if record.Context != nil {
		b, err := json.Marshal(record.Context)
		if err != nil {
			return "", "", "", utils.NewAppError(utils.ErrCodeDatabase, "Failed to marshal record context", err.Error())
		}
		contextJSON = string(b)
	}

	extraJSON := ""
	if record.Extra != nil {
		b, err := json.Marshal(record.Extra)
		if err != nil {
			return "", "", "", utils.NewAppError(utils.ErrCodeDatabase, "Failed to marshal record extra", err.Error())
		}
		extraJSON = string(b)
	}

	tagsJSON := ""
	if record.Tags != nil {
		b, err := json.Marshal(record.Tags)
		if err != nil {
			return "", "", "", utils.NewAppError(utils.ErrCodeDatabase, "Failed to marshal record tags", err.Error())
		}
		tagsJSON = string(b)
	}

	return contextJSON, extraJSON, tagsJSON, nil
}
