package storage

import (
	"time"
)

// Migration represents a database migration
type Migration struct {
	ID          int       `db:"id"`
	Version     string    `db:"version"`
	Description string    `db:"description"`
	SQL         string    `db:"sql"`
	AppliedAt   time.Time `db:"applied_at"`
}

// GetSQLiteMigrations returns SQLite migration scripts
func GetSQLiteMigrations() []*Migration {
	return []*Migration{
		{
			Version:     "001",
			Description: "Create log_records table",
			SQL: `
				CREATE TABLE IF NOT EXISTS log_records (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					level TEXT NOT NULL,
					channel TEXT NOT NULL DEFAULT 'default',
					message TEXT NOT NULL,
					context TEXT, -- JSON
					extra TEXT, -- JSON
					environment TEXT NOT NULL DEFAULT '',
					user_id TEXT,
					session_id TEXT,
					request_id TEXT,
					ip_address TEXT,
					user_agent TEXT,
					url TEXT,
					method TEXT,
					execution_time REAL,
					memory_usage INTEGER,
					file_path TEXT,
					line_number INTEGER,
					stack_trace TEXT,
					tags TEXT, -- JSON
					created_at DATETIME NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_log_records_level ON log_records(level);
				CREATE INDEX IF NOT EXISTS idx_log_records_channel ON log_records(channel);
				CREATE INDEX IF NOT EXISTS idx_log_records_created_at ON log_records(created_at);
				CREATE INDEX IF NOT EXISTS idx_log_records_user_id ON log_records(user_id);
				CREATE INDEX IF NOT EXISTS idx_log_records_environment ON log_records(environment);
			`,
		},
	}
}

// GetPostgreSQLMigrations returns PostgreSQL migration scripts
func GetPostgreSQLMigrations() []*Migration {
	return []*Migration{
		{
			Version:     "001",
			Description: "Create log_records table",
			SQL: `
				CREATE TABLE IF NOT EXISTS log_records (
					id BIGSERIAL PRIMARY KEY,
					level TEXT NOT NULL,
					channel TEXT NOT NULL DEFAULT 'default',
					message TEXT NOT NULL,
					context TEXT,
					extra TEXT,
					environment TEXT NOT NULL DEFAULT '',
					user_id TEXT,
					session_id TEXT,
					request_id TEXT,
					ip_address TEXT,
					user_agent TEXT,
					url TEXT,
					method TEXT,
					execution_time DOUBLE PRECISION,
					memory_usage BIGINT,
					file_path TEXT,
					line_number INTEGER,
					stack_trace TEXT,
					tags TEXT,
					created_at TIMESTAMPTZ NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_log_records_level ON log_records(level);
				CREATE INDEX IF NOT EXISTS idx_log_records_channel ON log_records(channel);
				CREATE INDEX IF NOT EXISTS idx_log_records_created_at ON log_records(created_at);
				CREATE INDEX IF NOT EXISTS idx_log_records_user_id ON log_records(user_id);
				CREATE INDEX IF NOT EXISTS idx_log_records_environment ON log_records(environment);
			`,
		},
	}
}
