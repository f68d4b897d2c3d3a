package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver for development and tests
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnMaxIdleTime = 1 * time.Minute
)

// Connect opens a database connection for the given sqlx driver ("postgres"
// or "sqlite3"), pings it and bootstraps the schema. Repository queries are
// written with "?" placeholders and rebound per driver, so both backends
// share one code path.
func Connect(driver, dataSourceName string) (*sqlx.DB, error) {
	switch driver {
	case "postgres", "sqlite3":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Connect(driver, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if driver == "sqlite3" {
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
		// SQLite does not support multiple writers.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(defaultMaxOpenConns)
		db.SetMaxIdleConns(defaultMaxIdleConns)
		db.SetConnMaxLifetime(defaultConnMaxLifetime)
		db.SetConnMaxIdleTime(defaultConnMaxIdleTime)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// insertReturningID runs an INSERT and returns the generated id. lib/pq does
// not implement Result.LastInsertId, so the postgres path appends RETURNING id
// and scans; sqlite reports the id on the result.
func insertReturningID(ctx context.Context, db *sqlx.DB, query string, args ...any) (int64, error) {
	if db.DriverName() == "postgres" {
		var id int64
		if err := db.QueryRowContext(ctx, db.Rebind(query+" RETURNING id"), args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := db.ExecContext(ctx, db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// initSchema creates the engine's tables if they do not exist.
func initSchema(db *sqlx.DB) error {
	serial := "BIGSERIAL PRIMARY KEY"
	if db.DriverName() == "sqlite3" {
		serial = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS recipients (
			id %s,
			telegram_id BIGINT UNIQUE NOT NULL,
			email TEXT,
			first_name TEXT NOT NULL,
			last_name TEXT,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`, serial),
		`CREATE TABLE IF NOT EXISTS reminder_preferences (
			recipient_id BIGINT PRIMARY KEY REFERENCES recipients(id) ON DELETE CASCADE,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			time_of_day TEXT NOT NULL,
			tolerance_minutes INTEGER NOT NULL DEFAULT 5,
			updated_at TIMESTAMP NOT NULL
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS review_items (
			id %s,
			recipient_id BIGINT NOT NULL REFERENCES recipients(id) ON DELETE CASCADE,
			deck_id BIGINT NOT NULL,
			review_count INTEGER NOT NULL DEFAULT 0,
			learned BOOLEAN NOT NULL DEFAULT FALSE,
			last_reviewed_at TIMESTAMP,
			next_review_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`, serial),
		`CREATE INDEX IF NOT EXISTS review_items_due_idx
			ON review_items (recipient_id, next_review_at)`,
		`CREATE TABLE IF NOT EXISTS review_reminder_log (
			recipient_id BIGINT NOT NULL REFERENCES recipients(id) ON DELETE CASCADE,
			sent_on TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			CONSTRAINT review_reminder_log_identity UNIQUE (recipient_id, sent_on)
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS alarm_definitions (
			id %s,
			offset_duration INTEGER NOT NULL CHECK (offset_duration > 0),
			offset_unit TEXT NOT NULL,
			kind TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`, serial),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS events (
			id %s,
			title TEXT NOT NULL,
			starts_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`, serial),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS alarm_instances (
			id %s,
			definition_id BIGINT NOT NULL REFERENCES alarm_definitions(id),
			event_id BIGINT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
			recipient_id BIGINT NOT NULL REFERENCES recipients(id) ON DELETE CASCADE,
			kind TEXT NOT NULL,
			trigger_at TIMESTAMP NOT NULL,
			status TEXT NOT NULL,
			retry_count INTEGER NOT NULL DEFAULT 0,
			last_error TEXT NOT NULL DEFAULT '',
			triggered_at TIMESTAMP,
			sent_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			CONSTRAINT alarm_instance_identity UNIQUE (definition_id, event_id, recipient_id)
		)`, serial),
		`CREATE INDEX IF NOT EXISTS alarm_instances_due_idx
			ON alarm_instances (recipient_id, status, trigger_at)`,
		`CREATE TABLE IF NOT EXISTS run_locks (
			name TEXT PRIMARY KEY,
			token TEXT NOT NULL,
			claimed_at TIMESTAMP NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
