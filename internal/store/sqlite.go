package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const autoInitializeKey = "auto_initialize"

// SQLiteSettings implements Settings using SQLite.
type SQLiteSettings struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed settings store.
func NewSQLite(dbPath string) (Settings, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteSettings{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteSettings) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteSettings) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// AutoInitialize reads the auto-initialize-on-launch flag.
func (s *SQLiteSettings) AutoInitialize(ctx context.Context) (bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, autoInitializeKey)

	var value string
	err := row.Scan(&value)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("scan setting row: %w", err)
	}
	return value == "true", nil
}

// SetAutoInitialize writes the auto-initialize-on-launch flag.
func (s *SQLiteSettings) SetAutoInitialize(ctx context.Context, v bool) error {
	value := "false"
	if v {
		value = "true"
	}

	query := `
	INSERT INTO settings (key, value, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		updated_at = excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, query, autoInitializeKey, value, time.Now().Unix()); err != nil {
		return fmt.Errorf("upsert setting: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteSettings) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
