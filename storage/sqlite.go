package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/CreativeUnicorns/prefer"
)

const (
	sqliteCreateTableSQL = `
		CREATE TABLE IF NOT EXISTS preferences (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (namespace, key)
		);
	`

	sqliteUpsertSQL = `
		INSERT INTO preferences (namespace, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, key)
		DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`

	sqliteSelectSQL = `
		SELECT value FROM preferences
		WHERE namespace = ? AND key = ?
	`

	sqliteSelectAllSQL = `
		SELECT key, value FROM preferences
		WHERE namespace = ?
	`

	sqliteDeleteSQL = `
		DELETE FROM preferences
		WHERE namespace = ? AND key = ?
	`
)

// SQLiteStore implements prefer.Store on a single SQLite table. Changes are
// reported for writes made through this store only.
type SQLiteStore struct {
	notifier

	db        *sql.DB
	namespace string
}

// NewSQLiteStore opens the database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	o := newOptions(opts)

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: sqlite: failed to ping database: %v", prefer.ErrStorageUnavailable, err)
	}

	s := &SQLiteStore{db: db, namespace: o.namespace}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: failed to run migrations: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(sqliteCreateTableSQL)
	return err
}

// Get retrieves the value stored for key or prefer.ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, sqliteSelectSQL, s.namespace, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", prefer.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("sqlite: failed to get %s: %w", key, err)
	}
	return value, nil
}

// Set stores value for key and reports the change if the value differs.
func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var old string
	err = tx.QueryRowContext(ctx, sqliteSelectSQL, s.namespace, key).Scan(&old)
	switch {
	case err == nil && old == value:
		return nil
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("sqlite: failed to read %s: %w", key, err)
	}

	if _, err := tx.ExecContext(ctx, sqliteUpsertSQL, s.namespace, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("sqlite: failed to set %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: failed to commit %s: %w", key, err)
	}

	s.notify(key)
	return nil
}

// Contains reports whether a value is stored for key.
func (s *SQLiteStore) Contains(ctx context.Context, key string) (bool, error) {
	_, err := s.Get(ctx, key)
	if errors.Is(err, prefer.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Delete removes key or returns prefer.ErrNotFound.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	result, err := s.db.ExecContext(ctx, sqliteDeleteSQL, s.namespace, key)
	if err != nil {
		return fmt.Errorf("sqlite: failed to delete %s: %w", key, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return prefer.ErrNotFound
	}

	s.notify(key)
	return nil
}

// GetAll returns every key and value in the namespace.
func (s *SQLiteStore) GetAll(ctx context.Context) (map[string]string, error) {
	return queryAll(ctx, s.db, sqliteSelectAllSQL, s.namespace)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func queryAll(ctx context.Context, db *sql.DB, query, namespace string) (_ map[string]string, err error) {
	rows, err := db.QueryContext(ctx, query, namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to query preferences: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close rows: %w", cerr)
		}
	}()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan preference: %w", err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate preferences: %w", err)
	}
	return values, nil
}
