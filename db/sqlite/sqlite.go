package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mhbvr/shutter"
	_ "modernc.org/sqlite"
)

var _ shutter.Store = (*SQLiteDB)(nil)

// SQLiteDB implements shutter.Store with one table for the index and one for photo bytes
type SQLiteDB struct {
	db  *sql.DB
	now func() time.Time
}

// New opens the database at dbPath and runs pending migrations
func New(dbPath string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// a single connection keeps ":memory:" databases coherent
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteDB{
		db:  db,
		now: time.Now,
	}, nil
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

const upsertBlobQuery = `
	INSERT INTO blobs (name, data, created_at)
	VALUES (?, ?, ?)
	ON CONFLICT(name) DO UPDATE SET data = excluded.data
`

func (s *SQLiteDB) WriteBlob(ctx context.Context, name string, data []byte) (string, error) {
	if name == "" {
		return "", fmt.Errorf("blob name cannot be empty")
	}
	if data == nil {
		data = []byte{}
	}
	if _, err := s.db.ExecContext(ctx, upsertBlobQuery, name, data, s.now().UTC()); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	return name, nil
}

func (s *SQLiteDB) ReadBlob(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM blobs WHERE name = ?", path).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("photo %s: %w", path, shutter.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return data, nil
}

func (s *SQLiteDB) DeleteBlob(ctx context.Context, path string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM blobs WHERE name = ?", path)
	if err != nil {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("photo %s: %w", path, shutter.ErrNotFound)
	}
	return nil
}

func (s *SQLiteDB) ListBlobs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM blobs ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan blob name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

const upsertValueQuery = `
	INSERT INTO kv (key, value, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		updated_at = excluded.updated_at
`

func (s *SQLiteDB) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("key %s: %w", key, shutter.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get value: %w", err)
	}
	return value, nil
}

func (s *SQLiteDB) Set(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, upsertValueQuery, key, value, s.now().UTC()); err != nil {
		return fmt.Errorf("failed to set value: %w", err)
	}
	return nil
}
