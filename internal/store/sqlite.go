package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/battlelinehq/battleline/internal/store/migrations"
	_ "modernc.org/sqlite"
)

// SQLite persists session records in a single SQLite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the archive database at path and applies
// the embedded migrations.
func OpenSQLite(path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("store path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLite{db: db}, nil
}

func applyMigrations(db *sql.DB) error {
	names, err := fs.Glob(migrations.FS, "*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		script, err := fs.ReadFile(migrations.FS, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := db.Exec(string(script)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, id uint64) (Record, error) {
	var rec Record
	var savedAt int64
	var state string
	err := s.db.QueryRowContext(ctx,
		`SELECT state, document, saved_at FROM session_archive WHERE session_id = ?`,
		int64(id),
	).Scan(&state, &rec.Document, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("query session %d: %w", id, err)
	}
	rec.State = []byte(state)
	rec.SavedAt = time.UnixMilli(savedAt).UTC()
	return rec, nil
}

func (s *SQLite) MaxID(ctx context.Context) (uint64, error) {
	var max int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(session_id), 0) FROM session_archive`,
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("query max session id: %w", err)
	}
	return uint64(max), nil
}

func (s *SQLite) Put(ctx context.Context, id uint64, rec Record) error {
	savedAt := rec.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_archive (session_id, state, document, saved_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
		   state = excluded.state,
		   document = excluded.document,
		   saved_at = excluded.saved_at`,
		int64(id), string(rec.State), rec.Document, savedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("archive session %d: %w", id, err)
	}
	return nil
}

// Close closes the database handle.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
