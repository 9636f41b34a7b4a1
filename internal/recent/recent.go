// Package recent keeps the list of recently opened files in SQLite.
package recent

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/thoth-viewer/thoth/internal/logging"
)

var recentLog = logging.ForComponent(logging.CompRecent)

// SchemaVersion tracks the database schema. Bump it when adding migrations.
const SchemaVersion = 1

// DefaultMaxFiles is how many entries survive pruning by default.
const DefaultMaxFiles = 10

// FileName is the database file placed next to config.toml.
const FileName = "recent.db"

// Entry is one remembered file.
type Entry struct {
	Path      string
	Shape     string
	Records   int
	Size      int64
	OpenedAt  time.Time
	OpenCount int
}

// DB wraps the recent files database. Safe for concurrent use; several
// processes may share it through WAL mode and the busy timeout.
type DB struct {
	db       *sql.DB
	maxFiles int
}

// Open creates or opens the database at dbPath. maxFiles bounds the list
// after every Touch; zero means DefaultMaxFiles.
func Open(dbPath string, maxFiles int) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("recent: mkdir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("recent: open: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("recent: %s: %w", pragma, err)
		}
	}

	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	return &DB{db: db, maxFiles: maxFiles}, nil
}

// Close checkpoints the WAL and closes the database.
func (r *DB) Close() error {
	_, _ = r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return r.db.Close()
}

// Migrate creates missing tables and records the schema version.
func (r *DB) Migrate() error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("recent: begin migrate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("recent: create metadata: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS recent_files (
			path       TEXT PRIMARY KEY,
			shape      TEXT NOT NULL DEFAULT '',
			records    INTEGER NOT NULL DEFAULT 0,
			size       INTEGER NOT NULL DEFAULT 0,
			opened_at  INTEGER NOT NULL,
			open_count INTEGER NOT NULL DEFAULT 1
		)
	`); err != nil {
		return fmt.Errorf("recent: create recent_files: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)
	`, fmt.Sprintf("%d", SchemaVersion)); err != nil {
		return fmt.Errorf("recent: set schema version: %w", err)
	}

	return tx.Commit()
}

// Touch records that e.Path was opened, moving it to the front of the list.
// A zero OpenedAt means now.
func (r *DB) Touch(e Entry) error {
	if e.OpenedAt.IsZero() {
		e.OpenedAt = time.Now()
	}
	if _, err := r.db.Exec(`
		INSERT INTO recent_files (path, shape, records, size, opened_at, open_count)
		VALUES (?, ?, ?, ?, ?, 1)
		ON CONFLICT(path) DO UPDATE SET
			shape = excluded.shape,
			records = excluded.records,
			size = excluded.size,
			opened_at = excluded.opened_at,
			open_count = recent_files.open_count + 1
	`, e.Path, e.Shape, e.Records, e.Size, e.OpenedAt.UnixNano()); err != nil {
		return fmt.Errorf("recent: touch %s: %w", e.Path, err)
	}
	recentLog.Debug("recent_touched", slog.String("path", e.Path))
	_, err := r.Prune(r.maxFiles)
	return err
}

// List returns entries, most recently opened first.
func (r *DB) List() ([]Entry, error) {
	rows, err := r.db.Query(`
		SELECT path, shape, records, size, opened_at, open_count
		FROM recent_files ORDER BY opened_at DESC, path
	`)
	if err != nil {
		return nil, fmt.Errorf("recent: list: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var opened int64
		if err := rows.Scan(&e.Path, &e.Shape, &e.Records, &e.Size, &opened, &e.OpenCount); err != nil {
			return nil, fmt.Errorf("recent: scan: %w", err)
		}
		e.OpenedAt = time.Unix(0, opened)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Remove forgets one path.
func (r *DB) Remove(path string) error {
	_, err := r.db.Exec("DELETE FROM recent_files WHERE path = ?", path)
	return err
}

// Prune keeps the keep most recent entries and reports how many were dropped.
func (r *DB) Prune(keep int) (int, error) {
	res, err := r.db.Exec(`
		DELETE FROM recent_files WHERE path NOT IN (
			SELECT path FROM recent_files ORDER BY opened_at DESC, path LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("recent: prune: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		recentLog.Debug("recent_pruned", slog.Int64("removed", n))
	}
	return int(n), nil
}

// Clear forgets every entry.
func (r *DB) Clear() error {
	_, err := r.db.Exec("DELETE FROM recent_files")
	return err
}
