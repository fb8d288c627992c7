// Package history records completed downloads in an append-only SQLite log.
// Entries are never updated or deleted; the queue holds live state, history
// holds what already happened.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"cliptube/internal/config"
	"cliptube/internal/queue"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("history schema version mismatch")

// Entry is one completed download.
type Entry struct {
	ID              int64
	URL             string
	Kind            queue.Kind
	Title           string
	Quality         string
	DestinationPath string
	CompletedAt     time.Time
}

// Store persists the download history.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.HistoryDBPath())
}

// OpenPath opens a history database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Append records a completed download. The completion time is set here.
func (s *Store) Append(ctx context.Context, job *queue.Job) (*Entry, error) {
	if job == nil {
		return nil, errors.New("job is nil")
	}

	completedAt := time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO entries (url, kind, title, quality, destination_path, completed_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		job.URL,
		job.Kind,
		nullableString(job.Title),
		nullableString(job.RequestedQuality),
		nullableString(job.DestinationPath),
		completedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("append history entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return &Entry{
		ID:              id,
		URL:             job.URL,
		Kind:            job.Kind,
		Title:           job.Title,
		Quality:         job.RequestedQuality,
		DestinationPath: job.DestinationPath,
		CompletedAt:     completedAt,
	}, nil
}

// Recent returns the newest entries, most recent first. A limit of zero or
// less returns everything.
func (s *Store) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries ORDER BY completed_at DESC, id DESC`
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx, query+` LIMIT ?`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

// FindByURL returns all entries for a URL, most recent first.
func (s *Store) FindByURL(ctx context.Context, url string) ([]*Entry, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+entryColumns+` FROM entries WHERE url = ? ORDER BY completed_at DESC, id DESC`,
		url,
	)
	if err != nil {
		return nil, fmt.Errorf("find history by url: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

// Count returns the total number of history entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return count, nil
}

const entryColumns = "id, url, kind, title, quality, destination_path, completed_at"

func collectEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var (
			entry        Entry
			kindStr      string
			title        sql.NullString
			quality      sql.NullString
			destination  sql.NullString
			completedRaw string
		)
		if err := rows.Scan(&entry.ID, &entry.URL, &kindStr, &title, &quality, &destination, &completedRaw); err != nil {
			return nil, err
		}
		entry.Kind = queue.Kind(kindStr)
		entry.Title = title.String
		entry.Quality = quality.String
		entry.DestinationPath = destination.String
		if completed, err := time.Parse(time.RFC3339Nano, completedRaw); err == nil {
			entry.CompletedAt = completed
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read history schema version: %w", err)
	}

	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d",
			ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create history schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record history schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history schema: %w", err)
	}
	return nil
}
