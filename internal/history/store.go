// Package history keeps a local SQLite log of completed interactions.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

// FileName is the database file created inside the history directory
const FileName = "history.db"

// ErrNotFound is returned by Get for unknown ids
var ErrNotFound = errors.New("history entry not found")

// Entry is one completed query or challenge
type Entry struct {
	ID        string          `json:"id"`
	Module    string          `json:"module"`
	Query     string          `json:"query"`
	Kind      string          `json:"kind"`
	Summary   string          `json:"summary,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Store is the SQLite-backed history.
type Store struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time
}

// Open opens or creates the history database in dir
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	dbPath := filepath.Join(dir, FileName)

	db, err := sql.Open("sqlite", dbPath+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// One writer; the HTTP API and the CLI never need parallel writes
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, dbPath: dbPath, now: time.Now}

	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS interactions (
		id TEXT PRIMARY KEY,
		module TEXT NOT NULL,
		query TEXT NOT NULL,
		kind TEXT NOT NULL,
		summary TEXT,
		payload TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_interactions_created ON interactions(created_at);
	CREATE INDEX IF NOT EXISTS idx_interactions_module ON interactions(module);
	`
	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// Record stores an entry, assigning an id and timestamp when absent
func (s *Store) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	e.CreatedAt = e.CreatedAt.UTC()

	var payload sql.NullString
	if len(e.Payload) > 0 {
		payload = sql.NullString{String: string(e.Payload), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
	INSERT INTO interactions (id, module, query, kind, summary, payload, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Module, e.Query, e.Kind, e.Summary, payload, e.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return Entry{}, fmt.Errorf("failed to insert history entry: %w", err)
	}
	return e, nil
}

// List returns the most recent entries first, without payloads
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT id, module, query, kind, summary, created_at
	FROM interactions
	ORDER BY created_at DESC, rowid DESC
	LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			summary sql.NullString
			created string
		)
		if err := rows.Scan(&e.ID, &e.Module, &e.Query, &e.Kind, &summary, &created); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.Summary = summary.String
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("history entry %s: bad timestamp: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get returns one entry with its payload
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	var (
		e       Entry
		summary sql.NullString
		payload sql.NullString
		created string
	)
	err := s.db.QueryRowContext(ctx, `
	SELECT id, module, query, kind, summary, payload, created_at
	FROM interactions WHERE id = ?`, id).
		Scan(&e.ID, &e.Module, &e.Query, &e.Kind, &summary, &payload, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history entry: %w", err)
	}

	e.Summary = summary.String
	if payload.Valid {
		e.Payload = json.RawMessage(payload.String)
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("history entry %s: bad timestamp: %w", e.ID, err)
	}
	return &e, nil
}
