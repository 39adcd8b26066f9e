// Package store keeps rasterized artifacts in a local SQLite library keyed
// by label, so pre-generated art can be replayed without the source image.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wbrown/img2ascii"
)

// ErrNotFound is returned when no artifact has the requested label.
var ErrNotFound = errors.New("artifact not found")

const librarySchema = `
CREATE TABLE IF NOT EXISTS artifacts (
    id INTEGER PRIMARY KEY,
    label TEXT NOT NULL UNIQUE,
    created_at INTEGER NOT NULL,      -- UnixMilli of the artifact
    updated_at INTEGER NOT NULL,      -- UnixMilli of the last save
    cols INTEGER NOT NULL,
    rows INTEGER NOT NULL,
    body TEXT NOT NULL                -- interchange JSON
);

CREATE INDEX IF NOT EXISTS idx_artifacts_updated ON artifacts(updated_at);
`

// Entry summarises a stored artifact.
type Entry struct {
	ID        int64
	Label     string
	CreatedAt time.Time
	UpdatedAt time.Time
	Cols      int
	Rows      int
}

// Library is a SQLite-backed artifact store. It is safe for concurrent use.
type Library struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the library at path.
func Open(path string) (*Library, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	dsn := path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.Exec(librarySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Library{db: db, now: time.Now}, nil
}

// Close closes the database.
func (l *Library) Close() error {
	return l.db.Close()
}

// Save stores a under its label, replacing any artifact with the same
// label, and returns the row id. Saving the same label twice reuses the
// row.
func (l *Library) Save(ctx context.Context, a *img2ascii.Artifact) (int64, error) {
	if a.Label == "" {
		return 0, fmt.Errorf("artifact has no label")
	}
	if err := a.Validate(); err != nil {
		return 0, err
	}
	body, err := a.MarshalIndent()
	if err != nil {
		return 0, fmt.Errorf("failed to encode artifact: %w", err)
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO artifacts (label, created_at, updated_at, cols, rows, body)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(label) DO UPDATE SET
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			cols = excluded.cols,
			rows = excluded.rows,
			body = excluded.body`,
		a.Label, a.CreatedAt.UnixMilli(), l.now().UnixMilli(),
		a.Dimensions.Cols, a.Dimensions.Rows, string(body))
	if err != nil {
		return 0, fmt.Errorf("failed to save artifact: %w", err)
	}

	var id int64
	if err := l.db.QueryRowContext(ctx,
		"SELECT id FROM artifacts WHERE label = ?", a.Label).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to read artifact id: %w", err)
	}
	img2ascii.Logger().Debug("artifact saved", "label", a.Label, "id", id)
	return id, nil
}

// Get loads the artifact stored under label.
func (l *Library) Get(ctx context.Context, label string) (*img2ascii.Artifact, error) {
	var body string
	err := l.db.QueryRowContext(ctx,
		"SELECT body FROM artifacts WHERE label = ?", label).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, label)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load artifact: %w", err)
	}
	return img2ascii.ParseArtifact([]byte(body))
}

// List returns every stored artifact, most recently saved first.
func (l *Library) List(ctx context.Context) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, label, created_at, updated_at, cols, rows
		FROM artifacts ORDER BY updated_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created, updated int64
		if err := rows.Scan(&e.ID, &e.Label, &created, &updated, &e.Cols, &e.Rows); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		e.CreatedAt = time.UnixMilli(created).UTC()
		e.UpdatedAt = time.UnixMilli(updated).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes the artifact stored under label.
func (l *Library) Delete(ctx context.Context, label string) error {
	res, err := l.db.ExecContext(ctx, "DELETE FROM artifacts WHERE label = ?", label)
	if err != nil {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, label)
	}
	return nil
}
