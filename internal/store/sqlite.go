package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/changelogged/internal/model"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	mu      sync.Mutex // guards entropy
	entropy *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS versions (
		label      TEXT PRIMARY KEY,
		time_index REAL NOT NULL,
		seq        INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_versions_seq ON versions(seq);

	CREATE TABLE IF NOT EXISTS changes (
		id      TEXT PRIMARY KEY,
		seq     INTEGER NOT NULL,
		version TEXT NOT NULL,
		page    TEXT NOT NULL,
		text    TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_changes_seq ON changes(seq);
	CREATE INDEX IF NOT EXISTS idx_changes_page ON changes(page);

	CREATE TABLE IF NOT EXISTS pages (
		title      TEXT PRIMARY KEY,
		content    TEXT NOT NULL,
		revision   INTEGER NOT NULL DEFAULT 1,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS edits (
		id         TEXT PRIMARY KEY,
		title      TEXT NOT NULL,
		content    TEXT NOT NULL,
		summary    TEXT,
		bot        INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_edits_title ON edits(title);

	CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		started_at  TEXT NOT NULL,
		finished_at TEXT,
		latest      TEXT NOT NULL,
		pending     INTEGER NOT NULL DEFAULT 0,
		written     INTEGER NOT NULL DEFAULT 0,
		failed      INTEGER NOT NULL DEFAULT 0,
		declined    INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);

	CREATE TABLE IF NOT EXISTS run_pages (
		run_id  TEXT NOT NULL REFERENCES runs(id),
		title   TEXT NOT NULL,
		status  TEXT NOT NULL,
		outcome TEXT NOT NULL,
		error   TEXT,
		PRIMARY KEY (run_id, title)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Versions(ctx context.Context) ([]model.VersionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT label, time_index FROM versions ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.VersionRecord
	for rows.Next() {
		var v model.VersionRecord
		var ti float64
		if err := rows.Scan(&v.Label, &ti); err != nil {
			return nil, err
		}
		v.TimeIndex = model.TimeIndex(ti)
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Changes(ctx context.Context) ([]model.ChangeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version, page, text FROM changes ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ChangeRecord
	for rows.Next() {
		var c model.ChangeRecord
		if err := rows.Scan(&c.Version, &c.Page, &c.Text); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ReadPage(ctx context.Context, title string) (model.Page, error) {
	var content string
	err := s.db.QueryRowContext(ctx, `SELECT content FROM pages WHERE title = ?`, title).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Page{Title: title, Missing: true}, nil
	}
	if err != nil {
		return model.Page{}, fmt.Errorf("read page %q: %w", title, err)
	}
	return model.Page{Title: title, Text: content}, nil
}

func (s *SQLiteStore) ReadPages(ctx context.Context, titles []string) (map[string]model.Page, error) {
	out := make(map[string]model.Page, len(titles))
	if len(titles) == 0 {
		return out, nil
	}
	for _, t := range titles {
		out[t] = model.Page{Title: t, Missing: true}
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(titles)), ",")
	args := make([]interface{}, len(titles))
	for i, t := range titles {
		args[i] = t
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT title, content FROM pages WHERE title IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p model.Page
		if err := rows.Scan(&p.Title, &p.Text); err != nil {
			return nil, err
		}
		out[p.Title] = p
	}
	return out, rows.Err()
}

func (s *SQLiteStore) WritePage(ctx context.Context, title, text, summary string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := upsertPage(ctx, tx, title, text, now); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO edits (id, title, content, summary, bot, created_at) VALUES (?, ?, ?, ?, 1, ?)`,
		s.newID(), title, text, summary, now)
	if err != nil {
		return fmt.Errorf("insert edit: %w", err)
	}
	return tx.Commit()
}

func upsertPage(ctx context.Context, tx *sql.Tx, title, text, now string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO pages (title, content, revision, updated_at) VALUES (?, ?, 1, ?)
		 ON CONFLICT(title) DO UPDATE SET
		   content = excluded.content,
		   revision = pages.revision + 1,
		   updated_at = excluded.updated_at`,
		title, text, now)
	if err != nil {
		return fmt.Errorf("upsert page %q: %w", title, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}
