package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rcliao/changelogged/internal/model"
)

// ExportAll returns the mirrored versions, changes and pages.
func (s *SQLiteStore) ExportAll(ctx context.Context) (*model.Snapshot, error) {
	versions, err := s.Versions(ctx)
	if err != nil {
		return nil, fmt.Errorf("export versions: %w", err)
	}
	changes, err := s.Changes(ctx)
	if err != nil {
		return nil, fmt.Errorf("export changes: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT title, content FROM pages ORDER BY title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snap := &model.Snapshot{Versions: versions, Changes: changes}
	for rows.Next() {
		var p model.Page
		if err := rows.Scan(&p.Title, &p.Text); err != nil {
			return nil, err
		}
		snap.Pages = append(snap.Pages, p)
	}
	return snap, rows.Err()
}

// Import loads a snapshot in one transaction. Version labels already
// present are overwritten; changes are appended after existing rows.
// Pages marked Missing are removed from the mirror.
func (s *SQLiteStore) Import(ctx context.Context, p ImportParams) (*ImportResult, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if p.Replace {
		if _, err := tx.ExecContext(ctx, `DELETE FROM versions`); err != nil {
			return nil, fmt.Errorf("clear versions: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM changes`); err != nil {
			return nil, fmt.Errorf("clear changes: %w", err)
		}
	}

	res := &ImportResult{}

	seq, err := nextSeq(ctx, tx, "versions")
	if err != nil {
		return nil, err
	}
	for _, v := range p.Snapshot.Versions {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO versions (label, time_index, seq) VALUES (?, ?, ?)
			 ON CONFLICT(label) DO UPDATE SET time_index = excluded.time_index, seq = excluded.seq`,
			v.Label, float64(v.TimeIndex), seq)
		if err != nil {
			return nil, fmt.Errorf("insert version %q: %w", v.Label, err)
		}
		seq++
		res.Versions++
	}

	seq, err = nextSeq(ctx, tx, "changes")
	if err != nil {
		return nil, err
	}
	for _, c := range p.Snapshot.Changes {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO changes (id, seq, version, page, text) VALUES (?, ?, ?, ?, ?)`,
			s.newID(), seq, c.Version, c.Page, c.Text)
		if err != nil {
			return nil, fmt.Errorf("insert change for %q: %w", c.Page, err)
		}
		seq++
		res.Changes++
	}

	for _, pg := range p.Snapshot.Pages {
		if pg.Missing {
			r, err := tx.ExecContext(ctx, `DELETE FROM pages WHERE title = ?`, pg.Title)
			if err != nil {
				return nil, fmt.Errorf("remove page %q: %w", pg.Title, err)
			}
			if n, _ := r.RowsAffected(); n > 0 {
				res.PagesRemoved++
			}
			continue
		}
		if err := upsertPage(ctx, tx, pg.Title, pg.Text, now); err != nil {
			return nil, err
		}
		res.Pages++
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return res, nil
}

func nextSeq(ctx context.Context, tx *sql.Tx, table string) (int, error) {
	var seq int
	err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM `+table).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next %s seq: %w", table, err)
	}
	return seq, nil
}
