package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rcliao/changelogged/internal/model"
)

// SaveRun records a run and its per-page outcomes.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.Run) error {
	if run.ID == "" {
		run.ID = s.newID()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	var finished *string
	if run.FinishedAt != nil {
		f := run.FinishedAt.UTC().Format(time.RFC3339)
		finished = &f
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, latest, pending, written, failed, declined)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC().Format(time.RFC3339), finished, run.Latest,
		run.Pending, run.Written, run.Failed, boolToInt(run.Declined))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, p := range run.Pages {
		var errText *string
		if p.Error != "" {
			errText = &p.Error
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_pages (run_id, title, status, outcome, error) VALUES (?, ?, ?, ?, ?)`,
			run.ID, p.Title, p.Status, p.Outcome, errText)
		if err != nil {
			return fmt.Errorf("insert run page %q: %w", p.Title, err)
		}
	}
	return tx.Commit()
}

// ListRuns returns runs newest first, each with its pages.
func (s *SQLiteStore) ListRuns(ctx context.Context, p ListRunsParams) ([]model.Run, error) {
	if p.Limit <= 0 {
		p.Limit = 20
	}

	query := `SELECT id, started_at, finished_at, latest, pending, written, failed, declined FROM runs`
	if p.FailedOnly {
		query += ` WHERE failed > 0`
	}
	query += ` ORDER BY started_at DESC, id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, p.Limit)
	if err != nil {
		return nil, err
	}
	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		runs = append(runs, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		pages, err := s.runPages(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Pages = pages
	}
	return runs, nil
}

func (s *SQLiteStore) runPages(ctx context.Context, runID string) ([]model.RunPage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT title, status, outcome, error FROM run_pages WHERE run_id = ? ORDER BY title`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RunPage
	for rows.Next() {
		var p model.RunPage
		var errText sql.NullString
		if err := rows.Scan(&p.Title, &p.Status, &p.Outcome, &errText); err != nil {
			return nil, err
		}
		p.Error = errText.String
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanRun(sc scanner) (model.Run, error) {
	var r model.Run
	var started string
	var finished sql.NullString
	var declined int

	err := sc.Scan(&r.ID, &started, &finished, &r.Latest, &r.Pending, &r.Written, &r.Failed, &declined)
	if err != nil {
		return r, err
	}
	r.StartedAt, _ = time.Parse(time.RFC3339, started)
	if finished.Valid {
		t, _ := time.Parse(time.RFC3339, finished.String)
		r.FinishedAt = &t
	}
	r.Declined = declined != 0
	return r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
