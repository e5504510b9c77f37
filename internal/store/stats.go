package store

import (
	"context"
	"os"
)

// Stats holds mirror statistics.
type Stats struct {
	DBPath      string      `json:"db_path"`
	DBSizeBytes int64       `json:"db_size_bytes"`
	Versions    int         `json:"versions"`
	Changes     int         `json:"changes"`
	Pages       int         `json:"pages"`
	Edits       int         `json:"edits"`
	Runs        int         `json:"runs"`
	TopPages    []PageStats `json:"top_pages"`
}

// PageStats holds per-page change counts.
type PageStats struct {
	Page    string `json:"page"`
	Changes int    `json:"changes"`
}

// Stats returns mirror statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM versions`).Scan(&st.Versions)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM changes`).Scan(&st.Changes)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages`).Scan(&st.Pages)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM edits`).Scan(&st.Edits)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&st.Runs)

	rows, err := s.db.QueryContext(ctx, `
		SELECT page, COUNT(*) AS cnt
		FROM changes
		GROUP BY page ORDER BY cnt DESC, page LIMIT 10`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var ps PageStats
		rows.Scan(&ps.Page, &ps.Changes)
		st.TopPages = append(st.TopPages, ps)
	}

	return st, nil
}
