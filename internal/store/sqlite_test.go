package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rcliao/changelogged/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seed(t *testing.T, s *SQLiteStore) {
	t.Helper()
	_, err := s.Import(context.Background(), ImportParams{Snapshot: model.Snapshot{
		Versions: []model.VersionRecord{
			{Label: "Alpha v1.1", TimeIndex: 2},
			{Label: "Alpha v1.0", TimeIndex: 1},
		},
		Changes: []model.ChangeRecord{
			{Version: "Alpha v1.0", Page: "Castle", Text: "Added"},
			{Version: "Alpha v1.1", Page: "Castle", Text: "Buffed"},
			{Version: "Alpha v1.1", Page: "Keep", Text: "Added"},
		},
		Pages: []model.Page{
			{Title: "Castle", Text: "{{NAW Changelist}}"},
		},
	}})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestImportPreservesOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seed(t, s)

	versions, err := s.Versions(ctx)
	if err != nil {
		t.Fatalf("versions: %v", err)
	}
	if len(versions) != 2 || versions[0].Label != "Alpha v1.1" {
		t.Errorf("expected insertion order, got %+v", versions)
	}

	changes, err := s.Changes(ctx)
	if err != nil {
		t.Fatalf("changes: %v", err)
	}
	if len(changes) != 3 {
		t.Fatalf("expected 3 changes, got %d", len(changes))
	}
	if changes[1].Text != "Buffed" || changes[2].Page != "Keep" {
		t.Errorf("unexpected change order: %+v", changes)
	}
}

func TestImportAppendsAndReplaces(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seed(t, s)

	more := model.Snapshot{Changes: []model.ChangeRecord{{Version: "Alpha v1.1", Page: "Moat", Text: "Dug"}}}
	res, err := s.Import(ctx, ImportParams{Snapshot: more})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Changes != 1 {
		t.Errorf("expected 1 imported change, got %d", res.Changes)
	}
	changes, _ := s.Changes(ctx)
	if len(changes) != 4 || changes[3].Page != "Moat" {
		t.Errorf("expected appended change last, got %+v", changes)
	}

	_, err = s.Import(ctx, ImportParams{Snapshot: more, Replace: true})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	changes, _ = s.Changes(ctx)
	if len(changes) != 1 {
		t.Errorf("expected 1 change after replace, got %d", len(changes))
	}
	versions, _ := s.Versions(ctx)
	if len(versions) != 0 {
		t.Errorf("expected versions cleared, got %d", len(versions))
	}
	// Pages survive a replace.
	p, _ := s.ReadPage(ctx, "Castle")
	if p.Missing {
		t.Error("expected Castle to survive replace")
	}
}

func TestImportRemovesMissingPages(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seed(t, s)

	res, err := s.Import(ctx, ImportParams{Snapshot: model.Snapshot{
		Pages: []model.Page{{Title: "Castle", Missing: true}, {Title: "Nowhere", Missing: true}},
	}})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.PagesRemoved != 1 {
		t.Errorf("expected 1 page removed, got %d", res.PagesRemoved)
	}
	p, _ := s.ReadPage(ctx, "Castle")
	if !p.Missing {
		t.Error("expected Castle to be missing")
	}
}

func TestReadPages(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seed(t, s)

	got, err := s.ReadPages(ctx, []string{"Castle", "Keep"})
	if err != nil {
		t.Fatalf("read pages: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(got))
	}
	if got["Castle"].Text != "{{NAW Changelist}}" {
		t.Errorf("unexpected Castle text %q", got["Castle"].Text)
	}
	if !got["Keep"].Missing {
		t.Error("expected Keep to be missing")
	}

	empty, err := s.ReadPages(ctx, nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("expected empty result, got %v, %v", empty, err)
	}
}

func TestWritePageLogsEdit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seed(t, s)

	if err := s.WritePage(ctx, "Castle", "v2", "Update history to Alpha v1.1"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.WritePage(ctx, "Keep", "new", "Update history to Alpha v1.1"); err != nil {
		t.Fatalf("write: %v", err)
	}

	p, _ := s.ReadPage(ctx, "Castle")
	if p.Text != "v2" {
		t.Errorf("expected 'v2', got %q", p.Text)
	}

	var revision, edits, bot int
	s.db.QueryRowContext(ctx, `SELECT revision FROM pages WHERE title = 'Castle'`).Scan(&revision)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*), MIN(bot) FROM edits`).Scan(&edits, &bot)
	if revision != 2 {
		t.Errorf("expected revision 2, got %d", revision)
	}
	if edits != 2 || bot != 1 {
		t.Errorf("expected 2 bot edits, got %d (bot=%d)", edits, bot)
	}
}

func TestExportAll(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seed(t, s)

	snap, err := s.ExportAll(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(snap.Versions) != 2 || len(snap.Changes) != 3 || len(snap.Pages) != 1 {
		t.Errorf("unexpected snapshot sizes: %d/%d/%d", len(snap.Versions), len(snap.Changes), len(snap.Pages))
	}

	// Round trip into a fresh store.
	other := newTestStore(t)
	if _, err := other.Import(ctx, ImportParams{Snapshot: *snap}); err != nil {
		t.Fatalf("import: %v", err)
	}
	again, _ := other.ExportAll(ctx)
	if len(again.Changes) != 3 || again.Changes[1].Text != "Buffed" {
		t.Errorf("round trip lost order: %+v", again.Changes)
	}
}

func TestSaveAndListRuns(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	finished := time.Now().UTC()
	first := &model.Run{
		StartedAt:  finished.Add(-time.Hour),
		FinishedAt: &finished,
		Latest:     "Alpha v1.0",
		Pending:    1,
		Written:    1,
		Pages:      []model.RunPage{{Title: "Castle", Status: "toCreate", Outcome: "written"}},
	}
	if err := s.SaveRun(ctx, first); err != nil {
		t.Fatalf("save: %v", err)
	}
	if first.ID == "" {
		t.Error("expected ID to be assigned")
	}

	second := &model.Run{
		StartedAt: finished,
		Latest:    "Alpha v1.1",
		Pending:   2,
		Written:   1,
		Failed:    1,
		Pages: []model.RunPage{
			{Title: "Castle", Status: "toUpdate", Outcome: "written"},
			{Title: "Keep", Status: "toCreate", Outcome: "failed", Error: "edit conflict"},
		},
	}
	if err := s.SaveRun(ctx, second); err != nil {
		t.Fatalf("save: %v", err)
	}

	runs, err := s.ListRuns(ctx, ListRunsParams{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != second.ID {
		t.Fatalf("expected newest first, got %+v", runs)
	}
	if runs[1].FinishedAt == nil {
		t.Error("expected finished_at on first run")
	}
	if len(runs[0].Pages) != 2 || runs[0].Pages[1].Error != "edit conflict" {
		t.Errorf("unexpected pages: %+v", runs[0].Pages)
	}

	failed, _ := s.ListRuns(ctx, ListRunsParams{FailedOnly: true})
	if len(failed) != 1 || failed[0].ID != second.ID {
		t.Errorf("expected only the failed run, got %+v", failed)
	}

	limited, _ := s.ListRuns(ctx, ListRunsParams{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("expected 1 run, got %d", len(limited))
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "stats.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	defer s.Close()
	seed(t, s)

	st, err := s.Stats(ctx, dbPath)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Versions != 2 || st.Changes != 3 || st.Pages != 1 {
		t.Errorf("unexpected counts: %+v", st)
	}
	if len(st.TopPages) == 0 || st.TopPages[0].Page != "Castle" || st.TopPages[0].Changes != 2 {
		t.Errorf("unexpected top pages: %+v", st.TopPages)
	}
	if st.DBPath != dbPath {
		t.Errorf("expected db path %q, got %q", dbPath, st.DBPath)
	}
}

func TestDBPathCreation(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("expected db file to be created")
	}
}
