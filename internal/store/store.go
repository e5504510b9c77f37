// Package store provides a local SQLite mirror of the wiki's changelog
// tables and pages, plus a log of reconciliation runs.
package store

import (
	"context"

	"github.com/rcliao/changelogged/internal/model"
)

// ImportParams holds parameters for loading a snapshot.
type ImportParams struct {
	Snapshot model.Snapshot
	// Replace clears the versions and changes tables first.
	Replace bool
}

// ImportResult reports what an import touched.
type ImportResult struct {
	Versions     int `json:"versions"`
	Changes      int `json:"changes"`
	Pages        int `json:"pages"`
	PagesRemoved int `json:"pages_removed"`
}

// ListRunsParams holds parameters for listing runs.
type ListRunsParams struct {
	Limit      int
	FailedOnly bool
}

// Store defines the mirror and run log interface.
type Store interface {
	// Versions and Changes return the mirrored tables in insertion order.
	Versions(ctx context.Context) ([]model.VersionRecord, error)
	Changes(ctx context.Context) ([]model.ChangeRecord, error)

	// ReadPage returns a mirrored page; absent pages come back Missing.
	ReadPage(ctx context.Context, title string) (model.Page, error)
	ReadPages(ctx context.Context, titles []string) (map[string]model.Page, error)

	// WritePage stores text as the page's new revision and logs the edit.
	WritePage(ctx context.Context, title, text, summary string) error

	// Import loads a snapshot. ExportAll dumps everything.
	Import(ctx context.Context, p ImportParams) (*ImportResult, error)
	ExportAll(ctx context.Context) (*model.Snapshot, error)

	// SaveRun records a run and its pages, assigning an ID if needed.
	SaveRun(ctx context.Context, run *model.Run) error
	ListRuns(ctx context.Context, p ListRunsParams) ([]model.Run, error)

	// Close closes the store.
	Close() error
}
