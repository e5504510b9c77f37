// Package reconcile drives a full changelog sync: it plans which pages are
// stale and, once confirmed, rewrites their history blocks.
package reconcile

import (
	"context"

	"github.com/rcliao/changelogged/internal/model"
)

// Source supplies the complete Versions and Changes tables.
type Source interface {
	Versions(ctx context.Context) ([]model.VersionRecord, error)
	Changes(ctx context.Context) ([]model.ChangeRecord, error)
}

// PageStore reads and writes single wiki pages.
type PageStore interface {
	// ReadPage returns the page, with Missing set if it does not exist.
	ReadPage(ctx context.Context, title string) (model.Page, error)

	// WritePage saves text as the latest revision, tagged as a bot edit.
	WritePage(ctx context.Context, title, text, summary string) error
}

// BatchReader is implemented by page stores that can fetch several pages
// in one request. Titles absent from the result are treated as failures.
type BatchReader interface {
	ReadPages(ctx context.Context, titles []string) (map[string]model.Page, error)
}

// Confirmer approves the write phase of a plan.
type Confirmer interface {
	Confirm(ctx context.Context, plan *Plan) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, plan *Plan) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, plan *Plan) (bool, error) { return f(ctx, plan) }

// Phase names a stage that reports progress.
type Phase string

const (
	PhaseFetch Phase = "fetch"
	PhaseWrite Phase = "write"
)

// Observer receives progress notifications. Calls are serialized.
type Observer interface {
	OnProgress(phase Phase, completed, total int)
}

type nopObserver struct{}

func (nopObserver) OnProgress(Phase, int, int) {}
