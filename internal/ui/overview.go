package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/rcliao/changelogged/internal/model"
	"github.com/rcliao/changelogged/internal/reconcile"
)

const overviewTitle = "-- PAGE CHANGE OVERVIEW --"

// OverviewOptions controls the page grid layout.
type OverviewOptions struct {
	Columns       int
	MaxNameLength int
}

// DefaultOverviewOptions matches the CLI defaults.
func DefaultOverviewOptions() OverviewOptions {
	return OverviewOptions{Columns: 3, MaxNameLength: 26}
}

// RenderOverview writes the centered title, the status legend and one grid
// cell per page: change count, separator, status-colored name. Pages that
// could not be fetched are listed after the grid.
func RenderOverview(w io.Writer, plan *reconcile.Plan, opts OverviewOptions) {
	if opts.Columns < 1 {
		opts.Columns = 1
	}
	if opts.MaxNameLength < 1 {
		opts.MaxNameLength = DefaultOverviewOptions().MaxNameLength
	}
	s := newStyles(w)

	indent := (opts.Columns*(opts.MaxNameLength+4) - len(overviewTitle)) / 2
	if indent < 0 {
		indent = 0
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, s.title.Render(strings.Repeat(" ", indent)+overviewTitle))

	legend := make([]string, len(Legend))
	for i, l := range Legend {
		legend[i] = s.RenderStatus(l.Status, l.Label)
	}
	fmt.Fprintln(w, strings.Join(legend, "  "))

	n := 0
	var failed []reconcile.PageReport
	for _, r := range plan.Reports {
		if r.Err != nil {
			failed = append(failed, r)
			continue
		}
		fmt.Fprint(w, s.count.Render(fmt.Sprintf("%2d", r.Changes))+
			s.muted.Render(" - ")+
			s.RenderStatus(r.Status, cellName(r.Page, opts.MaxNameLength)))
		n++
		if n%opts.Columns == 0 {
			fmt.Fprintln(w)
		}
	}
	if n%opts.Columns != 0 {
		fmt.Fprintln(w)
	}

	for _, r := range failed {
		fmt.Fprintln(w, s.fail.Render(fmt.Sprintf("[ERROR][%s] %v", r.Page, r.Err)))
	}
}

// cellName truncates name to limit runes and pads it to limit+2.
func cellName(name string, limit int) string {
	r := []rune(name)
	if len(r) > limit {
		r = r[:limit]
	}
	return string(r) + strings.Repeat(" ", limit+2-len(r))
}

// RenderSummary writes the per-status counts on one line.
func RenderSummary(w io.Writer, plan *reconcile.Plan) {
	s := newStyles(w)
	counts := plan.Counts()
	parts := make([]string, 0, len(Legend)+1)
	for _, l := range Legend {
		parts = append(parts, s.RenderStatus(l.Status, fmt.Sprintf("%s: %d", l.Status, counts[l.Status])))
	}
	if f := len(plan.FetchFailures()); f > 0 {
		parts = append(parts, s.fail.Render(fmt.Sprintf("fetchFailed: %d", f)))
	}
	fmt.Fprintf(w, "Latest version %s. %s\n", plan.Latest.Label, strings.Join(parts, ", "))
}

// RenderOutcomes writes one line per attempted page and a closing summary.
func RenderOutcomes(w io.Writer, res *reconcile.Result) {
	s := newStyles(w)
	switch {
	case res.NoOp:
		if n := len(res.Failed()); n > 0 {
			fmt.Fprintln(w, s.fail.Render(fmt.Sprintf("No readable page needs an update. %d page(s) could not be read.", n)))
			return
		}
		fmt.Fprintln(w, s.pass.Render("Every page is up to date."))
		return
	case res.Declined:
		fmt.Fprintln(w, s.muted.Render("Upload declined. Nothing was written."))
		return
	}

	for _, o := range res.Outcomes {
		if o.Err != nil {
			fmt.Fprintln(w, s.fail.Render(fmt.Sprintf("[ERROR][%s] %v", o.Page, o.Err)))
			continue
		}
		fmt.Fprintln(w, s.pass.Render(fmt.Sprintf("[INFO][%s] Pushed to wiki", o.Page)))
	}

	failed := len(res.Failed())
	line := fmt.Sprintf("Wrote %d of %d pending pages to %s.", res.Written(), len(res.Plan.Pending()), res.Plan.Latest.Label)
	if failed > 0 {
		fmt.Fprintln(w, s.fail.Render(fmt.Sprintf("%s %d failed.", line, failed)))
		return
	}
	fmt.Fprintln(w, s.pass.Render(line))
}

// StatusLabel returns the legend label for status.
func StatusLabel(status model.Status) string {
	if l, ok := statusLabels[status]; ok {
		return l
	}
	return status.String()
}
