package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rcliao/changelogged/internal/changelog"
	"github.com/rcliao/changelogged/internal/history"
	"github.com/rcliao/changelogged/internal/model"
)

var (
	// ErrPageVanished is reported when a pending page is gone at write time.
	ErrPageVanished = errors.New("page no longer exists")
	// ErrNoChanges is returned by Preview for a page with no change records.
	ErrNoChanges = errors.New("no changes recorded for page")
)

// Options tunes a Driver.
type Options struct {
	Force      bool
	Order      model.ChangeOrder
	TableTitle string

	// BatchSize caps titles per batched read. Values below 2 disable batching.
	BatchSize   int
	Concurrency int
	Interval    time.Duration
}

// DefaultOptions returns the settings used by the CLI when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Order:       model.OrderReceived,
		TableTitle:  "Nations at War",
		BatchSize:   50,
		Concurrency: 4,
		Interval:    250 * time.Millisecond,
	}
}

// Driver runs reconciliation against a source and a page store.
type Driver struct {
	Source    Source
	Pages     PageStore
	Confirmer Confirmer
	Observer  Observer
	Logger    *slog.Logger
	Options   Options

	// OnPlan, if set, sees the plan before the confirmation step.
	OnPlan func(*Plan)
}

// New returns a driver with default options, no confirmer and no observer.
func New(src Source, pages PageStore) *Driver {
	return &Driver{
		Source:  src,
		Pages:   pages,
		Options: DefaultOptions(),
	}
}

// PageReport is the plan entry for one page. Err is set when the page could
// not be fetched, in which case the classification is meaningless.
type PageReport struct {
	model.PageClassification
	Changes int
	Err     error
}

// Plan is the read-only outcome of fetching and classifying every page.
type Plan struct {
	Timeline *changelog.Timeline
	Latest   model.Version
	Pages    changelog.Pages
	Reports  []PageReport
}

// Pending returns the reports of pages that need a write.
func (p *Plan) Pending() []PageReport {
	var out []PageReport
	for _, r := range p.Reports {
		if r.Err == nil && r.Status.Pending() {
			out = append(out, r)
		}
	}
	return out
}

// Counts tallies classified pages per status.
func (p *Plan) Counts() map[model.Status]int {
	out := make(map[model.Status]int)
	for _, r := range p.Reports {
		if r.Err == nil {
			out[r.Status]++
		}
	}
	return out
}

// FetchFailures returns the pages that could not be read.
func (p *Plan) FetchFailures() []PageReport {
	var out []PageReport
	for _, r := range p.Reports {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Outcome is the result of processing one page in the write phase, or of a
// failed fetch during planning.
type Outcome struct {
	Page   string
	Status model.Status
	Phase  Phase
	Err    error
}

// Result summarizes a Run.
type Result struct {
	Plan     *Plan
	NoOp     bool
	Declined bool
	Outcomes []Outcome
}

// Written counts pages saved successfully.
func (r *Result) Written() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns every page that failed to fetch or to write.
func (r *Result) Failed() []Outcome {
	var out []Outcome
	if r.Plan != nil {
		for _, f := range r.Plan.FetchFailures() {
			out = append(out, Outcome{Page: f.Page, Phase: PhaseFetch, Err: f.Err})
		}
	}
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Record converts the result into an audit record. Pages that were
// pending, attempted or failed are listed.
func (r *Result) Record(started, finished time.Time) model.Run {
	run := model.Run{
		StartedAt:  started,
		FinishedAt: &finished,
		Declined:   r.Declined,
	}
	if r.Plan == nil {
		return run
	}
	run.Latest = r.Plan.Latest.Label
	run.Pending = len(r.Plan.Pending())
	run.Written = r.Written()
	run.Failed = len(r.Failed())

	attempted := make(map[string]Outcome, len(r.Outcomes))
	for _, o := range r.Outcomes {
		attempted[o.Page] = o
	}
	for _, rep := range r.Plan.Reports {
		p := model.RunPage{Title: rep.Page, Status: rep.Status.String()}
		o, tried := attempted[rep.Page]
		switch {
		case rep.Err != nil:
			p.Outcome, p.Error = "fetch_failed", rep.Err.Error()
		case tried && o.Err != nil:
			p.Outcome, p.Error = "failed", o.Err.Error()
		case tried:
			p.Outcome = "written"
		case rep.Status.Pending() && r.Declined:
			p.Outcome = "declined"
		default:
			continue
		}
		run.Pages = append(run.Pages, p)
	}
	return run
}

func (d *Driver) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d *Driver) observer() Observer {
	if d.Observer != nil {
		return d.Observer
	}
	return nopObserver{}
}

func (d *Driver) pacer() *Pacer {
	return NewPacer(d.Options.Concurrency, d.Options.Interval)
}

// Plan loads changelog data, fetches every referenced page and classifies it.
// Setup failures (source errors, an empty timeline, orphaned changes) are
// returned; per-page fetch failures are kept in the plan.
func (d *Driver) Plan(ctx context.Context) (*Plan, error) {
	log := d.logger()

	tl, latest, pages, err := d.load(ctx)
	if err != nil {
		return nil, err
	}

	titles := pages.Names()
	log.Info("retrieving page data", "pages", len(titles))
	fetched, errs := d.fetchAll(ctx, titles)

	c := history.Classifier{Timeline: tl, Force: d.Options.Force}
	plan := &Plan{Timeline: tl, Latest: latest, Pages: pages, Reports: make([]PageReport, len(titles))}
	for i, title := range titles {
		set := pages[title]
		r := PageReport{Changes: set.Count()}
		if errs[i] != nil {
			r.Page = title
			r.Err = errs[i]
			log.Warn("page fetch failed", "page", title, "error", errs[i])
		} else {
			r.PageClassification = c.Classify(fetched[i], set)
		}
		plan.Reports[i] = r
	}
	return plan, nil
}

// load reads both changelog tables and builds the timeline and per-page sets.
func (d *Driver) load(ctx context.Context) (*changelog.Timeline, model.Version, changelog.Pages, error) {
	log := d.logger()

	log.Info("retrieving changelog data")
	versions, err := d.Source.Versions(ctx)
	if err != nil {
		return nil, model.Version{}, nil, fmt.Errorf("fetch versions: %w", err)
	}
	changes, err := d.Source.Changes(ctx)
	if err != nil {
		return nil, model.Version{}, nil, fmt.Errorf("fetch changes: %w", err)
	}

	tl := changelog.BuildTimeline(versions)
	latest, ok := tl.Latest()
	if !ok {
		return nil, model.Version{}, nil, changelog.ErrEmptyTimeline
	}
	pages, err := changelog.Aggregate(changes, tl)
	if err != nil {
		return nil, model.Version{}, nil, err
	}
	log.Debug("aggregated changes", "versions", tl.Len(), "changes", len(changes), "pages", len(pages), "latest", latest.Label)
	return tl, latest, pages, nil
}

// Preview classifies a single page and returns the text a write would save.
// The text is empty when the page is not pending. Nothing is written.
func (d *Driver) Preview(ctx context.Context, title string) (PageReport, string, error) {
	tl, _, pages, err := d.load(ctx)
	if err != nil {
		return PageReport{}, "", err
	}
	set, ok := pages[title]
	if !ok {
		return PageReport{}, "", fmt.Errorf("%w: %q", ErrNoChanges, title)
	}
	page, err := d.readOne(ctx, title)
	if err != nil {
		return PageReport{}, "", fmt.Errorf("fetch %q: %w", title, err)
	}

	class := history.Classifier{Timeline: tl, Force: d.Options.Force}.Classify(page, set)
	r := PageReport{PageClassification: class, Changes: set.Count()}
	if !class.Status.Pending() {
		return r, "", nil
	}
	s := history.Splicer{Timeline: tl, Order: d.Options.Order, TableTitle: d.Options.TableTitle}
	text, err := s.Splice(set, class, page.Text)
	if err != nil {
		return r, "", err
	}
	return r, text, nil
}

// Snapshot copies both changelog tables as received plus the current text
// of every page they reference. Orphaned changes are kept. Any page fetch
// failure fails the whole snapshot.
func (d *Driver) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	versions, err := d.Source.Versions(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch versions: %w", err)
	}
	changes, err := d.Source.Changes(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch changes: %w", err)
	}

	seen := make(map[string]bool)
	var titles []string
	for _, c := range changes {
		if !seen[c.Page] {
			seen[c.Page] = true
			titles = append(titles, c.Page)
		}
	}
	sort.Strings(titles)

	fetched, errs := d.fetchAll(ctx, titles)
	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("fetch %q: %w", titles[i], err)
		}
	}
	return &model.Snapshot{Versions: versions, Changes: changes, Pages: fetched}, nil
}

// fetchAll reads titles, batched when the store supports it. Results are
// index-aligned with titles.
func (d *Driver) fetchAll(ctx context.Context, titles []string) ([]model.Page, []error) {
	pages := make([]model.Page, len(titles))
	errs := make([]error, len(titles))
	progress := newCounter(d.observer(), PhaseFetch, len(titles))

	batch, ok := d.Pages.(BatchReader)
	if !ok || d.Options.BatchSize < 2 {
		d.pacer().Do(ctx, len(titles), func(ctx context.Context, i int) {
			pages[i], errs[i] = d.Pages.ReadPage(ctx, titles[i])
			progress.add(1)
		})
		return pages, errs
	}

	size := d.Options.BatchSize
	chunks := (len(titles) + size - 1) / size
	d.pacer().Do(ctx, chunks, func(ctx context.Context, c int) {
		lo := c * size
		hi := min(lo+size, len(titles))
		got, err := batch.ReadPages(ctx, titles[lo:hi])
		for i := lo; i < hi; i++ {
			switch p, found := got[titles[i]]; {
			case err != nil:
				errs[i] = err
			case !found:
				errs[i] = fmt.Errorf("page %q absent from batch response", titles[i])
			default:
				pages[i] = p
			}
		}
		progress.add(hi - lo)
	})
	return pages, errs
}

func (d *Driver) readOne(ctx context.Context, title string) (model.Page, error) {
	if batch, ok := d.Pages.(BatchReader); ok && d.Options.BatchSize >= 2 {
		got, err := batch.ReadPages(ctx, []string{title})
		if err != nil {
			return model.Page{}, err
		}
		p, found := got[title]
		if !found {
			return model.Page{}, fmt.Errorf("page %q absent from batch response", title)
		}
		return p, nil
	}
	return d.Pages.ReadPage(ctx, title)
}

// Apply re-fetches, splices and writes every pending page of plan. A failure
// on one page never stops the others; each gets its own Outcome.
func (d *Driver) Apply(ctx context.Context, plan *Plan) []Outcome {
	log := d.logger()
	pending := plan.Pending()
	outcomes := make([]Outcome, len(pending))
	progress := newCounter(d.observer(), PhaseWrite, len(pending))

	s := history.Splicer{Timeline: plan.Timeline, Order: d.Options.Order, TableTitle: d.Options.TableTitle}
	summary := history.EditSummary(plan.Latest)

	d.pacer().Do(ctx, len(pending), func(ctx context.Context, i int) {
		r := pending[i]
		err := d.applyOne(ctx, s, plan.Pages[r.Page], r.PageClassification, summary)
		outcomes[i] = Outcome{Page: r.Page, Status: r.Status, Phase: PhaseWrite, Err: err}
		if err != nil {
			log.Warn("page write failed", "page", r.Page, "status", r.Status, "error", err)
		} else {
			log.Info("pushed to wiki", "page", r.Page, "status", r.Status)
		}
		progress.add(1)
	})
	return outcomes
}

func (d *Driver) applyOne(ctx context.Context, s history.Splicer, set model.PageChangeSet, class model.PageClassification, summary string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	page, err := d.readOne(ctx, class.Page)
	if err != nil {
		return fmt.Errorf("re-fetch: %w", err)
	}
	if page.Missing {
		return ErrPageVanished
	}
	text, err := s.Splice(set, class, page.Text)
	if err != nil {
		return err
	}
	if err := d.Pages.WritePage(ctx, class.Page, text, summary); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Run plans, asks for confirmation when any page is pending, then applies.
// Without a Confirmer the write phase is declined.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	plan, err := d.Plan(ctx)
	if err != nil {
		return nil, err
	}
	if d.OnPlan != nil {
		d.OnPlan(plan)
	}
	res := &Result{Plan: plan}
	if len(plan.Pending()) == 0 {
		res.NoOp = true
		return res, nil
	}

	ok := false
	if d.Confirmer != nil {
		ok, err = d.Confirmer.Confirm(ctx, plan)
		if err != nil {
			return res, fmt.Errorf("confirm: %w", err)
		}
	}
	if !ok {
		res.Declined = true
		return res, nil
	}

	res.Outcomes = d.Apply(ctx, plan)
	return res, nil
}

// counter serializes progress notifications.
type counter struct {
	mu    sync.Mutex
	obs   Observer
	phase Phase
	done  int
	total int
}

func newCounter(obs Observer, phase Phase, total int) *counter {
	return &counter{obs: obs, phase: phase, total: total}
}

func (c *counter) add(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.done += n
	c.obs.OnProgress(c.phase, c.done, c.total)
}
