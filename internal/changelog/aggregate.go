package changelog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rcliao/changelogged/internal/model"
)

// ErrUnknownVersion marks a change that references a version missing from the timeline.
var ErrUnknownVersion = errors.New("unknown version")

// UnknownVersionError names the orphaned label of a change record.
type UnknownVersionError struct {
	Label string
	Page  string
}

func (e *UnknownVersionError) Error() string {
	return fmt.Sprintf("change for page %q references unknown version %q", e.Page, e.Label)
}

func (e *UnknownVersionError) Unwrap() error { return ErrUnknownVersion }

// Pages maps page title to its change set.
type Pages map[string]model.PageChangeSet

// Names returns the page titles sorted.
func (p Pages) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Aggregate groups change records by page and version ordinal. Entries in
// each bucket keep input order. Any record whose version is not on the
// timeline fails the whole aggregation.
func Aggregate(records []model.ChangeRecord, t *Timeline) (Pages, error) {
	pages := make(Pages)
	for _, r := range records {
		ord, ok := t.Ordinal(r.Version)
		if !ok {
			return nil, &UnknownVersionError{Label: r.Version, Page: r.Page}
		}
		set, ok := pages[r.Page]
		if !ok {
			set = model.PageChangeSet{Page: r.Page, Changes: make(map[int][]string)}
			pages[r.Page] = set
		}
		set.Changes[ord] = append(set.Changes[ord], r.Text)
	}
	return pages, nil
}
