package history

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rcliao/changelogged/internal/changelog"
	"github.com/rcliao/changelogged/internal/model"
)

var (
	// ErrMarkerMissing means the live text no longer has the markers its
	// classification promised.
	ErrMarkerMissing = errors.New("history marker missing")
	// ErrNotPending means the page's status does not call for a write.
	ErrNotPending = errors.New("page does not need a history write")
)

// SpliceError reports why a page could not be spliced.
type SpliceError struct {
	Page   string
	Status model.Status
	Err    error
}

func (e *SpliceError) Error() string {
	return fmt.Sprintf("splice %q (%s): %v", e.Page, e.Status, e.Err)
}

func (e *SpliceError) Unwrap() error { return e.Err }

const introSection = "== History ==\n" +
	"<!--\n" +
	"EDITOR NOTE:\n" +
	"Do NOT edit the following history section as it is generated by a bot.\n" +
	"If there are any issues, please contact a wiki administrator on discord.\n" +
	"-->"

// Splicer renders history blocks and substitutes them into page text.
type Splicer struct {
	Timeline *changelog.Timeline
	Order    model.ChangeOrder
	// TableTitle is linked in the table header row.
	TableTitle string
}

// Splice returns liveText with the bot-managed region replaced by a freshly
// rendered block. Text outside that region is preserved byte for byte.
func (s Splicer) Splice(set model.PageChangeSet, class model.PageClassification, liveText string) (string, error) {
	fail := func(err error) (string, error) {
		return "", &SpliceError{Page: set.Page, Status: class.Status, Err: err}
	}

	var before, after string
	switch class.Status {
	case model.ToCreate:
		b, a, ok := strings.Cut(liveText, Placeholder)
		if !ok {
			return fail(fmt.Errorf("%w: %s", ErrMarkerMissing, Placeholder))
		}
		before, after = b+introSection, a
	case model.ToUpdate:
		b, rest, ok := strings.Cut(liveText, BeginMarker)
		if !ok {
			return fail(fmt.Errorf("%w: %s", ErrMarkerMissing, BeginMarker))
		}
		_, a, ok := strings.Cut(rest, EndMarker)
		if !ok {
			return fail(fmt.Errorf("%w: %s", ErrMarkerMissing, EndMarker))
		}
		before, after = b, a
	default:
		return fail(ErrNotPending)
	}

	block, err := s.RenderBlock(set)
	if err != nil {
		return fail(err)
	}
	return before + block + after, nil
}

// RenderBlock renders the complete history block, markers included.
func (s Splicer) RenderBlock(set model.PageChangeSet) (string, error) {
	latest, ok := s.Timeline.Latest()
	if !ok {
		return "", changelog.ErrEmptyTimeline
	}

	var b strings.Builder
	b.WriteString(BeginMarker)
	b.WriteString("\n")
	b.WriteString(FormatVersionMarker(latest.Label))
	b.WriteString("\n{|class=\"wikitable\" style=\"width:90%; margin:auto\"|\n")
	b.WriteString("!colspan=\"2\"|")
	b.WriteString(s.headerTitle())

	for _, ord := range set.Ordinals() {
		v, ok := s.Timeline.At(ord)
		if !ok {
			return "", fmt.Errorf("page %q: ordinal %d outside timeline", set.Page, ord)
		}
		b.WriteString("\n|-\n|style=\"text-align:center;width:20%\"|[[")
		b.WriteString(v.Label)
		b.WriteString("]]||style=\"width:80%\"|\n")
		b.WriteString(renderBullets(set.Changes[ord], s.Order))
	}

	b.WriteString("\n|}\n")
	b.WriteString(EndMarker)
	return b.String(), nil
}

func (s Splicer) headerTitle() string {
	if s.TableTitle == "" {
		return "History"
	}
	return "[[" + s.TableTitle + "]]"
}

func renderBullets(texts []string, order model.ChangeOrder) string {
	lines := make([]string, len(texts))
	for i, t := range texts {
		j := i
		if order == model.OrderReversed {
			j = len(texts) - 1 - i
		}
		lines[j] = "* " + t
	}
	return strings.Join(lines, "\n")
}

// EditSummary is the edit summary used when publishing the latest version.
func EditSummary(latest model.Version) string {
	return "Update history to " + latest.Label
}
