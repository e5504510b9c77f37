package history

import (
	"strings"

	"github.com/rcliao/changelogged/internal/changelog"
	"github.com/rcliao/changelogged/internal/model"
)

// Classifier assigns a status to a page from its live text and change set.
type Classifier struct {
	Timeline *changelog.Timeline
	// Force marks every page with a valid recorded version as ToUpdate.
	Force bool
}

// Classify inspects page. It depends only on its arguments.
func (c Classifier) Classify(page model.Page, set model.PageChangeSet) model.PageClassification {
	out := model.PageClassification{Page: set.Page}
	if out.Page == "" {
		out.Page = page.Title
	}

	if page.Missing {
		out.Status = model.NoExist
		return out
	}

	if !strings.Contains(page.Text, BeginMarker) {
		if strings.Contains(page.Text, Placeholder) {
			out.Status = model.ToCreate
		} else {
			out.Status = model.NoTarget
		}
		return out
	}

	label, ok := ParseVersionMarker(page.Text)
	if !ok {
		out.Status = model.NoMeta
		return out
	}
	recorded, ok := c.Timeline.Ordinal(label)
	if !ok {
		// Renamed or deleted version.
		out.Status = model.NoMeta
		return out
	}
	out.RecordedOrdinal = recorded
	out.HasRecorded = true

	switch {
	case c.Force:
		out.Status = model.ToUpdate
	case set.MaxOrdinal() > recorded:
		out.Status = model.ToUpdate
	default:
		out.Status = model.UpToDate
	}
	return out
}
