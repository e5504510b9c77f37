// Package changelog orders version records into a timeline and groups
// change records by page and version.
package changelog

import (
	"errors"
	"sort"

	"github.com/rcliao/changelogged/internal/model"
)

// ErrEmptyTimeline is returned when there are no versions to reconcile against.
var ErrEmptyTimeline = errors.New("no changelog versions found")

// Timeline is the chronologically ordered list of known versions.
type Timeline struct {
	versions []model.Version
	ordinals map[string]int
}

// BuildTimeline sorts records by time index and assigns dense ordinals.
// Records with equal time indexes keep their input order. A repeated label
// resolves to its last position.
func BuildTimeline(records []model.VersionRecord) *Timeline {
	sorted := make([]model.VersionRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TimeIndex < sorted[j].TimeIndex
	})

	t := &Timeline{
		versions: make([]model.Version, len(sorted)),
		ordinals: make(map[string]int, len(sorted)),
	}
	for i, r := range sorted {
		t.versions[i] = model.Version{Label: r.Label, Ordinal: i}
		t.ordinals[r.Label] = i
	}
	return t
}

// Len returns the number of versions.
func (t *Timeline) Len() int { return len(t.versions) }

// Versions returns the versions in ordinal order.
func (t *Timeline) Versions() []model.Version {
	out := make([]model.Version, len(t.versions))
	copy(out, t.versions)
	return out
}

// At returns the version with the given ordinal.
func (t *Timeline) At(ordinal int) (model.Version, bool) {
	if ordinal < 0 || ordinal >= len(t.versions) {
		return model.Version{}, false
	}
	return t.versions[ordinal], true
}

// Ordinal resolves a version label.
func (t *Timeline) Ordinal(label string) (int, bool) {
	ord, ok := t.ordinals[label]
	return ord, ok
}

// Latest returns the highest-ordinal version. ok is false for an empty timeline.
func (t *Timeline) Latest() (model.Version, bool) {
	if len(t.versions) == 0 {
		return model.Version{}, false
	}
	return t.versions[len(t.versions)-1], true
}
