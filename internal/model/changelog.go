// Package model defines the core changelog and page data types.
package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// VersionRecord is a raw row of the Versions table.
type VersionRecord struct {
	Label     string    `json:"version"`
	TimeIndex TimeIndex `json:"timeindex"`
}

// ChangeRecord is a raw row of the Changes table.
type ChangeRecord struct {
	Version string `json:"version"`
	Page    string `json:"affected"`
	Text    string `json:"changed"`
}

// TimeIndex orders versions chronologically. Cargo returns numeric fields
// either as JSON numbers or as strings, so both are accepted.
type TimeIndex float64

func (t *TimeIndex) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*t = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid time index %s: %w", b, err)
	}
	*t = TimeIndex(f)
	return nil
}

func (t TimeIndex) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(t))
}

// Version is a release placed on the timeline.
type Version struct {
	Label   string `json:"label"`
	Ordinal int    `json:"ordinal"`
}

// PageChangeSet holds every change attributed to one page, bucketed by
// version ordinal. Bucket order follows the order records were received.
type PageChangeSet struct {
	Page    string           `json:"page"`
	Changes map[int][]string `json:"changes"`
}

// Ordinals returns the ordinals with at least one change, ascending.
func (p PageChangeSet) Ordinals() []int {
	out := make([]int, 0, len(p.Changes))
	for ord, texts := range p.Changes {
		if len(texts) > 0 {
			out = append(out, ord)
		}
	}
	sort.Ints(out)
	return out
}

// MaxOrdinal returns the highest ordinal with changes, or -1 if none.
func (p PageChangeSet) MaxOrdinal() int {
	max := -1
	for ord, texts := range p.Changes {
		if len(texts) > 0 && ord > max {
			max = ord
		}
	}
	return max
}

// Count returns the total number of change entries.
func (p PageChangeSet) Count() int {
	n := 0
	for _, texts := range p.Changes {
		n += len(texts)
	}
	return n
}

// Page is the live state of a wiki page.
type Page struct {
	Title   string `json:"title"`
	Missing bool   `json:"missing,omitempty"`
	Text    string `json:"text,omitempty"`
}

// Status describes what a page needs.
type Status int

const (
	NoExist Status = iota
	NoTarget
	NoMeta
	ToCreate
	ToUpdate
	UpToDate
)

var statusNames = [...]string{
	NoExist:  "noExist",
	NoTarget: "noTarget",
	NoMeta:   "noMeta",
	ToCreate: "toCreate",
	ToUpdate: "toUpdate",
	UpToDate: "upToDate",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// Pending reports whether a page in this status must be written.
func (s Status) Pending() bool {
	return s == ToCreate || s == ToUpdate
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(s string) (Status, error) {
	for i, name := range statusNames {
		if name == s {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", s)
}

// Statuses lists every status in display order.
var Statuses = []Status{NoExist, NoTarget, NoMeta, ToCreate, ToUpdate, UpToDate}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(statusNames) {
		return nil, fmt.Errorf("unknown status %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// PageClassification is the result of inspecting one page.
type PageClassification struct {
	Page            string `json:"page"`
	Status          Status `json:"status"`
	RecordedOrdinal int    `json:"recorded_ordinal,omitempty"`
	HasRecorded     bool   `json:"has_recorded,omitempty"`
}

// ChangeOrder is the bullet ordering policy inside one version row.
type ChangeOrder string

const (
	OrderReceived ChangeOrder = "received"
	OrderReversed ChangeOrder = "reversed"
)

// ValidChangeOrders are the allowed change orders.
var ValidChangeOrders = map[ChangeOrder]bool{
	OrderReceived: true,
	OrderReversed: true,
}

// Snapshot is a portable dump of changelog data and page text.
type Snapshot struct {
	Versions []VersionRecord `json:"versions"`
	Changes  []ChangeRecord  `json:"changes"`
	Pages    []Page          `json:"pages,omitempty"`
}

// Run is the audit record of one reconciliation run.
type Run struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Latest     string     `json:"latest"`
	Pending    int        `json:"pending"`
	Written    int        `json:"written"`
	Failed     int        `json:"failed"`
	Declined   bool       `json:"declined,omitempty"`
	Pages      []RunPage  `json:"pages,omitempty"`
}

// RunPage is the outcome of one page within a run.
type RunPage struct {
	Title   string `json:"title"`
	Status  string `json:"status"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}
