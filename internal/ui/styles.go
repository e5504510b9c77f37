// Package ui renders changelogged's terminal output: the page overview,
// progress lines, run outcomes and the upload prompt.
package ui

import (
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/rcliao/changelogged/internal/model"
)

// ANSI palette, one color per page status.
var (
	ColorNoExist  = lipgloss.Color("9") // bright red
	ColorNoTarget = lipgloss.Color("3") // yellow
	ColorNoMeta   = lipgloss.Color("1") // red
	ColorToCreate = lipgloss.Color("4") // blue
	ColorToUpdate = lipgloss.Color("6") // cyan
	ColorUpToDate = lipgloss.Color("2") // green
	ColorCount    = lipgloss.Color("5") // magenta
	ColorMuted    = lipgloss.Color("8") // gray
	ColorTitle    = lipgloss.Color("12")
)

var statusColors = map[model.Status]lipgloss.Color{
	model.NoExist:  ColorNoExist,
	model.NoTarget: ColorNoTarget,
	model.NoMeta:   ColorNoMeta,
	model.ToCreate: ColorToCreate,
	model.ToUpdate: ColorToUpdate,
	model.UpToDate: ColorUpToDate,
}

var statusLabels = map[model.Status]string{
	model.NoExist:  "Does not exist",
	model.NoTarget: "No Target",
	model.NoMeta:   "No Meta Tag",
	model.ToCreate: "Pending Creation",
	model.ToUpdate: "Pending Update",
	model.UpToDate: "Up To Date",
}

// LegendEntry pairs a status with its human label.
type LegendEntry struct {
	Status model.Status
	Label  string
}

// Legend is the human label for each status, in display order.
var Legend = func() []LegendEntry {
	out := make([]LegendEntry, 0, len(model.Statuses))
	for _, st := range model.Statuses {
		out = append(out, LegendEntry{Status: st, Label: statusLabels[st]})
	}
	return out
}()

// styles binds the palette to one output's color profile so that plain
// writers (files, pipes, buffers) get uncolored text.
type styles struct {
	status map[model.Status]lipgloss.Style
	count  lipgloss.Style
	muted  lipgloss.Style
	title  lipgloss.Style
	pass   lipgloss.Style
	fail   lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	s := styles{
		status: make(map[model.Status]lipgloss.Style, len(statusColors)),
		count:  r.NewStyle().Foreground(ColorCount),
		muted:  r.NewStyle().Foreground(ColorMuted),
		title:  r.NewStyle().Foreground(ColorTitle),
		pass:   r.NewStyle().Foreground(ColorUpToDate),
		fail:   r.NewStyle().Foreground(ColorNoExist),
	}
	for st, c := range statusColors {
		s.status[st] = r.NewStyle().Foreground(c)
	}
	return s
}

// RenderStatus renders text in the color of status.
func (s styles) RenderStatus(status model.Status, text string) string {
	if st, ok := s.status[status]; ok {
		return st.Render(text)
	}
	return text
}
