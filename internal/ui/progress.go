package ui

import (
	"fmt"
	"io"

	"github.com/rcliao/changelogged/internal/reconcile"
)

// Progress prints fetch and write counters, rewriting one line with \r
// and ending it once the phase completes. It implements reconcile.Observer.
type Progress struct {
	w io.Writer
	s styles
}

// NewProgress returns a Progress writing to w.
func NewProgress(w io.Writer) *Progress {
	return &Progress{w: w, s: newStyles(w)}
}

func (p *Progress) OnProgress(phase reconcile.Phase, completed, total int) {
	var line string
	switch phase {
	case reconcile.PhaseFetch:
		line = p.s.muted.Render(fmt.Sprintf("[INFO] Retrieved page %d/%d", completed, total))
	case reconcile.PhaseWrite:
		line = p.s.count.Render(fmt.Sprintf("[INFO] Pushing %d/%d", completed, total))
	default:
		line = fmt.Sprintf("[INFO] %s %d/%d", phase, completed, total)
	}
	fmt.Fprint(p.w, "\r"+line)
	if completed >= total {
		fmt.Fprintln(p.w)
	}
}
