package render

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/Sriram-PR/site-mapper/pkg/graph"
	"github.com/Sriram-PR/site-mapper/pkg/models"
)

// ProgressRenderer drives a terminal spinner that ticks once per new edge
type ProgressRenderer struct {
	bar *progressbar.ProgressBar
	out io.Writer
}

// NewProgressRenderer draws to w (normally stderr)
func NewProgressRenderer(w io.Writer) *ProgressRenderer {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Mapping"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("edges"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSetWidth(40),
	)
	return &ProgressRenderer{bar: bar, out: w}
}

// EdgeAdded ticks the spinner and shows the newest edge
func (r *ProgressRenderer) EdgeAdded(ev models.EdgeEvent) {
	r.bar.Describe(fmt.Sprintf("Mapping %s -> %s", ev.Source, ev.Target))
	_ = r.bar.Add(1)
}

// Finish stops the spinner and ends its line
func (r *ProgressRenderer) Finish(snap graph.Snapshot) error {
	r.bar.Describe(fmt.Sprintf("Mapped %d nodes", len(snap.Nodes)))
	if err := r.bar.Finish(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(r.out)
	return err
}
