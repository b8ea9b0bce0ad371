package widgets

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"

	"github.com/koharu-go/koharu/pkg/app"
	"github.com/koharu-go/koharu/pkg/components"
	"github.com/koharu-go/koharu/pkg/ops"
)

// PipelineWidget is the debug console's view onto the running command
// plane itself: how many documents are loaded, which compute backend is
// selected, and the running version. It polls pkg/ops.Resources on each
// app.TickEvent rather than pushing events, since the underlying
// document.State has no subscription mechanism of its own.
type PipelineWidget struct {
	resources ops.Resources

	version string
	device  string
	docs    int

	displayedDocs float64
	docsVelocity  float64
	spring        harmonica.Spring

	bar progress.Model
}

// NewPipelineWidget builds a PipelineWidget polling the given resources.
func NewPipelineWidget(resources ops.Resources) *PipelineWidget {
	return &PipelineWidget{
		resources: resources,
		spring:    harmonica.NewSpring(harmonica.FPS(30), 6.0, 1.0),
		bar:       progress.New(progress.WithDefaultGradient()),
	}
}

// ID returns the unique identifier for this widget.
func (w *PipelineWidget) ID() string { return "pipeline" }

// Title returns the display name for this widget.
func (w *PipelineWidget) Title() string { return "Pipeline" }

// Update refreshes the polled snapshot on every tick and eases the
// displayed document count toward it via a critically-damped spring, so
// a burst of newly loaded documents animates in rather than jumping.
func (w *PipelineWidget) Update(msg tea.Msg) tea.Cmd {
	switch msg.(type) {
	case app.TickEvent:
		ctx := context.Background()
		if v, err := w.resources.AppVersion(ctx); err == nil {
			w.version = v
		}
		if d, err := w.resources.Device(ctx); err == nil {
			w.device = d.MLDevice
		}
		if n, err := w.resources.GetDocuments(ctx); err == nil {
			w.docs = n
		}
		w.displayedDocs, w.docsVelocity = w.spring.Update(w.displayedDocs, w.docsVelocity, float64(w.docs))
	}
	return nil
}

// View renders the current snapshot: version, device, and an animated
// gauge showing document-load progress toward the loaded count.
func (w *PipelineWidget) View(width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}

	w.bar.Width = width
	if w.bar.Width > 40 {
		w.bar.Width = 40
	}

	fraction := 0.0
	if w.docs > 0 {
		fraction = w.displayedDocs / float64(w.docs)
		if fraction > 1 {
			fraction = 1
		}
	}

	lines := []string{
		fmt.Sprintf("version %s", w.version),
		fmt.Sprintf("device  %s", w.device),
		fmt.Sprintf("documents %d", w.docs),
		w.bar.ViewAs(fraction),
	}

	out := ""
	for i, l := range lines {
		if i >= height {
			break
		}
		out += components.Truncate(l, width)
		if i < len(lines)-1 {
			out += "\n"
		}
	}
	return out
}

// MinSize returns the minimum dimensions for the pipeline widget.
func (w *PipelineWidget) MinSize() (int, int) { return 24, 4 }

// HandleKey is a no-op: the pipeline widget is read-only.
func (w *PipelineWidget) HandleKey(_ tea.KeyMsg) tea.Cmd { return nil }
