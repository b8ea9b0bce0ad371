package widgets

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"

	"github.com/koharu-go/koharu/pkg/app"
	"github.com/koharu-go/koharu/pkg/document"
	"github.com/koharu-go/koharu/pkg/ops"
)

type fakeLLM struct{ cpu bool }

func (f *fakeLLM) Ready(ctx context.Context) bool                  { return true }
func (f *fakeLLM) Load(ctx context.Context, id string) error       { return nil }
func (f *fakeLLM) Offload(ctx context.Context)                     {}
func (f *fakeLLM) IsCPU() bool                                     { return f.cpu }
func (f *fakeLLM) List(language string) []ops.ModelInfo            { return nil }
func (f *fakeLLM) Translate(ctx context.Context, doc *document.Document, blockIndex *int, language *string) error {
	return nil
}

func newTestResources(docCount int) ops.Resources {
	state := &document.State{}
	docs := make([]*document.Document, docCount)
	for i := range docs {
		docs[i] = &document.Document{}
	}
	state.SetAll(docs)
	return ops.NewResources("test-version", state, nil, &fakeLLM{cpu: true}, nil)
}

func TestPipelineWidgetIDAndTitle(t *testing.T) {
	w := NewPipelineWidget(newTestResources(0))
	assert.Equal(t, "pipeline", w.ID())
	assert.Equal(t, "Pipeline", w.Title())
}

func TestPipelineWidgetUpdatePullsResourceSnapshot(t *testing.T) {
	w := NewPipelineWidget(newTestResources(3))

	cmd := w.Update(app.TickEvent{})
	assert.Nil(t, cmd)

	assert.Equal(t, "test-version", w.version)
	assert.Equal(t, "CPU", w.device)
	assert.Equal(t, 3, w.docs)
}

func TestPipelineWidgetDisplayedDocsEasesTowardTarget(t *testing.T) {
	w := NewPipelineWidget(newTestResources(10))

	w.Update(app.TickEvent{})
	first := w.displayedDocs
	assert.Greater(t, first, 0.0)
	assert.Less(t, first, 10.0)

	for i := 0; i < 200; i++ {
		w.Update(app.TickEvent{})
	}
	assert.InDelta(t, 10.0, w.displayedDocs, 0.01)
}

func TestPipelineWidgetViewZeroDimensions(t *testing.T) {
	w := NewPipelineWidget(newTestResources(0))
	assert.Equal(t, "", w.View(0, 0))
	assert.Equal(t, "", w.View(-1, 10))
}

func TestPipelineWidgetViewContainsDocumentCount(t *testing.T) {
	w := NewPipelineWidget(newTestResources(5))
	w.Update(app.TickEvent{})

	out := w.View(60, 10)
	assert.Contains(t, out, "documents 5")
}

func TestPipelineWidgetMinSize(t *testing.T) {
	w := NewPipelineWidget(newTestResources(0))
	minW, minH := w.MinSize()
	assert.GreaterOrEqual(t, minW, 1)
	assert.GreaterOrEqual(t, minH, 1)
}

func TestPipelineWidgetHandleKeyIsNoOp(t *testing.T) {
	w := NewPipelineWidget(newTestResources(0))
	assert.Nil(t, w.HandleKey(tea.KeyMsg{}))
}
