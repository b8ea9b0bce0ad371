// Package ops implements the full operation surface the command plane
// dispatches to: every call snapshots a document (or the whole state),
// computes against the snapshot without holding a lock, and commits the
// result back in one short write.
package ops

import (
	"context"
	"image"
	"sort"

	"github.com/koharu-go/koharu/pkg/document"
)

// MLPipeline runs the detector/OCR/inpainter stages against a document
// snapshot, mutating the snapshot in place.
type MLPipeline interface {
	Detect(ctx context.Context, doc *document.Document) error
	OCR(ctx context.Context, doc *document.Document) error
	Inpaint(ctx context.Context, doc *document.Document) error
	InpaintRaw(ctx context.Context, img, mask image.Image) (image.Image, error)
}

// LLM is the translation model wrapper: a single loaded model at a time,
// with async load/offload and a readiness poll.
type LLM interface {
	Ready(ctx context.Context) bool
	Load(ctx context.Context, id string) error
	Offload(ctx context.Context)
	IsCPU() bool
	Translate(ctx context.Context, doc *document.Document, blockIndex *int, language *string) error
	List(language string) []ModelInfo
}

// ModelInfo describes one selectable translation model.
type ModelInfo struct {
	ID          string
	DisplayName string
}

// Renderer draws translated text back onto a document's inpainted image.
type Renderer interface {
	Render(ctx context.Context, doc *document.Document, blockIndex *int, effect document.TextShaderEffect, fontFamily *string) error
	AvailableFonts() ([]string, error)
}

// Resources bundles every shared singleton an operation needs. It is
// passed by value (cheap: it only holds pointers/interfaces), mirroring
// the reference implementation's cloneable AppResources. The in-flight
// auto-processing pipeline handle lives in pkg/pipeline, which embeds a
// Resources to run its steps.
type Resources struct {
	Version  string
	State    *document.State
	ML       MLPipeline
	LLM      LLM
	Renderer Renderer
}

// NewResources constructs a Resources bundle.
func NewResources(version string, state *document.State, ml MLPipeline, llm LLM, renderer Renderer) Resources {
	return Resources{Version: version, State: state, ML: ml, LLM: llm, Renderer: renderer}
}

func sortedNames(names []string) []string {
	out := append([]string(nil), names...)
	sort.Strings(out)
	return out
}
