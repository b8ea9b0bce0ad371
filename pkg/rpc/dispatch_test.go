package rpc

import (
	"context"
	"image"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/koharu-go/koharu/pkg/document"
	"github.com/koharu-go/koharu/pkg/ops"
	"github.com/koharu-go/koharu/pkg/pipeline"
)

type fakeML struct{}

func (fakeML) Detect(ctx context.Context, doc *document.Document) error  { return nil }
func (fakeML) OCR(ctx context.Context, doc *document.Document) error     { return nil }
func (fakeML) Inpaint(ctx context.Context, doc *document.Document) error { return nil }
func (fakeML) InpaintRaw(ctx context.Context, img, mask image.Image) (image.Image, error) {
	return img, nil
}

type fakeLLM struct{ cpu bool }

func (f fakeLLM) Ready(ctx context.Context) bool { return false }
func (f fakeLLM) Load(ctx context.Context, id string) error { return nil }
func (f fakeLLM) Offload(ctx context.Context)               {}
func (f fakeLLM) IsCPU() bool                               { return f.cpu }
func (f fakeLLM) Translate(ctx context.Context, doc *document.Document, blockIndex *int, language *string) error {
	return nil
}
func (f fakeLLM) List(language string) []ops.ModelInfo { return nil }

type fakeRenderer struct{}

func (fakeRenderer) Render(ctx context.Context, doc *document.Document, blockIndex *int, effect document.TextShaderEffect, fontFamily *string) error {
	return nil
}
func (fakeRenderer) AvailableFonts() ([]string, error) { return []string{"sans-serif"}, nil }

func newTestServer() *Server {
	state := &document.State{}
	res := ops.NewResources("1.2.3", state, fakeML{}, fakeLLM{cpu: true}, fakeRenderer{})
	return &Server{Resources: res, Runner: pipeline.NewRunner()}
}

func TestDispatchAppVersion(t *testing.T) {
	s := newTestServer()
	out, err := s.dispatch(context.Background(), MethodAppVersion, nil)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if out != "1.2.3" {
		t.Fatalf("got %v, want 1.2.3", out)
	}
}

func TestDispatchDeviceReflectsLLMBackend(t *testing.T) {
	s := newTestServer()
	out, err := s.dispatch(context.Background(), MethodDevice, nil)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	info, ok := out.(ops.DeviceInfo)
	if !ok || info.MLDevice != "CPU" {
		t.Fatalf("got %+v, want CPU", out)
	}
}

func TestDispatchGetDocumentsReflectsState(t *testing.T) {
	s := newTestServer()
	s.Resources.State.SetAll([]*document.Document{{ID: "a"}, {ID: "b"}})
	out, err := s.dispatch(context.Background(), MethodGetDocuments, nil)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if out != 2 {
		t.Fatalf("got %v, want 2", out)
	}
}

func TestDispatchGetDocumentDecodesIndexPayload(t *testing.T) {
	s := newTestServer()
	s.Resources.State.SetAll([]*document.Document{{ID: "only"}})
	params, err := msgpack.Marshal(indexPayload{Index: 0})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	out, err := s.dispatch(context.Background(), MethodGetDocument, params)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	doc, ok := out.(*document.Document)
	if !ok || doc.ID != "only" {
		t.Fatalf("got %+v", out)
	}
}

func TestDispatchGetDocumentOutOfRangeFails(t *testing.T) {
	s := newTestServer()
	params, err := msgpack.Marshal(indexPayload{Index: 5})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if _, err := s.dispatch(context.Background(), MethodGetDocument, params); err == nil {
		t.Fatal("expected an error for an out-of-range index")
	}
}

func TestDispatchUnknownMethodFails(t *testing.T) {
	s := newTestServer()
	if _, err := s.dispatch(context.Background(), Method("bogus"), nil); err == nil {
		t.Fatal("expected an error for an unregistered method")
	}
}

func TestDispatchListFontFamiliesDelegatesToRenderer(t *testing.T) {
	s := newTestServer()
	out, err := s.dispatch(context.Background(), MethodListFontFamilies, nil)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	names, ok := out.([]string)
	if !ok || len(names) != 1 || names[0] != "sans-serif" {
		t.Fatalf("got %v", out)
	}
}

func TestDispatchProcessCancelNeverErrorsWithNoRunInFlight(t *testing.T) {
	s := newTestServer()
	if _, err := s.dispatch(context.Background(), MethodProcessCancel, nil); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
}

func TestDispatchAddAndRemoveTextBlock(t *testing.T) {
	s := newTestServer()
	s.Resources.State.SetAll([]*document.Document{{ID: "a"}})

	params, err := msgpack.Marshal(struct {
		Index int                 `msgpack:"index"`
		Block document.TextBlock `msgpack:"block"`
	}{Index: 0, Block: document.TextBlock{X: 1}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	out, err := s.dispatch(context.Background(), MethodAddTextBlock, params)
	if err != nil {
		t.Fatalf("dispatch addTextBlock: %v", err)
	}
	if out != 0 {
		t.Fatalf("got index %v, want 0", out)
	}

	removeParams, err := msgpack.Marshal(struct {
		Index      int `msgpack:"index"`
		BlockIndex int `msgpack:"blockIndex"`
	}{Index: 0, BlockIndex: 0})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if _, err := s.dispatch(context.Background(), MethodRemoveTextBlock, removeParams); err != nil {
		t.Fatalf("dispatch removeTextBlock: %v", err)
	}
}

func TestDispatchDilateAndErodeMaskRejectMissingSegment(t *testing.T) {
	s := newTestServer()
	s.Resources.State.SetAll([]*document.Document{{ID: "a"}})
	params, err := msgpack.Marshal(struct {
		Index      int `msgpack:"index"`
		KernelSize int `msgpack:"kernelSize"`
	}{Index: 0, KernelSize: 1})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if _, err := s.dispatch(context.Background(), MethodDilateMask, params); err == nil {
		t.Fatal("expected an error with no segment mask present")
	}
	if _, err := s.dispatch(context.Background(), MethodErodeMask, params); err == nil {
		t.Fatal("expected an error with no segment mask present")
	}
}
