package rpc

import (
	"context"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/koharu-go/koharu/pkg/document"
	"github.com/koharu-go/koharu/pkg/kerr"
	"github.com/koharu-go/koharu/pkg/ops"
	"github.com/koharu-go/koharu/pkg/pipeline"
)

// Server bundles the operation surface and the pipeline runner the
// command plane dispatches against.
type Server struct {
	Resources ops.Resources
	Runner    *pipeline.Runner
}

func decode[P any](params msgpack.RawMessage) (P, error) {
	var v P
	if len(params) == 0 {
		return v, nil
	}
	if err := msgpack.Unmarshal(params, &v); err != nil {
		return v, kerr.Wrap(kerr.BadInput, "decode params", err)
	}
	return v, nil
}

func call[P any, T any](ctx context.Context, params msgpack.RawMessage, fn func(context.Context, P) (T, error)) (any, error) {
	p, err := decode[P](params)
	if err != nil {
		return nil, err
	}
	return fn(ctx, p)
}

// indexPayload is the common "{index: N}" request shape.
type indexPayload struct {
	Index int `msgpack:"index"`
}

func (s *Server) dispatch(ctx context.Context, method Method, params msgpack.RawMessage) (any, error) {
	r := s.Resources
	switch method {
	case MethodAppVersion:
		return call(ctx, params, func(ctx context.Context, _ struct{}) (string, error) { return r.AppVersion(ctx) })
	case MethodDevice:
		return call(ctx, params, func(ctx context.Context, _ struct{}) (ops.DeviceInfo, error) { return r.Device(ctx) })
	case MethodGetDocuments:
		return call(ctx, params, func(ctx context.Context, _ struct{}) (int, error) { return r.GetDocuments(ctx) })
	case MethodListFontFamilies:
		return call(ctx, params, func(ctx context.Context, _ struct{}) ([]string, error) { return r.ListFontFamilies(ctx) })
	case MethodLlmList:
		return call(ctx, params, func(ctx context.Context, p struct {
			Language *string `msgpack:"language"`
		}) ([]ops.ModelInfo, error) {
			return r.LlmList(ctx, p.Language)
		})
	case MethodLlmReady:
		return call(ctx, params, func(ctx context.Context, _ struct{}) (bool, error) { return r.LlmReady(ctx) })
	case MethodLlmOffload:
		return call(ctx, params, func(ctx context.Context, _ struct{}) (struct{}, error) { return struct{}{}, r.LlmOffload(ctx) })
	case MethodProcessCancel:
		return call(ctx, params, func(ctx context.Context, _ struct{}) (struct{}, error) {
			s.Runner.Cancel()
			return struct{}{}, nil
		})
	case MethodGetDocument:
		return call(ctx, params, func(ctx context.Context, p indexPayload) (*document.Document, error) {
			return r.GetDocument(ctx, p.Index)
		})
	case MethodGetThumbnail:
		return call(ctx, params, func(ctx context.Context, p indexPayload) (*ops.ThumbnailResult, error) {
			return r.GetThumbnail(ctx, p.Index)
		})
	case MethodExportDocument:
		return call(ctx, params, func(ctx context.Context, p indexPayload) (*ops.FileResult, error) {
			return r.ExportDocument(ctx, p.Index)
		})
	case MethodOpenDocuments:
		return call(ctx, params, func(ctx context.Context, p struct {
			Files []ops.FileEntry `msgpack:"files"`
		}) (int, error) {
			return r.OpenDocuments(ctx, p.Files)
		})
	case MethodOpenExternal:
		return call(ctx, params, func(ctx context.Context, p struct {
			URL string `msgpack:"url"`
		}) (struct{}, error) {
			return struct{}{}, openExternal(p.URL)
		})
	case MethodDetect:
		return call(ctx, params, func(ctx context.Context, p indexPayload) (struct{}, error) { return struct{}{}, r.Detect(ctx, p.Index) })
	case MethodOcr:
		return call(ctx, params, func(ctx context.Context, p indexPayload) (struct{}, error) { return struct{}{}, r.OCR(ctx, p.Index) })
	case MethodInpaint:
		return call(ctx, params, func(ctx context.Context, p indexPayload) (struct{}, error) { return struct{}{}, r.Inpaint(ctx, p.Index) })
	case MethodUpdateInpaintMask:
		return call(ctx, params, func(ctx context.Context, p struct {
			Index  int               `msgpack:"index"`
			Mask   []byte            `msgpack:"mask"`
			Region *ops.InpaintRegion `msgpack:"region"`
		}) (struct{}, error) {
			return struct{}{}, r.UpdateInpaintMask(ctx, p.Index, p.Mask, p.Region)
		})
	case MethodUpdateBrushLayer:
		return call(ctx, params, func(ctx context.Context, p struct {
			Index  int              `msgpack:"index"`
			Patch  []byte           `msgpack:"patch"`
			Region ops.InpaintRegion `msgpack:"region"`
		}) (struct{}, error) {
			return struct{}{}, r.UpdateBrushLayer(ctx, p.Index, p.Patch, p.Region)
		})
	case MethodInpaintPartial:
		return call(ctx, params, func(ctx context.Context, p struct {
			Index  int              `msgpack:"index"`
			Region ops.InpaintRegion `msgpack:"region"`
		}) (struct{}, error) {
			return struct{}{}, r.InpaintPartial(ctx, p.Index, p.Region)
		})
	case MethodRender:
		return call(ctx, params, func(ctx context.Context, p struct {
			Index          int                         `msgpack:"index"`
			TextBlockIndex *int                        `msgpack:"textBlockIndex"`
			ShaderEffect   *document.TextShaderEffect  `msgpack:"shaderEffect"`
			FontFamily     *string                     `msgpack:"fontFamily"`
		}) (struct{}, error) {
			effect := document.TextShaderEffect("")
			if p.ShaderEffect != nil {
				effect = *p.ShaderEffect
			}
			return struct{}{}, r.Render(ctx, p.Index, p.TextBlockIndex, effect, p.FontFamily)
		})
	case MethodUpdateTextBlocks:
		return call(ctx, params, func(ctx context.Context, p struct {
			Index      int                    `msgpack:"index"`
			TextBlocks []document.TextBlock   `msgpack:"textBlocks"`
		}) (struct{}, error) {
			return struct{}{}, r.UpdateTextBlocks(ctx, p.Index, p.TextBlocks)
		})
	case MethodLlmLoad:
		return call(ctx, params, func(ctx context.Context, p struct {
			ID string `msgpack:"id"`
		}) (struct{}, error) {
			return struct{}{}, r.LlmLoad(ctx, p.ID)
		})
	case MethodLlmGenerate:
		return call(ctx, params, func(ctx context.Context, p struct {
			Index          int     `msgpack:"index"`
			TextBlockIndex *int    `msgpack:"textBlockIndex"`
			Language       *string `msgpack:"language"`
		}) (struct{}, error) {
			return struct{}{}, r.LlmGenerate(ctx, p.Index, p.TextBlockIndex, p.Language)
		})
	case MethodProcess:
		return call(ctx, params, func(ctx context.Context, p struct {
			Index        *int                       `msgpack:"index"`
			LlmModelID   *string                    `msgpack:"llmModelId"`
			Language     *string                    `msgpack:"language"`
			ShaderEffect *document.TextShaderEffect `msgpack:"shaderEffect"`
			FontFamily   *string                    `msgpack:"fontFamily"`
		}) (struct{}, error) {
			return struct{}{}, s.Runner.Start(r, pipeline.Request{
				Index: p.Index, LlmModelID: p.LlmModelID, Language: p.Language,
				ShaderEffect: p.ShaderEffect, FontFamily: p.FontFamily,
			})
		})
	case MethodDilateMask:
		return call(ctx, params, func(ctx context.Context, p struct {
			Index      int `msgpack:"index"`
			KernelSize int `msgpack:"kernelSize"`
		}) (struct{}, error) {
			return struct{}{}, r.DilateMask(ctx, p.Index, p.KernelSize)
		})
	case MethodErodeMask:
		return call(ctx, params, func(ctx context.Context, p struct {
			Index      int `msgpack:"index"`
			KernelSize int `msgpack:"kernelSize"`
		}) (struct{}, error) {
			return struct{}{}, r.ErodeMask(ctx, p.Index, p.KernelSize)
		})
	case MethodUpdateTextBlock:
		return call(ctx, params, func(ctx context.Context, p struct {
			Index      int               `msgpack:"index"`
			BlockIndex int               `msgpack:"blockIndex"`
			Patch      ops.TextBlockPatch `msgpack:"patch"`
		}) (struct{}, error) {
			return struct{}{}, r.UpdateTextBlock(ctx, p.Index, p.BlockIndex, p.Patch)
		})
	case MethodAddTextBlock:
		return call(ctx, params, func(ctx context.Context, p struct {
			Index int                 `msgpack:"index"`
			Block document.TextBlock `msgpack:"block"`
		}) (int, error) {
			return r.AddTextBlock(ctx, p.Index, p.Block)
		})
	case MethodRemoveTextBlock:
		return call(ctx, params, func(ctx context.Context, p struct {
			Index      int `msgpack:"index"`
			BlockIndex int `msgpack:"blockIndex"`
		}) (struct{}, error) {
			return struct{}{}, r.RemoveTextBlock(ctx, p.Index, p.BlockIndex)
		})
	default:
		return nil, kerr.New(kerr.BadInput, "Unknown method: "+string(method))
	}
}
