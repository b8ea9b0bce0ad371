// Package models wires the individual model packages (detector, ocr,
// inpaint, fontattr) into the single ops.MLPipeline implementation the
// command plane and auto-processing pipeline depend on.
package models

import (
	"context"
	"image"

	"github.com/koharu-go/koharu/pkg/document"
	"github.com/koharu-go/koharu/pkg/models/detector"
	"github.com/koharu-go/koharu/pkg/models/fontattr"
	"github.com/koharu-go/koharu/pkg/models/inpaint"
	"github.com/koharu-go/koharu/pkg/models/ocr"
)

// Pipeline bundles one instance of each stage model behind the
// ops.MLPipeline interface. Field names are suffixed with "Model" so they
// don't collide with the interface's identically-named methods.
type Pipeline struct {
	DetectorModel *detector.Model
	OCRModel      *ocr.Model
	FontAttrModel *fontattr.Model
	InpaintModel  *inpaint.Model
}

// Detect runs text-region detection, populating TextBlocks and Segment.
func (p *Pipeline) Detect(ctx context.Context, doc *document.Document) error {
	return p.DetectorModel.Detect(ctx, doc)
}

// OCR recognizes text for each detected block, then predicts its font
// attributes so the renderer has a style to fall back to.
func (p *Pipeline) OCR(ctx context.Context, doc *document.Document) error {
	if err := p.OCRModel.OCR(doc); err != nil {
		return err
	}
	return p.FontAttrModel.Predict(doc)
}

// Inpaint removes detected text regions from the document's source image
// using the document's current segment mask.
func (p *Pipeline) Inpaint(ctx context.Context, doc *document.Document) error {
	if doc.Segment == nil {
		return nil
	}
	out, err := p.InpaintModel.RunTiled(doc.Image, doc.Segment)
	if err != nil {
		return err
	}
	doc.Inpainted = toRGBA(out)
	return nil
}

// InpaintRaw runs the inpainter directly over an arbitrary image/mask pair,
// used by InpaintPartial for region re-inpainting.
func (p *Pipeline) InpaintRaw(ctx context.Context, img, mask image.Image) (image.Image, error) {
	return p.InpaintModel.Run(img, mask)
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x, y, img.At(x, y))
		}
	}
	return out
}
