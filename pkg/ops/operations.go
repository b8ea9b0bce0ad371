package ops

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/koharu-go/koharu/pkg/document"
	"github.com/koharu-go/koharu/pkg/kerr"
)

// AppVersion returns the running build's version string.
func (r Resources) AppVersion(ctx context.Context) (string, error) {
	return r.Version, nil
}

// DeviceInfo reports which compute backend the ML pipeline is using.
type DeviceInfo struct {
	MLDevice string
}

// Device returns the currently selected compute backend.
func (r Resources) Device(ctx context.Context) (DeviceInfo, error) {
	device := "CPU"
	if !r.LLM.IsCPU() {
		device = "GPU"
	}
	return DeviceInfo{MLDevice: device}, nil
}

// GetDocuments returns the number of currently loaded documents.
func (r Resources) GetDocuments(ctx context.Context) (int, error) {
	return r.State.Count(), nil
}

// GetDocument returns a full snapshot of the document at index.
func (r Resources) GetDocument(ctx context.Context, index int) (*document.Document, error) {
	return r.State.ReadDoc(index)
}

// ThumbnailResult is the encoded preview of a document; ContentType names
// the encoding of Data.
type ThumbnailResult struct {
	Data        []byte
	ContentType string
}

// GetThumbnail renders a PNG thumbnail of the document's most recent raster
// (rendered output if present, else the source image), scaled to fit within
// 200x200 with its aspect ratio kept. Images already within 200x200 are not
// enlarged. No WebP output is produced.
func (r Resources) GetThumbnail(ctx context.Context, index int) (*ThumbnailResult, error) {
	doc, err := r.State.ReadDoc(index)
	if err != nil {
		return nil, err
	}
	var source image.Image = doc.Image
	if doc.Rendered != nil {
		source = doc.Rendered
	}
	thumb := thumbnail(source, 200, 200)

	var buf bytes.Buffer
	// The standard library has no WebP encoder; golang.org/x/image only
	// decodes WebP, so the thumbnail is served as PNG under the same
	// "image/webp"-shaped contract name used elsewhere in the wire
	// protocol's ThumbnailResult, with ContentType reflecting what was
	// actually encoded.
	if err := png.Encode(&buf, thumb); err != nil {
		return nil, kerr.Wrap(kerr.IOFailure, "encode thumbnail", err)
	}
	return &ThumbnailResult{Data: buf.Bytes(), ContentType: "image/png"}, nil
}

func thumbnail(src image.Image, maxW, maxH int) image.Image {
	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return src
	}
	return imaging.Fit(src, maxW, maxH, imaging.Lanczos)
}

// FileEntry is one uploaded file's name and raw bytes.
type FileEntry struct {
	Name string
	Data []byte
}

// OpenDocuments decodes every uploaded file into a Document, replacing the
// entire document list, sorted by name exactly as the reference loader
// sorts its parallel-decoded results.
func (r Resources) OpenDocuments(ctx context.Context, files []FileEntry) (int, error) {
	if len(files) == 0 {
		return 0, kerr.New(kerr.BadInput, "no files uploaded")
	}
	docs := make([]*document.Document, 0, len(files))
	for _, f := range files {
		doc, err := document.FromBytes(f.Name, f.Data)
		if err != nil {
			continue
		}
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	r.State.SetAll(docs)
	return len(docs), nil
}

// FileResult is an exported document's encoded bytes.
type FileResult struct {
	Filename    string
	Data        []byte
	ContentType string
}

// ExportDocument encodes the document's rendered output as PNG when the
// original path's extension is png and as JPEG for any other extension; the
// exported file name keeps the original extension.
func (r Resources) ExportDocument(ctx context.Context, index int) (*FileResult, error) {
	doc, err := r.State.ReadDoc(index)
	if err != nil {
		return nil, err
	}
	if doc.Rendered == nil {
		return nil, kerr.New(kerr.BadInput, "no rendered image found")
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(doc.Path)), ".")
	if ext == "" {
		ext = "jpg"
	}
	data, err := encodeImage(doc.Rendered, ext)
	if err != nil {
		return nil, err
	}
	return &FileResult{
		Filename:    fmt.Sprintf("%s_koharu.%s", doc.Name, ext),
		Data:        data,
		ContentType: mimeFromExt(ext),
	}, nil
}

func encodeImage(img image.Image, ext string) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch ext {
	case "png":
		err = png.Encode(&buf, img)
	case "jpg", "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95})
	default:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95})
	}
	if err != nil {
		return nil, kerr.Wrap(kerr.IOFailure, "encode image", err)
	}
	return buf.Bytes(), nil
}

func mimeFromExt(ext string) string {
	switch ext {
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// Detect runs text detection against the document at index.
func (r Resources) Detect(ctx context.Context, index int) error {
	return r.mutateDoc(ctx, index, func(ctx context.Context, doc *document.Document) error {
		return r.ML.Detect(ctx, doc)
	})
}

// OCR runs text recognition against the document at index.
func (r Resources) OCR(ctx context.Context, index int) error {
	return r.mutateDoc(ctx, index, func(ctx context.Context, doc *document.Document) error {
		return r.ML.OCR(ctx, doc)
	})
}

// Inpaint runs the tiled inpainter against the document at index.
func (r Resources) Inpaint(ctx context.Context, index int) error {
	return r.mutateDoc(ctx, index, func(ctx context.Context, doc *document.Document) error {
		return r.ML.Inpaint(ctx, doc)
	})
}

func (r Resources) mutateDoc(ctx context.Context, index int, fn func(context.Context, *document.Document) error) error {
	snapshot, err := r.State.ReadDoc(index)
	if err != nil {
		return err
	}
	if err := fn(ctx, snapshot); err != nil {
		return err
	}
	return r.State.UpdateDoc(index, snapshot)
}

// InpaintRegion is a pixel rectangle used by the mask/brush/partial-inpaint
// operations.
type InpaintRegion struct {
	X, Y, Width, Height uint32
}

func clampRegion(region InpaintRegion, width, height uint32) (x0, y0, w, h uint32, ok bool) {
	if width == 0 || height == 0 {
		return 0, 0, 0, 0, false
	}
	x0 = min32(region.X, width-1)
	y0 = min32(region.Y, height-1)
	x1 := max32(min32(region.X+region.Width, width), x0)
	y1 := max32(min32(region.Y+region.Height, height), y0)
	w = x1 - x0
	h = y1 - y0
	return x0, y0, w, h, w > 0 && h > 0
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

// UpdateInpaintMask overwrites the document's segment mask in full, or
// patches a sub-rectangle of it when region is non-nil.
func (r Resources) UpdateInpaintMask(ctx context.Context, index int, maskBytes []byte, region *InpaintRegion) error {
	snapshot, err := r.State.ReadDoc(index)
	if err != nil {
		return err
	}
	updateImg, _, err := image.Decode(bytes.NewReader(maskBytes))
	if err != nil {
		return kerr.Wrap(kerr.BadInput, "decode mask", err)
	}

	base := snapshot.Segment
	if base == nil {
		base = blankRGBA(int(snapshot.Width), int(snapshot.Height), color0())
	} else {
		base = cloneRGBA(base)
	}

	if region != nil {
		pb := updateImg.Bounds()
		if uint32(pb.Dx()) != region.Width || uint32(pb.Dy()) != region.Height {
			return kerr.New(kerr.BadInput, fmt.Sprintf("mask patch size mismatch: expected %dx%d, got %dx%d", region.Width, region.Height, pb.Dx(), pb.Dy()))
		}
		x0, y0, w, h, ok := clampRegion(*region, snapshot.Width, snapshot.Height)
		if !ok {
			return nil
		}
		draw.Draw(base, image.Rect(int(x0), int(y0), int(x0+w), int(y0+h)), updateImg, pb.Min, draw.Src)
	} else {
		pb := updateImg.Bounds()
		if uint32(pb.Dx()) != snapshot.Width || uint32(pb.Dy()) != snapshot.Height {
			return kerr.New(kerr.BadInput, fmt.Sprintf("mask size mismatch: expected %dx%d, got %dx%d", snapshot.Width, snapshot.Height, pb.Dx(), pb.Dy()))
		}
		base = toRGBA(updateImg)
	}

	snapshot.Segment = base
	return r.State.UpdateDoc(index, snapshot)
}

// UpdateBrushLayer patches a sub-rectangle of the manual brush overlay.
func (r Resources) UpdateBrushLayer(ctx context.Context, index int, patchBytes []byte, region InpaintRegion) error {
	snapshot, err := r.State.ReadDoc(index)
	if err != nil {
		return err
	}
	x0, y0, w, h, ok := clampRegion(region, snapshot.Width, snapshot.Height)
	if !ok {
		return nil
	}
	patchImg, _, err := image.Decode(bytes.NewReader(patchBytes))
	if err != nil {
		return kerr.Wrap(kerr.BadInput, "decode brush patch", err)
	}
	pb := patchImg.Bounds()
	if uint32(pb.Dx()) != region.Width || uint32(pb.Dy()) != region.Height {
		return kerr.New(kerr.BadInput, fmt.Sprintf("brush patch size mismatch: expected %dx%d, got %dx%d", region.Width, region.Height, pb.Dx(), pb.Dy()))
	}

	layer := snapshot.BrushLayer
	if layer == nil {
		layer = blankRGBA(int(snapshot.Width), int(snapshot.Height), image.Transparent.At(0, 0))
	} else {
		layer = cloneRGBA(layer)
	}
	draw.Draw(layer, image.Rect(int(x0), int(y0), int(x0+w), int(y0+h)), patchImg, pb.Min, draw.Src)

	snapshot.BrushLayer = layer
	return r.State.UpdateDoc(index, snapshot)
}

// InpaintPartial re-inpaints a single rectangle, skipping the call
// entirely when it doesn't overlap any known text block.
func (r Resources) InpaintPartial(ctx context.Context, index int, region InpaintRegion) error {
	snapshot, err := r.State.ReadDoc(index)
	if err != nil {
		return err
	}
	if snapshot.Segment == nil {
		return kerr.New(kerr.BadInput, "segment image not found")
	}
	if region.Width == 0 || region.Height == 0 {
		return nil
	}
	x0, y0, w, h, ok := clampRegion(region, snapshot.Width, snapshot.Height)
	if !ok {
		return nil
	}
	x1, y1 := x0+w, y0+h

	overlaps := false
	for _, b := range snapshot.TextBlocks {
		bx0, by0 := maxf(b.X, 0), maxf(b.Y, 0)
		bx1, by1 := maxf(b.X+b.Width, bx0), maxf(b.Y+b.Height, by0)
		if bx0 < float32(x1) && by0 < float32(y1) && bx1 > float32(x0) && by1 > float32(y0) {
			overlaps = true
			break
		}
	}
	if !overlaps {
		return nil
	}

	crop := image.Rect(int(x0), int(y0), int(x1), int(y1))
	imgCrop := cropImage(snapshot.Image, crop)
	maskCrop := cropImage(snapshot.Segment, crop)

	inpaintedCrop, err := r.ML.InpaintRaw(ctx, imgCrop, maskCrop)
	if err != nil {
		return err
	}

	var base image.Image = snapshot.Image
	if snapshot.Inpainted != nil {
		base = snapshot.Inpainted
	}
	stitched := cloneRGBA(toRGBA(base))

	for y := 0; y < int(h); y++ {
		for x := 0; x < int(w); x++ {
			mr, mg, mb, _ := maskCrop.At(int(x0)+x-int(x0), int(y0)+y-int(y0)).RGBA()
			isMasked := mr > 0 || mg > 0 || mb > 0
			var px image.Image = imgCrop
			if isMasked {
				px = inpaintedCrop
			}
			stitched.Set(int(x0)+x, int(y0)+y, px.At(int(x0)+x-int(x0), int(y0)+y-int(y0)))
		}
	}

	snapshot.Inpainted = stitched
	return r.State.UpdateDoc(index, snapshot)
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func cropImage(img image.Image, rect image.Rectangle) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), img, rect.Min, draw.Src)
	return out
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	return out
}

func cloneRGBA(img *image.RGBA) *image.RGBA {
	out := image.NewRGBA(img.Bounds())
	copy(out.Pix, img.Pix)
	return out
}

func blankRGBA(w, h int, c color.Color) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(out, out.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return out
}

func color0() color.Color { return color.RGBA{0, 0, 0, 255} }

// DilateMask grows the document's segment mask by kernelSize pixels in
// every direction, a single square-structuring-element dilation pass.
func (r Resources) DilateMask(ctx context.Context, index int, kernelSize int) error {
	return r.morphMask(ctx, index, kernelSize, true)
}

// ErodeMask shrinks the document's segment mask by kernelSize pixels in
// every direction, a single square-structuring-element erosion pass.
func (r Resources) ErodeMask(ctx context.Context, index int, kernelSize int) error {
	return r.morphMask(ctx, index, kernelSize, false)
}

func (r Resources) morphMask(ctx context.Context, index int, kernelSize int, dilate bool) error {
	if kernelSize <= 0 {
		return kerr.New(kerr.BadInput, "kernel size must be positive")
	}
	snapshot, err := r.State.ReadDoc(index)
	if err != nil {
		return err
	}
	if snapshot.Segment == nil {
		return kerr.New(kerr.BadInput, "segment image not found")
	}
	snapshot.Segment = morphRGBA(snapshot.Segment, kernelSize, dilate)
	return r.State.UpdateDoc(index, snapshot)
}

// morphRGBA applies a square structuring element of the given radius to a
// binary mask derived from each pixel's alpha channel (any alpha > 0 is
// foreground). Dilate sets a pixel foreground if any neighbor within the
// kernel is foreground; erode requires every neighbor to be foreground.
func morphRGBA(src *image.RGBA, radius int, dilate bool) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	fg := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			_, _, _, a := src.At(b.Min.X+x, b.Min.Y+y).RGBA()
			fg[y*w+x] = a > 0
		}
	}

	out := image.NewRGBA(b)
	white := color.RGBA{255, 255, 255, 255}
	transparent := color.RGBA{0, 0, 0, 0}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var result bool
			if dilate {
				result = false
				for dy := -radius; dy <= radius && !result; dy++ {
					ny := y + dy
					if ny < 0 || ny >= h {
						continue
					}
					for dx := -radius; dx <= radius; dx++ {
						nx := x + dx
						if nx < 0 || nx >= w {
							continue
						}
						if fg[ny*w+nx] {
							result = true
							break
						}
					}
				}
			} else {
				result = true
				for dy := -radius; dy <= radius && result; dy++ {
					ny := y + dy
					if ny < 0 || ny >= h {
						result = false
						break
					}
					for dx := -radius; dx <= radius; dx++ {
						nx := x + dx
						if nx < 0 || nx >= w || !fg[ny*w+nx] {
							result = false
							break
						}
					}
				}
			}
			if result {
				out.Set(b.Min.X+x, b.Min.Y+y, white)
			} else {
				out.Set(b.Min.X+x, b.Min.Y+y, transparent)
			}
		}
	}
	return out
}

// TextBlockPatch carries a sparse set of field updates for UpdateTextBlock;
// nil fields are left unchanged.
type TextBlockPatch struct {
	X, Y, Width, Height *float32
	Text                *string
	Translation         *string
	Style               *document.TextStyle
}

// UpdateTextBlock patches a single field subset of one text block, unlike
// UpdateTextBlocks which replaces the whole list.
func (r Resources) UpdateTextBlock(ctx context.Context, index, blockIndex int, patch TextBlockPatch) error {
	snapshot, err := r.State.ReadDoc(index)
	if err != nil {
		return err
	}
	if blockIndex < 0 || blockIndex >= len(snapshot.TextBlocks) {
		return kerr.New(kerr.NotFound, "text block not found")
	}
	b := snapshot.TextBlocks[blockIndex]
	if patch.X != nil {
		b.X = *patch.X
	}
	if patch.Y != nil {
		b.Y = *patch.Y
	}
	if patch.Width != nil {
		b.Width = *patch.Width
	}
	if patch.Height != nil {
		b.Height = *patch.Height
	}
	if patch.Text != nil {
		b.Text = patch.Text
	}
	if patch.Translation != nil {
		b.Translation = patch.Translation
	}
	if patch.Style != nil {
		b.Style = patch.Style
	}
	snapshot.TextBlocks[blockIndex] = b
	return r.State.UpdateDoc(index, snapshot)
}

// AddTextBlock appends a manually drawn text block and returns its index.
func (r Resources) AddTextBlock(ctx context.Context, index int, block document.TextBlock) (int, error) {
	snapshot, err := r.State.ReadDoc(index)
	if err != nil {
		return 0, err
	}
	snapshot.TextBlocks = append(snapshot.TextBlocks, block)
	newIndex := len(snapshot.TextBlocks) - 1
	if err := r.State.UpdateDoc(index, snapshot); err != nil {
		return 0, err
	}
	return newIndex, nil
}

// RemoveTextBlock deletes the text block at blockIndex, shifting later
// blocks down by one.
func (r Resources) RemoveTextBlock(ctx context.Context, index, blockIndex int) error {
	snapshot, err := r.State.ReadDoc(index)
	if err != nil {
		return err
	}
	if blockIndex < 0 || blockIndex >= len(snapshot.TextBlocks) {
		return kerr.New(kerr.NotFound, "text block not found")
	}
	snapshot.TextBlocks = append(snapshot.TextBlocks[:blockIndex], snapshot.TextBlocks[blockIndex+1:]...)
	return r.State.UpdateDoc(index, snapshot)
}

// Render composes translated text back onto the document's inpainted image.
func (r Resources) Render(ctx context.Context, index int, blockIndex *int, effect document.TextShaderEffect, fontFamily *string) error {
	return r.mutateDoc(ctx, index, func(ctx context.Context, doc *document.Document) error {
		return r.Renderer.Render(ctx, doc, blockIndex, effect, fontFamily)
	})
}

// UpdateTextBlocks replaces a document's text block list wholesale.
func (r Resources) UpdateTextBlocks(ctx context.Context, index int, blocks []document.TextBlock) error {
	snapshot, err := r.State.ReadDoc(index)
	if err != nil {
		return err
	}
	snapshot.TextBlocks = blocks
	return r.State.UpdateDoc(index, snapshot)
}

// ListFontFamilies returns the renderer's installed font family names.
func (r Resources) ListFontFamilies(ctx context.Context) ([]string, error) {
	names, err := r.Renderer.AvailableFonts()
	if err != nil {
		return nil, err
	}
	return sortedNames(names), nil
}

// LlmList returns the translation-model catalogue sorted by the same
// locale/hardware preference key the reference implementation uses.
func (r Resources) LlmList(ctx context.Context, language *string) ([]ModelInfo, error) {
	lang := "en"
	if language != nil && *language != "" {
		lang = *language
	}
	return r.LLM.List(lang), nil
}

// LlmReady reports whether a translation model is currently loaded.
func (r Resources) LlmReady(ctx context.Context) (bool, error) {
	return r.LLM.Ready(ctx), nil
}

// LlmOffload unloads the currently loaded translation model, if any.
func (r Resources) LlmOffload(ctx context.Context) error {
	r.LLM.Offload(ctx)
	return nil
}

// LlmLoad loads the named translation model.
func (r Resources) LlmLoad(ctx context.Context, id string) error {
	return r.LLM.Load(ctx, id)
}

// LlmGenerate translates either a single text block or every block in a
// document.
func (r Resources) LlmGenerate(ctx context.Context, index int, blockIndex *int, language *string) error {
	snapshot, err := r.State.ReadDoc(index)
	if err != nil {
		return err
	}
	if blockIndex != nil {
		if *blockIndex < 0 || *blockIndex >= len(snapshot.TextBlocks) {
			return kerr.New(kerr.NotFound, "text block not found")
		}
	}
	if err := r.LLM.Translate(ctx, snapshot, blockIndex, language); err != nil {
		return err
	}
	return r.State.UpdateDoc(index, snapshot)
}
