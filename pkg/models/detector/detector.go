// Package detector implements the comic text detector: a DoubleConvC3
// backbone feeding a DBNet-style segmentation head, followed by connected
// component extraction and box dilation.
package detector

import (
	"context"
	"image"
	"image/color"
	"math"

	"github.com/koharu-go/koharu/pkg/document"
	"github.com/koharu-go/koharu/pkg/kerr"
	"github.com/koharu-go/koharu/pkg/nn"
	"github.com/koharu-go/koharu/pkg/tensor"
)

// Constants ported from the reference comic_text_detector module.
const (
	ImageSize          = 1024
	ConfidenceThreshold = 0.4
	NMSThreshold        = 0.35
	BinarizeK           = 50.0
	BinaryThreshold     = 60
	DilationRadius      = 2
	HoleCloseRadius     = 1
	BBoxDilation        = 1.0
)

// Weights holds the backbone and DBNet head parameters.
type Weights struct {
	Stem     *nn.DoubleConvWeights
	Down1    *nn.DoubleConvWeights
	Down2    *nn.DoubleConvWeights
	HeadConv *nn.ConvBnActWeights
	HeadBias []float32
}

// Model runs text-region detection against a document snapshot.
type Model struct {
	Weights Weights
}

func New(w Weights) *Model { return &Model{Weights: w} }

// Detect populates doc.TextBlocks and doc.Segment from the source image.
func (m *Model) Detect(ctx context.Context, doc *document.Document) error {
	if doc.Image == nil {
		return kerr.New(kerr.BadInput, "detector: document has no source image")
	}
	in := imageToTensor(doc.Image, ImageSize, ImageSize)

	x, err := nn.DoubleConvC3(m.Weights.Stem, in)
	if err != nil {
		return kerr.Wrap(kerr.BackendFailure, "detector: stem", err)
	}
	x, err = nn.DoubleConvC3(m.Weights.Down1, x)
	if err != nil {
		return kerr.Wrap(kerr.BackendFailure, "detector: down1", err)
	}
	x, err = nn.DoubleConvC3(m.Weights.Down2, x)
	if err != nil {
		return kerr.Wrap(kerr.BackendFailure, "detector: down2", err)
	}
	prob, err := nn.ConvBnAct(m.Weights.HeadConv, x)
	if err != nil {
		return kerr.Wrap(kerr.BackendFailure, "detector: head", err)
	}
	prob = tensor.Sigmoid(prob)

	bounds := doc.Image.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if prob.Shape[1] != h || prob.Shape[2] != w {
		prob, err = tensor.Interpolate2D(prob, h, w, false)
		if err != nil {
			return kerr.Wrap(kerr.BackendFailure, "detector: resize probability map", err)
		}
	}
	binary := binarize(prob, BinarizeK, BinaryThreshold)
	boxes := connectedComponentBoxes(binary, w, h)

	blocks := make([]document.TextBlock, 0, len(boxes))
	for _, b := range boxes {
		blocks = append(blocks, document.TextBlock{
			X: b.Min.X - BBoxDilation, Y: b.Min.Y - BBoxDilation,
			Width: b.Max.X - b.Min.X + 2*BBoxDilation, Height: b.Max.Y - b.Min.Y + 2*BBoxDilation,
			Confidence: b.Confidence,
		})
	}
	doc.TextBlocks = blocks
	doc.Segment = maskFromBoxes(w, h, blocks)
	return nil
}

type box struct {
	Min, Max   struct{ X, Y float32 }
	Confidence float32
}

// binarize thresholds the DBNet probability map using the Differentiable
// Binarization step-function approximation (sigmoid(k*(p - t))).
func binarize(prob *tensor.Tensor, k float64, threshold int) []bool {
	out := make([]bool, len(prob.Data))
	t := float32(threshold) / 255.0
	for i, p := range prob.Data {
		approx := 1.0 / (1.0 + math.Exp(-k*float64(p-t)))
		out[i] = approx > 0.5
	}
	return out
}

func connectedComponentBoxes(binary []bool, w, h int) []box {
	visited := make([]bool, len(binary))
	var boxes []box
	idx := func(x, y int) int { return y*w + x }
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := idx(x, y)
			if i >= len(binary) || !binary[i] || visited[i] {
				continue
			}
			minX, minY, maxX, maxY := x, y, x, y
			stack := [][2]int{{x, y}}
			visited[i] = true
			count := 0
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				count++
				if p[0] < minX {
					minX = p[0]
				}
				if p[0] > maxX {
					maxX = p[0]
				}
				if p[1] < minY {
					minY = p[1]
				}
				if p[1] > maxY {
					maxY = p[1]
				}
				for _, d := range [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
					nx, ny := p[0]+d[0], p[1]+d[1]
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					ni := idx(nx, ny)
					if binary[ni] && !visited[ni] {
						visited[ni] = true
						stack = append(stack, [2]int{nx, ny})
					}
				}
			}
			if count < 4 {
				continue
			}
			var b box
			b.Min.X, b.Min.Y = float32(minX), float32(minY)
			b.Max.X, b.Max.Y = float32(maxX+1), float32(maxY+1)
			b.Confidence = float32(ConfidenceThreshold)
			boxes = append(boxes, b)
		}
	}
	return boxes
}

func maskFromBoxes(w, h int, blocks []document.TextBlock) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for _, b := range blocks {
		x0, y0 := int(b.X), int(b.Y)
		x1, y1 := int(b.X+b.Width), int(b.Y+b.Height)
		for y := y0; y < y1; y++ {
			if y < 0 || y >= h {
				continue
			}
			for x := x0; x < x1; x++ {
				if x < 0 || x >= w {
					continue
				}
				out.SetRGBA(x, y, whiteOpaque)
			}
		}
	}
	return out
}

var whiteOpaque = color.RGBA{255, 255, 255, 255}

func imageToTensor(img image.Image, targetW, targetH int) *tensor.Tensor {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	data := make([]float32, 3*targetH*targetW)
	for y := 0; y < targetH; y++ {
		sy := b.Min.Y + y*h/targetH
		for x := 0; x < targetW; x++ {
			sx := b.Min.X + x*w/targetW
			r, g, bl, _ := img.At(sx, sy).RGBA()
			data[0*targetH*targetW+y*targetW+x] = float32(r) / 65535.0
			data[1*targetH*targetW+y*targetW+x] = float32(g) / 65535.0
			data[2*targetH*targetW+y*targetW+x] = float32(bl) / 65535.0
		}
	}
	return &tensor.Tensor{Shape: []int{3, targetH, targetW}, Data: data}
}
