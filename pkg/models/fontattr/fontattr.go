// Package fontattr implements the font-attribute regression model: given a
// text block crop, predicts the top font candidates plus style regression
// targets (color, stroke, size, line height, orientation angle).
package fontattr

import (
	"image"
	"math"
	"sort"

	"github.com/koharu-go/koharu/pkg/document"
	"github.com/koharu-go/koharu/pkg/kerr"
	"github.com/koharu-go/koharu/pkg/nn"
	"github.com/koharu-go/koharu/pkg/tensor"
)

// Constants ported from the reference font_detector module.
const (
	FontCount        = 6150
	RegressionStart  = FontCount + 2
	RegressionDim    = 10
	defaultLineHeight = 1.2
)

// Weights is the backbone plus the classification+regression heads.
type Weights struct {
	Backbone    nn.BottleneckWeights
	ClassWeight *tensor.Tensor // (embedDim, FontCount+2+RegressionDim)
	ClassBias   []float32
	FontNames   []string
	FontLangs   []string
	FontSerif   []bool
}

// Model predicts font attributes for a text block crop.
type Model struct {
	Weights Weights
}

func New(w Weights) *Model { return &Model{Weights: w} }

// Predict runs the regression head over every block in doc, replacing any
// earlier font prediction.
func (m *Model) Predict(doc *document.Document) error {
	if doc.Image == nil {
		return kerr.New(kerr.BadInput, "fontattr: document has no source image")
	}
	for i := range doc.TextBlocks {
		b := &doc.TextBlocks[i]
		crop := cropBlock(doc.Image, *b)
		pred, err := m.predictOne(crop)
		if err != nil {
			return err
		}
		b.FontPrediction = pred
	}
	return nil
}

func cropBlock(img image.Image, b document.TextBlock) image.Image {
	r := image.Rect(int(b.X), int(b.Y), int(b.X+b.Width), int(b.Y+b.Height))
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		for x := 0; x < r.Dx(); x++ {
			out.Set(x, y, img.At(r.Min.X+x, r.Min.Y+y))
		}
	}
	return out
}

func (m *Model) predictOne(crop image.Image) (*document.FontPrediction, error) {
	in := imageToTensor(crop, 224, 224)
	feat, err := nn.Bottleneck(&m.Weights.Backbone, in)
	if err != nil {
		return nil, kerr.Wrap(kerr.BackendFailure, "fontattr: backbone", err)
	}
	pooled, err := tensor.AvgPool2D(feat, feat.Shape[1], feat.Shape[1])
	if err != nil {
		return nil, kerr.Wrap(kerr.BackendFailure, "fontattr: pool", err)
	}
	vec, err := tensor.FromSlice(append([]float32(nil), pooled.Data...), 1, pooled.Numel())
	if err != nil {
		return nil, err
	}
	out, err := tensor.MatMul(vec, m.Weights.ClassWeight)
	if err != nil {
		return nil, kerr.Wrap(kerr.BackendFailure, "fontattr: head", err)
	}
	logits := out.Data
	if m.Weights.ClassBias != nil {
		for i := range logits {
			logits[i] += m.Weights.ClassBias[i]
		}
	}

	return decode(logits, m.Weights.FontNames, m.Weights.FontLangs, m.Weights.FontSerif), nil
}

func decode(logits []float32, names, langs []string, serif []bool) *document.FontPrediction {
	fontLogits := logits[:FontCount]
	directionLogit := logits[FontCount]
	_ = directionLogit // second slot reserved; direction read from regression[8] below per reference layout
	reg := logits[RegressionStart : RegressionStart+RegressionDim]

	type cand struct {
		idx   int
		score float32
	}
	cands := make([]cand, len(fontLogits))
	for i, v := range fontLogits {
		cands[i] = cand{i, sigmoid(v)}
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].score > cands[j].score })

	top := make([]document.NamedFontPrediction, 0, 5)
	for i := 0; i < 5 && i < len(cands); i++ {
		c := cands[i]
		name, lang, ser := "", "", false
		if c.idx < len(names) {
			name = names[c.idx]
		}
		if c.idx < len(langs) {
			lang = langs[c.idx]
		}
		if c.idx < len(serif) {
			ser = serif[c.idx]
		}
		top = append(top, document.NamedFontPrediction{
			Index: c.idx, Name: name, Language: lang, Probability: c.score, Serif: ser,
		})
	}

	direction := document.Horizontal
	if sigmoid(reg[8]) > 0.5 {
		direction = document.Vertical
	}

	fontSizePx := math.Max(float64(reg[0]), 1)
	lineSpacingPx := float64(reg[1])
	lineHeight := 1 + lineSpacingPx/fontSizePx
	if fontSizePx <= 1 {
		lineHeight = defaultLineHeight
	}

	textColor := normalizeColor(colorFrom(reg[2], reg[3], reg[4]))
	strokeColor := normalizeColor(colorFrom(reg[5], reg[6], reg[7]))
	strokeWidth := reg[6]
	if colorsSimilar(textColor, strokeColor) {
		strokeWidth = 0
	}

	return &document.FontPrediction{
		TopFonts:      top,
		Direction:     direction,
		TextColor:     textColor,
		StrokeColor:   strokeColor,
		FontSizePx:    float32(fontSizePx),
		StrokeWidthPx: strokeWidth,
		LineHeight:    float32(lineHeight),
		AngleDeg:      (reg[9] - 0.5) * 180,
	}
}

func colorFrom(r, g, b float32) [3]uint8 {
	return [3]uint8{toByte(r), toByte(g), toByte(b)}
}

func toByte(v float32) uint8 {
	f := sigmoid(v) * 255
	if f < 0 {
		f = 0
	}
	if f > 255 {
		f = 255
	}
	return uint8(f)
}

func sigmoid(v float32) float32 {
	return float32(1 / (1 + math.Exp(-float64(v))))
}

func imageToTensor(img image.Image, h, w int) *tensor.Tensor {
	b := img.Bounds()
	sw, sh := b.Dx(), b.Dy()
	out := tensor.New(3, h, w)
	if sw == 0 || sh == 0 {
		return out
	}
	for y := 0; y < h; y++ {
		sy := b.Min.Y + y*sh/h
		for x := 0; x < w; x++ {
			sx := b.Min.X + x*sw/w
			r, g, bl, _ := img.At(sx, sy).RGBA()
			i := y*w + x
			out.Data[0*h*w+i] = float32(r) / 65535.0
			out.Data[1*h*w+i] = float32(g) / 65535.0
			out.Data[2*h*w+i] = float32(bl) / 65535.0
		}
	}
	return out
}
