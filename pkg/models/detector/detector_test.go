package detector

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/koharu-go/koharu/pkg/document"
	"github.com/koharu-go/koharu/pkg/nn"
	"github.com/koharu-go/koharu/pkg/tensor"
)

func TestBinarizeThresholdsAroundCutoff(t *testing.T) {
	prob := &tensor.Tensor{Shape: []int{1, 1, 2}, Data: []float32{0.1, 0.9}}
	out := binarize(prob, BinarizeK, BinaryThreshold)
	if out[0] {
		t.Fatal("0.1 should fall below the binary threshold")
	}
	if !out[1] {
		t.Fatal("0.9 should clear the binary threshold")
	}
}

func TestConnectedComponentBoxesFindsSingleRegion(t *testing.T) {
	w, h := 5, 5
	binary := make([]bool, w*h)
	// a 3x3 solid block starting at (1,1)
	for y := 1; y <= 3; y++ {
		for x := 1; x <= 3; x++ {
			binary[y*w+x] = true
		}
	}
	boxes := connectedComponentBoxes(binary, w, h)
	if len(boxes) != 1 {
		t.Fatalf("got %d boxes, want 1", len(boxes))
	}
	b := boxes[0]
	if b.Min.X != 1 || b.Min.Y != 1 || b.Max.X != 4 || b.Max.Y != 4 {
		t.Fatalf("got box %+v, want min(1,1) max(4,4)", b)
	}
}

func TestConnectedComponentBoxesDropsTinyNoise(t *testing.T) {
	w, h := 5, 5
	binary := make([]bool, w*h)
	binary[0] = true // single isolated pixel, below the 4-pixel floor
	boxes := connectedComponentBoxes(binary, w, h)
	if len(boxes) != 0 {
		t.Fatalf("got %d boxes, want 0 (noise should be dropped)", len(boxes))
	}
}

func TestConnectedComponentBoxesSeparatesDisjointRegions(t *testing.T) {
	w, h := 10, 4
	binary := make([]bool, w*h)
	// two separate 2x2 blocks, far enough apart not to touch
	for y := 0; y < 2; y++ {
		binary[y*w+0] = true
		binary[y*w+1] = true
		binary[y*w+8] = true
		binary[y*w+9] = true
	}
	boxes := connectedComponentBoxes(binary, w, h)
	if len(boxes) != 2 {
		t.Fatalf("got %d boxes, want 2", len(boxes))
	}
}

func TestMaskFromBoxesPaintsOnlyBoxInterior(t *testing.T) {
	blocks := []document.TextBlock{{X: 1, Y: 1, Width: 2, Height: 2}}
	mask := maskFromBoxes(5, 5, blocks)
	if c := mask.RGBAAt(1, 1); c != whiteOpaque {
		t.Fatalf("got %+v inside the box, want white", c)
	}
	if c := mask.RGBAAt(4, 4); c == whiteOpaque {
		t.Fatal("expected pixels outside the box to stay unpainted")
	}
}

func TestImageToTensorResamplesToTargetSize(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	img.SetRGBA(1, 0, color.RGBA{G: 255, A: 255})
	img.SetRGBA(0, 1, color.RGBA{B: 255, A: 255})
	img.SetRGBA(1, 1, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	out := imageToTensor(img, 4, 4)
	if out.Shape[0] != 3 || out.Shape[1] != 4 || out.Shape[2] != 4 {
		t.Fatalf("got shape %v, want [3 4 4]", out.Shape)
	}
	// top-left source quadrant should sample as pure red
	if out.Data[0] < 0.99 {
		t.Fatalf("got red %v at (0,0), want ~1.0", out.Data[0])
	}
}

func identityConv(channels int) *nn.ConvBnActWeights {
	data := make([]float32, channels*channels)
	for c := 0; c < channels; c++ {
		data[c*channels+c] = 1
	}
	weight, _ := tensor.FromSlice(data, channels, channels, 1, 1)
	return &nn.ConvBnActWeights{Weight: weight, Stride: 1, Padding: 0, Activation: "none"}
}

func TestDetectProducesABoxOverASolidBrightRegion(t *testing.T) {
	w := Weights{
		Stem:  &nn.DoubleConvWeights{First: identityConv(3), Second: identityConv(3)},
		Down1: &nn.DoubleConvWeights{First: identityConv(3), Second: identityConv(3)},
		Down2: &nn.DoubleConvWeights{First: identityConv(3), Second: identityConv(3)},
		HeadConv: &nn.ConvBnActWeights{
			// selects the red channel as the raw logit feeding the sigmoid
			Weight:     mustTensor(t, []float32{1, 0, 0}, 1, 3, 1, 1),
			Stride:     1,
			Activation: "none",
		},
	}
	m := New(w)

	// a small image, entirely bright red, so the whole frame should binarize true
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	doc := &document.Document{Image: img}

	if err := m.Detect(context.Background(), doc); err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(doc.TextBlocks) != 1 {
		t.Fatalf("got %d text blocks, want 1", len(doc.TextBlocks))
	}
	b := doc.TextBlocks[0]
	if b.Width <= 0 || b.Height <= 0 {
		t.Fatalf("got degenerate box %+v", b)
	}
	if doc.Segment == nil {
		t.Fatal("expected a populated segmentation mask")
	}
}

func TestDetectRejectsMissingImage(t *testing.T) {
	m := New(Weights{})
	if err := m.Detect(context.Background(), &document.Document{}); err == nil {
		t.Fatal("expected an error for a document with no source image")
	}
}

func mustTensor(t *testing.T, data []float32, shape ...int) *tensor.Tensor {
	t.Helper()
	tt, err := tensor.FromSlice(data, shape...)
	if err != nil {
		t.Fatalf("FromSlice: %v", err)
	}
	return tt
}
