package inpaint

import (
	"image"
	"image/color"
	"testing"

	"github.com/koharu-go/koharu/pkg/nn"
	"github.com/koharu-go/koharu/pkg/tensor"
)

func TestSplitChannelsZeroRatioKeepsEverythingLocal(t *testing.T) {
	x := tensor.New(4, 2, 2)
	xl, xg := splitChannels(x, 0)
	if xg != nil {
		t.Fatal("expected a nil global branch at ratio 0")
	}
	if xl.Shape[0] != 4 {
		t.Fatalf("got %d local channels, want 4", xl.Shape[0])
	}
}

func TestSplitChannelsFullRatioKeepsEverythingGlobal(t *testing.T) {
	x := tensor.New(4, 2, 2)
	xl, xg := splitChannels(x, 1)
	if xl != nil {
		t.Fatal("expected a nil local branch at ratio 1")
	}
	if xg.Shape[0] != 4 {
		t.Fatalf("got %d global channels, want 4", xg.Shape[0])
	}
}

func TestSplitChannelsPartitionsByRatio(t *testing.T) {
	x, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, 4, 1, 1)
	xl, xg := splitChannels(x, 0.5)
	if xl.Shape[0] != 2 || xg.Shape[0] != 2 {
		t.Fatalf("got local=%d global=%d, want 2/2", xl.Shape[0], xg.Shape[0])
	}
	if xl.Data[0] != 1 || xl.Data[1] != 2 {
		t.Fatalf("local branch got %v, want [1 2]", xl.Data)
	}
	if xg.Data[0] != 3 || xg.Data[1] != 4 {
		t.Fatalf("global branch got %v, want [3 4]", xg.Data)
	}
}

func TestMergeChannelsRecombines(t *testing.T) {
	xl, _ := tensor.FromSlice([]float32{1, 2}, 2, 1, 1)
	xg, _ := tensor.FromSlice([]float32{3, 4}, 2, 1, 1)
	out := mergeChannels(xl, xg)
	if out.Shape[0] != 4 {
		t.Fatalf("got %d channels, want 4", out.Shape[0])
	}
	want := []float32{1, 2, 3, 4}
	for i, v := range want {
		if out.Data[i] != v {
			t.Fatalf("at %d: got %v want %v", i, out.Data[i], v)
		}
	}
}

func TestMergeChannelsHandlesNilBranch(t *testing.T) {
	xl, _ := tensor.FromSlice([]float32{1, 2}, 2, 1, 1)
	if out := mergeChannels(xl, nil); out != xl {
		t.Fatal("expected mergeChannels to return the non-nil branch unchanged")
	}
	if out := mergeChannels(nil, xl); out != xl {
		t.Fatal("expected mergeChannels to return the non-nil branch unchanged")
	}
}

func TestClamp01(t *testing.T) {
	if clamp01(-1) != 0 {
		t.Fatal("expected negative values to clamp to 0")
	}
	if clamp01(2) != 1 {
		t.Fatal("expected values above 1 to clamp to 1")
	}
	if clamp01(0.5) != 0.5 {
		t.Fatal("expected in-range values to pass through")
	}
}

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func zeroConv(cout, cin int) *nn.ConvBnActWeights {
	return &nn.ConvBnActWeights{
		Weight:     tensor.New(cout, cin, 1, 1),
		Stride:     1,
		Padding:    0,
		Activation: "none",
	}
}

// buildConstantModel returns a Model whose every conv weight is zero, so the
// decoder output is determined entirely by ToRGB's bias: a known solid
// color regardless of the input image or intermediate feature maps.
func buildConstantModel(bias []float32) *Model {
	up := func() *nn.UpsampleConvWeights { return &nn.UpsampleConvWeights{Conv: zeroConv(2, 2)} }
	toRGB := zeroConv(3, 2)
	toRGB.Bias = bias
	return New(Weights{
		Down1:              zeroConv(2, 4),
		Down2:              zeroConv(2, 2),
		Down3:              zeroConv(2, 2),
		InitialGlobalRatio: 0,
		Up1:                up(),
		Up2:                up(),
		Up3:                up(),
		ToRGB:              toRGB,
	})
}

func TestRunBlendsOnlyMaskedPixels(t *testing.T) {
	m := buildConstantModel([]float32{0.2, 0.4, 0.6})

	img := solid(4, 4, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	mask := image.NewRGBA(image.Rect(0, 0, 4, 4))
	// mask only the top-left 2x2 quadrant
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			mask.Set(x, y, color.White)
		}
	}

	out, err := m.Run(img, mask)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	rgba, ok := out.(*image.RGBA)
	if !ok {
		t.Fatalf("expected *image.RGBA, got %T", out)
	}

	// masked pixel replaced with the model's constant color
	r, g, b, _ := rgba.At(0, 0).RGBA()
	if uint8(r>>8) != uint8(0.2*255) || uint8(g>>8) != uint8(0.4*255) || uint8(b>>8) != uint8(0.6*255) {
		t.Fatalf("masked pixel got (%d,%d,%d)", r>>8, g>>8, b>>8)
	}

	// unmasked pixel untouched
	r, g, b, _ = rgba.At(3, 3).RGBA()
	if uint8(r>>8) != 10 || uint8(g>>8) != 20 || uint8(b>>8) != 30 {
		t.Fatalf("unmasked pixel got (%d,%d,%d), want (10,20,30)", r>>8, g>>8, b>>8)
	}
}
