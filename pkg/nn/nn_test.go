package nn

import (
	"math"
	"testing"

	"github.com/koharu-go/koharu/pkg/tensor"
)

func identityConv(channels int) *ConvBnActWeights {
	data := make([]float32, channels*channels)
	for c := 0; c < channels; c++ {
		data[c*channels+c] = 1
	}
	weight, _ := tensor.FromSlice(data, channels, channels, 1, 1)
	return &ConvBnActWeights{Weight: weight, Stride: 1, Padding: 0, Activation: "none"}
}

func TestConvBnActIdentityPassesThrough(t *testing.T) {
	x, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, 2, 1, 2)
	out, err := ConvBnAct(identityConv(2), x)
	if err != nil {
		t.Fatalf("ConvBnAct: %v", err)
	}
	for i, v := range x.Data {
		if out.Data[i] != v {
			t.Fatalf("at %d: got %v want %v", i, out.Data[i], v)
		}
	}
}

func TestConvBnActAppliesBatchNormAndActivation(t *testing.T) {
	x, _ := tensor.FromSlice([]float32{-1, 2}, 1, 1, 2)
	w := &ConvBnActWeights{
		Weight:     mustTensor(t, []float32{1}, 1, 1, 1, 1),
		BNMean:     []float32{0},
		BNVar:      []float32{1},
		BNGamma:    []float32{2},
		BNBeta:     []float32{0},
		Stride:     1,
		Activation: "relu",
	}
	out, err := ConvBnAct(w, x)
	if err != nil {
		t.Fatalf("ConvBnAct: %v", err)
	}
	// scale is gamma/sqrt(var+eps) = 2/sqrt(1+1e-5): -1 -> just above -2, relu
	// clamps to 0; 2 -> just under 4
	want := 4 / math.Sqrt(1+1e-5)
	if out.Data[0] != 0 || math.Abs(float64(out.Data[1])-want) > 1e-6 {
		t.Fatalf("got %v, want [0 %v]", out.Data, want)
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

func TestDoubleConvC3ChainsTwoLayers(t *testing.T) {
	x, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, 1, 1, 4)
	w := &DoubleConvWeights{First: identityConv(1), Second: identityConv(1)}
	out, err := DoubleConvC3(w, x)
	if err != nil {
		t.Fatalf("DoubleConvC3: %v", err)
	}
	for i, v := range x.Data {
		if out.Data[i] != v {
			t.Fatalf("at %d: got %v want %v", i, out.Data[i], v)
		}
	}
}

func TestUpsampleConvDoublesSpatialDims(t *testing.T) {
	x, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, 1, 2, 2)
	w := &UpsampleConvWeights{Conv: identityConv(1)}
	out, err := UpsampleConv(w, x)
	if err != nil {
		t.Fatalf("UpsampleConv: %v", err)
	}
	if out.Shape[1] != 4 || out.Shape[2] != 4 {
		t.Fatalf("got shape %v, want 4x4", out.Shape)
	}
}

func TestBasicBlockResidualAdd(t *testing.T) {
	x, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, 1, 1, 4)
	w := &BasicBlockWeights{
		Conv1: &ConvBnActWeights{Weight: mustTensor(t, []float32{0}, 1, 1, 1, 1), Stride: 1, Activation: "none"},
		Conv2: &ConvBnActWeights{Weight: mustTensor(t, []float32{0}, 1, 1, 1, 1), Stride: 1, Activation: "none"},
	}
	out, err := BasicBlock(w, x)
	if err != nil {
		t.Fatalf("BasicBlock: %v", err)
	}
	// both convs zero out the signal, so the output is just the identity (relu'd)
	for i, v := range x.Data {
		if out.Data[i] != v {
			t.Fatalf("at %d: got %v want %v", i, out.Data[i], v)
		}
	}
}

func TestBottleneckUsesDownsampleWhenProvided(t *testing.T) {
	x, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, 1, 1, 4)
	zero := func() *ConvBnActWeights {
		return &ConvBnActWeights{Weight: mustTensor(t, []float32{0}, 1, 1, 1, 1), Stride: 1, Activation: "none"}
	}
	w := &BottleneckWeights{Conv1: zero(), Conv2: zero(), Conv3: zero(), Downsample: identityConv(1)}
	out, err := Bottleneck(w, x)
	if err != nil {
		t.Fatalf("Bottleneck: %v", err)
	}
	for i, v := range x.Data {
		if out.Data[i] != v {
			t.Fatalf("at %d: got %v want %v", i, out.Data[i], v)
		}
	}
}

func TestScaledDotProductAttentionCausalMasksFuture(t *testing.T) {
	q := mustTensor(t, []float32{1, 0, 1, 0}, 2, 2)
	k := mustTensor(t, []float32{1, 0, 1, 0}, 2, 2)
	v := mustTensor(t, []float32{10, 0, 0, 20}, 2, 2)
	out, err := ScaledDotProductAttention(q, k, v, true, 0)
	if err != nil {
		t.Fatalf("attention: %v", err)
	}
	// position 0 can only attend to itself, so its output must equal v[0]
	if math.Abs(float64(out.Data[0]-10)) > 1e-5 || out.Data[1] != 0 {
		t.Fatalf("got row0 %v, want [10 0]", out.Data[:2])
	}
}

func TestRmsNormScalesByWeight(t *testing.T) {
	x := mustTensor(t, []float32{3, 4}, 1, 2)
	out, err := RmsNorm(x, []float32{1, 1}, 1e-8)
	if err != nil {
		t.Fatalf("RmsNorm: %v", err)
	}
	rms := math.Sqrt((9.0 + 16.0) / 2.0)
	want0 := float32(3 / rms)
	if math.Abs(float64(out.Data[0]-want0)) > 1e-4 {
		t.Fatalf("got %v, want %v", out.Data[0], want0)
	}
}

func TestQMatMulDequantizes(t *testing.T) {
	w := &QMatMulWeights{Quant: []int8{2, -2}, Scales: []float32{0.5}, InDim: 2, OutDim: 1}
	x := mustTensor(t, []float32{3, 5}, 1, 2)
	out, err := QMatMul(w, x)
	if err != nil {
		t.Fatalf("QMatMul: %v", err)
	}
	// (3*2 + 5*-2) * 0.5 = (6-10)*0.5 = -2
	if out.Data[0] != -2 {
		t.Fatalf("got %v, want -2", out.Data[0])
	}
}
