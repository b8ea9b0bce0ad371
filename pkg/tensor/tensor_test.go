package tensor

import (
	"math"
	"testing"
)

func TestFromSliceRejectsShapeMismatch(t *testing.T) {
	if _, err := FromSlice([]float32{1, 2, 3}, 2, 2); err == nil {
		t.Fatal("expected shape mismatch error")
	}
}

func TestReshapeSharesData(t *testing.T) {
	a := New(2, 3)
	for i := range a.Data {
		a.Data[i] = float32(i)
	}
	b, err := a.Reshape(3, 2)
	if err != nil {
		t.Fatalf("reshape: %v", err)
	}
	b.Data[0] = 42
	if a.Data[0] != 42 {
		t.Fatal("reshape should share backing data")
	}
}

func TestPermuteTransposes(t *testing.T) {
	a, _ := FromSlice([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	b, err := a.Permute(1, 0)
	if err != nil {
		t.Fatalf("permute: %v", err)
	}
	if b.Shape[0] != 3 || b.Shape[1] != 2 {
		t.Fatalf("unexpected shape %v", b.Shape)
	}
	want := []float32{1, 4, 2, 5, 3, 6}
	for i, v := range want {
		if b.Data[i] != v {
			t.Fatalf("at %d: got %v want %v", i, b.Data[i], v)
		}
	}
}

func TestNarrowExtractsSlice(t *testing.T) {
	a, _ := FromSlice([]float32{1, 2, 3, 4, 5, 6}, 3, 2)
	b, err := a.Narrow(0, 1, 2)
	if err != nil {
		t.Fatalf("narrow: %v", err)
	}
	want := []float32{3, 4, 5, 6}
	for i, v := range want {
		if b.Data[i] != v {
			t.Fatalf("at %d: got %v want %v", i, b.Data[i], v)
		}
	}
}

func TestNarrowOutOfRange(t *testing.T) {
	a := New(3, 2)
	if _, err := a.Narrow(0, 2, 5); err == nil {
		t.Fatal("expected out-of-range error")
	}
}

func TestCatAlongDim0(t *testing.T) {
	a, _ := FromSlice([]float32{1, 2}, 1, 2)
	b, _ := FromSlice([]float32{3, 4}, 1, 2)
	out, err := Cat(0, a, b)
	if err != nil {
		t.Fatalf("cat: %v", err)
	}
	if out.Shape[0] != 2 {
		t.Fatalf("unexpected shape %v", out.Shape)
	}
	want := []float32{1, 2, 3, 4}
	for i, v := range want {
		if out.Data[i] != v {
			t.Fatalf("at %d: got %v want %v", i, out.Data[i], v)
		}
	}
}

func TestStackAddsLeadingDim(t *testing.T) {
	a, _ := FromSlice([]float32{1, 2}, 2)
	b, _ := FromSlice([]float32{3, 4}, 2)
	out, err := Stack(a, b)
	if err != nil {
		t.Fatalf("stack: %v", err)
	}
	if out.Shape[0] != 2 || out.Shape[1] != 2 {
		t.Fatalf("unexpected shape %v", out.Shape)
	}
}

func TestFlipReverses(t *testing.T) {
	a, _ := FromSlice([]float32{1, 2, 3}, 3)
	b := a.Flip(0)
	want := []float32{3, 2, 1}
	for i, v := range want {
		if b.Data[i] != v {
			t.Fatalf("at %d: got %v want %v", i, b.Data[i], v)
		}
	}
}

func TestPad2DZeroPadsBorder(t *testing.T) {
	a, _ := FromSlice([]float32{1, 2, 3, 4}, 1, 2, 2)
	b, err := a.Pad2D(1, false)
	if err != nil {
		t.Fatalf("pad2d: %v", err)
	}
	if b.Shape[1] != 4 || b.Shape[2] != 4 {
		t.Fatalf("unexpected shape %v", b.Shape)
	}
	if b.Data[0] != 0 {
		t.Fatal("expected zero padding at corner")
	}
	// center 2x2 block should be the original values
	if b.Data[1*4+1] != 1 || b.Data[1*4+2] != 2 {
		t.Fatal("original values not preserved in padded center")
	}
}

func TestReflectIndex(t *testing.T) {
	cases := []struct{ i, n, want int }{
		{-1, 4, 1},
		{0, 4, 0},
		{4, 4, 2},
		{0, 1, 0},
	}
	for _, c := range cases {
		if got := reflectIndex(c.i, c.n); got != c.want {
			t.Fatalf("reflectIndex(%d,%d) = %d, want %d", c.i, c.n, got, c.want)
		}
	}
}

func TestSigmoidMatchesFormula(t *testing.T) {
	in, _ := FromSlice([]float32{0, 1, -1}, 3)
	out := Sigmoid(in)
	want := 1 / (1 + math.Exp(-1))
	if math.Abs(float64(out.Data[1])-want) > 1e-6 {
		t.Fatalf("sigmoid(1) = %v, want %v", out.Data[1], want)
	}
	if out.Data[0] != 0.5 {
		t.Fatalf("sigmoid(0) = %v, want 0.5", out.Data[0])
	}
}

func TestMatMulBatched(t *testing.T) {
	a, _ := FromSlice([]float32{1, 2, 3, 4}, 1, 2, 2)
	b, _ := FromSlice([]float32{1, 0, 0, 1}, 1, 2, 2)
	out, err := MatMul(a, b)
	if err != nil {
		t.Fatalf("matmul: %v", err)
	}
	want := []float32{1, 2, 3, 4}
	for i, v := range want {
		if out.Data[i] != v {
			t.Fatalf("at %d: got %v want %v", i, out.Data[i], v)
		}
	}
}

func TestMatMulInnerDimMismatch(t *testing.T) {
	a := New(2, 3)
	b := New(4, 2)
	if _, err := MatMul(a, b); err == nil {
		t.Fatal("expected inner dim mismatch error")
	}
}

func TestConv2DIdentityKernel(t *testing.T) {
	input, _ := FromSlice([]float32{1, 2, 3, 4}, 1, 2, 2)
	weight, _ := FromSlice([]float32{1}, 1, 1, 1, 1)
	out, err := Conv2D(input, weight, nil, 1, 0)
	if err != nil {
		t.Fatalf("conv2d: %v", err)
	}
	for i, v := range input.Data {
		if out.Data[i] != v {
			t.Fatalf("at %d: got %v want %v", i, out.Data[i], v)
		}
	}
}

func TestConv2DRejectsBadRank(t *testing.T) {
	input := New(2, 2)
	weight := New(1, 1, 1, 1)
	if _, err := Conv2D(input, weight, nil, 1, 0); err == nil {
		t.Fatal("expected rank mismatch error")
	}
}

func TestMaxPool2D(t *testing.T) {
	input, _ := FromSlice([]float32{1, 5, 2, 8}, 1, 2, 2)
	out, err := MaxPool2D(input, 2, 2)
	if err != nil {
		t.Fatalf("maxpool: %v", err)
	}
	if out.Data[0] != 8 {
		t.Fatalf("got %v want 8", out.Data[0])
	}
}

func TestInterpolate2DIdentityWhenSameSize(t *testing.T) {
	input, _ := FromSlice([]float32{1, 2, 3, 4}, 1, 2, 2)
	out, err := Interpolate2D(input, 2, 2, true)
	if err != nil {
		t.Fatalf("interpolate2d: %v", err)
	}
	for i, v := range input.Data {
		if math.Abs(float64(out.Data[i]-v)) > 1e-5 {
			t.Fatalf("at %d: got %v want %v", i, out.Data[i], v)
		}
	}
}
