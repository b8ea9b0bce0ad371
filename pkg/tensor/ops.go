package tensor

import (
	"math"

	"github.com/koharu-go/koharu/pkg/kerr"
)

// Sigmoid applies the logistic function elementwise, returning a new tensor.
func Sigmoid(t *Tensor) *Tensor {
	out := t.Clone()
	for i, v := range out.Data {
		out.Data[i] = float32(1 / (1 + math.Exp(-float64(v))))
	}
	return out
}

// Relu applies max(0, x) elementwise.
func Relu(t *Tensor) *Tensor {
	out := t.Clone()
	for i, v := range out.Data {
		if v < 0 {
			out.Data[i] = 0
		}
	}
	return out
}

// LeakyRelu applies x if x>0 else slope*x.
func LeakyRelu(t *Tensor, slope float32) *Tensor {
	out := t.Clone()
	for i, v := range out.Data {
		if v < 0 {
			out.Data[i] = v * slope
		}
	}
	return out
}

// Gelu applies the tanh-approximation GELU used by transformer blocks.
func Gelu(t *Tensor) *Tensor {
	out := t.Clone()
	const c = 0.7978845608028654 // sqrt(2/pi)
	for i, v := range out.Data {
		x := float64(v)
		out.Data[i] = float32(0.5 * x * (1 + math.Tanh(c*(x+0.044715*x*x*x))))
	}
	return out
}

// Silu applies x * sigmoid(x).
func Silu(t *Tensor) *Tensor {
	out := t.Clone()
	for i, v := range out.Data {
		out.Data[i] = v * float32(1/(1+math.Exp(-float64(v))))
	}
	return out
}

// Softmax applies softmax along the last dimension.
func Softmax(t *Tensor) *Tensor {
	n := len(t.Shape)
	last := t.Shape[n-1]
	outer := t.Numel() / last
	out := t.Clone()
	for o := 0; o < outer; o++ {
		base := o * last
		row := out.Data[base : base+last]
		max := row[0]
		for _, v := range row {
			if v > max {
				max = v
			}
		}
		var sum float64
		for i, v := range row {
			e := math.Exp(float64(v - max))
			row[i] = float32(e)
			sum += e
		}
		for i := range row {
			row[i] = float32(float64(row[i]) / sum)
		}
	}
	return out
}

// Add returns a+b elementwise; shapes must match exactly (no broadcasting).
func Add(a, b *Tensor) (*Tensor, error) {
	if a.Numel() != b.Numel() {
		return nil, kerr.New(kerr.BadInput, "tensor: add shape mismatch")
	}
	out := a.Clone()
	for i := range out.Data {
		out.Data[i] += b.Data[i]
	}
	return out, nil
}

// Mul returns a*b elementwise; shapes must match exactly.
func Mul(a, b *Tensor) (*Tensor, error) {
	if a.Numel() != b.Numel() {
		return nil, kerr.New(kerr.BadInput, "tensor: mul shape mismatch")
	}
	out := a.Clone()
	for i := range out.Data {
		out.Data[i] *= b.Data[i]
	}
	return out, nil
}

// Scale multiplies every element by s.
func Scale(t *Tensor, s float32) *Tensor {
	out := t.Clone()
	for i := range out.Data {
		out.Data[i] *= s
	}
	return out
}

// MatMul performs a batched matrix multiply over the trailing two
// dimensions; leading dims must match exactly (no broadcasting).
func MatMul(a, b *Tensor) (*Tensor, error) {
	na, nb := len(a.Shape), len(b.Shape)
	if na < 2 || nb < 2 {
		return nil, kerr.New(kerr.BadInput, "tensor: matmul requires rank >= 2")
	}
	m, k := a.Shape[na-2], a.Shape[na-1]
	k2, n := b.Shape[nb-2], b.Shape[nb-1]
	if k != k2 {
		return nil, kerr.New(kerr.BadInput, "tensor: matmul inner dim mismatch")
	}
	batch := numel(a.Shape[:na-2])
	out := New(append(append([]int(nil), a.Shape[:na-2]...), m, n)...)
	for bIdx := 0; bIdx < batch; bIdx++ {
		aBase := bIdx * m * k
		bBase := bIdx * k * n
		oBase := bIdx * m * n
		for i := 0; i < m; i++ {
			for p := 0; p < k; p++ {
				av := a.Data[aBase+i*k+p]
				if av == 0 {
					continue
				}
				for j := 0; j < n; j++ {
					out.Data[oBase+i*n+j] += av * b.Data[bBase+p*n+j]
				}
			}
		}
	}
	return out, nil
}

// Conv2D performs a 2-D convolution. input is (C_in, H, W), weight is
// (C_out, C_in, K, K), bias is length C_out or nil.
func Conv2D(input, weight *Tensor, bias []float32, stride, padding int) (*Tensor, error) {
	if len(input.Shape) != 3 || len(weight.Shape) != 4 {
		return nil, kerr.New(kerr.BadInput, "tensor: conv2d expects (C,H,W) input and (O,C,K,K) weight")
	}
	cin, h, w := input.Shape[0], input.Shape[1], input.Shape[2]
	cout, cinW, kh, kw := weight.Shape[0], weight.Shape[1], weight.Shape[2], weight.Shape[3]
	if cin != cinW {
		return nil, kerr.New(kerr.BadInput, "tensor: conv2d channel mismatch")
	}
	padded := input
	var err error
	if padding > 0 {
		padded, err = input.Pad2D(padding, false)
		if err != nil {
			return nil, err
		}
		h += 2 * padding
		w += 2 * padding
	}
	oh := (h-kh)/stride + 1
	ow := (w-kw)/stride + 1
	out := New(cout, oh, ow)
	for oc := 0; oc < cout; oc++ {
		var b float32
		if bias != nil {
			b = bias[oc]
		}
		for oy := 0; oy < oh; oy++ {
			for ox := 0; ox < ow; ox++ {
				sum := b
				for ic := 0; ic < cin; ic++ {
					inBase := ic * h * w
					wBase := (oc*cin + ic) * kh * kw
					for ky := 0; ky < kh; ky++ {
						iy := oy*stride + ky
						rowIn := inBase + iy*w
						rowW := wBase + ky*kw
						for kx := 0; kx < kw; kx++ {
							sum += padded.Data[rowIn+ox*stride+kx] * weight.Data[rowW+kx]
						}
					}
				}
				out.Data[(oc*oh+oy)*ow+ox] = sum
			}
		}
	}
	return out, nil
}

// BatchNorm2D applies per-channel affine normalization to a (C,H,W) tensor.
func BatchNorm2D(input *Tensor, mean, varr, gamma, beta []float32, eps float32) (*Tensor, error) {
	if len(input.Shape) != 3 {
		return nil, kerr.New(kerr.BadInput, "tensor: batchnorm2d expects (C,H,W)")
	}
	c, h, w := input.Shape[0], input.Shape[1], input.Shape[2]
	out := input.Clone()
	hw := h * w
	for ch := 0; ch < c; ch++ {
		scale := gamma[ch] / float32(math.Sqrt(float64(varr[ch])+float64(eps)))
		shift := beta[ch] - mean[ch]*scale
		base := ch * hw
		for i := 0; i < hw; i++ {
			out.Data[base+i] = out.Data[base+i]*scale + shift
		}
	}
	return out, nil
}

// MaxPool2D performs 2-D max pooling over a (C,H,W) tensor.
func MaxPool2D(input *Tensor, k, stride int) (*Tensor, error) {
	return pool2D(input, k, stride, true)
}

// AvgPool2D performs 2-D average pooling over a (C,H,W) tensor.
func AvgPool2D(input *Tensor, k, stride int) (*Tensor, error) {
	return pool2D(input, k, stride, false)
}

func pool2D(input *Tensor, k, stride int, useMax bool) (*Tensor, error) {
	if len(input.Shape) != 3 {
		return nil, kerr.New(kerr.BadInput, "tensor: pool2d expects (C,H,W)")
	}
	c, h, w := input.Shape[0], input.Shape[1], input.Shape[2]
	oh := (h-k)/stride + 1
	ow := (w-k)/stride + 1
	out := New(c, oh, ow)
	for ch := 0; ch < c; ch++ {
		inBase := ch * h * w
		outBase := ch * oh * ow
		for oy := 0; oy < oh; oy++ {
			for ox := 0; ox < ow; ox++ {
				var acc float32
				first := true
				for ky := 0; ky < k; ky++ {
					row := inBase + (oy*stride+ky)*w
					for kx := 0; kx < k; kx++ {
						v := input.Data[row+ox*stride+kx]
						if useMax {
							if first || v > acc {
								acc = v
							}
						} else {
							acc += v
						}
						first = false
					}
				}
				if !useMax {
					acc /= float32(k * k)
				}
				out.Data[outBase+oy*ow+ox] = acc
			}
		}
	}
	return out, nil
}

// Interpolate2D performs bilinear resize of a (C,H,W) tensor to (C,outH,outW).
func Interpolate2D(input *Tensor, outH, outW int, alignCorners bool) (*Tensor, error) {
	if len(input.Shape) != 3 {
		return nil, kerr.New(kerr.BadInput, "tensor: interpolate2d expects (C,H,W)")
	}
	c, h, w := input.Shape[0], input.Shape[1], input.Shape[2]
	out := New(c, outH, outW)
	scaleY := float64(h) / float64(outH)
	scaleX := float64(w) / float64(outW)
	if alignCorners && outH > 1 {
		scaleY = float64(h-1) / float64(outH-1)
	}
	if alignCorners && outW > 1 {
		scaleX = float64(w-1) / float64(outW-1)
	}
	for ch := 0; ch < c; ch++ {
		inBase := ch * h * w
		outBase := ch * outH * outW
		for oy := 0; oy < outH; oy++ {
			var sy float64
			if alignCorners {
				sy = float64(oy) * scaleY
			} else {
				sy = (float64(oy)+0.5)*scaleY - 0.5
			}
			y0 := int(math.Floor(sy))
			fy := sy - float64(y0)
			y1 := y0 + 1
			y0 = clampInt(y0, 0, h-1)
			y1 = clampInt(y1, 0, h-1)
			for ox := 0; ox < outW; ox++ {
				var sx float64
				if alignCorners {
					sx = float64(ox) * scaleX
				} else {
					sx = (float64(ox)+0.5)*scaleX - 0.5
				}
				x0 := int(math.Floor(sx))
				fx := sx - float64(x0)
				x1 := x0 + 1
				x0 = clampInt(x0, 0, w-1)
				x1 = clampInt(x1, 0, w-1)
				v00 := float64(input.Data[inBase+y0*w+x0])
				v01 := float64(input.Data[inBase+y0*w+x1])
				v10 := float64(input.Data[inBase+y1*w+x0])
				v11 := float64(input.Data[inBase+y1*w+x1])
				top := v00*(1-fx) + v01*fx
				bot := v10*(1-fx) + v11*fx
				out.Data[outBase+oy*outW+ox] = float32(top*(1-fy) + bot*fy)
			}
		}
	}
	return out, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
