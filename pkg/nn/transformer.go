package nn

import (
	"math"

	"github.com/koharu-go/koharu/pkg/kerr"
	"github.com/koharu-go/koharu/pkg/tensor"
)

// PatchEmbed splits a (C,H,W) image into non-overlapping patch x patch
// blocks and projects each into an embedding via a strided conv, the ViT
// front end the OCR encoder uses.
func PatchEmbed(weight *tensor.Tensor, bias []float32, x *tensor.Tensor, patch int) (*tensor.Tensor, error) {
	y, err := tensor.Conv2D(x, weight, bias, patch, 0)
	if err != nil {
		return nil, err
	}
	// (embedDim, gridH, gridW) -> (numPatches, embedDim)
	embedDim, gh, gw := y.Shape[0], y.Shape[1], y.Shape[2]
	perm, err := y.Reshape(embedDim, gh*gw)
	if err != nil {
		return nil, err
	}
	return perm.Permute(1, 0)
}

// RmsNorm applies root-mean-square normalization over the last dimension.
func RmsNorm(x *tensor.Tensor, weight []float32, eps float32) (*tensor.Tensor, error) {
	n := len(x.Shape)
	last := x.Shape[n-1]
	if len(weight) != last {
		return nil, kerr.New(kerr.BadInput, "nn: rmsnorm weight size mismatch")
	}
	out := x.Clone()
	rows := x.Numel() / last
	for r := 0; r < rows; r++ {
		base := r * last
		var sumSq float64
		for i := 0; i < last; i++ {
			v := float64(out.Data[base+i])
			sumSq += v * v
		}
		rms := math.Sqrt(sumSq/float64(last) + float64(eps))
		for i := 0; i < last; i++ {
			out.Data[base+i] = float32(float64(out.Data[base+i])/rms) * weight[i]
		}
	}
	return out, nil
}

// LayerNorm applies standard layer normalization over the last dimension.
func LayerNorm(x *tensor.Tensor, weight, bias []float32, eps float32) (*tensor.Tensor, error) {
	n := len(x.Shape)
	last := x.Shape[n-1]
	out := x.Clone()
	rows := x.Numel() / last
	for r := 0; r < rows; r++ {
		base := r * last
		var mean float64
		for i := 0; i < last; i++ {
			mean += float64(out.Data[base+i])
		}
		mean /= float64(last)
		var varr float64
		for i := 0; i < last; i++ {
			d := float64(out.Data[base+i]) - mean
			varr += d * d
		}
		varr /= float64(last)
		denom := math.Sqrt(varr + float64(eps))
		for i := 0; i < last; i++ {
			norm := (float64(out.Data[base+i]) - mean) / denom
			out.Data[base+i] = float32(norm)*weight[i] + bias[i]
		}
	}
	return out, nil
}

// RoPEFreqs precomputes the rotary position-embedding cos/sin tables for
// headDim at the given base (typically 10000) up to maxPos positions.
func RoPEFreqs(headDim, maxPos int, base float64) (cos, sin []float32) {
	half := headDim / 2
	cos = make([]float32, maxPos*half)
	sin = make([]float32, maxPos*half)
	for pos := 0; pos < maxPos; pos++ {
		for i := 0; i < half; i++ {
			freq := 1.0 / math.Pow(base, float64(2*i)/float64(headDim))
			angle := float64(pos) * freq
			cos[pos*half+i] = float32(math.Cos(angle))
			sin[pos*half+i] = float32(math.Sin(angle))
		}
	}
	return cos, sin
}

// ApplyRoPE rotates the (seq, headDim) tensor in place using the cos/sin
// tables starting at posOffset (the KV-cache position for incremental
// decoding).
func ApplyRoPE(x *tensor.Tensor, cos, sin []float32, headDim, posOffset int) {
	half := headDim / 2
	seq := x.Shape[0]
	for s := 0; s < seq; s++ {
		pos := posOffset + s
		base := s * headDim
		cbase := pos * half
		for i := 0; i < half; i++ {
			x0 := x.Data[base+i]
			x1 := x.Data[base+half+i]
			c := cos[cbase+i]
			sn := sin[cbase+i]
			x.Data[base+i] = x0*c - x1*sn
			x.Data[base+half+i] = x0*sn + x1*c
		}
	}
}

// KVCache holds per-layer accumulated key/value tensors for incremental
// decoding. Position 0 is overwritten on first use; subsequent calls
// append, matching the reference generation loop.
type KVCache struct {
	Keys, Values []*tensor.Tensor // one entry per layer
}

// NewKVCache allocates an empty cache for numLayers.
func NewKVCache(numLayers int) *KVCache {
	return &KVCache{Keys: make([]*tensor.Tensor, numLayers), Values: make([]*tensor.Tensor, numLayers)}
}

// Append extends layer's cached key/value with the newly computed k/v for
// the current step, overwriting rather than appending when the cache is
// still empty at position 0.
func (c *KVCache) Append(layer int, k, v *tensor.Tensor) (*tensor.Tensor, *tensor.Tensor, error) {
	if c.Keys[layer] == nil {
		c.Keys[layer], c.Values[layer] = k, v
		return k, v, nil
	}
	nk, err := tensor.Cat(0, c.Keys[layer], k)
	if err != nil {
		return nil, nil, err
	}
	nv, err := tensor.Cat(0, c.Values[layer], v)
	if err != nil {
		return nil, nil, err
	}
	c.Keys[layer], c.Values[layer] = nk, nv
	return nk, nv, nil
}

// SeqLen returns the cached sequence length for layer, or 0 if empty.
func (c *KVCache) SeqLen(layer int) int {
	if c.Keys[layer] == nil {
		return 0
	}
	return c.Keys[layer].Shape[0]
}

// ScaledDotProductAttention computes softmax(QK^T/sqrt(d))V for a single
// head; q is (seqQ, d), k/v are (seqKV, d). causalOffset positions the
// query block so masking can exclude future keys during incremental
// decoding.
func ScaledDotProductAttention(q, k, v *tensor.Tensor, causal bool, causalOffset int) (*tensor.Tensor, error) {
	d := q.Shape[len(q.Shape)-1]
	kt, err := k.Permute(1, 0)
	if err != nil {
		return nil, err
	}
	scores, err := tensor.MatMul(q, kt)
	if err != nil {
		return nil, err
	}
	scale := float32(1 / math.Sqrt(float64(d)))
	scores = tensor.Scale(scores, scale)

	if causal {
		seqQ, seqKV := scores.Shape[0], scores.Shape[1]
		for i := 0; i < seqQ; i++ {
			for j := 0; j < seqKV; j++ {
				if j > causalOffset+i {
					scores.Data[i*seqKV+j] = float32(math.Inf(-1))
				}
			}
		}
	}

	weights := tensor.Softmax(scores)
	return tensor.MatMul(weights, v)
}

// QMatMulWeights holds an int8-quantized weight matrix with a per-row
// scale, the storage format GGUF models use for matmul weights.
type QMatMulWeights struct {
	Quant   []int8
	Scales  []float32 // one per output row
	InDim   int
	OutDim  int
}

// QMatMul dequantizes on the fly and multiplies x (seq, InDim) by the
// quantized weight transposed, producing (seq, OutDim).
func QMatMul(w *QMatMulWeights, x *tensor.Tensor) (*tensor.Tensor, error) {
	if x.Shape[len(x.Shape)-1] != w.InDim {
		return nil, kerr.New(kerr.BadInput, "nn: qmatmul input dim mismatch")
	}
	seq := x.Numel() / w.InDim
	out := tensor.New(seq, w.OutDim)
	for s := 0; s < seq; s++ {
		xBase := s * w.InDim
		for o := 0; o < w.OutDim; o++ {
			scale := w.Scales[o]
			wBase := o * w.InDim
			var acc float32
			for i := 0; i < w.InDim; i++ {
				acc += x.Data[xBase+i] * float32(w.Quant[wBase+i])
			}
			out.Data[s*w.OutDim+o] = acc * scale
		}
	}
	return out, nil
}
