// Package tensor implements a minimal dense float32 tensor used as the
// shared numeric substrate for every model in pkg/models. It is a plain
// row-major, contiguous-stride tensor — there is no autograd, no lazy
// graph, and no broadcasting beyond what each op documents explicitly.
package tensor

import (
	"fmt"

	"github.com/koharu-go/koharu/pkg/kerr"
)

// Tensor is a dense, row-major, contiguous float32 array with an explicit
// shape. Operations that change shape allocate a new Data slice, except
// Reshape, which returns a view sharing the backing array (Permute always
// copies).
type Tensor struct {
	Shape []int
	Data  []float32
}

// New allocates a zeroed tensor of the given shape.
func New(shape ...int) *Tensor {
	return &Tensor{Shape: append([]int(nil), shape...), Data: make([]float32, numel(shape))}
}

// FromSlice wraps data as a tensor of the given shape without copying.
func FromSlice(data []float32, shape ...int) (*Tensor, error) {
	if numel(shape) != len(data) {
		return nil, kerr.New(kerr.BadInput, fmt.Sprintf("tensor: shape %v does not match %d elements", shape, len(data)))
	}
	return &Tensor{Shape: append([]int(nil), shape...), Data: data}, nil
}

func numel(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// Numel returns the total element count.
func (t *Tensor) Numel() int { return len(t.Data) }

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	out := &Tensor{Shape: append([]int(nil), t.Shape...), Data: make([]float32, len(t.Data))}
	copy(out.Data, t.Data)
	return out
}

// Strides returns the row-major strides for the tensor's shape.
func (t *Tensor) Strides() []int {
	s := make([]int, len(t.Shape))
	acc := 1
	for i := len(t.Shape) - 1; i >= 0; i-- {
		s[i] = acc
		acc *= t.Shape[i]
	}
	return s
}

// Reshape returns a view over the same data with a new shape (must match
// element count).
func (t *Tensor) Reshape(shape ...int) (*Tensor, error) {
	if numel(shape) != len(t.Data) {
		return nil, kerr.New(kerr.BadInput, fmt.Sprintf("tensor: cannot reshape %v to %v", t.Shape, shape))
	}
	return &Tensor{Shape: append([]int(nil), shape...), Data: t.Data}, nil
}

// Permute returns a new tensor with axes reordered; always copies since
// a permuted tensor is generally non-contiguous.
func (t *Tensor) Permute(axes ...int) (*Tensor, error) {
	if len(axes) != len(t.Shape) {
		return nil, kerr.New(kerr.BadInput, "tensor: permute axis count mismatch")
	}
	newShape := make([]int, len(axes))
	for i, a := range axes {
		newShape[i] = t.Shape[a]
	}
	oldStrides := t.Strides()
	out := New(newShape...)
	outStrides := out.Strides()
	idx := make([]int, len(newShape))
	for flat := range out.Data {
		rem := flat
		for i, s := range outStrides {
			idx[i] = rem / s
			rem %= s
		}
		srcOff := 0
		for i, a := range axes {
			srcOff += idx[i] * oldStrides[a]
		}
		out.Data[flat] = t.Data[srcOff]
	}
	return out, nil
}

// Narrow returns a copy of the sub-tensor along dim [start, start+length).
func (t *Tensor) Narrow(dim, start, length int) (*Tensor, error) {
	if dim < 0 || dim >= len(t.Shape) || start < 0 || length < 0 || start+length > t.Shape[dim] {
		return nil, kerr.New(kerr.BadInput, "tensor: narrow out of range")
	}
	strides := t.Strides()
	newShape := append([]int(nil), t.Shape...)
	newShape[dim] = length
	out := New(newShape...)
	outer := 1
	for i := 0; i < dim; i++ {
		outer *= t.Shape[i]
	}
	inner := strides[dim]
	rowLen := length * inner
	fullRow := t.Shape[dim] * inner
	for o := 0; o < outer; o++ {
		srcBase := o*fullRow + start*inner
		dstBase := o * rowLen
		copy(out.Data[dstBase:dstBase+rowLen], t.Data[srcBase:srcBase+rowLen])
	}
	return out, nil
}

// Cat concatenates tensors along dim. All tensors must share every other
// dimension.
func Cat(dim int, ts ...*Tensor) (*Tensor, error) {
	if len(ts) == 0 {
		return nil, kerr.New(kerr.BadInput, "tensor: cat requires at least one tensor")
	}
	shape := append([]int(nil), ts[0].Shape...)
	total := 0
	for _, t := range ts {
		total += t.Shape[dim]
	}
	shape[dim] = total
	out := New(shape...)
	strides := out.Strides()
	outer := 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	inner := strides[dim]
	offset := 0
	for _, t := range ts {
		rowLen := t.Shape[dim] * inner
		fullOutRow := total * inner
		tStrides := t.Strides()
		tFullRow := t.Shape[dim] * tStrides[dim]
		_ = fullOutRow
		for o := 0; o < outer; o++ {
			dstBase := o*total*inner + offset*inner
			srcBase := o * tFullRow
			copy(out.Data[dstBase:dstBase+rowLen], t.Data[srcBase:srcBase+rowLen])
		}
		offset += t.Shape[dim]
	}
	return out, nil
}

// Stack stacks tensors along a new leading dimension.
func Stack(ts ...*Tensor) (*Tensor, error) {
	if len(ts) == 0 {
		return nil, kerr.New(kerr.BadInput, "tensor: stack requires at least one tensor")
	}
	elemShape := ts[0].Shape
	shape := append([]int{len(ts)}, elemShape...)
	out := New(shape...)
	elemSize := numel(elemShape)
	for i, t := range ts {
		copy(out.Data[i*elemSize:(i+1)*elemSize], t.Data)
	}
	return out, nil
}

// Flip reverses the tensor along dim.
func (t *Tensor) Flip(dim int) *Tensor {
	out := t.Clone()
	strides := t.Strides()
	outer := 1
	for i := 0; i < dim; i++ {
		outer *= t.Shape[i]
	}
	n := t.Shape[dim]
	inner := strides[dim]
	for o := 0; o < outer; o++ {
		for i := 0; i < n; i++ {
			srcBase := o*n*inner + i*inner
			dstBase := o*n*inner + (n-1-i)*inner
			copy(out.Data[dstBase:dstBase+inner], t.Data[srcBase:srcBase+inner])
		}
	}
	return out
}

// Pad2D reflect- or zero-pads the last two dimensions by pad on every side.
func (t *Tensor) Pad2D(pad int, reflect bool) (*Tensor, error) {
	if len(t.Shape) < 2 {
		return nil, kerr.New(kerr.BadInput, "tensor: pad2d requires rank >= 2")
	}
	n := len(t.Shape)
	h, w := t.Shape[n-2], t.Shape[n-1]
	newShape := append([]int(nil), t.Shape...)
	newShape[n-2] = h + 2*pad
	newShape[n-1] = w + 2*pad
	out := New(newShape...)
	outer := numel(t.Shape[:n-2])
	for o := 0; o < outer; o++ {
		srcBase := o * h * w
		dstBase := o * (h + 2*pad) * (w + 2*pad)
		for y := 0; y < h+2*pad; y++ {
			for x := 0; x < w+2*pad; x++ {
				sy := y - pad
				sx := x - pad
				if reflect {
					sy = reflectIndex(sy, h)
					sx = reflectIndex(sx, w)
				} else {
					if sy < 0 || sy >= h || sx < 0 || sx >= w {
						continue
					}
				}
				out.Data[dstBase+y*(w+2*pad)+x] = t.Data[srcBase+sy*w+sx]
			}
		}
	}
	return out, nil
}

func reflectIndex(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * (n - 1)
	i = ((i % period) + period) % period
	if i >= n {
		i = period - i
	}
	return i
}
