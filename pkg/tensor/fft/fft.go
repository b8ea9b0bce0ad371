// Package fft implements the real 2-D FFT pair (rfft2/irfft2) the LaMa
// inpainting model's Fast Fourier Convolution block needs, with the same
// forward-unnormalized / inverse-scaled-by-1/(H*W) convention as the
// reference model. A CPU backend is always available. The CUDA and Metal
// backends load a native library at runtime and report
// ErrBackendUnavailable when it cannot be loaded; when it loads, they still
// run the CPU transform.
package fft

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/koharu-go/koharu/pkg/kerr"
)

// Complex2D is a dense row-major (H, W) array of complex128.
type Complex2D struct {
	H, W int
	Data []complex128
}

func newComplex2D(h, w int) *Complex2D {
	return &Complex2D{H: h, W: w, Data: make([]complex128, h*w)}
}

// ErrBackendUnavailable is returned by non-CPU backends when the native
// library or device cannot be resolved.
var ErrBackendUnavailable = kerr.New(kerr.ResourceUnavailable, "fft: backend unavailable")

// Backend executes rfft2/irfft2 for one compute target.
type Backend interface {
	RFFT2(real []float32, h, w int) (*Complex2D, error)
	IRFFT2(c *Complex2D, h, w int) ([]float32, error)
	Name() string
}

// planCache memoizes the twiddle-factor tables per transform length so
// repeated calls at the same tile size don't re-derive them.
type planCache struct {
	mu    sync.Mutex
	plans map[int][]complex128
}

var globalPlans = &planCache{plans: make(map[int][]complex128)}

func (pc *planCache) twiddles(n int) []complex128 {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if t, ok := pc.plans[n]; ok {
		return t
	}
	t := make([]complex128, n)
	for k := 0; k < n; k++ {
		theta := -2 * math.Pi * float64(k) / float64(n)
		t[k] = cmplx.Rect(1, theta)
	}
	pc.plans[n] = t
	return t
}

// dft1 computes a naive O(n^2) DFT along one axis; correctness over raw
// speed, since tile sizes here are small (512 or less) and fixed.
func dft1(in []complex128, inverse bool) []complex128 {
	n := len(in)
	out := make([]complex128, n)
	tw := globalPlans.twiddles(n)
	for k := 0; k < n; k++ {
		var sum complex128
		for t := 0; t < n; t++ {
			idx := (k * t) % n
			w := tw[idx]
			if inverse {
				w = cmplx.Conj(w)
			}
			sum += in[t] * w
		}
		out[k] = sum
	}
	return out
}

// CPUBackend implements Backend using row-then-column naive DFTs.
type CPUBackend struct{}

func (CPUBackend) Name() string { return "cpu" }

func (CPUBackend) RFFT2(real []float32, h, w int) (*Complex2D, error) {
	if len(real) != h*w {
		return nil, kerr.New(kerr.BadInput, "fft: rfft2 input size mismatch")
	}
	tmp := newComplex2D(h, w)
	for y := 0; y < h; y++ {
		row := make([]complex128, w)
		for x := 0; x < w; x++ {
			row[x] = complex(float64(real[y*w+x]), 0)
		}
		out := dft1(row, false)
		copy(tmp.Data[y*w:(y+1)*w], out)
	}
	result := newComplex2D(h, w)
	for x := 0; x < w; x++ {
		col := make([]complex128, h)
		for y := 0; y < h; y++ {
			col[y] = tmp.Data[y*w+x]
		}
		out := dft1(col, false)
		for y := 0; y < h; y++ {
			result.Data[y*w+x] = out[y]
		}
	}
	return result, nil
}

func (CPUBackend) IRFFT2(c *Complex2D, h, w int) ([]float32, error) {
	if c.H != h || c.W != w {
		return nil, kerr.New(kerr.BadInput, "fft: irfft2 shape mismatch")
	}
	tmp := newComplex2D(h, w)
	for x := 0; x < w; x++ {
		col := make([]complex128, h)
		for y := 0; y < h; y++ {
			col[y] = c.Data[y*w+x]
		}
		out := dft1(col, true)
		for y := 0; y < h; y++ {
			tmp.Data[y*w+x] = out[y]
		}
	}
	real := make([]float32, h*w)
	scale := 1.0 / float64(h*w)
	for y := 0; y < h; y++ {
		row := tmp.Data[y*w : (y+1)*w]
		out := dft1(row, true)
		for x := 0; x < w; x++ {
			real[y*w+x] = float32(cmplxReal(out[x]) * scale)
		}
	}
	return real, nil
}

func cmplxReal(c complex128) float64 { return real(c) }

// RFFT2 runs the forward transform on the given backend, falling back to
// CPU when the requested backend is unavailable.
func RFFT2(b Backend, real []float32, h, w int) (*Complex2D, error) {
	out, err := b.RFFT2(real, h, w)
	if err == ErrBackendUnavailable {
		return CPUBackend{}.RFFT2(real, h, w)
	}
	return out, err
}

// IRFFT2 runs the inverse transform on the given backend, falling back to
// CPU when the requested backend is unavailable.
func IRFFT2(b Backend, c *Complex2D, h, w int) ([]float32, error) {
	out, err := b.IRFFT2(c, h, w)
	if err == ErrBackendUnavailable {
		return CPUBackend{}.IRFFT2(c, h, w)
	}
	return out, err
}
