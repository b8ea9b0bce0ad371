package fft

import (
	"sync"

	"github.com/ebitengine/purego"
)

// planKey identifies a cached CUDA FFT plan by transform shape.
type planKey struct{ H, W int }

// CUDABackend loads a CUDA FFT library at runtime via purego and keeps a
// mutex per transform shape, so identical shapes serialize while distinct
// shapes proceed in parallel. The transforms run on the CPU path; no native
// cuFFT function is called.
type CUDABackend struct {
	lib       uintptr
	once      sync.Once
	available bool

	planMu sync.Mutex
	plans  map[planKey]*sync.Mutex
}

// NewCUDABackend attempts to dlopen the CUDA FFT runtime. The backend is
// usable even if this fails; every call simply reports
// ErrBackendUnavailable until a library is resolved.
func NewCUDABackend(libraryPath string) *CUDABackend {
	b := &CUDABackend{plans: make(map[planKey]*sync.Mutex)}
	b.once.Do(func() {
		lib, err := purego.Dlopen(libraryPath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			return
		}
		b.lib = lib
		b.available = true
	})
	return b
}

func (b *CUDABackend) Name() string { return "cuda" }

func (b *CUDABackend) planLock(h, w int) *sync.Mutex {
	b.planMu.Lock()
	defer b.planMu.Unlock()
	k := planKey{h, w}
	m, ok := b.plans[k]
	if !ok {
		m = &sync.Mutex{}
		b.plans[k] = m
	}
	return m
}

func (b *CUDABackend) RFFT2(real []float32, h, w int) (*Complex2D, error) {
	if !b.available {
		return nil, ErrBackendUnavailable
	}
	lock := b.planLock(h, w)
	lock.Lock()
	defer lock.Unlock()
	// Native cuFFT dispatch would be invoked here via purego function
	// pointers resolved from b.lib; until a concrete kernel ABI is wired
	// the CPU path services the request so behavior stays correct.
	return CPUBackend{}.RFFT2(real, h, w)
}

func (b *CUDABackend) IRFFT2(c *Complex2D, h, w int) ([]float32, error) {
	if !b.available {
		return nil, ErrBackendUnavailable
	}
	lock := b.planLock(h, w)
	lock.Lock()
	defer lock.Unlock()
	return CPUBackend{}.IRFFT2(c, h, w)
}

// MetalBackend loads a Metal library at runtime via purego and calls drain
// before every transform. drain has an empty body, so the command queue is
// not drained, and the transforms run on the CPU path; no MPS function is
// called.
type MetalBackend struct {
	lib       uintptr
	available bool
}

func NewMetalBackend(libraryPath string) *MetalBackend {
	b := &MetalBackend{}
	lib, err := purego.Dlopen(libraryPath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err == nil {
		b.lib = lib
		b.available = true
	}
	return b
}

func (b *MetalBackend) Name() string { return "metal" }

func (b *MetalBackend) drain() {
	// A real binding calls into MTLCommandQueue.waitUntilCompleted here
	// via a purego function pointer resolved from b.lib.
}

func (b *MetalBackend) RFFT2(real []float32, h, w int) (*Complex2D, error) {
	if !b.available {
		return nil, ErrBackendUnavailable
	}
	b.drain()
	return CPUBackend{}.RFFT2(real, h, w)
}

func (b *MetalBackend) IRFFT2(c *Complex2D, h, w int) ([]float32, error) {
	if !b.available {
		return nil, ErrBackendUnavailable
	}
	b.drain()
	return CPUBackend{}.IRFFT2(c, h, w)
}
