package fft

import (
	"math"
	"math/rand"
	"sync"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	h, w := 16, 16
	r := rand.New(rand.NewSource(1))
	real := make([]float32, h*w)
	for i := range real {
		real[i] = float32(r.NormFloat64())
	}
	b := CPUBackend{}
	spec, err := b.RFFT2(real, h, w)
	if err != nil {
		t.Fatalf("rfft2: %v", err)
	}
	back, err := b.IRFFT2(spec, h, w)
	if err != nil {
		t.Fatalf("irfft2: %v", err)
	}
	var maxErr float64
	for i := range real {
		d := math.Abs(float64(real[i] - back[i]))
		if d > maxErr {
			maxErr = d
		}
	}
	if maxErr >= 1e-3 {
		t.Fatalf("round trip error %v >= 1e-3", maxErr)
	}
}

func TestCUDAReportsUnavailableWithoutLibrary(t *testing.T) {
	b := &CUDABackend{plans: make(map[planKey]*sync.Mutex)}
	_, err := b.RFFT2(make([]float32, 4), 2, 2)
	if err != ErrBackendUnavailable {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}
