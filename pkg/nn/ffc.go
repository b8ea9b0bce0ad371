package nn

import (
	"github.com/koharu-go/koharu/pkg/tensor"
	"github.com/koharu-go/koharu/pkg/tensor/fft"
)

// SpectralTransformWeights holds the conv applied in the frequency domain
// (on the stacked real/imaginary channels) that gives FFC its global
// receptive field.
type SpectralTransformWeights struct {
	ConvIn  *ConvBnActWeights // 1x1, channels -> channels/2
	ConvFU  *ConvBnActWeights // fourier-unit conv over 2x the half-channels
	ConvOut *ConvBnActWeights // 1x1, channels/2 -> channels
	Backend fft.Backend
}

// SpectralTransform runs conv_in -> rfft2 -> conv over (real,imag) stack ->
// irfft2 -> conv_out, the global branch of an FFC block.
func SpectralTransform(w *SpectralTransformWeights, x *tensor.Tensor) (*tensor.Tensor, error) {
	half, err := ConvBnAct(w.ConvIn, x)
	if err != nil {
		return nil, err
	}
	c, h, wid := half.Shape[0], half.Shape[1], half.Shape[2]
	backend := w.Backend
	if backend == nil {
		backend = fft.CPUBackend{}
	}

	// Stack real and imaginary parts per channel into a (2*C, H, W) tensor
	// for the frequency-domain conv, matching the reference fourier unit.
	stacked := tensor.New(2*c, h, wid)
	for ch := 0; ch < c; ch++ {
		plane := half.Data[ch*h*wid : (ch+1)*h*wid]
		spec, err := fft.RFFT2(backend, plane, h, wid)
		if err != nil {
			return nil, err
		}
		for i, v := range spec.Data {
			stacked.Data[(2*ch)*h*wid+i] = float32(real(v))
			stacked.Data[(2*ch+1)*h*wid+i] = float32(imag(v))
		}
	}

	freqOut, err := ConvBnAct(w.ConvFU, stacked)
	if err != nil {
		return nil, err
	}

	spatial := tensor.New(c, h, wid)
	for ch := 0; ch < c; ch++ {
		spec := &fft.Complex2D{H: h, W: wid, Data: make([]complex128, h*wid)}
		for i := range spec.Data {
			re := freqOut.Data[(2*ch)*h*wid+i]
			im := freqOut.Data[(2*ch+1)*h*wid+i]
			spec.Data[i] = complex(float64(re), float64(im))
		}
		plane, err := fft.IRFFT2(backend, spec, h, wid)
		if err != nil {
			return nil, err
		}
		copy(spatial.Data[ch*h*wid:(ch+1)*h*wid], plane)
	}

	return ConvBnAct(w.ConvOut, spatial)
}

// FFCWeights splits input channels into a local ("l") and global ("g")
// branch and mixes convolutions between them, per the Fast Fourier
// Convolution design: l2l/l2g/g2l convolutions plus a spectral g2g branch.
type FFCWeights struct {
	RatioGin, RatioGout float32
	ConvL2L, ConvL2G    *ConvBnActWeights
	ConvG2L             *ConvBnActWeights
	Spectral            *SpectralTransformWeights
}

// FFC splits x into local/global channel groups by RatioGin, mixes them,
// and recombines by RatioGout.
func FFC(w *FFCWeights, xl, xg *tensor.Tensor) (outL, outG *tensor.Tensor, err error) {
	var l2l, l2g, g2l, g2g *tensor.Tensor

	if w.ConvL2L != nil && xl != nil {
		l2l, err = ConvBnAct(w.ConvL2L, xl)
		if err != nil {
			return nil, nil, err
		}
	}
	if w.ConvL2G != nil && xl != nil {
		l2g, err = ConvBnAct(w.ConvL2G, xl)
		if err != nil {
			return nil, nil, err
		}
	}
	if w.ConvG2L != nil && xg != nil {
		g2l, err = ConvBnAct(w.ConvG2L, xg)
		if err != nil {
			return nil, nil, err
		}
	}
	if w.Spectral != nil && xg != nil {
		g2g, err = SpectralTransform(w.Spectral, xg)
		if err != nil {
			return nil, nil, err
		}
	}

	outL = sumOptional(l2l, g2l)
	outG = sumOptional(l2g, g2g)
	return outL, outG, nil
}

func sumOptional(a, b *tensor.Tensor) *tensor.Tensor {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	default:
		sum, err := tensor.Add(a, b)
		if err != nil {
			return a
		}
		return sum
	}
}

// FFCBnActWeights wraps FFC with per-branch batchnorm+activation.
type FFCBnActWeights struct {
	FFC        *FFCWeights
	BNActL     *ConvBnActWeights // Weight unused; only BN*/Activation fields apply
	BNActG     *ConvBnActWeights
}

// FFCBnAct runs FFC then applies batchnorm+activation independently to
// each branch's output.
func FFCBnAct(w *FFCBnActWeights, xl, xg *tensor.Tensor) (*tensor.Tensor, *tensor.Tensor, error) {
	outL, outG, err := FFC(w.FFC, xl, xg)
	if err != nil {
		return nil, nil, err
	}
	if outL != nil && w.BNActL != nil && w.BNActL.BNGamma != nil {
		outL, err = tensor.BatchNorm2D(outL, w.BNActL.BNMean, w.BNActL.BNVar, w.BNActL.BNGamma, w.BNActL.BNBeta, 1e-5)
		if err != nil {
			return nil, nil, err
		}
	}
	if outL != nil {
		outL = applyActivation(outL, w.BNActL.Activation, w.BNActL.LeakyNegativeSlope)
	}
	if outG != nil && w.BNActG != nil && w.BNActG.BNGamma != nil {
		outG, err = tensor.BatchNorm2D(outG, w.BNActG.BNMean, w.BNActG.BNVar, w.BNActG.BNGamma, w.BNActG.BNBeta, 1e-5)
		if err != nil {
			return nil, nil, err
		}
	}
	if outG != nil {
		outG = applyActivation(outG, w.BNActG.Activation, w.BNActG.LeakyNegativeSlope)
	}
	return outL, outG, nil
}

// FFCResBlockWeights chains two FFCBnAct stages with a residual add, the
// repeating unit in LaMa's bottleneck (18 of these at L=128/G=384).
type FFCResBlockWeights struct {
	First, Second *FFCBnActWeights
}

// FFCResBlock runs two FFCBnAct stages and adds the residual per branch.
func FFCResBlock(w *FFCResBlockWeights, xl, xg *tensor.Tensor) (*tensor.Tensor, *tensor.Tensor, error) {
	l1, g1, err := FFCBnAct(w.First, xl, xg)
	if err != nil {
		return nil, nil, err
	}
	l2, g2, err := FFCBnAct(w.Second, l1, g1)
	if err != nil {
		return nil, nil, err
	}
	outL := sumOptional(l2, xl)
	outG := sumOptional(g2, xg)
	return outL, outG, nil
}
