// Package nn implements the block catalogue shared by the detector,
// inpainter, OCR, and font-attribute models: plain convolutional blocks,
// residual blocks, the Fast Fourier Convolution (FFC) stack the inpainter
// needs, and the small transformer/ViT primitives the OCR and LLM models
// share. Every block is a stateless function of (weights, input).
package nn

import (
	"github.com/koharu-go/koharu/pkg/tensor"
	"github.com/koharu-go/koharu/pkg/tensor/fft"
)

// ConvBnActWeights bundles a conv layer followed by batchnorm and an
// activation, the repeating unit of the YOLO/UNet backbones.
type ConvBnActWeights struct {
	Weight             *tensor.Tensor
	Bias               []float32
	BNMean, BNVar      []float32
	BNGamma, BNBeta    []float32
	Stride, Padding    int
	Activation         string // "silu", "leaky", "relu", "none"
	LeakyNegativeSlope float32
}

func applyActivation(t *tensor.Tensor, kind string, slope float32) *tensor.Tensor {
	switch kind {
	case "silu":
		return tensor.Silu(t)
	case "leaky":
		return tensor.LeakyRelu(t, slope)
	case "relu":
		return tensor.Relu(t)
	case "gelu":
		return tensor.Gelu(t)
	default:
		return t
	}
}

// ConvBnAct runs conv -> batchnorm -> activation.
func ConvBnAct(w *ConvBnActWeights, x *tensor.Tensor) (*tensor.Tensor, error) {
	y, err := tensor.Conv2D(x, w.Weight, w.Bias, w.Stride, w.Padding)
	if err != nil {
		return nil, err
	}
	if w.BNGamma != nil {
		y, err = tensor.BatchNorm2D(y, w.BNMean, w.BNVar, w.BNGamma, w.BNBeta, 1e-5)
		if err != nil {
			return nil, err
		}
	}
	return applyActivation(y, w.Activation, w.LeakyNegativeSlope), nil
}

// DoubleConvWeights is two stacked ConvBnAct layers, the UNet encoder unit.
type DoubleConvWeights struct {
	First, Second *ConvBnActWeights
}

// DoubleConvC3 runs two ConvBnAct layers in sequence.
func DoubleConvC3(w *DoubleConvWeights, x *tensor.Tensor) (*tensor.Tensor, error) {
	y, err := ConvBnAct(w.First, x)
	if err != nil {
		return nil, err
	}
	return ConvBnAct(w.Second, y)
}

// DoubleConvUpC3 upsamples (bilinear x2) then applies DoubleConvC3,
// the UNet decoder unit.
func DoubleConvUpC3(w *DoubleConvWeights, x *tensor.Tensor) (*tensor.Tensor, error) {
	c, h, wid := x.Shape[0], x.Shape[1], x.Shape[2]
	up, err := tensor.Interpolate2D(x, h*2, wid*2, false)
	if err != nil {
		return nil, err
	}
	_ = c
	return DoubleConvC3(w, up)
}

// UpsampleConvWeights is the transpose-conv-equivalent upsample the LaMa
// decoder uses: bilinear x2 upsample followed by a single conv.
type UpsampleConvWeights struct {
	Conv *ConvBnActWeights
}

func UpsampleConv(w *UpsampleConvWeights, x *tensor.Tensor) (*tensor.Tensor, error) {
	c, h, wid := x.Shape[0], x.Shape[1], x.Shape[2]
	up, err := tensor.Interpolate2D(x, h*2, wid*2, false)
	if err != nil {
		return nil, err
	}
	_ = c
	return ConvBnAct(w.Conv, up)
}

// BasicBlockWeights is a ResNet-18/34 style two-conv residual block.
type BasicBlockWeights struct {
	Conv1, Conv2 *ConvBnActWeights
	Downsample   *ConvBnActWeights // nil if input/output channels+stride match
}

func BasicBlock(w *BasicBlockWeights, x *tensor.Tensor) (*tensor.Tensor, error) {
	identity := x
	y, err := ConvBnAct(w.Conv1, x)
	if err != nil {
		return nil, err
	}
	y, err = ConvBnAct(w.Conv2, y)
	if err != nil {
		return nil, err
	}
	if w.Downsample != nil {
		identity, err = ConvBnAct(w.Downsample, x)
		if err != nil {
			return nil, err
		}
	}
	sum, err := tensor.Add(y, identity)
	if err != nil {
		return nil, err
	}
	return tensor.Relu(sum), nil
}

// BottleneckWeights is a ResNet-50+ style three-conv residual block.
type BottleneckWeights struct {
	Conv1, Conv2, Conv3 *ConvBnActWeights
	Downsample          *ConvBnActWeights
}

func Bottleneck(w *BottleneckWeights, x *tensor.Tensor) (*tensor.Tensor, error) {
	identity := x
	y, err := ConvBnAct(w.Conv1, x)
	if err != nil {
		return nil, err
	}
	y, err = ConvBnAct(w.Conv2, y)
	if err != nil {
		return nil, err
	}
	y, err = ConvBnAct(w.Conv3, y)
	if err != nil {
		return nil, err
	}
	if w.Downsample != nil {
		identity, err = ConvBnAct(w.Downsample, x)
		if err != nil {
			return nil, err
		}
	}
	sum, err := tensor.Add(y, identity)
	if err != nil {
		return nil, err
	}
	return tensor.Relu(sum), nil
}
