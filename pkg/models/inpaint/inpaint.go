// Package inpaint implements the LaMa-style Fourier Convolution inpainter:
// a downsampling stem, a stack of FFCResBlocks operating on split
// local/global branches, and an upsampling decoder back to RGB.
package inpaint

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/koharu-go/koharu/pkg/kerr"
	"github.com/koharu-go/koharu/pkg/nn"
	"github.com/koharu-go/koharu/pkg/tensor"
)

// Weights holds every stage of the generator.
type Weights struct {
	Down1, Down2, Down3 *nn.ConvBnActWeights
	ResBlocks           []*nn.FFCResBlockWeights
	InitialGlobalRatio  float32
	Up1, Up2, Up3       *nn.UpsampleConvWeights
	ToRGB               *nn.ConvBnActWeights
}

// Model runs the LaMa forward pass over a masked RGB image.
type Model struct {
	Weights Weights
}

func New(w Weights) *Model { return &Model{Weights: w} }

// Run inpaints the masked region of img, returning a full RGB image the
// same size as the input.
func (m *Model) Run(img, mask image.Image) (image.Image, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	in := toInputTensor(img, mask)

	x, err := nn.ConvBnAct(m.Weights.Down1, in)
	if err != nil {
		return nil, kerr.Wrap(kerr.BackendFailure, "inpaint: down1", err)
	}
	x, err = nn.ConvBnAct(m.Weights.Down2, x)
	if err != nil {
		return nil, kerr.Wrap(kerr.BackendFailure, "inpaint: down2", err)
	}
	x, err = nn.ConvBnAct(m.Weights.Down3, x)
	if err != nil {
		return nil, kerr.Wrap(kerr.BackendFailure, "inpaint: down3", err)
	}

	xl, xg := splitChannels(x, m.Weights.InitialGlobalRatio)
	for i, rb := range m.Weights.ResBlocks {
		xl, xg, err = nn.FFCResBlock(rb, xl, xg)
		if err != nil {
			return nil, kerr.Wrap(kerr.BackendFailure, "inpaint: res block", err)
		}
		_ = i
	}
	x = mergeChannels(xl, xg)

	x, err = nn.UpsampleConv(m.Weights.Up1, x)
	if err != nil {
		return nil, kerr.Wrap(kerr.BackendFailure, "inpaint: up1", err)
	}
	x, err = nn.UpsampleConv(m.Weights.Up2, x)
	if err != nil {
		return nil, kerr.Wrap(kerr.BackendFailure, "inpaint: up2", err)
	}
	x, err = nn.UpsampleConv(m.Weights.Up3, x)
	if err != nil {
		return nil, kerr.Wrap(kerr.BackendFailure, "inpaint: up3", err)
	}
	rgb, err := nn.ConvBnAct(m.Weights.ToRGB, x)
	if err != nil {
		return nil, kerr.Wrap(kerr.BackendFailure, "inpaint: to_rgb", err)
	}

	if rgb.Shape[1] != h || rgb.Shape[2] != w {
		rgb, err = tensor.Interpolate2D(rgb, h, w, false)
		if err != nil {
			return nil, kerr.Wrap(kerr.BackendFailure, "inpaint: resize output", err)
		}
	}
	return blendMasked(img, mask, rgb, w, h), nil
}

func splitChannels(x *tensor.Tensor, ratio float32) (*tensor.Tensor, *tensor.Tensor) {
	c, h, w := x.Shape[0], x.Shape[1], x.Shape[2]
	gc := int(float32(c) * ratio)
	lc := c - gc
	if lc == 0 {
		return nil, x
	}
	if gc == 0 {
		return x, nil
	}
	xl := tensor.New(lc, h, w)
	xg := tensor.New(gc, h, w)
	copy(xl.Data, x.Data[:lc*h*w])
	copy(xg.Data, x.Data[lc*h*w:])
	return xl, xg
}

func mergeChannels(xl, xg *tensor.Tensor) *tensor.Tensor {
	if xl == nil {
		return xg
	}
	if xg == nil {
		return xl
	}
	h, w := xl.Shape[1], xl.Shape[2]
	out := tensor.New(xl.Shape[0]+xg.Shape[0], h, w)
	copy(out.Data, xl.Data)
	copy(out.Data[len(xl.Data):], xg.Data)
	return out
}

// toInputTensor stacks the RGB image and the binary mask into a 4-channel
// (C,H,W) tensor, the conditioning LaMa's generator expects.
func toInputTensor(img, mask image.Image) *tensor.Tensor {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := tensor.New(4, h, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			mr, _, _, _ := mask.At(b.Min.X+x, b.Min.Y+y).RGBA()
			i := y*w + x
			out.Data[0*h*w+i] = float32(r) / 65535.0
			out.Data[1*h*w+i] = float32(g) / 65535.0
			out.Data[2*h*w+i] = float32(bl) / 65535.0
			out.Data[3*h*w+i] = float32(mr) / 65535.0
		}
	}
	return out
}

func blendMasked(img, mask image.Image, rgb *tensor.Tensor, w, h int) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			mr, _, _, _ := mask.At(img.Bounds().Min.X+x, img.Bounds().Min.Y+y).RGBA()
			if mr == 0 {
				continue
			}
			i := y*w + x
			r := clamp01(rgb.Data[0*h*w+i]) * 255
			g := clamp01(rgb.Data[1*h*w+i]) * 255
			bl := clamp01(rgb.Data[2*h*w+i]) * 255
			out.SetRGBA(x, y, color.RGBA{R: uint8(r), G: uint8(g), B: uint8(bl), A: 255})
		}
	}
	return out
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
