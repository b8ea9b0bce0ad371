package inpaint

import (
	"image"
	"image/draw"
	"math"
)

// DefaultTileSize and DefaultOverlap match the reference tiled-inpaint
// driver: 512-pixel square tiles with a 128-pixel overlap, stride =
// tile - overlap.
const (
	DefaultTileSize = 512
	DefaultOverlap  = 128
)

// RunTiled decomposes img into DefaultTileSize tiles with DefaultOverlap
// overlap, inpaints each tile independently, and blends the results with
// raised-cosine tapered weights so tile seams don't show.
func (m *Model) RunTiled(img, mask image.Image) (image.Image, error) {
	return m.runTiled(img, mask, DefaultTileSize, DefaultOverlap)
}

func (m *Model) runTiled(img, mask image.Image, tileSize, overlap int) (image.Image, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= tileSize && h <= tileSize {
		return m.Run(img, mask)
	}

	stride := tileSize - overlap
	if stride <= 0 {
		stride = tileSize
	}

	accum := make([]float64, w*h*3)
	weight := make([]float64, w*h)

	for ty := 0; ty < h; ty += stride {
		for tx := 0; tx < w; tx += stride {
			tw, th := tileSize, tileSize
			if tx+tw > w {
				tw = w - tx
			}
			if ty+th > h {
				th = h - ty
			}
			if tw <= 0 || th <= 0 {
				continue
			}

			rect := image.Rect(b.Min.X+tx, b.Min.Y+ty, b.Min.X+tx+tw, b.Min.Y+ty+th)
			maskCrop := cropToRGBA(mask, rect)
			if !maskHasPositivePixel(maskCrop) {
				continue
			}

			imgCrop := cropToRGBA(img, rect)
			padded, pw, ph := reflectPad(imgCrop, tileSize)
			paddedMask, _, _ := reflectPad(maskCrop, tileSize)

			out, err := m.Run(padded, paddedMask)
			if err != nil {
				return nil, err
			}

			weights := raisedCosineWeights(tw, th, overlap)
			for y := 0; y < th; y++ {
				for x := 0; x < tw; x++ {
					if x >= pw || y >= ph {
						continue
					}
					r, g, bl, _ := out.At(x, y).RGBA()
					wgt := weights[y*tw+x]
					idx := (ty+y)*w + (tx + x)
					accum[idx*3+0] += wgt * float64(r) / 65535.0
					accum[idx*3+1] += wgt * float64(g) / 65535.0
					accum[idx*3+2] += wgt * float64(bl) / 65535.0
					weight[idx] += wgt
				}
			}
		}
	}

	result := image.NewRGBA(b)
	draw.Draw(result, b, img, b.Min, draw.Src)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			mr, _, _, _ := mask.At(b.Min.X+x, b.Min.Y+y).RGBA()
			if mr == 0 || weight[idx] <= 0 {
				continue
			}
			r := round8(accum[idx*3+0] / weight[idx] * 255)
			g := round8(accum[idx*3+1] / weight[idx] * 255)
			bl := round8(accum[idx*3+2] / weight[idx] * 255)
			result.Set(b.Min.X+x, b.Min.Y+y, rgba{r, g, bl, 255})
		}
	}
	return result, nil
}

type rgba struct{ R, G, B, A uint8 }

func (c rgba) RGBA() (r, g, b, a uint32) {
	return uint32(c.R) * 0x101, uint32(c.G) * 0x101, uint32(c.B) * 0x101, uint32(c.A) * 0x101
}

func round8(v float64) uint8 {
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return uint8(math.Round(v))
}

func cropToRGBA(img image.Image, rect image.Rectangle) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), img, rect.Min, draw.Src)
	return out
}

func maskHasPositivePixel(mask *image.RGBA) bool {
	for i := 0; i < len(mask.Pix); i += 4 {
		if mask.Pix[i] != 0 || mask.Pix[i+1] != 0 || mask.Pix[i+2] != 0 {
			return true
		}
	}
	return false
}

// reflectPad pads img up to size x size using edge reflection, returning
// the padded image and the original (unpadded) content's width/height.
func reflectPad(img *image.RGBA, size int) (*image.RGBA, int, int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w >= size && h >= size {
		return img, w, h
	}
	out := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		sy := reflectIndex(y, h)
		for x := 0; x < size; x++ {
			sx := reflectIndex(x, w)
			out.Set(x, y, img.At(b.Min.X+sx, b.Min.Y+sy))
		}
	}
	return out, w, h
}

func reflectIndex(i, n int) int {
	if n <= 1 {
		return 0
	}
	if i < n {
		return i
	}
	// reflect without repeating the edge pixel: ... n-2, n-1, n-2, n-3, ...
	period := 2 * (n - 1)
	i = i % period
	if i >= n {
		i = period - i
	}
	return i
}

// raisedCosineWeights builds a per-pixel weight map for a tile of size
// tw x th that tapers to zero within overlap/2 pixels of every border
// (including borders on the image edge), and stays at 1 deep in the interior.
func raisedCosineWeights(tw, th, overlap int) []float64 {
	taper := overlap / 2
	weights := make([]float64, tw*th)
	for y := 0; y < th; y++ {
		wy := edgeTaper(y, th, taper)
		for x := 0; x < tw; x++ {
			wx := edgeTaper(x, tw, taper)
			weights[y*tw+x] = wx * wy
		}
	}
	return weights
}

func edgeTaper(i, n, taper int) float64 {
	if taper <= 0 {
		return 1
	}
	d := i
	if n-1-i < d {
		d = n - 1 - i
	}
	if d >= taper {
		return 1
	}
	// raised cosine: 0 at the border, 1 at taper distance in.
	return 0.5 - 0.5*math.Cos(math.Pi*float64(d)/float64(taper))
}
