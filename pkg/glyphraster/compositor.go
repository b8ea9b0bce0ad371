package glyphraster

import (
	"image"
	"image/color"
)

// Vertex is one corner of a glyph's textured quad: its destination pixel
// position and its UV coordinate into the atlas bitmap. Two triangles
// (six vertices, sharing the quad's diagonal) describe one glyph, matching
// the reference renderer's build_vertices layout even though this
// rasterizer composites directly rather than submitting the quads to a
// GPU pipeline.
type Vertex struct {
	X, Y float32
	U, V float32
}

// Placement positions one previously-packed atlas glyph at a destination
// pixel origin (the glyph mask's top-left corner, already including the
// mask's OffsetX/OffsetY from rasterization).
type Placement struct {
	Rect Rect
	DestX, DestY int
}

// Quad returns the two-triangle vertex fan for a placement against an
// atlas of the given size, in the order the reference renderer emits
// them: (0,0) (1,0) (1,1) then (0,0) (1,1) (0,1) of the glyph's quad.
func Quad(p Placement, atlasW, atlasH int) [6]Vertex {
	x0, y0 := float32(p.DestX), float32(p.DestY)
	x1, y1 := x0+float32(p.Rect.Width), y0+float32(p.Rect.Height)
	u0, v0 := float32(p.Rect.X)/float32(atlasW), float32(p.Rect.Y)/float32(atlasH)
	u1, v1 := float32(p.Rect.X+p.Rect.Width)/float32(atlasW), float32(p.Rect.Y+p.Rect.Height)/float32(atlasH)
	return [6]Vertex{
		{x0, y0, u0, v0},
		{x1, y0, u1, v0},
		{x1, y1, u1, v1},
		{x0, y0, u0, v0},
		{x1, y1, u1, v1},
		{x0, y1, u0, v1},
	}
}

// Composite blends every placement's atlas coverage onto dst, tinted by
// tint, using premultiplied-alpha over compositing: each destination pixel
// is dst = dst*(1-a) + tint*a, where a is the glyph's coverage scaled by
// tint's own alpha. Placements are clipped to dst's bounds.
func Composite(dst *image.RGBA, atlas *Atlas, placements []Placement, tint color.RGBA) {
	bitmap := atlas.Bitmap()
	tr, tg, tb, ta := float32(tint.R), float32(tint.G), float32(tint.B), float32(tint.A)/255
	for _, p := range placements {
		for y := 0; y < p.Rect.Height; y++ {
			dstY := p.DestY + y
			if dstY < dst.Bounds().Min.Y || dstY >= dst.Bounds().Max.Y {
				continue
			}
			for x := 0; x < p.Rect.Width; x++ {
				dstX := p.DestX + x
				if dstX < dst.Bounds().Min.X || dstX >= dst.Bounds().Max.X {
					continue
				}
				coverage := bitmap.AlphaAt(p.Rect.X+x, p.Rect.Y+y).A
				if coverage == 0 {
					continue
				}
				a := float32(coverage) / 255 * ta
				blendPixel(dst, dstX, dstY, tr, tg, tb, a)
			}
		}
	}
}

func blendPixel(dst *image.RGBA, x, y int, tr, tg, tb, a float32) {
	i := dst.PixOffset(x, y)
	inv := 1 - a
	dst.Pix[i+0] = uint8(float32(dst.Pix[i+0])*inv + tr*a)
	dst.Pix[i+1] = uint8(float32(dst.Pix[i+1])*inv + tg*a)
	dst.Pix[i+2] = uint8(float32(dst.Pix[i+2])*inv + tb*a)
	dst.Pix[i+3] = uint8(float32(dst.Pix[i+3])*inv + 255*a)
}
