package glyphraster

import (
	"fmt"
	"image"

	"github.com/koharu-go/koharu/pkg/kerr"
)

const (
	atlasStartSize = 256
	atlasMaxSize   = 8192
)

// Key identifies one rasterized glyph at a specific size within a single
// font, the unit the atlas packs and deduplicates on.
type Key struct {
	FontID string
	GlyphID uint16
	SizePx  uint16 // rounded to the nearest pixel; re-rasterizing per fractional size isn't worth the atlas churn
}

// Rect is a glyph's packed location within the atlas bitmap.
type Rect struct {
	X, Y          int
	Width, Height int
}

type shelf struct {
	y      int
	height int
	nextX  int
}

// Atlas packs glyph coverage masks into a single grayscale bitmap using a
// shelf (row) packing strategy: glyphs are placed left to right along the
// current shelf, and a new shelf is opened when one won't fit, mirroring
// the GlyphAtlas packing loop in the reference renderer. The atlas starts
// at 256x256 and doubles in size, up to 8192x8192, whenever packing fails.
type Atlas struct {
	bitmap  *image.Alpha
	shelves []shelf
	entries map[Key]Rect
}

// NewAtlas creates an empty atlas at the starting size.
func NewAtlas() *Atlas {
	return &Atlas{
		bitmap:  image.NewAlpha(image.Rect(0, 0, atlasStartSize, atlasStartSize)),
		entries: make(map[Key]Rect),
	}
}

// Bitmap returns the atlas's current backing bitmap. It is replaced (not
// mutated in place) whenever the atlas grows, so callers should re-fetch
// it after a Pack call rather than caching the pointer.
func (a *Atlas) Bitmap() *image.Alpha { return a.bitmap }

// Lookup returns the packed rectangle for key, if already packed.
func (a *Atlas) Lookup(key Key) (Rect, bool) {
	r, ok := a.entries[key]
	return r, ok
}

// Pack inserts mask into the atlas under key, growing and repacking the
// atlas if it no longer fits. Returns the glyph's rectangle within the
// (possibly new) bitmap.
func (a *Atlas) Pack(key Key, mask Mask) (Rect, error) {
	if r, ok := a.entries[key]; ok {
		return r, nil
	}
	if mask.Width == 0 || mask.Height == 0 {
		a.entries[key] = Rect{}
		return Rect{}, nil
	}

	for {
		if r, ok := a.place(mask.Width, mask.Height); ok {
			a.blit(r, mask)
			a.entries[key] = r
			return r, nil
		}
		if a.bitmap.Bounds().Dx() >= atlasMaxSize {
			return Rect{}, kerr.New(kerr.ResourceUnavailable, fmt.Sprintf("glyph atlas exceeded %dx%d cap", atlasMaxSize, atlasMaxSize))
		}
		a.grow()
	}
}

func (a *Atlas) place(w, h int) (Rect, bool) {
	size := a.bitmap.Bounds().Dx()
	for i := range a.shelves {
		s := &a.shelves[i]
		if h <= s.height && s.nextX+w <= size {
			r := Rect{X: s.nextX, Y: s.y, Width: w, Height: h}
			s.nextX += w
			return r, true
		}
	}
	// Open a new shelf below the last one.
	y := 0
	if n := len(a.shelves); n > 0 {
		last := a.shelves[n-1]
		y = last.y + last.height
	}
	if y+h > size {
		return Rect{}, false
	}
	a.shelves = append(a.shelves, shelf{y: y, height: h, nextX: w})
	return Rect{X: 0, Y: y, Width: w, Height: h}, true
}

func (a *Atlas) grow() {
	size := a.bitmap.Bounds().Dx() * 2
	grown := image.NewAlpha(image.Rect(0, 0, size, size))
	for y := 0; y < a.bitmap.Bounds().Dy(); y++ {
		srcStart := y * a.bitmap.Stride
		dstStart := y * grown.Stride
		copy(grown.Pix[dstStart:dstStart+a.bitmap.Stride], a.bitmap.Pix[srcStart:srcStart+a.bitmap.Stride])
	}
	a.bitmap = grown
}

func (a *Atlas) blit(r Rect, mask Mask) {
	for y := 0; y < r.Height; y++ {
		srcStart := y * mask.Width
		dstOff := a.bitmap.PixOffset(r.X, r.Y+y)
		copy(a.bitmap.Pix[dstOff:dstOff+r.Width], mask.Coverage[srcStart:srcStart+mask.Width])
	}
}
