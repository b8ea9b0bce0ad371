// Package render draws translated text back onto a document's inpainted
// image, one block at a time or the whole page, in parallel across blocks.
package render

import (
	"context"
	"image"
	"image/color"
	"image/draw"

	"github.com/go-text/typesetting/font"
	"golang.org/x/sync/errgroup"

	"github.com/koharu-go/koharu/pkg/document"
	"github.com/koharu-go/koharu/pkg/glyphraster"
	"github.com/koharu-go/koharu/pkg/kerr"
	"github.com/koharu-go/koharu/pkg/textlayout"
)

// FontSource resolves an installed font family name to a loadable
// (shapeable, rasterizable) font. It is the seam pkg/textlayout and
// pkg/glyphraster plug into: AvailableFamilies backs the family picker in
// the UI/API layer, Resolve backs the renderer's actual text layout.
type FontSource interface {
	AvailableFamilies() ([]string, error)
	Resolve(family string) (*textlayout.Font, error)
}

// Renderer draws every text block's translation onto the document's
// inpainted raster (or the source image if no inpaint has run yet).
type Renderer struct {
	Fonts FontSource
}

func New(fonts FontSource) *Renderer { return &Renderer{Fonts: fonts} }

// Render composes the translated text of either one block or every block
// onto doc.Rendered.
func (r *Renderer) Render(ctx context.Context, doc *document.Document, blockIndex *int, effect document.TextShaderEffect, fontFamily *string) error {
	var base image.Image = doc.Image
	if doc.Inpainted != nil {
		base = doc.Inpainted
	}
	out := cloneToRGBA(base)

	if blockIndex != nil {
		if *blockIndex < 0 || *blockIndex >= len(doc.TextBlocks) {
			return kerr.New(kerr.NotFound, "text block not found")
		}
		if err := r.drawBlock(out, doc.TextBlocks[*blockIndex], effect); err != nil {
			return err
		}
		doc.TextBlocks[*blockIndex].Rendered = cropRGBA(out, doc.TextBlocks[*blockIndex])
		doc.Rendered = out
		return nil
	}

	g, _ := errgroup.WithContext(ctx)
	rendered := make([]*image.RGBA, len(doc.TextBlocks))
	for i := range doc.TextBlocks {
		i := i
		g.Go(func() error {
			layer := cloneToRGBA(out)
			if err := r.drawBlock(layer, doc.TextBlocks[i], effect); err != nil {
				return err
			}
			rendered[i] = cropRGBA(layer, doc.TextBlocks[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i := range doc.TextBlocks {
		if err := r.drawBlock(out, doc.TextBlocks[i], effect); err != nil {
			return err
		}
		doc.TextBlocks[i].Rendered = rendered[i]
	}
	doc.Rendered = out
	return nil
}

// AvailableFonts returns the installed font family names.
func (r *Renderer) AvailableFonts() ([]string, error) {
	if r.Fonts == nil {
		return []string{"sans-serif"}, nil
	}
	return r.Fonts.AvailableFamilies()
}

// drawBlock lays out and rasterizes one text block's translation directly
// onto img at the block's position: textlayout.Run produces positioned
// glyphs, each glyph is rasterized and packed into a throwaway atlas via
// pkg/glyphraster, and the packed glyphs are composited in the block's
// style color.
func (r *Renderer) drawBlock(img *image.RGBA, b document.TextBlock, effect document.TextShaderEffect) error {
	if b.Translation == nil || *b.Translation == "" {
		return nil
	}

	col := color.RGBA{R: 0, G: 0, B: 0, A: 255}
	if b.Style != nil {
		col = color.RGBA{R: b.Style.Color[0], G: b.Style.Color[1], B: b.Style.Color[2], A: b.Style.Color[3]}
	}

	primary, fallback, err := r.resolveFonts(b)
	if err != nil {
		// No resolvable font for this block: leave it undrawn rather than
		// failing the whole render, the same "something always renders"
		// guarantee the bitmap-face placeholder this replaced used to give.
		return nil
	}

	mode := textlayout.Horizontal
	if b.FontPrediction != nil && b.FontPrediction.Direction == document.Vertical {
		mode = textlayout.VerticalRL
	}

	builder := textlayout.New(primary, nil).
		WithWritingMode(mode).
		WithFallbackFonts(fallback).
		WithMaxWidth(b.Width).
		WithMaxHeight(b.Height)
	if b.Style != nil && b.Style.FontSize != nil {
		builder = builder.WithFontSize(*b.Style.FontSize)
	}

	run, err := builder.Run(*b.Translation)
	if err != nil {
		return err
	}

	owners := make(map[*font.Face]*textlayout.Font, 1+len(fallback))
	owners[primary.Face] = primary
	for _, f := range fallback {
		owners[f.Face] = f
	}

	atlas := glyphraster.NewAtlas()
	var placements []glyphraster.Placement
	for _, line := range run.Lines {
		x, y := b.X+line.BaselineX, b.Y+line.BaselineY
		for _, g := range line.Glyphs {
			gx, gy := x+g.XOffset, y-g.YOffset
			owner := owners[g.Font]
			if owner != nil && owner.Raster != nil {
				mask, err := owner.Raster.Glyph(uint16(g.GlyphID), run.FontSize)
				if err == nil && mask.Width > 0 && mask.Height > 0 {
					key := glyphraster.Key{FontID: owner.ID, GlyphID: uint16(g.GlyphID), SizePx: uint16(run.FontSize)}
					rect, err := atlas.Pack(key, mask)
					if err != nil {
						return err
					}
					placements = append(placements, glyphraster.Placement{
						Rect:  rect,
						DestX: int(gx) + mask.OffsetX,
						DestY: int(gy) + mask.OffsetY,
					})
				}
			}
			x += g.XAdvance
			y -= g.YAdvance
		}
	}
	glyphraster.Composite(img, atlas, placements, col)
	return nil
}

// resolveFonts picks the block's primary font (the first resolvable
// family named in its style, or "sans-serif" if the block carries no
// style) and treats every other resolvable family as a shaping fallback.
func (r *Renderer) resolveFonts(b document.TextBlock) (*textlayout.Font, []*textlayout.Font, error) {
	if r.Fonts == nil {
		return nil, nil, kerr.New(kerr.BadInput, "render: no font source configured")
	}

	families := []string{"sans-serif"}
	if b.Style != nil && len(b.Style.FontFamilies) > 0 {
		families = b.Style.FontFamilies
	}

	var resolved []*textlayout.Font
	for _, family := range families {
		f, err := r.Fonts.Resolve(family)
		if err != nil {
			continue
		}
		resolved = append(resolved, f)
	}
	if len(resolved) == 0 {
		return nil, nil, kerr.New(kerr.NotFound, "render: none of the block's font families could be resolved")
	}
	return resolved[0], resolved[1:], nil
}

func cloneToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, img, b.Min, draw.Src)
	return out
}

func cropRGBA(img *image.RGBA, b document.TextBlock) *image.RGBA {
	r := image.Rect(int(b.X), int(b.Y), int(b.X+b.Width), int(b.Y+b.Height)).Intersect(img.Bounds())
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), img, r.Min, draw.Src)
	return out
}
