// Package shape wraps go-text/typesetting's HarfBuzz-compatible shaping
// engine behind the narrow (text, font, options) -> []PositionedGlyph
// contract the layout engine needs, adding a fallback chain that scans
// each input run for the first font that actually covers it.
package shape

import (
	"github.com/go-text/typesetting/di"
	"github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"
)

// Direction mirrors the writing direction the layout engine already
// tracks; it's translated to go-text/typesetting's di.Direction at the
// shaping boundary so the rest of the package doesn't import di directly.
type Direction int

const (
	LeftToRight Direction = iota
	TopToBottom
)

func (d Direction) typesetting() di.Direction {
	if d == TopToBottom {
		return di.DirectionTTB
	}
	return di.DirectionLTR
}

// Options controls one shaping call.
type Options struct {
	Direction Direction
	FontSize  float32
	Features  []string
}

// PositionedGlyph is one shaped glyph ready for rasterization and layout:
// its glyph id in the source font, its advance, and its offset from the
// pen position.
type PositionedGlyph struct {
	Font     *font.Face
	GlyphID  font.GID
	Cluster  int
	XAdvance float32
	YAdvance float32
	XOffset  float32
	YOffset  float32
}

// Run is one shaped contiguous span of text: its glyphs and total advance.
type Run struct {
	Glyphs   []PositionedGlyph
	XAdvance float32
	YAdvance float32
}

var shaper shaping.HarfbuzzShaper

// Shape runs HarfBuzz-compatible shaping over text using face, with no
// fallback.
func Shape(text string, face *font.Face, opts Options) Run {
	runes := []rune(text)
	input := shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: opts.Direction.typesetting(),
		Face:      face,
		Size:      fixed.I(int(opts.FontSize)),
		Script:    language.LookupScript(firstRune(runes)),
		Language:  language.NewLanguage("und"),
	}
	out := shaper.Shape(input)
	return toRun(out, face)
}

// ShapeWithFallback shapes text using the first font in fonts whose glyph
// coverage includes every rune in text, falling back to the primary font
// (fonts[0]) with .notdef glyphs for anything no font covers.
func ShapeWithFallback(text string, fonts []*font.Face, opts Options) Run {
	if len(fonts) == 0 {
		return Run{}
	}
	for _, f := range fonts {
		if coversAll(f, text) {
			return Shape(text, f, opts)
		}
	}
	return Shape(text, fonts[0], opts)
}

func coversAll(f *font.Face, text string) bool {
	for _, r := range text {
		if _, ok := f.NominalGlyph(r); !ok {
			return false
		}
	}
	return true
}

func firstRune(runes []rune) rune {
	if len(runes) == 0 {
		return 0
	}
	return runes[0]
}

func toRun(out shaping.Output, face *font.Face) Run {
	run := Run{Glyphs: make([]PositionedGlyph, len(out.Glyphs))}
	for i, g := range out.Glyphs {
		pg := PositionedGlyph{
			Font:     face,
			GlyphID:  g.GlyphID,
			Cluster:  g.ClusterIndex,
			XAdvance: fixed266ToFloat(g.XAdvance),
			YAdvance: fixed266ToFloat(g.YAdvance),
			XOffset:  fixed266ToFloat(g.XOffset),
			YOffset:  fixed266ToFloat(g.YOffset),
		}
		run.Glyphs[i] = pg
		run.XAdvance += pg.XAdvance
		run.YAdvance += pg.YAdvance
	}
	return run
}

func fixed266ToFloat(v fixed.Int26_6) float32 {
	return float32(v) / 64
}
