// Package textlayout assembles shaped text into positioned lines: given a
// font, an optional fixed size (or box to auto-fit within), and a writing
// mode, it breaks text at line-break opportunities, shapes each segment,
// wraps lines against a maximum extent, places baselines, and computes
// both the nominal and ink-tight bounding box of the result. The
// algorithm mirrors original_source's layout.rs line for line; see
// break.Opportunities and shape.Shape/ShapeWithFallback for the two
// building blocks it drives.
package textlayout

import (
	"math"

	"github.com/clipperhouse/displaywidth"
	"github.com/go-text/typesetting/font"
	"github.com/mattn/go-runewidth"

	"github.com/koharu-go/koharu/pkg/glyphraster"
	"github.com/koharu-go/koharu/pkg/kerr"
	linebreak "github.com/koharu-go/koharu/pkg/textlayout/break"
	"github.com/koharu-go/koharu/pkg/textlayout/shape"
)

// WritingMode selects how lines flow and how baselines are placed.
type WritingMode int

const (
	Horizontal WritingMode = iota
	VerticalRL
)

func (m WritingMode) direction() shape.Direction {
	if m == VerticalRL {
		return shape.TopToBottom
	}
	return shape.LeftToRight
}

// Font pairs a shaping face with the rasterizer used to measure its ink
// bounds, keyed by a caller-assigned stable ID (used both as the
// glyphraster atlas key prefix and as the lookup key back from a shaped
// glyph's face pointer to its rasterizer).
type Font struct {
	ID     string
	Face   *font.Face
	Raster *glyphraster.Rasterizer
}

// LayoutLine is one laid-out line: its shaped glyphs, the byte range of
// source text it covers, its total advance along the writing direction,
// and its baseline origin in layout-space (Y-down) coordinates.
type LayoutLine struct {
	Glyphs               []shape.PositionedGlyph
	RangeStart, RangeEnd int
	Advance              float32
	BaselineX, BaselineY float32
}

// LayoutRun is a complete laid-out block of text.
type LayoutRun struct {
	Lines    []LayoutLine
	Width    float32
	Height   float32
	FontSize float32
}

// TextLayout is a builder mirroring original_source's TextLayout: it
// accumulates writing mode, font size (or auto-fit box), and fallback
// fonts before Run assembles the final LayoutRun.
type TextLayout struct {
	writingMode   WritingMode
	font          *Font
	fallbackFonts []*Font
	fontSize      *float32
	maxWidth      *float32
	maxHeight     *float32
}

// New starts a builder for font, optionally pinned to a fixed fontSize.
// Pass a nil fontSize to auto-fit within WithMaxWidth/WithMaxHeight.
func New(f *Font, fontSize *float32) *TextLayout {
	return &TextLayout{font: f, fontSize: fontSize}
}

func (t *TextLayout) WithFontSize(size float32) *TextLayout {
	t.fontSize = &size
	return t
}

func (t *TextLayout) WithWritingMode(mode WritingMode) *TextLayout {
	t.writingMode = mode
	return t
}

func (t *TextLayout) WithFallbackFonts(fonts []*Font) *TextLayout {
	t.fallbackFonts = fonts
	return t
}

func (t *TextLayout) WithMaxWidth(width float32) *TextLayout {
	t.maxWidth = &width
	return t
}

func (t *TextLayout) WithMaxHeight(height float32) *TextLayout {
	t.maxHeight = &height
	return t
}

// Run lays out text, either at the builder's fixed font size or, if none
// was set, by auto-fitting the largest size in [6,300] that satisfies
// WithMaxWidth/WithMaxHeight.
func (t *TextLayout) Run(text string) (LayoutRun, error) {
	if t.fontSize != nil {
		return t.runWithSize(text, *t.fontSize)
	}
	return t.runAuto(text)
}

func (t *TextLayout) runAuto(text string) (LayoutRun, error) {
	maxWidth := float32(math.MaxFloat32)
	if t.maxWidth != nil {
		maxWidth = *t.maxWidth
	}
	maxHeight := float32(math.MaxFloat32)
	if t.maxHeight != nil {
		maxHeight = *t.maxHeight
	}

	low, high := estimateInitialBracket(text)
	var best *LayoutRun
	for low <= high {
		mid := (low + high) / 2
		layout, err := t.runWithSize(text, float32(mid))
		if err != nil {
			return LayoutRun{}, err
		}
		if layout.Width <= maxWidth && layout.Height <= maxHeight {
			best = &layout
			low = mid + 1
		} else {
			high = mid - 1
		}
	}
	if best == nil {
		return LayoutRun{}, kerr.New(kerr.BadInput, "textlayout: no font size in [6,300] fits the given bounds")
	}
	return *best, nil
}

// estimateInitialBracket narrows the run_auto binary search's starting
// bracket using a cheap pre-shaping width estimate: text containing any
// double-width rune (by go-runewidth's East-Asian-Width classification)
// tends to need a larger minimum font size before it stops looking
// cramped, so the low end of the bracket is raised. displaywidth.String
// is used for the companion cell-width estimate so both of the pack's
// display-width libraries are exercised for what they're each best at:
// go-runewidth's per-rune East Asian Width classification, and
// displaywidth's aggregate, grapheme-aware string width.
func estimateInitialBracket(text string) (low, high int) {
	low, high = 6, 300
	if text == "" {
		return low, high
	}
	cells := displaywidth.String(text)
	if cells == 0 {
		return low, high
	}
	for _, r := range text {
		if runewidth.RuneWidth(r) > 1 {
			low = 12
			break
		}
	}
	return low, high
}

func (t *TextLayout) runWithSize(text string, fontSize float32) (LayoutRun, error) {
	metrics := metricsForFace(t.font.Face, fontSize)
	lineHeight := metrics.LineHeight(fontSize)

	maxExtent := float32(math.MaxFloat32)
	if t.writingMode == VerticalRL {
		if t.maxHeight != nil {
			maxExtent = *t.maxHeight
		}
	} else if t.maxWidth != nil {
		maxExtent = *t.maxWidth
	}

	opts := shape.Options{Direction: t.writingMode.direction(), FontSize: fontSize}

	fonts := make([]*Font, 0, 1+len(t.fallbackFonts))
	fonts = append(fonts, t.font)
	fonts = append(fonts, t.fallbackFonts...)
	faces := make([]*font.Face, len(fonts))
	faceOwner := make(map[*font.Face]*Font, len(fonts))
	for i, f := range fonts {
		faces[i] = f.Face
		faceOwner[f.Face] = f
	}

	breaks := linebreak.Opportunities(text)
	var lines []LayoutLine
	current := LayoutLine{}
	lineOffset := 0

	for i := 1; i < len(breaks); i++ {
		start, end := breaks[i-1].Offset, breaks[i].Offset
		segment := text[start:end]

		var run shape.Run
		if len(faces) == 1 {
			run = shape.Shape(segment, faces[0], opts)
		} else {
			run = shape.ShapeWithFallback(segment, faces, opts)
		}

		advance := run.XAdvance
		if t.writingMode == VerticalRL {
			advance = run.YAdvance
		}

		wouldOverflow := current.Advance+advance > maxExtent
		if t.writingMode == VerticalRL {
			wouldOverflow = absf(current.Advance)+absf(advance) > maxExtent
		}
		hasContent := len(current.Glyphs) > 0
		isMandatory := breaks[i].IsMandatory

		if (isMandatory || wouldOverflow) && hasContent {
			current.RangeStart, current.RangeEnd = lineOffset, start
			lines = append(lines, current)
			current = LayoutLine{}
			lineOffset = start
		}

		for _, g := range run.Glyphs {
			g.Cluster += start
			current.Glyphs = append(current.Glyphs, g)
		}
		current.Advance += advance
	}
	if len(current.Glyphs) > 0 {
		current.RangeStart, current.RangeEnd = lineOffset, len(text)
		lines = append(lines, current)
	}

	lineCount := len(lines)
	for i := range lines {
		if t.writingMode == VerticalRL {
			x := float32(lineCount-1-i)*fontSize + fontSize*0.5
			lines[i].BaselineX, lines[i].BaselineY = x, metrics.Ascent
		} else {
			lines[i].BaselineX, lines[i].BaselineY = 0, metrics.Ascent+float32(i)*lineHeight
		}
	}

	width, height := computeBounds(t.writingMode, lines, lineHeight, fontSize, metrics.Descent)
	if minX, minY, maxX, maxY, ok := inkBounds(fontSize, lines, faceOwner); ok {
		pad := float32(1)
		if t.writingMode == VerticalRL {
			pad = 0
		}
		minX -= pad
		minY -= pad
		maxX += pad
		maxY += pad
		for i := range lines {
			lines[i].BaselineX -= minX
			lines[i].BaselineY -= minY
		}
		width = maxf(maxX-minX, 0)
		height = maxf(maxY-minY, 0)
	}

	return LayoutRun{Lines: lines, Width: width, Height: height, FontSize: fontSize}, nil
}

func computeBounds(mode WritingMode, lines []LayoutLine, lineHeight, fontSize, descent float32) (float32, float32) {
	if len(lines) == 0 {
		return 0, 0
	}
	if mode == VerticalRL {
		w := float32(len(lines)) * fontSize
		maxAdvance := float32(0)
		for _, l := range lines {
			if a := absf(l.Advance); a > maxAdvance {
				maxAdvance = a
			}
		}
		h := maxAdvance + lines[0].BaselineY + descent
		return w, h
	}
	maxAdvance := float32(0)
	for _, l := range lines {
		if l.Advance > maxAdvance {
			maxAdvance = l.Advance
		}
	}
	h := float32(len(lines)-1)*lineHeight + lines[0].BaselineY + descent
	return maxAdvance, h
}

// inkBounds measures each glyph's actual rasterized coverage footprint
// (rather than guessing at a font-table bbox API) and folds it into a
// tight bounding box in baseline-relative layout coordinates, the same
// role original_source's skrifa glyph_metrics().bounds() call plays.
// Glyphs whose font has no rasterizer attached are skipped, degrading to
// advance-only bounds for that glyph exactly as original_source does for
// an unreadable font table.
func inkBounds(fontSize float32, lines []LayoutLine, faceOwner map[*font.Face]*Font) (minX, minY, maxX, maxY float32, ok bool) {
	minX, minY = float32(math.MaxFloat32), float32(math.MaxFloat32)
	maxX, maxY = -float32(math.MaxFloat32), -float32(math.MaxFloat32)
	found := false

	for _, line := range lines {
		x, y := line.BaselineX, line.BaselineY
		for _, g := range line.Glyphs {
			owner := faceOwner[g.Font]
			if owner == nil || owner.Raster == nil {
				x += g.XAdvance
				y -= g.YAdvance
				continue
			}
			mask, err := owner.Raster.Glyph(uint16(g.GlyphID), fontSize)
			if err == nil && mask.Width > 0 && mask.Height > 0 {
				x0 := x + g.XOffset + float32(mask.OffsetX)
				x1 := x0 + float32(mask.Width)
				y0 := (y - g.YOffset) + float32(mask.OffsetY)
				y1 := y0 + float32(mask.Height)
				minX, maxX = minf(minX, x0, x1), maxf3(maxX, x0, x1)
				minY, maxY = minf(minY, y0, y1), maxf3(maxY, y0, y1)
				found = true
			}
			x += g.XAdvance
			y -= g.YAdvance
		}
	}

	return minX, minY, maxX, maxY, found
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func maxf3(a, b, c float32) float32 {
	return maxf(a, maxf(b, c))
}

func minf(a, b, c float32) float32 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
