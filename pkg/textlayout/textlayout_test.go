package textlayout

import (
	"testing"

	"github.com/go-text/typesetting/font"

	"github.com/koharu-go/koharu/pkg/textlayout/shape"
)

func TestComputeBoundsHorizontalUsesMaxAdvanceAndBaseline(t *testing.T) {
	lines := []LayoutLine{
		{Advance: 100, BaselineY: 20},
		{Advance: 80, BaselineY: 44},
	}
	w, h := computeBounds(Horizontal, lines, 24, 16, 4)
	if w != 100 {
		t.Fatalf("got width %v, want the max line advance 100", w)
	}
	wantHeight := float32(1)*24 + 20 + 4
	if h != wantHeight {
		t.Fatalf("got height %v, want %v", h, wantHeight)
	}
}

func TestComputeBoundsVerticalAccountsForBaselineAndDescent(t *testing.T) {
	lines := []LayoutLine{
		{Advance: -120, BaselineY: 12},
		{Advance: -90, BaselineY: 12},
	}
	w, h := computeBounds(VerticalRL, lines, 24, 16, 4)
	if w != float32(len(lines))*16 {
		t.Fatalf("got width %v, want line count * font size", w)
	}
	wantHeight := float32(120) + 12 + 4
	if h != wantHeight {
		t.Fatalf("got height %v, want %v", h, wantHeight)
	}
}

func TestComputeBoundsEmptyLinesIsZero(t *testing.T) {
	w, h := computeBounds(Horizontal, nil, 24, 16, 4)
	if w != 0 || h != 0 {
		t.Fatalf("got (%v, %v), want (0, 0) for no lines", w, h)
	}
}

func TestInkBoundsSkipsGlyphsWithNoRasterAttached(t *testing.T) {
	f := &Font{ID: "no-raster"}
	lines := []LayoutLine{
		{
			BaselineX: 0, BaselineY: 20,
			Glyphs: []shape.PositionedGlyph{{Font: f.Face, XAdvance: 10}},
		},
	}
	_, _, _, _, ok := inkBounds(16, lines, map[*font.Face]*Font{f.Face: f})
	if ok {
		t.Fatal("expected no ink bounds when no font in the layout has a rasterizer attached")
	}
}

func TestEstimateInitialBracketDefaultsForEmptyText(t *testing.T) {
	low, high := estimateInitialBracket("")
	if low != 6 || high != 300 {
		t.Fatalf("got (%d, %d), want the default [6,300] bracket for empty text", low, high)
	}
}

func TestEstimateInitialBracketRaisesLowForWideRunes(t *testing.T) {
	low, _ := estimateInitialBracket("吾輩は猫である")
	if low <= 6 {
		t.Fatalf("got low=%d, want a raised lower bound for wide CJK runes", low)
	}
}

func TestEstimateInitialBracketKeepsDefaultForNarrowText(t *testing.T) {
	low, high := estimateInitialBracket("hello world")
	if low != 6 || high != 300 {
		t.Fatalf("got (%d, %d), want the unraised default bracket for narrow text", low, high)
	}
}

func TestAbsfAndMaxfHelpers(t *testing.T) {
	if absf(-3) != 3 {
		t.Fatal("absf(-3) should be 3")
	}
	if maxf(2, 5) != 5 {
		t.Fatal("maxf(2, 5) should be 5")
	}
	if minf(3, 1, 2) != 1 {
		t.Fatal("minf(3, 1, 2) should be 1")
	}
}
