package textlayout

import "github.com/go-text/typesetting/font"

// Metrics holds the three line-spacing numbers the layout algorithm needs,
// already scaled to a concrete font size in pixels.
type Metrics struct {
	Ascent  float32
	Descent float32
	Leading float32
}

// metricsForFace returns the ascent/descent/leading triple for sizePx as
// fixed fractions of the size: ascent 0.8, descent 0.2 and leading 0.05
// (leading 0 when face is nil). The face's own vertical metrics are not
// read, so every face gets the same line spacing at a given size.
func metricsForFace(face *font.Face, sizePx float32) Metrics {
	const ascentRatio = 0.8
	const descentRatio = 0.2
	const leadingRatio = 0.05
	if face == nil {
		return Metrics{Ascent: sizePx * ascentRatio, Descent: sizePx * descentRatio, Leading: 0}
	}
	return Metrics{
		Ascent:  sizePx * ascentRatio,
		Descent: sizePx * descentRatio,
		Leading: sizePx * leadingRatio,
	}
}

// LineHeight is the distance between consecutive baselines, matching the
// reference's `(ascent + descent + leading).max(font_size)` floor.
func (m Metrics) LineHeight(fontSizePx float32) float32 {
	h := m.Ascent + m.Descent + m.Leading
	if h < fontSizePx {
		return fontSizePx
	}
	return h
}
