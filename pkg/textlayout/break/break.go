// Package linebreak finds line-break opportunities in a run of text: every
// byte offset where a line may legally end, tagged with whether the break
// is mandatory (hard newline) or merely optional.
package linebreak

import (
	"github.com/clipperhouse/uax29/v2/words"
	"github.com/rivo/uniseg"
)

// Opportunity is one candidate break point.
type Opportunity struct {
	Offset      int
	IsMandatory bool
}

// Opportunities returns every line-break opportunity in text, always
// including an opportunity at offset 0 and at len(text) so callers can
// iterate consecutive pairs as segments, mirroring ICU4X's
// LineSegmenter.segment_str contract the reference renderer built on.
func Opportunities(text string) []Opportunity {
	if text == "" {
		return []Opportunity{{Offset: 0, IsMandatory: false}}
	}

	out := []Opportunity{{Offset: 0, IsMandatory: false}}
	state := -1
	var offset int
	remaining := text
	for len(remaining) > 0 {
		segment, rest, mustBreak, newState := uniseg.FirstLineSegmentInString(remaining, state)
		offset += len(segment)
		out = append(out, Opportunity{Offset: offset, IsMandatory: mustBreak})
		remaining = rest
		state = newState
	}

	refineCJKRuns(text, &out)
	return out
}

// refineCJKRuns splits any segment between consecutive opportunities that
// spans more than one CJK word-boundary unit into per-unit opportunities.
// uniseg's UAX #14 step function already breaks most CJK scripts at every
// character, but punctuation-attached clusters (e.g. a closing quote
// glued to the preceding ideograph) can leave multi-rune segments; uax29's
// word segmenter gives a second, independent boundary set used here purely
// to subdivide those runs, never to remove a boundary uniseg already found.
func refineCJKRuns(text string, opps *[]Opportunity) {
	refined := make([]Opportunity, 0, len(*opps))
	prev := (*opps)[0]
	refined = append(refined, prev)
	for _, cur := range (*opps)[1:] {
		segment := text[prev.Offset:cur.Offset]
		if containsCJK(segment) && runeCount(segment) > 1 {
			base := prev.Offset
			seg := words.NewSegmenter([]byte(segment))
			for seg.Next() {
				base += len(seg.Bytes())
				if base == cur.Offset {
					continue
				}
				refined = append(refined, Opportunity{Offset: base, IsMandatory: false})
			}
		}
		refined = append(refined, cur)
		prev = cur
	}
	*opps = refined
}

func runeCount(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}

// containsCJK reports whether s has any codepoint in the common CJK
// unified ideograph, hiragana, or katakana blocks.
func containsCJK(s string) bool {
	for _, r := range s {
		switch {
		case r >= 0x4E00 && r <= 0x9FFF, // CJK Unified Ideographs
			r >= 0x3040 && r <= 0x309F, // Hiragana
			r >= 0x30A0 && r <= 0x30FF: // Katakana
			return true
		}
	}
	return false
}
