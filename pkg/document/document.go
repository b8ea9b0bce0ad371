// Package document defines Koharu's shared document model: a page image,
// its detected text blocks, and the intermediate rasters the pipeline
// produces, plus the single RWMutex-guarded state container every
// operation snapshots from and commits back to.
package document

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"
	"sync"

	"lukechampine.com/blake3"

	"github.com/koharu-go/koharu/pkg/kerr"
)

// TextDirection mirrors the font predictor's direction head.
type TextDirection int

const (
	Horizontal TextDirection = iota
	Vertical
)

// NamedFontPrediction is one ranked font candidate.
type NamedFontPrediction struct {
	Index       int
	Name        string
	Language    string
	Probability float32
	Serif       bool
}

// FontPrediction is the full decoded output of the font-attribute model.
type FontPrediction struct {
	TopFonts      []NamedFontPrediction
	Direction     TextDirection
	TextColor     [3]uint8
	StrokeColor   [3]uint8
	FontSizePx    float32
	StrokeWidthPx float32
	LineHeight    float32
	AngleDeg      float32
}

// TextShaderEffect selects a rendering treatment for a text block (outline,
// drop shadow, etc). Left as an opaque string tag; the renderer owns the
// closed set of supported values.
type TextShaderEffect string

// TextStyle is the user- or font-predictor-derived rendering style for one
// text block.
type TextStyle struct {
	FontFamilies []string
	FontSize     *float32
	Color        [4]uint8
	Effect       *TextShaderEffect
}

// TextBlock is one detected (or manually added) speech-bubble region.
type TextBlock struct {
	X, Y, Width, Height float32
	Confidence          float32
	Text                *string
	Translation         *string
	Style               *TextStyle
	FontPrediction      *FontPrediction
	Rendered            *image.RGBA
}

// Document is one page: its source image plus every intermediate raster
// the pipeline stages produce.
type Document struct {
	ID         string
	Path       string
	Name       string
	Image      image.Image
	Width      uint32
	Height     uint32
	TextBlocks []TextBlock

	Segment    *image.RGBA
	Inpainted  *image.RGBA
	Rendered   *image.RGBA
	BrushLayer *image.RGBA
}

// Clone returns a deep-enough copy for the snapshot/commit discipline:
// TextBlocks is copied element-wise, raster fields are shared by pointer
// since they are replaced wholesale rather than mutated in place.
func (d *Document) Clone() *Document {
	c := *d
	c.TextBlocks = append([]TextBlock(nil), d.TextBlocks...)
	return &c
}

// FromBytes decodes an image file into a Document, deriving its ID from
// the BLAKE3-256 hash of the source bytes.
func FromBytes(path string, data []byte) (*Document, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, kerr.Wrap(kerr.BadInput, "document: decode image", err)
	}
	bounds := img.Bounds()
	sum := blake3.Sum256(data)
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return &Document{
		ID:     hexEncode(sum[:]),
		Path:   path,
		Name:   name,
		Image:  img,
		Width:  uint32(bounds.Dx()),
		Height: uint32(bounds.Dy()),
	}, nil
}

const hexDigits = "0123456789abcdef"

func hexEncode(b []byte) string {
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexDigits[v>>4]
		out[i*2+1] = hexDigits[v&0xf]
	}
	return string(out)
}

// State is the shared, RWMutex-guarded document list every operation and
// the pipeline orchestrator read from and write to.
type State struct {
	mu        sync.RWMutex
	Documents []*Document
}

// ReadDoc returns a deep-enough clone of the document at index, without
// holding the lock beyond the copy.
func (s *State) ReadDoc(index int) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.Documents) {
		return nil, kerr.New(kerr.NotFound, "document not found")
	}
	return s.Documents[index].Clone(), nil
}

// UpdateDoc replaces the document at index with doc.
func (s *State) UpdateDoc(index int, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.Documents) {
		return kerr.New(kerr.NotFound, "document not found")
	}
	s.Documents[index] = doc
	return nil
}

// Count returns the number of loaded documents.
func (s *State) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Documents)
}

// SetAll replaces the entire document list, e.g. after OpenDocuments.
func (s *State) SetAll(docs []*Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Documents = docs
}
