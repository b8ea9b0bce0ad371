// Package fonts resolves font family names to loadable fonts for
// pkg/render: a directory of TrueType/OpenType files, one family per
// file, parsed on first use and cached for the life of the process.
package fonts

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"

	gotextfont "github.com/go-text/typesetting/font"

	"github.com/koharu-go/koharu/pkg/glyphraster"
	"github.com/koharu-go/koharu/pkg/kerr"
	"github.com/koharu-go/koharu/pkg/textlayout"
)

// DirectorySource implements render.FontSource by scanning a directory
// for .ttf/.otf files and treating each file's base name (without
// extension) as its family name, e.g. "Noto Sans CJK JP.ttf" resolves as
// family "Noto Sans CJK JP". Each file backs both a shaping face (via
// go-text/typesetting) and a rasterizer (via pkg/glyphraster), parsed
// from the same bytes.
type DirectorySource struct {
	Dir string

	mu    sync.Mutex
	cache map[string]*textlayout.Font
}

// NewDirectorySource creates a source rooted at dir. The directory is not
// read until the first AvailableFamilies or Resolve call.
func NewDirectorySource(dir string) *DirectorySource {
	return &DirectorySource{Dir: dir, cache: make(map[string]*textlayout.Font)}
}

// AvailableFamilies lists every family name discoverable in the
// directory.
func (s *DirectorySource) AvailableFamilies() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, kerr.Wrap(kerr.IOFailure, "fonts: read directory", err)
	}
	var families []string
	for _, e := range entries {
		if e.IsDir() || !isFontFile(e.Name()) {
			continue
		}
		families = append(families, familyFromFilename(e.Name()))
	}
	return families, nil
}

// Resolve loads (or returns the cached) font for family.
func (s *DirectorySource) Resolve(family string) (*textlayout.Font, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.cache[family]; ok {
		return f, nil
	}

	path, err := s.findFile(family)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, kerr.Wrap(kerr.IOFailure, "fonts: read font file", err)
	}

	face, err := gotextfont.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return nil, kerr.Wrap(kerr.BadInput, "fonts: parse font file "+path, err)
	}
	raster, err := glyphraster.NewRasterizer(data)
	if err != nil {
		return nil, kerr.Wrap(kerr.BadInput, "fonts: parse font file for rasterization "+path, err)
	}

	f := &textlayout.Font{ID: family, Face: face, Raster: raster}
	s.cache[family] = f
	return f, nil
}

func (s *DirectorySource) findFile(family string) (string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return "", kerr.Wrap(kerr.IOFailure, "fonts: read directory", err)
	}
	for _, e := range entries {
		if e.IsDir() || !isFontFile(e.Name()) {
			continue
		}
		if strings.EqualFold(familyFromFilename(e.Name()), family) {
			return filepath.Join(s.Dir, e.Name()), nil
		}
	}
	return "", kerr.New(kerr.NotFound, "fonts: no font file for family "+family)
}

func isFontFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".ttf", ".otf":
		return true
	default:
		return false
	}
}

func familyFromFilename(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
