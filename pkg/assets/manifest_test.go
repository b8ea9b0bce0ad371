package assets

import (
	"path/filepath"
	"testing"

	"github.com/koharu-go/koharu/pkg/kerr"
)

func TestManifestPutAndGetRoundTrips(t *testing.T) {
	m, err := OpenManifest(filepath.Join(t.TempDir(), "manifest.db"))
	if err != nil {
		t.Fatalf("OpenManifest: %v", err)
	}
	defer m.Close()

	rec := ManifestRecord{Path: "/cache/model.gguf", MirrorURL: "https://example.com/model.gguf", SizeBytes: 1234}
	if err := m.Put("vntl-llama3-8b-v2.gguf", rec); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := m.Get("vntl-llama3-8b-v2.gguf")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Path != rec.Path || got.MirrorURL != rec.MirrorURL || got.SizeBytes != rec.SizeBytes {
		t.Fatalf("got %+v, want %+v", got, rec)
	}
	if got.ID == "" {
		t.Fatal("expected Put to assign a non-empty record ID")
	}
	if got.FetchedAt.IsZero() {
		t.Fatal("expected Put to stamp FetchedAt")
	}
}

func TestManifestGetMissingKeyReturnsNotFound(t *testing.T) {
	m, err := OpenManifest(filepath.Join(t.TempDir(), "manifest.db"))
	if err != nil {
		t.Fatalf("OpenManifest: %v", err)
	}
	defer m.Close()

	_, err = m.Get("does-not-exist")
	if !kerr.Is(err, kerr.NotFound) {
		t.Fatalf("got %v, want a NotFound error", err)
	}
}
