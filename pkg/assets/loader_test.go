package assets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/koharu-go/koharu/pkg/kerr"
	"github.com/koharu-go/koharu/pkg/models/llm"
)

func TestNewStoreCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("expected cache dir to exist: %v", err)
	}
	if store.Dir != dir {
		t.Fatalf("got Dir %q, want %q", store.Dir, dir)
	}
}

func TestStorePathJoinsKeyUnderDir(t *testing.T) {
	store := &Store{Dir: "/cache"}
	got := store.Path("vntl-llama3-8b-v2.gguf")
	want := filepath.Join("/cache", "vntl-llama3-8b-v2.gguf")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestLLMLoaderReportsMissingModelWithNoMirrorsReachable(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Manifest.Close()
	store.MirrorTemplates = []string{"http://127.0.0.1:1/%s/%s"}
	loader := NewLLMLoader(store)

	_, err = loader.Load(context.Background(), llm.VntlLlama3_8Bv2)
	if err == nil {
		t.Fatal("expected an error when no mirror is reachable")
	}
}

func TestLLMLoaderRejectsACorruptCachedFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Manifest.Close()
	loader := NewLLMLoader(store)

	path := store.Path(llm.VntlLlama3_8Bv2.String() + ".gguf")
	if err := os.WriteFile(path, []byte("not a real gguf"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err = loader.Load(context.Background(), llm.VntlLlama3_8Bv2)
	if !kerr.Is(err, kerr.BadInput) {
		t.Fatalf("got %v, want a BadInput error for a corrupt GGUF file", err)
	}
}
