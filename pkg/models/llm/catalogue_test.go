package llm

import (
	"context"
	"testing"
)

func TestModelIDStringRoundTrip(t *testing.T) {
	for _, id := range allModels {
		key := id.String()
		if key == "unknown" {
			t.Fatalf("model %d has no catalogue entry", id)
		}
		got, err := ParseModelID(key)
		if err != nil {
			t.Fatalf("ParseModelID(%q): %v", key, err)
		}
		if got != id {
			t.Fatalf("ParseModelID(%q) = %v, want %v", key, got, id)
		}
	}
}

func TestParseModelIDRejectsUnknown(t *testing.T) {
	if _, err := ParseModelID("not-a-real-model"); err == nil {
		t.Fatal("expected error for unknown model key")
	}
}

func TestListContainsEveryModelExactlyOnce(t *testing.T) {
	infos := List("en", false)
	if len(infos) != len(allModels) {
		t.Fatalf("got %d entries, want %d", len(infos), len(allModels))
	}
	seen := map[string]bool{}
	for _, info := range infos {
		if seen[info.ID] {
			t.Fatalf("duplicate entry for %q", info.ID)
		}
		seen[info.ID] = true
		if info.DisplayName == "unknown" {
			t.Fatalf("missing display name for %q", info.ID)
		}
	}
}

func TestListFavorsVNTLForEnglishGPU(t *testing.T) {
	infos := List("en", false)
	if infos[0].ID != VntlLlama3_8Bv2.String() {
		t.Fatalf("got first model %q, want VNTL on en/GPU", infos[0].ID)
	}
}

func TestListFavorsLFM2OnCPU(t *testing.T) {
	infos := List("en", true)
	if infos[0].ID != Lfm2_350mEnjpMt.String() {
		t.Fatalf("got first model %q, want LFM2 on CPU", infos[0].ID)
	}
}

func TestListFavorsSakuraForChinese(t *testing.T) {
	infos := List("zh", false)
	if infos[0].ID != SakuraGalTransl7Bv3_7.String() {
		t.Fatalf("got first model %q, want Sakura GalTransl for zh", infos[0].ID)
	}
}

func TestMarkersForEveryFamily(t *testing.T) {
	for _, f := range []Family{FamilyLlama, FamilyQwen2, FamilyLFM2} {
		m := markersFor(f)
		if m.RoleStart == "" || m.MessageEnd == "" {
			t.Fatalf("family %d missing role markers: %+v", f, m)
		}
	}
}

type stubLoader struct {
	err error
}

func (s *stubLoader) Load(ctx context.Context, id ModelID) (*Model, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &Model{ID: id}, nil
}

func TestWrapperLifecycle(t *testing.T) {
	w := NewWrapper(&stubLoader{}, true)
	if w.Ready(context.Background()) {
		t.Fatal("wrapper should not be ready before a load")
	}
	if !w.IsCPU() {
		t.Fatal("expected IsCPU() to reflect the constructor flag")
	}

	if err := w.Load(context.Background(), VntlLlama3_8Bv2.String()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !w.Ready(context.Background()) {
		t.Fatal("wrapper should be ready after a successful load")
	}

	w.Offload(context.Background())
	if w.Ready(context.Background()) {
		t.Fatal("wrapper should not be ready after offload")
	}
}

func TestWrapperLoadRejectsUnknownModel(t *testing.T) {
	w := NewWrapper(&stubLoader{}, false)
	if err := w.Load(context.Background(), "not-a-model"); err == nil {
		t.Fatal("expected error loading an unknown model id")
	}
}
