package fontattr

import "testing"

func TestClampNearBlack(t *testing.T) {
	got := clampNearBlack([3]uint8{5, 5, 5})
	if got != [3]uint8{0, 0, 0} {
		t.Fatalf("got %v, want [0 0 0]", got)
	}
	if got := clampNearBlack([3]uint8{5, 5, 20}); got != [3]uint8{5, 5, 20} {
		t.Fatalf("got %v, want unchanged when one channel is above the threshold", got)
	}
}

func TestClampNearWhite(t *testing.T) {
	got := clampNearWhite([3]uint8{250, 250, 250})
	if got != [3]uint8{255, 255, 255} {
		t.Fatalf("got %v, want [255 255 255]", got)
	}
	if got := clampNearWhite([3]uint8{250, 250, 100}); got != [3]uint8{250, 250, 100} {
		t.Fatalf("got %v, want unchanged when one channel is below the threshold", got)
	}
}

func TestColorsSimilarWithinMaxDiff(t *testing.T) {
	if !colorsSimilar([3]uint8{10, 10, 10}, [3]uint8{15, 15, 15}) {
		t.Fatal("expected colors within SimilarColorMaxDiff to be similar")
	}
	if colorsSimilar([3]uint8{10, 10, 10}, [3]uint8{100, 10, 10}) {
		t.Fatal("expected a large per-channel difference to not be similar")
	}
}

func TestDecodeZeroesStrokeWidthForSimilarColors(t *testing.T) {
	// reg[2..5) = text color, reg[5..8) = stroke color: set them equal so
	// the decode path zeroes the predicted stroke width.
	reg := [RegressionDim]float32{20, 4, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0, 0.5}
	pred := decode(buildLogits(t, 0, reg), nil, nil, nil)
	if pred.StrokeWidthPx != 0 {
		t.Fatalf("got StrokeWidthPx %v, want 0 for matching text/stroke colors", pred.StrokeWidthPx)
	}
}

func TestDecodeKeepsStrokeWidthForDistinctColors(t *testing.T) {
	reg := [RegressionDim]float32{20, 4, 0.9, 0.9, 0.9, -0.9, -0.9, -0.9, 0, 0.5}
	pred := decode(buildLogits(t, 0, reg), nil, nil, nil)
	if pred.StrokeWidthPx == 0 {
		t.Fatal("expected a nonzero stroke width for clearly distinct text/stroke colors")
	}
}
