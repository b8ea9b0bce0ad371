package pipeline

import "testing"

func TestComputePercentHandlesZeroUnits(t *testing.T) {
	if got := ComputePercent(0, 0, 0, 5); got != 0 {
		t.Fatalf("got %d, want 0", got)
	}
	if got := ComputePercent(0, 0, 2, 0); got != 0 {
		t.Fatalf("got %d, want 0", got)
	}
}

func TestComputePercentProgressesMonotonically(t *testing.T) {
	totalDocs, totalSteps := 2, 5
	first := ComputePercent(0, 0, totalDocs, totalSteps)
	middle := ComputePercent(0, 3, totalDocs, totalSteps)
	last := ComputePercent(1, 4, totalDocs, totalSteps)
	if !(first < middle) {
		t.Fatalf("expected first < middle, got %d, %d", first, middle)
	}
	if !(middle < last) {
		t.Fatalf("expected middle < last, got %d, %d", middle, last)
	}
	if last != 90 {
		t.Fatalf("got %d, want 90", last)
	}
}
