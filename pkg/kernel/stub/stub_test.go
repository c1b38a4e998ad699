package stub

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCountsEveryCall(t *testing.T) {
	k := New()
	s := k.Stock(100, 50, 19)

	s, err := k.ExtrudeContour(s, [][2]float64{{0, 0}, {100, 0}, {100, 50}, {0, 50}}, 19)
	if err != nil {
		t.Fatal(err)
	}
	s, err = k.Pocket(s, [][2]float64{{10, 10}, {40, 10}, {40, 30}, {10, 30}}, 6)
	if err != nil {
		t.Fatal(err)
	}
	_, err = k.Drill(s, [][2]float64{{50, 25}}, 5, 0)
	if err != nil {
		t.Fatal(err)
	}

	if k.Calls() != 4 {
		t.Errorf("Calls() = %d, want 4", k.Calls())
	}
	if k.CutCalls() != 3 {
		t.Errorf("CutCalls() = %d, want 3", k.CutCalls())
	}
}

func TestRejectsDegenerateInput(t *testing.T) {
	k := New()
	s := k.Stock(10, 10, 10)

	if _, err := k.ExtrudeContour(s, [][2]float64{{0, 0}}, 5); err == nil {
		t.Error("two-point contour should error")
	}
	if _, err := k.Drill(s, [][2]float64{{1, 1}}, 0, 5); err == nil {
		t.Error("zero-diameter drill should error")
	}
}

func TestWriteSTLCreatesFile(t *testing.T) {
	k := New()
	s := k.Stock(10, 10, 10)
	path := filepath.Join(t.TempDir(), "part.stl")
	if err := k.WriteSTL(s, path); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("artifact not written: %v", err)
	}
	if k.WriteCalls != 1 {
		t.Errorf("WriteCalls = %d, want 1", k.WriteCalls)
	}
}

func TestBoundingBox(t *testing.T) {
	k := New()
	s := k.Stock(100, 50, 19)
	min, max := s.BoundingBox()
	if min != [3]float64{} {
		t.Errorf("min = %v, want origin", min)
	}
	if max != [3]float64{100, 50, 19} {
		t.Errorf("max = %v", max)
	}
}
