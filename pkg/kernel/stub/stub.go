// Package stub provides an in-memory kernel.Kernel test double. It performs
// no geometry; every call is counted so tests can assert that the artifact
// cache prevented regeneration.
package stub

import (
	"fmt"
	"os"

	"github.com/chazu/tenon/pkg/kernel"
)

// Compile-time interface check.
var _ kernel.Kernel = (*Kernel)(nil)

// solid is the stub's trivial solid: just a bounding box.
type solid struct {
	min, max [3]float64
}

func (s *solid) BoundingBox() (min, max [3]float64) {
	return s.min, s.max
}

// Kernel counts modeling-service invocations. The zero value is ready to
// use.
type Kernel struct {
	StockCalls   int
	ExtrudeCalls int
	PocketCalls  int
	DrillCalls   int
	WriteCalls   int
}

// New returns a fresh counting kernel.
func New() *Kernel {
	return &Kernel{}
}

// Calls returns the total number of modeling calls made.
func (k *Kernel) Calls() int {
	return k.StockCalls + k.ExtrudeCalls + k.PocketCalls + k.DrillCalls + k.WriteCalls
}

// CutCalls returns the number of machining calls (everything except stock
// creation and export).
func (k *Kernel) CutCalls() int {
	return k.ExtrudeCalls + k.PocketCalls + k.DrillCalls
}

// Stock creates a fake stock solid.
func (k *Kernel) Stock(x, y, z float64) kernel.Solid {
	k.StockCalls++
	return &solid{max: [3]float64{x, y, z}}
}

// ExtrudeContour records the call and returns the input unchanged.
func (k *Kernel) ExtrudeContour(s kernel.Solid, contour [][2]float64, depth float64) (kernel.Solid, error) {
	k.ExtrudeCalls++
	if len(contour) < 3 {
		return nil, fmt.Errorf("stub: contour needs at least 3 points")
	}
	return s, nil
}

// Pocket records the call and returns the input unchanged.
func (k *Kernel) Pocket(s kernel.Solid, contour [][2]float64, depth float64) (kernel.Solid, error) {
	k.PocketCalls++
	if len(contour) < 3 {
		return nil, fmt.Errorf("stub: contour needs at least 3 points")
	}
	return s, nil
}

// Drill records the call and returns the input unchanged.
func (k *Kernel) Drill(s kernel.Solid, centers [][2]float64, diameter, depth float64) (kernel.Solid, error) {
	k.DrillCalls++
	if diameter <= 0 {
		return nil, fmt.Errorf("stub: diameter must be positive")
	}
	return s, nil
}

// WriteSTL writes a tiny placeholder artifact.
func (k *Kernel) WriteSTL(s kernel.Solid, path string) error {
	k.WriteCalls++
	return os.WriteFile(path, []byte("stub-solid\n"), 0o644)
}
