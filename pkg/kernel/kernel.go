// Package kernel defines the abstract solid-modeling service interface.
// Implementations (sdfx, the counting stub) provide stock creation,
// machining cuts, and artifact export behind this interface. Tenon treats
// the service as opaque: all geometry math happens on the other side, and
// the artifact cache decides whether a call is made at all.
package kernel

// Solid is an opaque handle to a modeling-service solid.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Kernel is the abstract solid-modeling service. Cuts are expressed
// mount-relative: contour and hole coordinates live on the work plane and
// depth is measured into the stock from that plane.
type Kernel interface {
	// Stock creates rectangular stock with its minimum corner at the
	// origin, x by y by z mm.
	Stock(x, y, z float64) Solid

	// ExtrudeContour trims the solid to the closed contour, cutting down
	// the given depth from the top face.
	ExtrudeContour(s Solid, contour [][2]float64, depth float64) (Solid, error)

	// Pocket clears the closed contour region to the given depth from the
	// top face.
	Pocket(s Solid, contour [][2]float64, depth float64) (Solid, error)

	// Drill bores holes of one diameter at the given centers, to depth mm
	// from the top face (0 = through).
	Drill(s Solid, centers [][2]float64, diameter, depth float64) (Solid, error)

	// WriteSTL exports the solid to path in the service's interchange
	// format.
	WriteSTL(s Solid, path string) error
}
