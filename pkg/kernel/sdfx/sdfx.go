// Package sdfx implements the kernel.Kernel interface using the
// github.com/deadsy/sdfx SDF-based CAD library.
package sdfx

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/tenon/pkg/kernel"
)

// Compile-time interface check.
var _ kernel.Kernel = (*SdfxKernel)(nil)

// defaultMeshCells controls marching cubes tessellation resolution for
// STL export.
const defaultMeshCells = 200

// sdfxSolid wraps an sdf.SDF3 to implement kernel.Solid.
type sdfxSolid struct {
	s sdf.SDF3
}

// BoundingBox returns the axis-aligned bounding box.
func (s *sdfxSolid) BoundingBox() (min, max [3]float64) {
	bb := s.s.BoundingBox()
	min = [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}
	max = [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
	return min, max
}

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct{}

// New returns a new SdfxKernel.
func New() *SdfxKernel {
	return &SdfxKernel{}
}

func unwrap(s kernel.Solid) sdf.SDF3 {
	return s.(*sdfxSolid).s
}

func wrap(s sdf.SDF3) kernel.Solid {
	return &sdfxSolid{s: s}
}

// Stock creates rectangular stock with its minimum corner at the origin.
// sdf.Box3D centers the box, so we translate by half-dimensions.
func (k *SdfxKernel) Stock(x, y, z float64) kernel.Solid {
	s, err := sdf.Box3D(v3.Vec{X: x, Y: y, Z: z}, 0)
	if err != nil {
		panic(fmt.Sprintf("sdfx.Box3D: %v", err))
	}
	m := sdf.Translate3d(v3.Vec{X: x / 2, Y: y / 2, Z: z / 2})
	return wrap(sdf.Transform3D(s, m))
}

// contourPrism builds the extrusion of a closed contour spanning the z
// range [zLo, zHi].
func contourPrism(contour [][2]float64, zLo, zHi float64) (sdf.SDF3, error) {
	if len(contour) < 3 {
		return nil, fmt.Errorf("sdfx: contour needs at least 3 points, got %d", len(contour))
	}
	pts := make([]v2.Vec, len(contour))
	for i, p := range contour {
		pts[i] = v2.Vec{X: p[0], Y: p[1]}
	}
	poly, err := sdf.Polygon2D(pts)
	if err != nil {
		return nil, fmt.Errorf("sdfx: polygon: %w", err)
	}
	h := zHi - zLo
	prism := sdf.Extrude3D(poly, h)
	// Extrude3D spans [-h/2, h/2]; shift so the prism occupies [zLo, zHi].
	return sdf.Transform3D(prism, sdf.Translate3d(v3.Vec{Z: zLo + h/2})), nil
}

// cutRange resolves a mount-relative depth to an absolute z span of the
// solid: cutting starts at the top face and descends depth mm. depth <= 0
// means through the whole solid.
func cutRange(s sdf.SDF3, depth float64) (zLo, zHi float64) {
	bb := s.BoundingBox()
	zHi = bb.Max.Z
	if depth <= 0 || depth > zHi-bb.Min.Z {
		return bb.Min.Z, zHi
	}
	return zHi - depth, zHi
}

// ExtrudeContour removes all material outside the contour, down to depth
// from the top face. The cut region is the z-slab minus the contour prism.
func (k *SdfxKernel) ExtrudeContour(s kernel.Solid, contour [][2]float64, depth float64) (kernel.Solid, error) {
	sdf3 := unwrap(s)
	zLo, zHi := cutRange(sdf3, depth)

	keep, err := contourPrism(contour, zLo, zHi)
	if err != nil {
		return nil, err
	}

	bb := sdf3.BoundingBox()
	slab, err := sdf.Box3D(v3.Vec{X: bb.Max.X - bb.Min.X, Y: bb.Max.Y - bb.Min.Y, Z: zHi - zLo}, 0)
	if err != nil {
		return nil, fmt.Errorf("sdfx: slab: %w", err)
	}
	center := v3.Vec{
		X: (bb.Min.X + bb.Max.X) / 2,
		Y: (bb.Min.Y + bb.Max.Y) / 2,
		Z: (zLo + zHi) / 2,
	}
	slab3 := sdf.Transform3D(slab, sdf.Translate3d(center))

	cutter := sdf.Difference3D(slab3, keep)
	return wrap(sdf.Difference3D(sdf3, cutter)), nil
}

// Pocket clears the contour region to depth from the top face.
func (k *SdfxKernel) Pocket(s kernel.Solid, contour [][2]float64, depth float64) (kernel.Solid, error) {
	sdf3 := unwrap(s)
	zLo, zHi := cutRange(sdf3, depth)

	cutter, err := contourPrism(contour, zLo, zHi)
	if err != nil {
		return nil, err
	}
	return wrap(sdf.Difference3D(sdf3, cutter)), nil
}

// Drill bores holes of one diameter at the given centers.
func (k *SdfxKernel) Drill(s kernel.Solid, centers [][2]float64, diameter, depth float64) (kernel.Solid, error) {
	if diameter <= 0 {
		return nil, fmt.Errorf("sdfx: drill diameter must be positive, got %g", diameter)
	}
	sdf3 := unwrap(s)
	zLo, zHi := cutRange(sdf3, depth)
	h := zHi - zLo

	result := sdf3
	for _, c := range centers {
		cyl, err := sdf.Cylinder3D(h, diameter/2, 0)
		if err != nil {
			return nil, fmt.Errorf("sdfx: cylinder: %w", err)
		}
		m := sdf.Translate3d(v3.Vec{X: c[0], Y: c[1], Z: zLo + h/2})
		result = sdf.Difference3D(result, sdf.Transform3D(cyl, m))
	}
	return wrap(result), nil
}

// WriteSTL exports the solid as a binary STL file via marching cubes, the
// same triangle path the mesh output uses.
func (k *SdfxKernel) WriteSTL(s kernel.Solid, path string) error {
	sdf3 := unwrap(s)
	renderer := render.NewMarchingCubesUniform(defaultMeshCells)
	triangles := render.ToTriangles(sdf3, renderer)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("sdfx: create %s: %w", path, err)
	}
	defer f.Close()

	// Binary STL layout: 80-byte header, uint32 count, then per triangle
	// a normal, 3 vertices, and an attribute word.
	var header [80]byte
	copy(header[:], "tenon")
	if _, err := f.Write(header[:]); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(triangles))); err != nil {
		return err
	}

	buf := make([]float32, 12)
	for _, tri := range triangles {
		n := tri.Normal()
		buf[0], buf[1], buf[2] = float32(n.X), float32(n.Y), float32(n.Z)
		for j := 0; j < 3; j++ {
			v := tri[j]
			buf[3+j*3] = float32(v.X)
			buf[4+j*3] = float32(v.Y)
			buf[5+j*3] = float32(v.Z)
		}
		if err := binary.Write(f, binary.LittleEndian, buf); err != nil {
			return err
		}
		if err := binary.Write(f, binary.LittleEndian, uint16(0)); err != nil {
			return err
		}
	}
	return nil
}
