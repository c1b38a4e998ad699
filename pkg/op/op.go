// Package op models machining work: each solid carries one or more mounts
// (work-plane-relative setups), and each mount owns an ordered list of
// operations (extrude, pocket, drill). Operations are geometry-immutable
// after creation; scheduling later attaches a bit, tool controller, and
// machine without touching the geometry.
package op

import (
	"fmt"

	"github.com/chazu/tenon/pkg/hashkey"
	"github.com/chazu/tenon/pkg/shop"
)

// ---------------------------------------------------------------------------
// Geometry payloads
// ---------------------------------------------------------------------------

// Vec3 is a point or size in design space, in mm.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%g, %g, %g)", v.X, v.Y, v.Z)
}

// HashValue folds the vector into a cache key input.
func (v Vec3) HashValue() hashkey.Value {
	return hashkey.Tuple{hashkey.Float(v.X), hashkey.Float(v.Y), hashkey.Float(v.Z)}
}

// Point is a 2D point on a mount's work plane, in mm.
type Point struct {
	X, Y float64
}

// HashValue folds the point into a cache key input.
func (p Point) HashValue() hashkey.Value {
	return hashkey.Tuple{hashkey.Float(p.X), hashkey.Float(p.Y)}
}

// Contour is a closed polygon on a mount's work plane. The first and last
// points are implicitly connected.
type Contour struct {
	Points []Point
}

// Rectangle builds a rectangular contour with its minimum corner at (x, y).
func Rectangle(x, y, w, h float64) Contour {
	return Contour{Points: []Point{
		{x, y}, {x + w, y}, {x + w, y + h}, {x, y + h},
	}}
}

// HashValue folds the contour into a cache key input.
func (c Contour) HashValue() hashkey.Value {
	t := make(hashkey.Tuple, 0, len(c.Points)+1)
	t = append(t, hashkey.String("contour"))
	for _, p := range c.Points {
		t = append(t, p.HashValue())
	}
	return t
}

// MinSlotWidth returns the narrowest span of the contour's bounding box,
// the limit on how fat a clearing bit may be.
func (c Contour) MinSlotWidth() float64 {
	if len(c.Points) == 0 {
		return 0
	}
	minX, maxX := c.Points[0].X, c.Points[0].X
	minY, maxY := c.Points[0].Y, c.Points[0].Y
	for _, p := range c.Points[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	w := maxX - minX
	h := maxY - minY
	if w < h {
		return w
	}
	return h
}

// ---------------------------------------------------------------------------
// Holes
// ---------------------------------------------------------------------------

// HoleSpec describes one hole shape independent of its position. Holes with
// equal specs drill with the same bit and merge into one operation.
type HoleSpec struct {
	Diameter    float64 // mm
	Depth       float64 // mm, 0 = through
	Countersink float64 // countersink diameter mm, 0 = none
}

// Key is the grouping key for drill expansion: holes with equal keys share
// an operation and a tool.
func (s HoleSpec) Key() hashkey.Key {
	return hashkey.Of(hashkey.Tuple{
		hashkey.String("hole"),
		hashkey.Float(s.Diameter),
		hashkey.Float(s.Depth),
		hashkey.Float(s.Countersink),
	})
}

// HashValue folds the hole parameters into a cache key input.
func (s HoleSpec) HashValue() hashkey.Value {
	return hashkey.Tuple{
		hashkey.String("hole"),
		hashkey.Float(s.Diameter),
		hashkey.Float(s.Depth),
		hashkey.Float(s.Countersink),
	}
}

// Hole is one hole instance: a spec at a position on the mount plane.
type Hole struct {
	Center Point
	Spec   HoleSpec
}

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

// Kind enumerates the machining operation kinds.
type Kind int

const (
	KindExtrude Kind = iota // cut the exterior contour through the stock
	KindPocket              // clear an interior region to a depth
	KindDrill               // drill a group of identical holes
)

func (k Kind) String() string {
	switch k {
	case KindExtrude:
		return "extrude"
	case KindPocket:
		return "pocket"
	case KindDrill:
		return "drill"
	default:
		return "unknown"
	}
}

// Schedule holds the bindings attached to an operation by the scheduler.
// Zero until the scheduler runs.
type Schedule struct {
	Assigned        bool
	Machine         shop.MachineID
	MachineName     string
	ShopName        string
	Bit             *shop.Bit
	ToolNumber      int
	Priority        float64
	Controller      shop.ToolController
	ControllerIndex int
}

// Operation is one machining step within a mount. Geometry fields are fixed
// at creation; Sched is attached later.
type Operation struct {
	Name    string
	Kind    Kind
	Contour Contour // extrude/pocket
	Depth   float64 // extrude/pocket cutting depth
	Spec    HoleSpec
	Centers []Point // drill: every center sharing Spec

	Fence int // fence generation at creation; never reordered across fences
	Order int // insertion order within the mount

	Candidates []shop.ShopBit // capable (shop, machine, bit) triples
	Sched      Schedule
	Art        Artifact
}

// Artifact records the cached output of a realized operation.
type Artifact struct {
	Prefix string // deterministic build prefix, e.g. d01s002m01o003
	Path   string // cached artifact path
	Hash   string // 16-hex-digit content hash
}

// Request maps the operation onto a shop capability probe.
func (o *Operation) Request() shop.Request {
	switch o.Kind {
	case KindDrill:
		return shop.Request{Class: shop.ClassDrill, Diameter: o.Spec.Diameter, Depth: o.Spec.Depth}
	case KindPocket:
		return shop.Request{Class: shop.ClassPocket, Diameter: o.Contour.MinSlotWidth(), Depth: o.Depth}
	default:
		return shop.Request{Class: shop.ClassContour, Depth: o.Depth}
	}
}

// groupKey is the merge key: operations in the same mount and fence with
// equal group keys are the same logical cut and collapse into one record.
func (o *Operation) groupKey() hashkey.Key {
	switch o.Kind {
	case KindDrill:
		return hashkey.Of(hashkey.Tuple{
			hashkey.Int(int64(o.Kind)),
			hashkey.Int(int64(o.Fence)),
			o.Spec.HashValue(),
		})
	default:
		return hashkey.Of(hashkey.Tuple{
			hashkey.Int(int64(o.Kind)),
			hashkey.Int(int64(o.Fence)),
			o.Contour.HashValue(),
			hashkey.Float(o.Depth),
		})
	}
}

// HashValue folds the operation's semantic inputs into a cache key input.
// Scheduling metadata participates so a tool change invalidates the cached
// machined artifact.
func (o *Operation) HashValue() hashkey.Value {
	t := hashkey.Tuple{
		hashkey.String("op"),
		hashkey.Int(int64(o.Kind)),
		hashkey.Float(o.Depth),
		o.Contour.HashValue(),
		o.Spec.HashValue(),
	}
	for _, c := range o.Centers {
		t = append(t, c.HashValue())
	}
	if o.Sched.Assigned {
		t = append(t, o.Sched.Bit.HashValue(), o.Sched.Controller.HashValue())
	}
	return t
}

// ---------------------------------------------------------------------------
// Mounts
// ---------------------------------------------------------------------------

// Face names the solid face a mount works against.
type Face string

const (
	FaceTop    Face = "top"
	FaceBottom Face = "bottom"
	FaceLeft   Face = "left"
	FaceRight  Face = "right"
	FaceFront  Face = "front"
	FaceBack   Face = "back"
)

// ValidFaces is the set of face names accepted by mounts.
var ValidFaces = map[Face]bool{
	FaceTop: true, FaceBottom: true, FaceLeft: true,
	FaceRight: true, FaceFront: true, FaceBack: true,
}

// Mount is one work-plane setup on a solid, owning an ordered operation
// sequence. Operations merge when a new request matches an existing one's
// group key inside the same fence.
type Mount struct {
	Name string
	Face Face

	ops     []*Operation
	byGroup map[hashkey.Key]*Operation
	fence   int
}

// NewMount creates a mount against the named face.
func NewMount(name string, face Face) (*Mount, error) {
	if !ValidFaces[face] {
		return nil, fmt.Errorf("op: invalid mount face %q", face)
	}
	return &Mount{
		Name:    name,
		Face:    face,
		byGroup: make(map[hashkey.Key]*Operation),
	}, nil
}

// Operations returns the mount's operations in insertion order.
func (m *Mount) Operations() []*Operation { return m.ops }

// Fence closes the current operation group: later operations never merge
// with or reorder before anything appended so far.
func (m *Mount) Fence() { m.fence++ }

// FenceCount returns the number of fence boundaries declared so far.
func (m *Mount) FenceCount() int { return m.fence }

func (m *Mount) append(o *Operation) *Operation {
	o.Fence = m.fence
	o.Order = len(m.ops)
	if existing, ok := m.byGroup[o.groupKey()]; ok {
		// Identical cut requested twice: merge rather than re-cut.
		if o.Kind == KindDrill {
			existing.Centers = append(existing.Centers, o.Centers...)
		}
		return existing
	}
	m.ops = append(m.ops, o)
	m.byGroup[o.groupKey()] = o
	return o
}

// Extrude appends an exterior contour cut to the given depth.
func (m *Mount) Extrude(name string, contour Contour, depth float64) *Operation {
	return m.append(&Operation{Name: name, Kind: KindExtrude, Contour: contour, Depth: depth})
}

// Pocket appends an interior clearing cut to the given depth.
func (m *Mount) Pocket(name string, contour Contour, depth float64) *Operation {
	return m.append(&Operation{Name: name, Kind: KindPocket, Contour: contour, Depth: depth})
}

// Drill appends hole operations for the given holes. Holes are grouped by
// spec: one operation per distinct HoleSpec, each carrying all matching
// centers, so a tool change happens once per spec rather than once per hole.
// Returned operations are in first-appearance order of their specs.
func (m *Mount) Drill(name string, holes ...Hole) []*Operation {
	var out []*Operation
	seen := make(map[hashkey.Key]*Operation)
	for _, h := range holes {
		key := h.Spec.Key()
		if o, ok := seen[key]; ok {
			o.Centers = append(o.Centers, h.Center)
			continue
		}
		o := m.append(&Operation{
			Name:    fmt.Sprintf("%s_d%g", name, h.Spec.Diameter),
			Kind:    KindDrill,
			Spec:    h.Spec,
			Centers: []Point{h.Center},
		})
		seen[key] = o
		out = append(out, o)
	}
	return out
}

// FastenerHoles expands fastener placements into pilot holes using the
// fastener table entry. Each placement becomes one hole with the template's
// pilot diameter and countersink.
func FastenerHoles(f shop.Fastener, centers ...Point) []Hole {
	spec := HoleSpec{
		Diameter:    f.PilotDiameter,
		Depth:       f.Length,
		Countersink: 0,
	}
	if f.CountersinkDeep > 0 {
		spec.Countersink = f.HeadDiameter
	}
	holes := make([]Hole, len(centers))
	for i, c := range centers {
		holes[i] = Hole{Center: c, Spec: spec}
	}
	return holes
}
