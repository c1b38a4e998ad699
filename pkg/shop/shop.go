// Package shop models the fabrication resources available to a build: shops,
// the CNC machines inside them, and the tool bits resident in each machine's
// library. The scheduler asks this package which (shop, machine, bit)
// combinations can perform a requested machining operation and how strongly
// each candidate is preferred.
package shop

import (
	"fmt"

	"github.com/chazu/tenon/pkg/hashkey"
)

// ---------------------------------------------------------------------------
// Bits
// ---------------------------------------------------------------------------

// BitShape distinguishes tool bit geometries.
type BitShape int

const (
	ShapeEndMill BitShape = iota // flat-bottomed milling cutter
	ShapeDrill                   // twist drill
	ShapeVBit                    // v-groove engraving bit
)

func (s BitShape) String() string {
	switch s {
	case ShapeEndMill:
		return "end-mill"
	case ShapeDrill:
		return "drill"
	case ShapeVBit:
		return "v-bit"
	default:
		return "unknown"
	}
}

// Bit is a physical tool bit template.
type Bit struct {
	Name       string   `json:"name" mapstructure:"name"`
	Shape      BitShape `json:"shape" mapstructure:"shape"`
	Diameter   float64  `json:"diameter" mapstructure:"diameter"` // cutting diameter mm
	FluteCount int      `json:"flute_count" mapstructure:"flute_count"`
	CutLength  float64  `json:"cut_length" mapstructure:"cut_length"`   // maximum cutting depth mm
	PointAngle float64  `json:"point_angle" mapstructure:"point_angle"` // drill tip angle in degrees, 0 for flat
}

// HashValue folds the bit's identity into a cache key input.
func (b *Bit) HashValue() hashkey.Value {
	return hashkey.Tuple{
		hashkey.String("bit"),
		hashkey.String(b.Name),
		hashkey.Int(int64(b.Shape)),
		hashkey.Float(b.Diameter),
		hashkey.Int(int64(b.FluteCount)),
		hashkey.Float(b.CutLength),
		hashkey.Float(b.PointAngle),
	}
}

// ---------------------------------------------------------------------------
// Capability probes
// ---------------------------------------------------------------------------

// OpClass is the machining class a bit is probed against. The operation
// model maps its operation kinds onto these classes.
type OpClass int

const (
	ClassContour OpClass = iota // exterior contour milling (extrude)
	ClassPocket                 // interior pocket clearing
	ClassDrill                  // hole drilling
)

func (c OpClass) String() string {
	switch c {
	case ClassContour:
		return "contour"
	case ClassPocket:
		return "pocket"
	case ClassDrill:
		return "drill"
	default:
		return "unknown"
	}
}

// Request carries the geometric parameters of one prospective operation.
type Request struct {
	Class    OpClass
	Diameter float64 // hole diameter, or minimum internal radius*2 for pockets
	Depth    float64 // cutting depth mm
}

// diameterTolerance is the match window for treating a drill bit as an
// exact fit for a requested hole, in mm.
const diameterTolerance = 0.01

// Priority base levels. More negative is more preferred, so an exact-fit
// drill always outranks an end mill that could also plunge the hole.
const (
	priorityDrillExact  = -200.0
	priorityEndMillBase = -100.0
	priorityContourBase = -100.0
	priorityPocketBase  = -100.0
)

// Capable reports whether the bit can perform the request, and if so with
// what priority (negative, more negative is better). The priority encodes
// shape fitness: exact-diameter drills beat hole-capable end mills, and
// larger end mills beat smaller ones for clearing work.
func (b *Bit) Capable(r Request) (priority float64, ok bool) {
	if r.Depth > b.CutLength && b.CutLength > 0 {
		return 0, false
	}
	switch r.Class {
	case ClassDrill:
		d := r.Diameter - b.Diameter
		if d < 0 {
			d = -d
		}
		switch b.Shape {
		case ShapeDrill:
			if d <= diameterTolerance {
				return priorityDrillExact, true
			}
			return 0, false
		case ShapeEndMill:
			// A flat end mill can plunge a hole of exactly its own diameter.
			if d <= diameterTolerance {
				return priorityEndMillBase, true
			}
			return 0, false
		}
		return 0, false
	case ClassPocket:
		if b.Shape != ShapeEndMill {
			return 0, false
		}
		if r.Diameter > 0 && b.Diameter > r.Diameter {
			return 0, false // bit too fat for the pocket's inside corners
		}
		return priorityPocketBase - b.Diameter, true
	case ClassContour:
		if b.Shape != ShapeEndMill {
			return 0, false
		}
		return priorityContourBase - b.Diameter, true
	}
	return 0, false
}

// ---------------------------------------------------------------------------
// Machines and shops
// ---------------------------------------------------------------------------

// Machine is one CNC machine with a fixed library of resident bits.
// The library index of a bit is its tool number.
type Machine struct {
	Name       string  `json:"name" mapstructure:"name"`
	SpindleMax float64 `json:"spindle_max" mapstructure:"spindle_max"` // max spindle speed RPM
	Library    []*Bit  `json:"library" mapstructure:"library"`
}

// Shop is a physical location owning one or more machines. Moving a part
// between shops costs a transfer, which the scheduler minimizes implicitly
// by minimizing distinct machines.
type Shop struct {
	Name     string     `json:"name" mapstructure:"name"`
	Machines []*Machine `json:"machines" mapstructure:"machines"`
}

// Catalog is the full set of shops available to a build. Shop and machine
// order is load order and is part of the deterministic tie-break contract.
type Catalog struct {
	Shops []*Shop `json:"shops" mapstructure:"shops"`
}

// ShopBit is one candidate binding of a bit on a machine in a shop, capable
// of a specific request. Indices are catalog positions, used as stable
// tie-breaks.
type ShopBit struct {
	ShopIndex    int
	MachineIndex int
	ToolNumber   int
	Shop         *Shop
	Machine      *Machine
	Bit          *Bit
	Priority     float64 // negative; more negative is more preferred
}

// MachineID identifies a machine by its catalog position.
type MachineID struct {
	ShopIndex    int
	MachineIndex int
}

func (id MachineID) String() string {
	return fmt.Sprintf("s%dm%d", id.ShopIndex, id.MachineIndex)
}

// ID returns the candidate's machine identity.
func (sb ShopBit) ID() MachineID {
	return MachineID{ShopIndex: sb.ShopIndex, MachineIndex: sb.MachineIndex}
}

// Candidates collects every (shop, machine, bit) triple capable of the
// request, in catalog order. The slice is deterministic for a given catalog
// and request: shops, then machines, then tool numbers ascending.
func (c *Catalog) Candidates(r Request) []ShopBit {
	var out []ShopBit
	for si, s := range c.Shops {
		for mi, m := range s.Machines {
			for tn, b := range m.Library {
				p, ok := b.Capable(r)
				if !ok {
					continue
				}
				out = append(out, ShopBit{
					ShopIndex:    si,
					MachineIndex: mi,
					ToolNumber:   tn,
					Shop:         s,
					Machine:      m,
					Bit:          b,
					Priority:     p,
				})
			}
		}
	}
	return out
}

// MachineAt returns the machine at the given catalog position, or nil.
func (c *Catalog) MachineAt(id MachineID) *Machine {
	if id.ShopIndex < 0 || id.ShopIndex >= len(c.Shops) {
		return nil
	}
	s := c.Shops[id.ShopIndex]
	if id.MachineIndex < 0 || id.MachineIndex >= len(s.Machines) {
		return nil
	}
	return s.Machines[id.MachineIndex]
}

// ---------------------------------------------------------------------------
// Tool controllers
// ---------------------------------------------------------------------------

// ToolController binds feeds, speeds, and cooling to a bit for one
// operation. Controllers are deduplicated by value during a build so that
// consecutive operations sharing a controller avoid a tool change.
type ToolController struct {
	BitName    string  `json:"bit_name" mapstructure:"bit_name"`
	SpindleRPM float64 `json:"spindle_rpm" mapstructure:"spindle_rpm"`
	FeedRate   float64 `json:"feed_rate" mapstructure:"feed_rate"` // mm/min
	PlungeRate float64 `json:"plunge_rate" mapstructure:"plunge_rate"`
	Cooling    bool    `json:"cooling" mapstructure:"cooling"`
}

// HashValue folds the controller into a cache key input. Equal controllers
// hash equal, which is what the dedup table keys on.
func (tc ToolController) HashValue() hashkey.Value {
	return hashkey.Tuple{
		hashkey.String("tool-controller"),
		hashkey.String(tc.BitName),
		hashkey.Float(tc.SpindleRPM),
		hashkey.Float(tc.FeedRate),
		hashkey.Float(tc.PlungeRate),
		hashkey.Bool(tc.Cooling),
	}
}

// ControllerFor derives feeds and speeds for a bit cutting a material.
// The numbers come from the material table's machinability factor; the
// machine's spindle ceiling clamps the RPM.
func ControllerFor(b *Bit, m *Machine, mat Material) ToolController {
	rpm := 18000.0
	if b.Diameter > 0 {
		// Surface-speed derated by diameter; small bits spin faster.
		rpm = 60000.0 / b.Diameter * mat.SpeedFactor
	}
	if m.SpindleMax > 0 && rpm > m.SpindleMax {
		rpm = m.SpindleMax
	}
	feed := rpm * float64(max(b.FluteCount, 1)) * mat.ChipLoad
	return ToolController{
		BitName:    b.Name,
		SpindleRPM: rpm,
		FeedRate:   feed,
		PlungeRate: feed / 3,
		Cooling:    mat.Cooling,
	}
}
