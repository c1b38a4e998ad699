// Package schedule assigns a machine, bit, and tool controller to every
// operation of a solid. The assignment minimizes the number of distinct
// machines (and therefore shop transfers) using a greedy cover: the machine
// capable of the most remaining operations is chosen first. Greedy is
// deliberate: it is not always globally optimal, but downstream artifact
// naming and tie-break behavior depend on its specific order, so it must
// not be silently upgraded to an exact set-cover solver.
//
// Determinism: for the same catalog and operation list the assignment is
// identical on every run. Candidate lists are in catalog order, sorts are
// stable, and machine ties break on catalog index.
package schedule

import (
	"fmt"
	"sort"

	"github.com/chazu/tenon/pkg/op"
	"github.com/chazu/tenon/pkg/shop"
)

// Key is the total order over scheduling candidates. Compared
// lexicographically ascending; BitPriority is negative with more negative
// preferred, so plain ascending comparison already favors better bits.
type Key struct {
	MountFence     int
	OperationOrder int
	BitPriority    float64
	ShopIndex      int
	MachineIndex   int
	ToolNumber     int
}

// Less reports whether k orders before other.
func (k Key) Less(other Key) bool {
	if k.MountFence != other.MountFence {
		return k.MountFence < other.MountFence
	}
	if k.OperationOrder != other.OperationOrder {
		return k.OperationOrder < other.OperationOrder
	}
	if k.BitPriority != other.BitPriority {
		return k.BitPriority < other.BitPriority
	}
	if k.ShopIndex != other.ShopIndex {
		return k.ShopIndex < other.ShopIndex
	}
	if k.MachineIndex != other.MachineIndex {
		return k.MachineIndex < other.MachineIndex
	}
	return k.ToolNumber < other.ToolNumber
}

// bestCandidate returns the candidate with the lowest (priority, shop,
// machine, tool) ordering, or nil if there are none.
func bestCandidate(o *op.Operation) *shop.ShopBit {
	var best *shop.ShopBit
	for i := range o.Candidates {
		c := &o.Candidates[i]
		if best == nil || candidateLess(c, best) {
			best = c
		}
	}
	return best
}

func candidateLess(a, b *shop.ShopBit) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if a.ShopIndex != b.ShopIndex {
		return a.ShopIndex < b.ShopIndex
	}
	if a.MachineIndex != b.MachineIndex {
		return a.MachineIndex < b.MachineIndex
	}
	return a.ToolNumber < b.ToolNumber
}

// KeyOf computes the operation's scheduling key. An assigned operation keys
// on its binding; an unassigned one keys on its best candidate. Operations
// with no candidates at all key on zeroed candidate fields, ordering them
// by position only.
func KeyOf(o *op.Operation) Key {
	k := Key{MountFence: o.Fence, OperationOrder: o.Order}
	if o.Sched.Assigned {
		k.BitPriority = o.Sched.Priority
		k.ShopIndex = o.Sched.Machine.ShopIndex
		k.MachineIndex = o.Sched.Machine.MachineIndex
		k.ToolNumber = o.Sched.ToolNumber
		return k
	}
	if best := bestCandidate(o); best != nil {
		k.BitPriority = best.Priority
		k.ShopIndex = best.ShopIndex
		k.MachineIndex = best.MachineIndex
		k.ToolNumber = best.ToolNumber
	}
	return k
}

// Ordered returns a mount's operations sorted ascending by Key. Operations
// never cross a fence boundary because MountFence is the most significant
// component. The sort is stable, so candidates sharing a key position keep
// insertion order and consecutive operations sharing a bit and controller
// avoid a tool change.
func Ordered(m *op.Mount) []*op.Operation {
	ops := append([]*op.Operation(nil), m.Operations()...)
	sort.SliceStable(ops, func(i, j int) bool {
		return KeyOf(ops[i]).Less(KeyOf(ops[j]))
	})
	return ops
}

// Result reports one solid's assignment outcome.
type Result struct {
	// MachinesUsed lists the distinct machines chosen, in greedy pick order.
	MachinesUsed []shop.MachineID
	// Errors holds one human-readable message per infeasible operation.
	// The rest of the solid is still assigned so a user sees every problem
	// in one pass.
	Errors []string
}

// Assign binds a machine, bit, and controller to every operation across all
// mounts of one solid.
//
// Phase 1 populates each operation's candidate set from the catalog.
// Phase 2 repeatedly picks the machine capable of the most remaining
// unassigned operations (ties: lowest catalog index) and assigns it to all
// of them, choosing each operation's best-priority bit on that machine.
func Assign(catalog *shop.Catalog, tables *shop.Tables, material shop.Material, mounts []*op.Mount) Result {
	var res Result

	var pending []*op.Operation
	for _, m := range mounts {
		for _, o := range m.Operations() {
			o.Candidates = catalog.Candidates(o.Request())
			if len(o.Candidates) == 0 {
				res.Errors = append(res.Errors, fmt.Sprintf(
					"no capable machine/bit for %s operation %q (mount %q, diameter %g, depth %g)",
					o.Kind, o.Name, m.Name, o.Request().Diameter, o.Request().Depth))
				continue
			}
			pending = append(pending, o)
		}
	}

	for len(pending) > 0 {
		machine, servable := mostUsefulMachine(pending)
		if len(servable) == 0 {
			break // unreachable: every pending op has at least one candidate
		}
		res.MachinesUsed = append(res.MachinesUsed, machine)

		assigned := make(map[*op.Operation]bool, len(servable))
		for _, o := range servable {
			bindOperation(o, machine, tables, material)
			assigned[o] = true
		}

		next := pending[:0]
		for _, o := range pending {
			if !assigned[o] {
				next = append(next, o)
			}
		}
		pending = next
	}

	return res
}

// mostUsefulMachine finds the machine appearing as a candidate for the
// largest number of pending operations. Machines are considered in
// first-appearance catalog order so ties resolve deterministically to the
// lowest catalog index.
func mostUsefulMachine(pending []*op.Operation) (shop.MachineID, []*op.Operation) {
	var order []shop.MachineID
	servable := make(map[shop.MachineID][]*op.Operation)
	for _, o := range pending {
		seen := make(map[shop.MachineID]bool)
		for _, c := range o.Candidates {
			id := c.ID()
			if seen[id] {
				continue
			}
			seen[id] = true
			if _, known := servable[id]; !known {
				order = append(order, id)
			}
			servable[id] = append(servable[id], o)
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.ShopIndex != b.ShopIndex {
			return a.ShopIndex < b.ShopIndex
		}
		return a.MachineIndex < b.MachineIndex
	})

	var best shop.MachineID
	bestCount := -1
	for _, id := range order {
		if n := len(servable[id]); n > bestCount {
			best = id
			bestCount = n
		}
	}
	return best, servable[best]
}

// bindOperation attaches the chosen machine's best bit and a derived tool
// controller to the operation.
func bindOperation(o *op.Operation, machine shop.MachineID, tables *shop.Tables, material shop.Material) {
	var chosen *shop.ShopBit
	for i := range o.Candidates {
		c := &o.Candidates[i]
		if c.ID() != machine {
			continue
		}
		if chosen == nil || candidateLess(c, chosen) {
			chosen = c
		}
	}
	if chosen == nil {
		return
	}
	o.Sched = op.Schedule{
		Assigned:    true,
		Machine:     machine,
		MachineName: chosen.Machine.Name,
		ShopName:    chosen.Shop.Name,
		Bit:         chosen.Bit,
		ToolNumber:  chosen.ToolNumber,
		Priority:    chosen.Priority,
		Controller:  shop.ControllerFor(chosen.Bit, chosen.Machine, material),
	}
}
