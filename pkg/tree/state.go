package tree

import (
	"fmt"

	"github.com/chazu/tenon/pkg/cache"
	"github.com/chazu/tenon/pkg/hashkey"
	"github.com/chazu/tenon/pkg/kernel"
	"github.com/chazu/tenon/pkg/shop"
)

// ---------------------------------------------------------------------------
// Prefix counters
// ---------------------------------------------------------------------------

// Prefix is the 4-level build counter (document, solid, mount, operation).
// Counters start at 0 (unset) and are bumped by the Next* calls; advancing
// a level resets the levels below it, so every emitted prefix string is
// unique and sorts lexicographically in creation order.
type Prefix struct {
	doc   int
	solid int
	mount int
	op    int
}

// NextDocument advances to the next document.
func (p *Prefix) NextDocument() string {
	p.doc++
	p.solid, p.mount, p.op = 0, 0, 0
	return p.String()
}

// NextSolid advances to the next solid within the current document.
func (p *Prefix) NextSolid() string {
	p.solid++
	p.mount, p.op = 0, 0
	return p.String()
}

// NextMount advances to the next mount within the current solid.
func (p *Prefix) NextMount() string {
	p.mount++
	p.op = 0
	return p.String()
}

// NextOperation advances to the next operation within the current mount.
func (p *Prefix) NextOperation() string {
	p.op++
	return p.String()
}

// String renders the prefix as d<NN>s<NNN>m<NN>o<NNN>, zero-padded, with
// all-zero trailing components omitted: d01, d01s002, d01s002m03o004.
func (p Prefix) String() string {
	switch {
	case p.op > 0:
		return fmt.Sprintf("d%02ds%03dm%02do%03d", p.doc, p.solid, p.mount, p.op)
	case p.mount > 0:
		return fmt.Sprintf("d%02ds%03dm%02d", p.doc, p.solid, p.mount)
	case p.solid > 0:
		return fmt.Sprintf("d%02ds%03d", p.doc, p.solid)
	default:
		return fmt.Sprintf("d%02d", p.doc)
	}
}

// ---------------------------------------------------------------------------
// ProduceState
// ---------------------------------------------------------------------------

// ProduceState is the shared mutable build context threaded by reference
// through every phase. It is owned by the top-level run and never
// duplicated, except via WithPlaneOffset where a node needs an adjusted
// copy.
type ProduceState struct {
	Cache   *cache.Cache
	Catalog *shop.Catalog
	Tables  *shop.Tables
	Kernel  kernel.Kernel

	// Debug accumulates named objects for inspection and the build
	// summary.
	Debug map[string]any

	// PlaneOffset shifts mount-relative depths, set on adjusted copies
	// only.
	PlaneOffset float64

	Prefix Prefix

	// tc is pointer-shared so adjusted copies keep one dedup table.
	tc *controllerTable
}

// controllerTable deduplicates tool controllers by value.
type controllerTable struct {
	index map[hashkey.Key]int
	list  []shop.ToolController
}

// NewProduceState assembles a build context.
func NewProduceState(c *cache.Cache, catalog *shop.Catalog, tables *shop.Tables, k kernel.Kernel) *ProduceState {
	if tables == nil {
		tables = shop.DefaultTables()
	}
	return &ProduceState{
		Cache:   c,
		Catalog: catalog,
		Tables:  tables,
		Kernel:  k,
		Debug:   make(map[string]any),
		tc:      &controllerTable{index: make(map[hashkey.Key]int)},
	}
}

// ControllerIndex returns the stable index for a tool controller,
// registering it on first use. Equal controllers share an index, so the
// summary references each feeds/speeds binding exactly once.
func (ps *ProduceState) ControllerIndex(tc shop.ToolController) int {
	key := hashkey.Of(tc.HashValue())
	if ix, ok := ps.tc.index[key]; ok {
		return ix
	}
	ix := len(ps.tc.list)
	ps.tc.list = append(ps.tc.list, tc)
	ps.tc.index[key] = ix
	return ix
}

// Controllers lists the deduplicated tool controllers in first-use order.
func (ps *ProduceState) Controllers() []shop.ToolController {
	return ps.tc.list
}

// WithPlaneOffset returns a copy of the state with the work plane shifted
// by dz. The copy shares the cache, catalog, and dedup tables; only the
// offset differs.
func (ps *ProduceState) WithPlaneOffset(dz float64) *ProduceState {
	cp := *ps
	cp.PlaneOffset += dz
	return &cp
}
