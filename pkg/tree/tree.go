// Package tree holds the design tree and its multi-phase build protocol.
//
// A design is a tree of labeled nodes: a project root owning documents,
// groups, solids, and parameter nodes. Nodes live in an arena addressed by
// stable integer indices; parent links are indices, not pointers, so the
// structure is acyclic by construction: nodes are only ever appended in
// place and never reattached.
//
// The build protocol runs in strict phases across the whole tree:
// Configure/Converge (repeated until published values stabilize),
// PreProduce, Produce, and the three bottom-up PostProduce sub-phases.
// Non-fatal errors accumulate on the root and are drained by the caller;
// structural errors (bad label, duplicate sibling) fail immediately at
// insertion, before any phase runs.
package tree

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chazu/tenon/pkg/kernel"
	"github.com/chazu/tenon/pkg/op"
)

// NodeIx is a stable arena index for a node. The root is always index 0.
type NodeIx int

// InvalidIx marks "no node", used for the root's parent link.
const InvalidIx NodeIx = -1

// Kind is the closed set of node kinds. Phase behavior switches
// exhaustively on it; adding a kind is a compile-visible change.
type Kind int

const (
	KindProject  Kind = iota // tree root
	KindDocument             // one output document owning solids
	KindGroup                // logical grouping below a document
	KindSolid                // a machined part
	KindParam                // published configuration value
	KindFormula              // value derived from another node's attribute
)

func (k Kind) String() string {
	switch k {
	case KindProject:
		return "project"
	case KindDocument:
		return "document"
	case KindGroup:
		return "group"
	case KindSolid:
		return "solid"
	case KindParam:
		return "param"
	case KindFormula:
		return "formula"
	default:
		return "unknown"
	}
}

// NodeData is the interface for kind-specific node payloads.
type NodeData interface {
	nodeData() // marker method restricting implementations to this package
}

// Node is one element of the design tree.
type Node struct {
	Label    string
	Kind     Kind
	Up       NodeIx
	Children []NodeIx
	Data     NodeData

	path string // cached dot-joined path from root
}

// FullPath returns the dot-joined path from the root, e.g.
// "bracket.main.base".
func (n *Node) FullPath() string { return n.path }

// Tree is the arena of nodes plus the root-owned error list.
type Tree struct {
	nodes []Node
	attrs map[attrKey]float64
	errs  []string
}

type attrKey struct {
	path string
	attr string
}

// New creates a tree with a project root node.
func New(label string, data *ProjectData) (*Tree, error) {
	if err := checkLabel(label); err != nil {
		return nil, err
	}
	if data == nil {
		data = &ProjectData{}
	}
	t := &Tree{attrs: make(map[attrKey]float64)}
	t.nodes = append(t.nodes, Node{
		Label: label,
		Kind:  KindProject,
		Up:    InvalidIx,
		Data:  data,
		path:  label,
	})
	return t, nil
}

// checkLabel enforces identifier-safe labels: letters, digits, underscore,
// hyphen; must start with a letter.
func checkLabel(label string) error {
	if label == "" {
		return fmt.Errorf("tree: empty label")
	}
	for i, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r == '_' || r == '-':
			if i == 0 {
				return fmt.Errorf("tree: label %q must start with a letter", label)
			}
		case r >= '0' && r <= '9':
			if i == 0 {
				return fmt.Errorf("tree: label %q must start with a letter", label)
			}
		default:
			return fmt.Errorf("tree: label %q contains invalid character %q", label, r)
		}
	}
	return nil
}

// kindAllowed restricts which child kinds each parent kind accepts.
func kindAllowed(parent, child Kind) bool {
	switch parent {
	case KindProject:
		return child == KindDocument || child == KindParam || child == KindFormula
	case KindDocument, KindGroup:
		return child == KindGroup || child == KindSolid || child == KindParam || child == KindFormula
	default:
		return false
	}
}

// Add appends a child node under parent. Structural errors (bad label,
// duplicate sibling label, kind not allowed under the parent) are fatal at
// insertion time and returned immediately.
func (t *Tree) Add(parent NodeIx, label string, kind Kind, data NodeData) (NodeIx, error) {
	if parent < 0 || int(parent) >= len(t.nodes) {
		return InvalidIx, fmt.Errorf("tree: invalid parent index %d", parent)
	}
	if err := checkLabel(label); err != nil {
		return InvalidIx, err
	}
	p := &t.nodes[parent]
	if !kindAllowed(p.Kind, kind) {
		return InvalidIx, fmt.Errorf("tree: %s node not allowed under %s %q", kind, p.Kind, p.path)
	}
	for _, cix := range p.Children {
		if t.nodes[cix].Label == label {
			return InvalidIx, fmt.Errorf("tree: duplicate sibling label %q under %q", label, p.path)
		}
	}

	ix := NodeIx(len(t.nodes))
	t.nodes = append(t.nodes, Node{
		Label: label,
		Kind:  kind,
		Up:    parent,
		Data:  data,
		path:  p.path + "." + label,
	})
	t.nodes[parent].Children = append(t.nodes[parent].Children, ix)
	return ix, nil
}

// Node returns the node at ix. The pointer stays valid for the tree's
// lifetime only between insertions.
func (t *Tree) Node(ix NodeIx) *Node {
	return &t.nodes[ix]
}

// Root returns the root index.
func (t *Tree) Root() NodeIx { return 0 }

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Walk visits every node depth-first in insertion order, parents before
// children.
func (t *Tree) Walk(fn func(ix NodeIx, n *Node) error) error {
	return t.walk(0, fn)
}

func (t *Tree) walk(ix NodeIx, fn func(NodeIx, *Node) error) error {
	if err := fn(ix, &t.nodes[ix]); err != nil {
		return err
	}
	for _, cix := range t.nodes[ix].Children {
		if err := t.walk(cix, fn); err != nil {
			return err
		}
	}
	return nil
}

// walkPostOrder visits children before their parent, in insertion order.
func (t *Tree) walkPostOrder(ix NodeIx, fn func(NodeIx, *Node) error) error {
	for _, cix := range t.nodes[ix].Children {
		if err := t.walkPostOrder(cix, fn); err != nil {
			return err
		}
	}
	return fn(ix, &t.nodes[ix])
}

// Lookup finds a node by full dot-joined path, or InvalidIx.
func (t *Tree) Lookup(path string) NodeIx {
	for i := range t.nodes {
		if t.nodes[i].path == path {
			return NodeIx(i)
		}
	}
	return InvalidIx
}

// ownerDocument walks Up links to the nearest enclosing document.
func (t *Tree) ownerDocument(ix NodeIx) NodeIx {
	for cur := t.nodes[ix].Up; cur != InvalidIx; cur = t.nodes[cur].Up {
		if t.nodes[cur].Kind == KindDocument {
			return cur
		}
	}
	return InvalidIx
}

// ---------------------------------------------------------------------------
// Root error list
// ---------------------------------------------------------------------------

// Errorf appends a non-fatal error to the root's error list.
func (t *Tree) Errorf(format string, args ...any) {
	t.errs = append(t.errs, fmt.Sprintf(format, args...))
}

// Errors returns the accumulated non-fatal errors in occurrence order.
// An empty list signals success.
func (t *Tree) Errors() []string { return t.errs }

// DrainErrors returns and clears the error list.
func (t *Tree) DrainErrors() []string {
	out := t.errs
	t.errs = nil
	return out
}

// ---------------------------------------------------------------------------
// Published attributes
// ---------------------------------------------------------------------------

// Publish records a named value on the node's path. Published values are
// readable by any node during Configure.
func (t *Tree) Publish(ix NodeIx, attr string, v float64) {
	t.attrs[attrKey{t.nodes[ix].path, attr}] = v
}

// Value reads a published value by node path and attribute name.
func (t *Tree) Value(path, attr string) (float64, bool) {
	v, ok := t.attrs[attrKey{path, attr}]
	return v, ok
}

// attrPairs returns all published (path, attr) pairs sorted, for
// deterministic diagnostics.
func (t *Tree) attrPairs() []attrKey {
	keys := make([]attrKey, 0, len(t.attrs))
	for k := range t.attrs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].path != keys[j].path {
			return keys[i].path < keys[j].path
		}
		return keys[i].attr < keys[j].attr
	})
	return keys
}

// ---------------------------------------------------------------------------
// Payloads
// ---------------------------------------------------------------------------

// ProjectData is the root payload.
type ProjectData struct {
	Description string
}

func (*ProjectData) nodeData() {}

// DocumentData is one output document. Runtime fields are filled during
// the build.
type DocumentData struct {
	Prefix     string // assigned during Produce
	SolidCount int    // filled during PostProduce C
	Closed     bool
}

func (*DocumentData) nodeData() {}

// GroupData is a logical grouping below a document.
type GroupData struct {
	Description string
}

func (*GroupData) nodeData() {}

// Resolver reads values published by other nodes during Configure.
type Resolver interface {
	Value(path, attr string) (float64, bool)
}

// SolidData is a machined part: rectangular stock plus mounts carrying the
// machining operations.
type SolidData struct {
	Dims     op.Vec3
	Material string

	// ConfigureHook, when set, recomputes the solid's published values
	// (and may adjust Dims) from values published elsewhere in the tree.
	// It participates in the convergence loop.
	ConfigureHook func(r Resolver, d *SolidData) map[string]float64

	Mounts []*op.Mount

	// Runtime state, filled during the build.
	Prefix    string
	StockPath string
	StockHash string
	docIx     NodeIx
	built     bool

	// counters snapshots the prefix state at this solid's position, so
	// mount and operation prefixes assigned later nest under it.
	counters Prefix
	// stockSolid is the stock geometry materialized on a cache miss,
	// consumed by the machining pass.
	stockSolid kernel.Solid
}

func (*SolidData) nodeData() {}

// AddMount creates a mount on the solid against the named face.
func (d *SolidData) AddMount(name string, face op.Face) (*op.Mount, error) {
	for _, m := range d.Mounts {
		if m.Name == name {
			return nil, fmt.Errorf("tree: duplicate mount name %q", name)
		}
	}
	m, err := op.NewMount(name, face)
	if err != nil {
		return nil, err
	}
	d.Mounts = append(d.Mounts, m)
	return m, nil
}

// ParamData publishes a constant value under the node's path.
type ParamData struct {
	Value float64
}

func (*ParamData) nodeData() {}

// FormulaData publishes a value derived from another node's published
// attribute plus an offset. A missing reference reads as zero until the
// referenced node publishes, which is what makes the convergence loop
// iterate.
type FormulaData struct {
	RefPath string
	RefAttr string
	Offset  float64
}

func (*FormulaData) nodeData() {}

// valueAttr is the attribute name param and formula nodes publish under.
const valueAttr = "value"

func joinPairs(pairs []attrKey) string {
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.path + ":" + p.attr
	}
	return strings.Join(parts, ", ")
}
