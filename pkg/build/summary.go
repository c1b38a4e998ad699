package build

import (
	"github.com/chazu/tenon/pkg/op"
	"github.com/chazu/tenon/pkg/schedule"
	"github.com/chazu/tenon/pkg/shop"
	"github.com/chazu/tenon/pkg/tree"
)

// Summary is the machine-readable record of one build: the document tree
// with every realized artifact, the deduplicated tool controllers, and the
// accumulated error list.
type Summary struct {
	Project     string                `json:"project"`
	Documents   []DocumentSummary     `json:"documents"`
	Controllers []shop.ToolController `json:"controllers,omitempty"`
	Errors      []string              `json:"errors,omitempty"`
}

// DocumentSummary is one closed output document.
type DocumentSummary struct {
	Label      string         `json:"label"`
	Prefix     string         `json:"prefix"`
	Closed     bool           `json:"closed"`
	SolidCount int            `json:"solid_count"`
	Solids     []SolidSummary `json:"solids"`
}

// SolidSummary is one machined part with its stock artifact and mounts.
type SolidSummary struct {
	Label     string         `json:"label"`
	Prefix    string         `json:"prefix"`
	Material  string         `json:"material,omitempty"`
	Dims      [3]float64     `json:"dims"`
	StockPath string         `json:"stock_path,omitempty"`
	StockHash string         `json:"stock_hash,omitempty"`
	Mounts    []MountSummary `json:"mounts,omitempty"`
}

// MountSummary is one work-plane setup with its operations in machining
// order.
type MountSummary struct {
	Name       string             `json:"name"`
	Face       string             `json:"face"`
	Operations []OperationSummary `json:"operations"`
}

// OperationSummary is one machining step. ControllerIndex points into the
// summary's Controllers list; -1 marks an unassigned operation.
type OperationSummary struct {
	Name            string  `json:"name"`
	Kind            string  `json:"kind"`
	Assigned        bool    `json:"assigned"`
	Prefix          string  `json:"prefix,omitempty"`
	Path            string  `json:"path,omitempty"`
	Hash            string  `json:"hash,omitempty"`
	Shop            string  `json:"shop,omitempty"`
	Machine         string  `json:"machine,omitempty"`
	Bit             string  `json:"bit,omitempty"`
	ToolNumber      int     `json:"tool_number"`
	ControllerIndex int     `json:"controller_index"`
	Depth           float64 `json:"depth,omitempty"`
	Holes           int     `json:"holes,omitempty"`
}

// summarize flattens the tree's runtime state into the summary. ps may be
// nil when the build aborted before the produce phases.
func summarize(t *tree.Tree, ps *tree.ProduceState) *Summary {
	s := &Summary{
		Project: t.Node(t.Root()).Label,
		Errors:  t.Errors(),
	}
	if ps != nil {
		s.Controllers = ps.Controllers()
	}

	_ = t.Walk(func(ix tree.NodeIx, n *tree.Node) error {
		dd, ok := n.Data.(*tree.DocumentData)
		if !ok {
			return nil
		}
		ds := DocumentSummary{
			Label:      n.Label,
			Prefix:     dd.Prefix,
			Closed:     dd.Closed,
			SolidCount: dd.SolidCount,
		}
		// Solids anywhere below the document, in insertion order.
		_ = t.Walk(func(cix tree.NodeIx, c *tree.Node) error {
			if cix == ix || !under(t, cix, ix) {
				return nil
			}
			sd, ok := c.Data.(*tree.SolidData)
			if !ok {
				return nil
			}
			ds.Solids = append(ds.Solids, summarizeSolid(c, sd))
			return nil
		})
		s.Documents = append(s.Documents, ds)
		return nil
	})
	return s
}

func summarizeSolid(n *tree.Node, sd *tree.SolidData) SolidSummary {
	ss := SolidSummary{
		Label:     n.Label,
		Prefix:    sd.Prefix,
		Material:  sd.Material,
		Dims:      [3]float64{sd.Dims.X, sd.Dims.Y, sd.Dims.Z},
		StockPath: sd.StockPath,
		StockHash: sd.StockHash,
	}
	for _, m := range sd.Mounts {
		ms := MountSummary{Name: m.Name, Face: string(m.Face)}
		for _, o := range schedule.Ordered(m) {
			ms.Operations = append(ms.Operations, summarizeOperation(o))
		}
		ss.Mounts = append(ss.Mounts, ms)
	}
	return ss
}

func summarizeOperation(o *op.Operation) OperationSummary {
	out := OperationSummary{
		Name:            o.Name,
		Kind:            o.Kind.String(),
		Assigned:        o.Sched.Assigned,
		Prefix:          o.Art.Prefix,
		Path:            o.Art.Path,
		Hash:            o.Art.Hash,
		ControllerIndex: -1,
		Depth:           o.Depth,
		Holes:           len(o.Centers),
	}
	if o.Sched.Assigned {
		out.Shop = o.Sched.ShopName
		out.Machine = o.Sched.MachineName
		out.Bit = o.Sched.Bit.Name
		out.ToolNumber = o.Sched.ToolNumber
		out.ControllerIndex = o.Sched.ControllerIndex
	}
	return out
}

// under reports whether node ix sits below ancestor in the tree.
func under(t *tree.Tree, ix, ancestor tree.NodeIx) bool {
	for cur := t.Node(ix).Up; cur != tree.InvalidIx; cur = t.Node(cur).Up {
		if cur == ancestor {
			return true
		}
	}
	return false
}
