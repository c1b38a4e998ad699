package tree

import (
	"context"
	"fmt"

	"github.com/chazu/tenon/pkg/ctxlog"
	"github.com/chazu/tenon/pkg/hashkey"
	"github.com/chazu/tenon/pkg/kernel"
	"github.com/chazu/tenon/pkg/op"
	"github.com/chazu/tenon/pkg/schedule"
)

// DefaultMaxIterations bounds the convergence loop.
const DefaultMaxIterations = 20

// ---------------------------------------------------------------------------
// Phase 0: Configure / Converge
// ---------------------------------------------------------------------------

// NonConverged identifies one attribute that kept changing when the
// iteration bound was reached.
type NonConverged struct {
	Path string
	Attr string
}

func (nc NonConverged) String() string {
	return nc.Path + ":" + nc.Attr
}

// Converge repeatedly runs Configure over the whole tree until no
// published value changes between two consecutive passes, or until
// maxIterations is reached. On non-convergence it returns the offending
// (path, attribute) pairs as a diagnostic, not a crash; callers must not
// proceed to the produce phases when the list is non-empty.
func (t *Tree) Converge(ctx context.Context, maxIterations int) []NonConverged {
	log := ctxlog.FromContext(ctx)
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	var changed map[attrKey]bool
	for iter := 0; iter < maxIterations; iter++ {
		changed = t.configurePass()
		if len(changed) == 0 {
			log.Debug("configuration converged", "iterations", iter+1)
			return nil
		}
	}

	var out []NonConverged
	for _, k := range t.attrPairs() {
		if changed[k] {
			out = append(out, NonConverged{Path: k.path, Attr: k.attr})
		}
	}
	log.Warn("configuration did not converge",
		"iterations", maxIterations, "attributes", joinPairs(t.attrPairs()))
	for _, nc := range out {
		t.Errorf("convergence failure: %s kept changing after %d iterations", nc, maxIterations)
	}
	return out
}

// configurePass runs one Configure sweep in insertion order and reports
// which attributes changed.
func (t *Tree) configurePass() map[attrKey]bool {
	changed := make(map[attrKey]bool)

	publish := func(ix NodeIx, vals map[string]float64) {
		for attr, v := range vals {
			k := attrKey{t.nodes[ix].path, attr}
			if old, ok := t.attrs[k]; !ok || old != v {
				changed[k] = true
			}
			t.attrs[k] = v
		}
	}

	_ = t.Walk(func(ix NodeIx, n *Node) error {
		switch d := n.Data.(type) {
		case *ParamData:
			publish(ix, map[string]float64{valueAttr: d.Value})
		case *FormulaData:
			ref, _ := t.Value(d.RefPath, d.RefAttr) // missing reads as zero
			publish(ix, map[string]float64{valueAttr: ref + d.Offset})
		case *SolidData:
			if d.ConfigureHook != nil {
				publish(ix, d.ConfigureHook(t, d))
			}
		case *ProjectData, *DocumentData, *GroupData:
			// No configuration.
		}
		return nil
	})
	return changed
}

// ---------------------------------------------------------------------------
// Phases 1-3
// ---------------------------------------------------------------------------

// Run executes PreProduce, Produce, and the three PostProduce sub-phases
// over the whole tree. Each phase completes for every node before the next
// begins. Produce visits parents before children in insertion order; the
// post-produce sub-phases visit children before parents so a document
// closes only after all its solids exist. Node errors accumulate on the
// root and do not abort the traversal.
func (t *Tree) Run(ctx context.Context, ps *ProduceState) {
	t.preProduce(ctx)
	t.produce(ctx, ps)
	t.postProduceA(ctx, ps)
	t.postProduceB(ctx, ps)
	t.postProduceC(ctx, ps)
}

// preProduce performs node-local setup with no cross-node dependencies.
func (t *Tree) preProduce(ctx context.Context) {
	_ = t.Walk(func(ix NodeIx, n *Node) error {
		switch d := n.Data.(type) {
		case *SolidData:
			doc := t.ownerDocument(ix)
			if doc == InvalidIx {
				t.Errorf("%s: solid has no enclosing document", n.path)
				return nil
			}
			d.docIx = doc
		case *ProjectData, *DocumentData, *GroupData, *ParamData, *FormulaData:
		}
		return nil
	})
}

// produce assigns prefixes and realizes stock solids through the cache.
func (t *Tree) produce(ctx context.Context, ps *ProduceState) {
	log := ctxlog.FromContext(ctx)
	_ = t.Walk(func(ix NodeIx, n *Node) error {
		switch d := n.Data.(type) {
		case *DocumentData:
			d.Prefix = ps.Prefix.NextDocument()
			log.Debug("document produced", "path", n.path, "prefix", d.Prefix)
		case *SolidData:
			d.Prefix = ps.Prefix.NextSolid()
			d.counters = ps.Prefix
			if err := t.produceStock(ctx, ps, n, d); err != nil {
				t.Errorf("%s: %v", n.path, err)
			}
		case *ProjectData, *GroupData, *ParamData, *FormulaData:
		}
		return nil
	})
}

// produceStock resolves the solid's stock artifact, invoking the modeling
// service only on a cache miss.
func (t *Tree) produceStock(ctx context.Context, ps *ProduceState, n *Node, d *SolidData) error {
	if d.Dims.X <= 0 || d.Dims.Y <= 0 || d.Dims.Z <= 0 {
		return fmt.Errorf("stock dimensions must be positive, got %s", d.Dims)
	}

	inputs := hashkey.Tuple{
		hashkey.String("stock"),
		d.Dims.HashValue(),
		hashkey.String(d.Material),
	}
	name := d.Prefix + "_" + n.Label + "_stock"
	path, hit, err := ps.Cache.Activate(ctx, name, inputs)
	if err != nil {
		return err
	}
	d.StockPath = path
	d.StockHash = hashkey.Of(inputs).Hex()
	if hit {
		return nil
	}

	s := ps.Kernel.Stock(d.Dims.X, d.Dims.Y, d.Dims.Z)
	d.stockSolid = s
	return ps.Kernel.WriteSTL(s, path)
}

// postProduceA schedules every solid: candidate search plus greedy machine
// minimization, then controller index assignment in deterministic order.
func (t *Tree) postProduceA(ctx context.Context, ps *ProduceState) {
	log := ctxlog.FromContext(ctx)
	_ = t.walkPostOrder(0, func(ix NodeIx, n *Node) error {
		d, ok := n.Data.(*SolidData)
		if !ok {
			return nil
		}
		material := ps.Tables.MaterialOrDefault(d.Material)
		res := schedule.Assign(ps.Catalog, ps.Tables, material, d.Mounts)
		for _, msg := range res.Errors {
			t.Errorf("%s: %s", n.path, msg)
		}
		log.Info("solid scheduled", "path", n.path,
			"machines", len(res.MachinesUsed), "errors", len(res.Errors))

		for _, m := range d.Mounts {
			for _, o := range schedule.Ordered(m) {
				if o.Sched.Assigned {
					o.Sched.ControllerIndex = ps.ControllerIndex(o.Sched.Controller)
				}
			}
		}
		return nil
	})
}

// postProduceB realizes the machined artifacts for each solid, walking
// mounts and operations in scheduled order through the cache.
func (t *Tree) postProduceB(ctx context.Context, ps *ProduceState) {
	_ = t.walkPostOrder(0, func(ix NodeIx, n *Node) error {
		d, ok := n.Data.(*SolidData)
		if !ok {
			return nil
		}
		if err := t.machineSolid(ctx, ps, n, d); err != nil {
			t.Errorf("%s: %v", n.path, err)
		}
		return nil
	})
}

// machineSolid applies every scheduled operation to the solid's stock,
// caching the cumulative result after each cut. The artifact key chains
// the previous step's key, so editing any operation invalidates exactly
// the downstream artifacts.
func (t *Tree) machineSolid(ctx context.Context, ps *ProduceState, n *Node, d *SolidData) error {
	if d.StockPath == "" {
		return nil // stock failed; already reported
	}

	// A freshly produced stock solid seeds the chain; on a stock cache hit
	// there is nothing in memory and the first miss replays from scratch.
	current := d.stockSolid
	d.stockSolid = nil
	var applied []*op.Operation // cuts represented by the latest hit artifact
	prevKey := hashkey.Of(hashkey.Tuple{
		hashkey.String("stock"), d.Dims.HashValue(), hashkey.String(d.Material),
	})

	// ensureCurrent materializes the in-memory solid at the current chain
	// position. Hit artifacts carry no loadable geometry, so a miss after
	// a run of hits replays the prior cuts without rewriting their
	// artifacts.
	ensureCurrent := func() error {
		if current != nil {
			return nil
		}
		current = ps.Kernel.Stock(d.Dims.X, d.Dims.Y, d.Dims.Z)
		for _, prior := range applied {
			var err error
			current, err = t.applyCut(ps, current, prior)
			if err != nil {
				return fmt.Errorf("replaying operation %q: %w", prior.Name, err)
			}
		}
		return nil
	}

	// Prefixes continue from the solid's own counter snapshot, not the
	// shared state, which has advanced past every other solid by now.
	pfx := d.counters
	for _, m := range d.Mounts {
		pfx.NextMount()
		for _, o := range schedule.Ordered(m) {
			prefix := pfx.NextOperation()
			if !o.Sched.Assigned {
				continue // infeasible; reported by the scheduler
			}

			inputs := hashkey.Tuple{
				hashkey.String("machined"),
				hashkey.Sub(prevKey),
				hashkey.String(string(m.Face)),
				hashkey.Float(ps.PlaneOffset),
				o.HashValue(),
			}
			name := prefix + "_" + n.Label + "_" + o.Name
			path, hit, err := ps.Cache.Activate(ctx, name, inputs)
			if err != nil {
				return err
			}
			key := hashkey.Of(inputs)
			o.Art = op.Artifact{Prefix: prefix, Path: path, Hash: key.Hex()}
			prevKey = key

			if hit {
				// Downstream steps chain off this key; any in-memory
				// geometry is now behind the chain and must be replayed
				// if a later step misses.
				applied = append(applied, o)
				current = nil
				continue
			}

			if err := ensureCurrent(); err != nil {
				return err
			}
			current, err = t.applyCut(ps, current, o)
			if err != nil {
				return fmt.Errorf("operation %q: %w", o.Name, err)
			}
			applied = append(applied, o)
			if err := ps.Kernel.WriteSTL(current, path); err != nil {
				return err
			}
		}
	}
	d.built = true
	return nil
}

// applyCut dispatches one operation to the modeling service.
func (t *Tree) applyCut(ps *ProduceState, s kernel.Solid, o *op.Operation) (kernel.Solid, error) {
	switch o.Kind {
	case op.KindExtrude:
		return ps.Kernel.ExtrudeContour(s, contourPoints(o.Contour), o.Depth+ps.PlaneOffset)
	case op.KindPocket:
		return ps.Kernel.Pocket(s, contourPoints(o.Contour), o.Depth+ps.PlaneOffset)
	case op.KindDrill:
		centers := make([][2]float64, len(o.Centers))
		for i, c := range o.Centers {
			centers[i] = [2]float64{c.X, c.Y}
		}
		depth := o.Spec.Depth
		if depth > 0 {
			depth += ps.PlaneOffset
		}
		return ps.Kernel.Drill(s, centers, o.Spec.Diameter, depth)
	default:
		return nil, fmt.Errorf("unknown operation kind %d", o.Kind)
	}
}

func contourPoints(c op.Contour) [][2]float64 {
	pts := make([][2]float64, len(c.Points))
	for i, p := range c.Points {
		pts[i] = [2]float64{p.X, p.Y}
	}
	return pts
}

// postProduceC closes documents bottom-up: children are fully produced, so
// each document can finalize its solid count.
func (t *Tree) postProduceC(ctx context.Context, ps *ProduceState) {
	log := ctxlog.FromContext(ctx)
	_ = t.walkPostOrder(0, func(ix NodeIx, n *Node) error {
		d, ok := n.Data.(*DocumentData)
		if !ok {
			return nil
		}
		count := 0
		_ = t.walk(ix, func(_ NodeIx, c *Node) error {
			if sd, ok := c.Data.(*SolidData); ok && sd.built {
				count++
			}
			return nil
		})
		d.SolidCount = count
		d.Closed = true
		ps.Debug["document:"+n.path] = fmt.Sprintf("%s closed with %d solids", d.Prefix, count)
		log.Debug("document closed", "path", n.path, "solids", count)
		return nil
	})
}
