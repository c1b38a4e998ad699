package build

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/chazu/tenon/pkg/kernel/stub"
	"github.com/chazu/tenon/pkg/op"
	"github.com/chazu/tenon/pkg/shop"
	"github.com/chazu/tenon/pkg/tree"
)

func testCatalog() *shop.Catalog {
	return &shop.Catalog{Shops: []*shop.Shop{{
		Name: "garage",
		Machines: []*shop.Machine{{
			Name:       "router",
			SpindleMax: 24000,
			Library: []*shop.Bit{
				{Name: "em-6", Shape: shop.ShapeEndMill, Diameter: 6, FluteCount: 2, CutLength: 30},
				{Name: "drill-5", Shape: shop.ShapeDrill, Diameter: 5, FluteCount: 2, CutLength: 40, PointAngle: 118},
			},
		}},
	}}}
}

func bracketTree(t *testing.T, pocketDepth float64) *tree.Tree {
	t.Helper()
	tr, err := tree.New("bracket", nil)
	require.NoError(t, err)
	doc, err := tr.Add(tr.Root(), "main", tree.KindDocument, &tree.DocumentData{})
	require.NoError(t, err)
	sd := &tree.SolidData{Dims: op.Vec3{X: 100, Y: 60, Z: 18}, Material: "plywood"}
	_, err = tr.Add(doc, "base", tree.KindSolid, sd)
	require.NoError(t, err)

	m, err := sd.AddMount("top", op.FaceTop)
	require.NoError(t, err)
	m.Extrude("outline", op.Rectangle(0, 0, 100, 60), 18)
	m.Pocket("recess", op.Rectangle(20, 20, 40, 20), pocketDepth)
	m.Drill("mounting",
		op.Hole{Center: op.Point{X: 10, Y: 10}, Spec: op.HoleSpec{Diameter: 5}},
		op.Hole{Center: op.Point{X: 90, Y: 10}, Spec: op.HoleSpec{Diameter: 5}})
	return tr
}

func TestBuildSummaryShape(t *testing.T) {
	dir := t.TempDir()
	s, err := Build(context.Background(), bracketTree(t, 6), Options{
		CacheDir: dir,
		Catalog:  testCatalog(),
		Kernel:   stub.New(),
	})
	require.NoError(t, err)

	want := &Summary{
		Project: "bracket",
		Documents: []DocumentSummary{{
			Label: "main", Prefix: "d01", Closed: true, SolidCount: 1,
			Solids: []SolidSummary{{
				Label: "base", Prefix: "d01s001", Material: "plywood",
				Dims: [3]float64{100, 60, 18},
				Mounts: []MountSummary{{
					Name: "top", Face: "top",
					Operations: []OperationSummary{
						{Name: "outline", Kind: "extrude", Assigned: true,
							Prefix: "d01s001m01o001", Shop: "garage", Machine: "router",
							Bit: "em-6", ToolNumber: 0, ControllerIndex: 0, Depth: 18},
						{Name: "recess", Kind: "pocket", Assigned: true,
							Prefix: "d01s001m01o002", Shop: "garage", Machine: "router",
							Bit: "em-6", ToolNumber: 0, ControllerIndex: 0, Depth: 6},
						{Name: "mounting_d5", Kind: "drill", Assigned: true,
							Prefix: "d01s001m01o003", Shop: "garage", Machine: "router",
							Bit: "drill-5", ToolNumber: 1, ControllerIndex: 1, Holes: 2},
					},
				}},
			}},
		}},
	}

	ignore := cmpopts.IgnoreFields(OperationSummary{}, "Path", "Hash")
	ignoreSolid := cmpopts.IgnoreFields(SolidSummary{}, "StockPath", "StockHash")
	ignoreTop := cmpopts.IgnoreFields(Summary{}, "Controllers")
	if diff := cmp.Diff(want, s, ignore, ignoreSolid, ignoreTop); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}

	// One controller per distinct (bit, feeds) pair, in first-use order.
	require.Len(t, s.Controllers, 2)
	require.Equal(t, "em-6", s.Controllers[0].BitName)
	require.Equal(t, "drill-5", s.Controllers[1].BitName)
}

func TestBuildDeterministicAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	opts := Options{CacheDir: dir, Catalog: testCatalog()}

	k1 := stub.New()
	opts.Kernel = k1
	s1, err := Build(context.Background(), bracketTree(t, 6), opts)
	require.NoError(t, err)
	require.NotZero(t, k1.Calls())

	k2 := stub.New()
	opts.Kernel = k2
	s2, err := Build(context.Background(), bracketTree(t, 6), opts)
	require.NoError(t, err)

	// Second build is a pure cache replay with an identical summary.
	require.Zero(t, k2.Calls())
	if diff := cmp.Diff(s1, s2); diff != "" {
		t.Errorf("summaries differ across identical runs (-first +second):\n%s", diff)
	}
}

func TestBuildCollectsStaleArtifacts(t *testing.T) {
	dir := t.TempDir()
	opts := Options{CacheDir: dir, Catalog: testCatalog(), Kernel: stub.New()}
	_, err := Build(context.Background(), bracketTree(t, 6), opts)
	require.NoError(t, err)

	// Deepening the pocket invalidates it and everything downstream; the
	// superseded artifacts must be collected, leaving exactly one file per
	// live artifact.
	opts.Kernel = stub.New()
	_, err = Build(context.Background(), bracketTree(t, 9), opts)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 4, "stock plus three operation artifacts")
}

func TestBuildAbortsOnNonConvergence(t *testing.T) {
	tr, err := tree.New("p", nil)
	require.NoError(t, err)
	_, err = tr.Add(tr.Root(), "a", tree.KindFormula,
		&tree.FormulaData{RefPath: "p.b", RefAttr: "value", Offset: 1})
	require.NoError(t, err)
	_, err = tr.Add(tr.Root(), "b", tree.KindFormula,
		&tree.FormulaData{RefPath: "p.a", RefAttr: "value", Offset: 1})
	require.NoError(t, err)

	dir := t.TempDir()
	k := stub.New()
	s, err := Build(context.Background(), tr, Options{
		CacheDir: dir, Catalog: testCatalog(), Kernel: k, MaxIterations: 5,
	})
	require.NoError(t, err)
	require.NotEmpty(t, s.Errors)
	require.Zero(t, k.Calls(), "no artifact work after a convergence failure")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestWriteSummaryRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s, err := Build(context.Background(), bracketTree(t, 6), Options{
		CacheDir: dir, Catalog: testCatalog(), Kernel: stub.New(),
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "summary.json")
	require.NoError(t, WriteSummary(s, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got Summary
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, s.Project, got.Project)
	require.Len(t, got.Documents, 1)
}
