package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/chazu/tenon/pkg/op"
	"github.com/chazu/tenon/pkg/tree"
)

// ---------------------------------------------------------------------------
// Preprocessing tests
// ---------------------------------------------------------------------------

func TestPreprocessKeywords(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "simple keyword",
			input:  `(solid "base" :material "plywood")`,
			expect: `(solid "base" "__kw_material" "plywood")`,
		},
		{
			name:   "multiple keywords",
			input:  `(drill top "m" :diameter 5 :depth 12)`,
			expect: `(drill top "m" "__kw_diameter" 5 "__kw_depth" 12)`,
		},
		{
			name:   "keyword in string preserved",
			input:  `"thing with :keyword inside"`,
			expect: `"thing with :keyword inside"`,
		},
		{
			name:   "assignment operator preserved",
			input:  `(def x := 10)`,
			expect: `(def x := 10)`,
		},
		{
			name:   "kebab-case identifier",
			input:  `(drill-group :part-a ref)`,
			expect: `(drill_group "__kw_part-a" ref)`,
		},
		{
			name:   "minus operator preserved",
			input:  `(- 10 5)`,
			expect: `(- 10 5)`,
		},
		{
			name:   "comment converted to // style",
			input:  `;; comment with :keyword`,
			expect: `// comment with :keyword`,
		},
		{
			name:   "fastener name in string preserved",
			input:  `(fasten top "s" :fastener "#8-wood-screw")`,
			expect: `(fasten top "s" "__kw_fastener" "#8-wood-screw")`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := preprocessSource(tt.input)
			if got != tt.expect {
				t.Errorf("preprocessSource(%q) = %q, want %q", tt.input, got, tt.expect)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Evaluation tests
// ---------------------------------------------------------------------------

func TestEmptySourceIsAnError(t *testing.T) {
	eng := NewEngine()
	tr, evalErrs, err := eng.Evaluate("   \n  ")
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if tr != nil {
		t.Error("empty source should not produce a tree")
	}
	if len(evalErrs) != 1 || !strings.Contains(evalErrs[0].Message, "no project") {
		t.Errorf("evalErrs = %v", evalErrs)
	}
}

func TestParseErrorReported(t *testing.T) {
	eng := NewEngine()
	tr, evalErrs, err := eng.Evaluate(`(project "p"`)
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if tr != nil {
		t.Error("broken source should not produce a tree")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected a parse error")
	}
}

func TestFullDesign(t *testing.T) {
	eng := NewEngine()

	source := `
; wall bracket, dimensions in mm
(project "bracket" :description "shelf bracket")
(def doc (document "main"))
(param "width" 120 :in doc)
(def base (solid "base" :in doc :size (vec3 100 60 18) :material "plywood"))
(def top (mount base "top" :face :top))
(extrude top "outline" :contour (rect 0 0 100 60) :depth 18)
(pocket top "recess" :contour (rect 20 20 40 20) :depth 6)
(drill top "mounting" :at (list (xy 10 10) (xy 90 10)) :diameter 5)
(fasten top "screws" :fastener "#8-wood-screw" :at (list (xy 50 50)))
`
	tr, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		t.Fatalf("fatal: %v", err)
	}
	if len(evalErrs) != 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	if tr == nil {
		t.Fatal("no tree produced")
	}

	if got := tr.Node(tr.Root()).Label; got != "bracket" {
		t.Errorf("root = %q", got)
	}
	pd := tr.Node(tr.Root()).Data.(*tree.ProjectData)
	if pd.Description != "shelf bracket" {
		t.Errorf("description = %q", pd.Description)
	}

	solidIx := tr.Lookup("bracket.main.base")
	if solidIx == tree.InvalidIx {
		t.Fatal("solid not found at bracket.main.base")
	}
	sd := tr.Node(solidIx).Data.(*tree.SolidData)
	if sd.Dims != (op.Vec3{X: 100, Y: 60, Z: 18}) {
		t.Errorf("dims = %v", sd.Dims)
	}
	if sd.Material != "plywood" {
		t.Errorf("material = %q", sd.Material)
	}

	if tr.Lookup("bracket.main.width") == tree.InvalidIx {
		t.Error("param not placed under the document")
	}

	if len(sd.Mounts) != 1 {
		t.Fatalf("mounts = %d", len(sd.Mounts))
	}
	m := sd.Mounts[0]
	if m.Face != op.FaceTop {
		t.Errorf("face = %q", m.Face)
	}

	ops := m.Operations()
	if len(ops) != 4 {
		t.Fatalf("operations = %d, want extrude+pocket+drill+fasten", len(ops))
	}
	if ops[0].Kind != op.KindExtrude || ops[0].Depth != 18 {
		t.Errorf("op0 = %v depth %g", ops[0].Kind, ops[0].Depth)
	}
	if ops[2].Kind != op.KindDrill || len(ops[2].Centers) != 2 {
		t.Errorf("drill centers = %d", len(ops[2].Centers))
	}
	// Fastener expansion uses the pilot diameter from the table.
	if ops[3].Spec.Diameter != 2.8 {
		t.Errorf("fastener pilot = %g", ops[3].Spec.Diameter)
	}
	if ops[3].Spec.Countersink != 8.0 {
		t.Errorf("fastener countersink = %g", ops[3].Spec.Countersink)
	}
}

func TestDesignFeedsConvergence(t *testing.T) {
	eng := NewEngine()

	source := `
(project "p")
(param "y" 5)
(formula "x" :ref "p.y" :offset 1)
`
	tr, evalErrs, err := eng.Evaluate(source)
	if err != nil || len(evalErrs) != 0 {
		t.Fatalf("eval: %v %v", evalErrs, err)
	}

	if nc := tr.Converge(context.Background(), 2); nc != nil {
		t.Fatalf("did not converge: %v", nc)
	}
	if v, _ := tr.Value("p.x", "value"); v != 6 {
		t.Errorf("x = %g, want 6", v)
	}
}

func TestDuplicateSiblingSurfacesAsEvalError(t *testing.T) {
	eng := NewEngine()

	source := `
(project "p")
(document "main")
(document "main")
`
	tr, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		t.Fatalf("fatal: %v", err)
	}
	if tr != nil {
		t.Error("structural error should abort tree production")
	}
	if len(evalErrs) == 0 || !strings.Contains(evalErrs[0].Message, "duplicate sibling") {
		t.Errorf("evalErrs = %v", evalErrs)
	}
}

func TestUnknownFastenerRejected(t *testing.T) {
	eng := NewEngine()

	source := `
(project "p")
(def doc (document "main"))
(def base (solid "base" :in doc :size (vec3 10 10 10)))
(def top (mount base "top"))
(fasten top "s" :fastener "nonexistent" :at (list (xy 1 1)))
`
	tr, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		t.Fatalf("fatal: %v", err)
	}
	if tr != nil {
		t.Error("unknown fastener should abort tree production")
	}
	if len(evalErrs) == 0 || !strings.Contains(evalErrs[0].Message, "unknown fastener") {
		t.Errorf("evalErrs = %v", evalErrs)
	}
}

func TestProjectTwiceRejected(t *testing.T) {
	eng := NewEngine()
	tr, evalErrs, err := eng.Evaluate(`(project "a") (project "b")`)
	if err != nil {
		t.Fatalf("fatal: %v", err)
	}
	if tr != nil {
		t.Error("second project should abort")
	}
	if len(evalErrs) == 0 {
		t.Error("expected eval error for duplicate project")
	}
}

func TestOperationBeforeProjectRejected(t *testing.T) {
	eng := NewEngine()
	tr, evalErrs, _ := eng.Evaluate(`(document "main")`)
	if tr != nil {
		t.Error("document without project should abort")
	}
	if len(evalErrs) == 0 || !strings.Contains(evalErrs[0].Message, "define a project first") {
		t.Errorf("evalErrs = %v", evalErrs)
	}
}

func TestEvaluateIsRepeatable(t *testing.T) {
	eng := NewEngine()
	source := `(project "p") (document "main")`

	for i := 0; i < 3; i++ {
		tr, evalErrs, err := eng.Evaluate(source)
		if err != nil || len(evalErrs) != 0 || tr == nil {
			t.Fatalf("run %d: tree=%v errs=%v err=%v", i, tr != nil, evalErrs, err)
		}
		if tr.Len() != 2 {
			t.Errorf("run %d: len = %d, want 2", i, tr.Len())
		}
	}
}
