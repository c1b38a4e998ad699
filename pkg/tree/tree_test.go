package tree

import (
	"testing"

	"github.com/chazu/tenon/pkg/op"
)

func TestNewTree(t *testing.T) {
	tr, err := New("bracket", &ProjectData{Description: "shelf bracket"})
	if err != nil {
		t.Fatal(err)
	}
	root := tr.Node(tr.Root())
	if root.Kind != KindProject {
		t.Errorf("root kind = %s, want project", root.Kind)
	}
	if root.FullPath() != "bracket" {
		t.Errorf("root path = %q", root.FullPath())
	}
	if tr.Len() != 1 {
		t.Errorf("len = %d, want 1", tr.Len())
	}
}

func TestInvalidLabelsRejected(t *testing.T) {
	if _, err := New("", nil); err == nil {
		t.Error("empty label should be rejected")
	}
	if _, err := New("9lives", nil); err == nil {
		t.Error("digit-leading label should be rejected")
	}
	if _, err := New("a.b", nil); err == nil {
		t.Error("dotted label should be rejected")
	}

	tr, _ := New("p", nil)
	if _, err := tr.Add(tr.Root(), "bad label", KindDocument, &DocumentData{}); err == nil {
		t.Error("spaced label should be rejected")
	}
}

func TestDuplicateSiblingLabelFatal(t *testing.T) {
	tr, _ := New("p", nil)
	if _, err := tr.Add(tr.Root(), "main", KindDocument, &DocumentData{}); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Add(tr.Root(), "main", KindDocument, &DocumentData{}); err == nil {
		t.Error("duplicate sibling label must be a structural error")
	}
}

func TestSameLabelDifferentParentsAllowed(t *testing.T) {
	tr, _ := New("p", nil)
	d1, _ := tr.Add(tr.Root(), "left", KindDocument, &DocumentData{})
	d2, _ := tr.Add(tr.Root(), "right", KindDocument, &DocumentData{})
	if _, err := tr.Add(d1, "panel", KindSolid, &SolidData{}); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Add(d2, "panel", KindSolid, &SolidData{}); err != nil {
		t.Error("same label under different parents should be fine")
	}
}

func TestKindRestrictions(t *testing.T) {
	tr, _ := New("p", nil)
	if _, err := tr.Add(tr.Root(), "loose", KindSolid, &SolidData{}); err == nil {
		t.Error("solid directly under project should be rejected")
	}

	doc, _ := tr.Add(tr.Root(), "doc", KindDocument, &DocumentData{})
	solid, err := tr.Add(doc, "base", KindSolid, &SolidData{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Add(solid, "child", KindGroup, &GroupData{}); err == nil {
		t.Error("children under a solid should be rejected")
	}
}

func TestFullPathDotJoined(t *testing.T) {
	tr, _ := New("bracket", nil)
	doc, _ := tr.Add(tr.Root(), "main", KindDocument, &DocumentData{})
	grp, _ := tr.Add(doc, "frame", KindGroup, &GroupData{})
	solid, _ := tr.Add(grp, "base", KindSolid, &SolidData{})

	if got := tr.Node(solid).FullPath(); got != "bracket.main.frame.base" {
		t.Errorf("path = %q", got)
	}
	if ix := tr.Lookup("bracket.main.frame.base"); ix != solid {
		t.Errorf("Lookup = %d, want %d", ix, solid)
	}
	if tr.Lookup("bracket.missing") != InvalidIx {
		t.Error("missing path should return InvalidIx")
	}
}

func TestWalkOrderDeterministic(t *testing.T) {
	tr, _ := New("p", nil)
	doc, _ := tr.Add(tr.Root(), "doc", KindDocument, &DocumentData{})
	tr.Add(doc, "a", KindSolid, &SolidData{})
	tr.Add(doc, "b", KindSolid, &SolidData{})
	tr.Add(doc, "c", KindSolid, &SolidData{})

	var order []string
	tr.Walk(func(_ NodeIx, n *Node) error {
		order = append(order, n.Label)
		return nil
	})
	want := []string{"p", "doc", "a", "b", "c"}
	if len(order) != len(want) {
		t.Fatalf("visited %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("visit %d = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestErrorListAccumulatesAndDrains(t *testing.T) {
	tr, _ := New("p", nil)
	tr.Errorf("first: %d", 1)
	tr.Errorf("second")
	if len(tr.Errors()) != 2 {
		t.Fatalf("errors = %v", tr.Errors())
	}
	drained := tr.DrainErrors()
	if len(drained) != 2 || drained[0] != "first: 1" {
		t.Errorf("drained = %v", drained)
	}
	if len(tr.Errors()) != 0 {
		t.Error("drain should clear the list")
	}
}

func TestAddMountRejectsDuplicates(t *testing.T) {
	d := &SolidData{Dims: op.Vec3{X: 100, Y: 50, Z: 19}}
	if _, err := d.AddMount("top", op.FaceTop); err != nil {
		t.Fatal(err)
	}
	if _, err := d.AddMount("top", op.FaceBottom); err == nil {
		t.Error("duplicate mount name should be rejected")
	}
	if _, err := d.AddMount("side", op.Face("nope")); err == nil {
		t.Error("invalid face should be rejected")
	}
}

func TestNodeDataInterface(t *testing.T) {
	// Verify all concrete types implement NodeData at compile time.
	var _ NodeData = (*ProjectData)(nil)
	var _ NodeData = (*DocumentData)(nil)
	var _ NodeData = (*GroupData)(nil)
	var _ NodeData = (*SolidData)(nil)
	var _ NodeData = (*ParamData)(nil)
	var _ NodeData = (*FormulaData)(nil)
}
