package engine

import (
	"fmt"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/tenon/pkg/op"
	"github.com/chazu/tenon/pkg/shop"
	"github.com/chazu/tenon/pkg/tree"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms tenon Lisp source before passing it to
// zygomys:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal), so
//     keywords need no global symbol registration.
//  2. Kebab-case to underscore: drill-group -> drill_group, since zygomys
//     reads a bare hyphen as subtraction.
//  3. ; line comments become // comments.
//
// All transformations respect string literal boundaries.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments.
		if b[i] == ';' {
			result = append(result, '/', '/')
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword", preserving :=.
		if b[i] == ':' && i+1 < len(b) {
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, b[i+1:j]...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Kebab-case identifiers: hyphen between identifier characters is
		// not a minus operator.
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isLetter(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpNodeRef wraps a tree node index so builtins can hand nodes to each
// other.
type sexpNodeRef struct {
	ix    tree.NodeIx
	label string
}

func (n *sexpNodeRef) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(noderef %q)", n.label)
}
func (n *sexpNodeRef) Type() *zygo.RegisteredType { return nil }

// sexpSolidRef carries a solid node plus its payload for mount creation.
type sexpSolidRef struct {
	ix    tree.NodeIx
	data  *tree.SolidData
	label string
}

func (s *sexpSolidRef) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(solid %q)", s.label)
}
func (s *sexpSolidRef) Type() *zygo.RegisteredType { return nil }

// sexpMountRef carries a mount so operation builtins can append to it.
type sexpMountRef struct {
	mount *op.Mount
	solid string
}

func (m *sexpMountRef) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(mount %q on %q)", m.mount.Name, m.solid)
}
func (m *sexpMountRef) Type() *zygo.RegisteredType { return nil }

// sexpPoint wraps a 2D work-plane point.
type sexpPoint struct {
	p op.Point
}

func (p *sexpPoint) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(xy %.1f %.1f)", p.p.X, p.p.Y)
}
func (p *sexpPoint) Type() *zygo.RegisteredType { return nil }

// sexpContour wraps a closed contour.
type sexpContour struct {
	c op.Contour
}

func (c *sexpContour) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(contour %d points)", len(c.c.Points))
}
func (c *sexpContour) Type() *zygo.RegisteredType { return nil }

// sexpVec3 wraps a 3D size.
type sexpVec3 struct {
	v op.Vec3
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %.1f %.1f %.1f)", v.v.X, v.v.Y, v.v.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string, returning the
// bare keyword name.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds a parsed mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString accepts both preprocessed keywords (__kw_top) and plain
// strings ("top").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], nil
	}
	return str.S, nil
}

func toFace(s zygo.Sexp) (op.Face, error) {
	name, err := toKeywordString(s)
	if err != nil {
		return "", fmt.Errorf("expected face keyword: %w", err)
	}
	f := op.Face(name)
	if !op.ValidFaces[f] {
		return "", fmt.Errorf("invalid face %q, expected top/bottom/left/right/front/back", name)
	}
	return f, nil
}

func toVec3(s zygo.Sexp) (op.Vec3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.v, nil
	}
	return op.Vec3{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

func toContour(s zygo.Sexp) (op.Contour, error) {
	if c, ok := s.(*sexpContour); ok {
		return c.c, nil
	}
	return op.Contour{}, fmt.Errorf("expected contour, got %T (%s)", s, s.SexpString(nil))
}

func toMount(s zygo.Sexp) (*sexpMountRef, error) {
	if m, ok := s.(*sexpMountRef); ok {
		return m, nil
	}
	return nil, fmt.Errorf("expected mount reference, got %T (%s)", s, s.SexpString(nil))
}

// toPoints flattens a Lisp list or array of (xy ...) values.
func toPoints(s zygo.Sexp) ([]op.Point, error) {
	items, err := sexpListToSlice(s)
	if err != nil {
		return nil, err
	}
	pts := make([]op.Point, 0, len(items))
	for _, item := range items {
		p, ok := item.(*sexpPoint)
		if !ok {
			return nil, fmt.Errorf("expected (xy ...) entry, got %T (%s)", item, item.SexpString(nil))
		}
		pts = append(pts, p.p)
	}
	return pts, nil
}

func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// evalState accumulates the tree under construction during one evaluation.
type evalState struct {
	tree   *tree.Tree
	tables *shop.Tables
}

// requireProject fails any form evaluated before (project ...).
func (st *evalState) requireProject(form string) error {
	if st.tree == nil {
		return fmt.Errorf("%s: define a project first", form)
	}
	return nil
}

// parentIx resolves the :in keyword to a parent node, defaulting to the
// project root.
func (st *evalState) parentIx(pa kwArgs, form string) (tree.NodeIx, error) {
	v, ok := pa.kw["in"]
	if !ok {
		return st.tree.Root(), nil
	}
	switch ref := v.(type) {
	case *sexpNodeRef:
		return ref.ix, nil
	case *sexpSolidRef:
		return ref.ix, nil
	}
	return tree.InvalidIx, fmt.Errorf("%s: in: expected node reference, got %T", form, v)
}

// registerBuiltins installs the tenon DSL builtins into a zygomys
// environment. The builtins populate st.tree during evaluation. Source must
// be preprocessed with preprocessSource first so :keyword tokens arrive as
// recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, st *evalState) {

	// -----------------------------------------------------------------------
	// (project "bracket" :description "wall bracket")
	// -----------------------------------------------------------------------
	env.AddFunction("project", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if st.tree != nil {
			return zygo.SexpNull, fmt.Errorf("project: already defined")
		}
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("project requires a name")
		}
		label, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("project: name: %w", err)
		}

		pd := &tree.ProjectData{}
		if v, ok := pa.kw["description"]; ok {
			if pd.Description, err = toString(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("project: description: %w", err)
			}
		}

		t, err := tree.New(label, pd)
		if err != nil {
			return zygo.SexpNull, err
		}
		st.tree = t
		return &sexpNodeRef{ix: t.Root(), label: label}, nil
	})

	// -----------------------------------------------------------------------
	// (document "main")
	// -----------------------------------------------------------------------
	env.AddFunction("document", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := st.requireProject("document"); err != nil {
			return zygo.SexpNull, err
		}
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("document requires a name")
		}
		label, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("document: name: %w", err)
		}
		ix, err := st.tree.Add(st.tree.Root(), label, tree.KindDocument, &tree.DocumentData{})
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpNodeRef{ix: ix, label: label}, nil
	})

	// -----------------------------------------------------------------------
	// (group "frame" :in doc)
	// -----------------------------------------------------------------------
	env.AddFunction("group", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := st.requireProject("group"); err != nil {
			return zygo.SexpNull, err
		}
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("group requires a name")
		}
		label, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("group: name: %w", err)
		}
		parent, err := st.parentIx(pa, "group")
		if err != nil {
			return zygo.SexpNull, err
		}
		ix, err := st.tree.Add(parent, label, tree.KindGroup, &tree.GroupData{})
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpNodeRef{ix: ix, label: label}, nil
	})

	// -----------------------------------------------------------------------
	// (param "width" 120 :in doc)
	// -----------------------------------------------------------------------
	env.AddFunction("param", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := st.requireProject("param"); err != nil {
			return zygo.SexpNull, err
		}
		if len(pa.positional) < 2 {
			return zygo.SexpNull, fmt.Errorf("param requires a name and a value")
		}
		label, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("param: name: %w", err)
		}
		value, err := toFloat64(pa.positional[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("param: value: %w", err)
		}
		parent, err := st.parentIx(pa, "param")
		if err != nil {
			return zygo.SexpNull, err
		}
		ix, err := st.tree.Add(parent, label, tree.KindParam, &tree.ParamData{Value: value})
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpNodeRef{ix: ix, label: label}, nil
	})

	// -----------------------------------------------------------------------
	// (formula "x" :ref "bracket.width" :offset 1)
	// -----------------------------------------------------------------------
	env.AddFunction("formula", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := st.requireProject("formula"); err != nil {
			return zygo.SexpNull, err
		}
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("formula requires a name")
		}
		label, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("formula: name: %w", err)
		}

		fd := &tree.FormulaData{RefAttr: "value"}
		v, ok := pa.kw["ref"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("formula: missing :ref path")
		}
		if fd.RefPath, err = toString(v); err != nil {
			return zygo.SexpNull, fmt.Errorf("formula: ref: %w", err)
		}
		if v, ok := pa.kw["attr"]; ok {
			if fd.RefAttr, err = toKeywordString(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("formula: attr: %w", err)
			}
		}
		if v, ok := pa.kw["offset"]; ok {
			if fd.Offset, err = toFloat64(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("formula: offset: %w", err)
			}
		}

		parent, err := st.parentIx(pa, "formula")
		if err != nil {
			return zygo.SexpNull, err
		}
		ix, err := st.tree.Add(parent, label, tree.KindFormula, fd)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpNodeRef{ix: ix, label: label}, nil
	})

	// -----------------------------------------------------------------------
	// (solid "base" :in doc :size (vec3 100 60 18) :material "plywood")
	// -----------------------------------------------------------------------
	env.AddFunction("solid", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := st.requireProject("solid"); err != nil {
			return zygo.SexpNull, err
		}
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("solid requires a name")
		}
		label, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("solid: name: %w", err)
		}
		if _, ok := pa.kw["in"]; !ok {
			return zygo.SexpNull, fmt.Errorf("solid: missing :in document")
		}
		parent, err := st.parentIx(pa, "solid")
		if err != nil {
			return zygo.SexpNull, err
		}

		sd := &tree.SolidData{}
		if v, ok := pa.kw["size"]; ok {
			if sd.Dims, err = toVec3(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("solid: size: %w", err)
			}
		}
		if v, ok := pa.kw["material"]; ok {
			if sd.Material, err = toString(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("solid: material: %w", err)
			}
		}

		ix, err := st.tree.Add(parent, label, tree.KindSolid, sd)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpSolidRef{ix: ix, data: sd, label: label}, nil
	})

	// -----------------------------------------------------------------------
	// (mount base "top" :face :top)
	// -----------------------------------------------------------------------
	env.AddFunction("mount", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 2 {
			return zygo.SexpNull, fmt.Errorf("mount requires a solid and a name")
		}
		solid, ok := pa.positional[0].(*sexpSolidRef)
		if !ok {
			return zygo.SexpNull, fmt.Errorf("mount: expected solid reference, got %T", pa.positional[0])
		}
		mName, err := toString(pa.positional[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("mount: name: %w", err)
		}

		face := op.FaceTop
		if v, ok := pa.kw["face"]; ok {
			if face, err = toFace(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("mount: face: %w", err)
			}
		}

		m, err := solid.data.AddMount(mName, face)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpMountRef{mount: m, solid: solid.label}, nil
	})

	// -----------------------------------------------------------------------
	// (fence top)
	// -----------------------------------------------------------------------
	env.AddFunction("fence", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 {
			return zygo.SexpNull, fmt.Errorf("fence requires a mount")
		}
		m, err := toMount(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("fence: %w", err)
		}
		m.mount.Fence()
		return m, nil
	})

	// -----------------------------------------------------------------------
	// (extrude top "outline" :contour (rect 0 0 100 60) :depth 18)
	// -----------------------------------------------------------------------
	env.AddFunction("extrude", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return cutBuiltin("extrude", args, func(m *op.Mount, opName string, c op.Contour, depth float64) {
			m.Extrude(opName, c, depth)
		})
	})

	// -----------------------------------------------------------------------
	// (pocket top "recess" :contour (rect 20 20 40 20) :depth 6)
	// -----------------------------------------------------------------------
	env.AddFunction("pocket", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return cutBuiltin("pocket", args, func(m *op.Mount, opName string, c op.Contour, depth float64) {
			m.Pocket(opName, c, depth)
		})
	})

	// -----------------------------------------------------------------------
	// (drill top "mounting" :at (list (xy 10 10) (xy 90 10)) :diameter 5)
	// -----------------------------------------------------------------------
	env.AddFunction("drill", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 2 {
			return zygo.SexpNull, fmt.Errorf("drill requires a mount and a name")
		}
		m, err := toMount(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("drill: %w", err)
		}
		opName, err := toString(pa.positional[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("drill: name: %w", err)
		}

		spec := op.HoleSpec{}
		v, ok := pa.kw["diameter"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("drill: missing :diameter")
		}
		if spec.Diameter, err = toFloat64(v); err != nil {
			return zygo.SexpNull, fmt.Errorf("drill: diameter: %w", err)
		}
		if v, ok := pa.kw["depth"]; ok {
			if spec.Depth, err = toFloat64(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("drill: depth: %w", err)
			}
		}
		if v, ok := pa.kw["countersink"]; ok {
			if spec.Countersink, err = toFloat64(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("drill: countersink: %w", err)
			}
		}

		v, ok = pa.kw["at"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("drill: missing :at centers")
		}
		centers, err := toPoints(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("drill: at: %w", err)
		}

		holes := make([]op.Hole, len(centers))
		for i, c := range centers {
			holes[i] = op.Hole{Center: c, Spec: spec}
		}
		m.mount.Drill(opName, holes...)
		return m, nil
	})

	// -----------------------------------------------------------------------
	// (fasten top "screws" :fastener "#8-wood-screw" :at (list (xy 10 10)))
	// -----------------------------------------------------------------------
	env.AddFunction("fasten", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 2 {
			return zygo.SexpNull, fmt.Errorf("fasten requires a mount and a name")
		}
		m, err := toMount(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("fasten: %w", err)
		}
		opName, err := toString(pa.positional[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("fasten: name: %w", err)
		}

		v, ok := pa.kw["fastener"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("fasten: missing :fastener name")
		}
		fName, err := toString(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("fasten: fastener: %w", err)
		}
		f, ok := st.tables.Fasteners[fName]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("fasten: unknown fastener %q", fName)
		}

		v, ok = pa.kw["at"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("fasten: missing :at centers")
		}
		centers, err := toPoints(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("fasten: at: %w", err)
		}

		m.mount.Drill(opName, op.FastenerHoles(f, centers...)...)
		return m, nil
	})

	// -----------------------------------------------------------------------
	// (xy 10 10)
	// -----------------------------------------------------------------------
	env.AddFunction("xy", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("xy requires exactly 2 arguments, got %d", len(args))
		}
		x, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("xy: x: %w", err)
		}
		y, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("xy: y: %w", err)
		}
		return &sexpPoint{p: op.Point{X: x, Y: y}}, nil
	})

	// -----------------------------------------------------------------------
	// (rect 0 0 100 60)
	// -----------------------------------------------------------------------
	env.AddFunction("rect", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 4 {
			return zygo.SexpNull, fmt.Errorf("rect requires x y w h, got %d arguments", len(args))
		}
		vals := make([]float64, 4)
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("rect: argument %d: %w", i+1, err)
			}
			vals[i] = f
		}
		return &sexpContour{c: op.Rectangle(vals[0], vals[1], vals[2], vals[3])}, nil
	})

	// -----------------------------------------------------------------------
	// (polygon (xy 0 0) (xy 100 0) (xy 50 80))
	// -----------------------------------------------------------------------
	env.AddFunction("polygon", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 3 {
			return zygo.SexpNull, fmt.Errorf("polygon requires at least 3 points, got %d", len(args))
		}
		c := op.Contour{Points: make([]op.Point, 0, len(args))}
		for i, a := range args {
			p, ok := a.(*sexpPoint)
			if !ok {
				return zygo.SexpNull, fmt.Errorf("polygon: point %d: expected (xy ...), got %T", i+1, a)
			}
			c.Points = append(c.Points, p.p)
		}
		return &sexpContour{c: c}, nil
	})

	// -----------------------------------------------------------------------
	// (vec3 100 60 18)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		x, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: x: %w", err)
		}
		y, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: y: %w", err)
		}
		z, err := toFloat64(args[2])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: z: %w", err)
		}
		return &sexpVec3{v: op.Vec3{X: x, Y: y, Z: z}}, nil
	})
}

// cutBuiltin implements the shared argument shape of extrude and pocket.
func cutBuiltin(form string, args []zygo.Sexp, apply func(*op.Mount, string, op.Contour, float64)) (zygo.Sexp, error) {
	pa := parseArgs(args)
	if len(pa.positional) < 2 {
		return zygo.SexpNull, fmt.Errorf("%s requires a mount and a name", form)
	}
	m, err := toMount(pa.positional[0])
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("%s: %w", form, err)
	}
	opName, err := toString(pa.positional[1])
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("%s: name: %w", form, err)
	}

	v, ok := pa.kw["contour"]
	if !ok {
		return zygo.SexpNull, fmt.Errorf("%s: missing :contour", form)
	}
	c, err := toContour(v)
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("%s: contour: %w", form, err)
	}

	depth := 0.0
	if v, ok := pa.kw["depth"]; ok {
		if depth, err = toFloat64(v); err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: depth: %w", form, err)
		}
	}

	apply(m.mount, opName, c, depth)
	return m, nil
}
