package hashkey

import "testing"

func TestStructuralEquality(t *testing.T) {
	a := Tuple{String("box"), Float(100), Float(50), Float(19), Bool(true)}
	b := Tuple{String("box"), Float(100), Float(50), Float(19), Bool(true)}
	if Of(a) != Of(b) {
		t.Error("structurally equal tuples should hash equal")
	}
}

func TestLeafSensitivity(t *testing.T) {
	base := Tuple{String("pocket"), Float(5.0)}
	bumped := Tuple{String("pocket"), Float(5.0001)}
	if Of(base) == Of(bumped) {
		t.Error("changing a float leaf should change the key")
	}
}

func TestTypeTagsPreventCrossVariantCollisions(t *testing.T) {
	cases := []struct{ a, b Value }{
		{Int(1), Float(1)},
		{Bool(true), Int(1)},
		{String("1"), Int(1)},
		{Tuple{Int(1)}, Int(1)},
		{Tuple{}, String("")},
		{Sub(7), Int(7)},
	}
	for i, c := range cases {
		if Of(c.a) == Of(c.b) {
			t.Errorf("case %d: %#v and %#v should not collide", i, c.a, c.b)
		}
	}
}

func TestNestingMatters(t *testing.T) {
	flat := Tuple{Int(1), Int(2), Int(3)}
	nested := Tuple{Tuple{Int(1), Int(2)}, Int(3)}
	if Of(flat) == Of(nested) {
		t.Error("different nesting should produce different keys")
	}
}

func TestSubKeyFoldsIn(t *testing.T) {
	inner := Of(Tuple{String("stock"), Float(100)})
	outer1 := Of(Tuple{String("machined"), Sub(inner)})
	outer2 := Of(Tuple{String("machined"), Sub(inner)})
	if outer1 != outer2 {
		t.Error("folding the same sub-key twice should be deterministic")
	}

	other := Of(Tuple{String("stock"), Float(101)})
	if outer1 == Of(Tuple{String("machined"), Sub(other)}) {
		t.Error("a different sub-key should change the outer key")
	}
}

func TestHexRoundTrip(t *testing.T) {
	k := Of(String("front-panel"))
	hex := k.Hex()
	if len(hex) != 16 {
		t.Fatalf("Hex() len = %d, want 16", len(hex))
	}
	parsed, ok := ParseHex(hex)
	if !ok {
		t.Fatalf("ParseHex(%q) failed", hex)
	}
	if parsed != k {
		t.Errorf("round trip = %v, want %v", parsed, k)
	}
}

func TestParseHexRejectsForeign(t *testing.T) {
	for _, s := range []string{
		"", "abc", "0123456789abcdeg", "0123456789abcdef0", "not-a-hash-here",
		"0123456789ABCDEF", // Hex never emits uppercase
	} {
		if _, ok := ParseHex(s); ok {
			t.Errorf("ParseHex(%q) should fail", s)
		}
	}
}

func TestFloatBitExactness(t *testing.T) {
	// Keys are built from the bit pattern, so distinct representations of
	// numerically equal values may differ. Same bits must always agree.
	if Of(Float(2.5)) != Of(Float(2.5)) {
		t.Error("identical float bits should hash equal")
	}
	if Of(Float(0)) == Of(Int(0)) {
		t.Error("Float(0) and Int(0) should not collide")
	}
}
