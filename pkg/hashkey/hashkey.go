// Package hashkey computes content-addressed keys for nested value tuples.
// Every semantic input of a cached artifact (dimensions, material, tool
// choice, sub-artifact keys) is folded into a Value tree and hashed into a
// 64-bit Key. Structurally equal inputs always produce equal keys; the hash
// is not cryptographic; a collision is a correctness bug, not an attack.
package hashkey

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

// Key is a 64-bit content hash.
type Key uint64

// Hex renders the key as 16 lowercase hex digits, the width used in
// cache filenames.
func (k Key) Hex() string {
	return fmt.Sprintf("%016x", uint64(k))
}

// ParseHex parses a 16-hex-digit string back into a Key. It accepts only
// the exact form Hex emits: 16 lowercase digits. Uppercase is rejected so
// that files the cache could never have written stay foreign.
func ParseHex(s string) (Key, bool) {
	if len(s) != 16 {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return 0, false
		}
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, false
	}
	return Key(v), true
}

// Value is one node of a hashable input tree.
type Value interface {
	value() // marker method restricting implementations to this package
}

// Bool is a hashable boolean leaf.
type Bool bool

// Int is a hashable integer leaf.
type Int int64

// Float is a hashable float leaf. Hashed by exact IEEE-754 bit pattern;
// 5.0 and 5.0000001 are different keys.
type Float float64

// String is a hashable string leaf.
type String string

// Tuple is an ordered sequence of hashable values.
type Tuple []Value

// Sub embeds an already-computed Key, letting an artifact's key fold in
// the keys of the artifacts it was built from.
type Sub Key

func (Bool) value()   {}
func (Int) value()    {}
func (Float) value()  {}
func (String) value() {}
func (Tuple) value()  {}
func (Sub) value()    {}

// Type tags keep the serialization prefix-free across variants, so that
// e.g. Tuple{Int(1), Int(2)} and String("\x01\x02") cannot collide.
const (
	tagBool   = 'b'
	tagInt    = 'i'
	tagFloat  = 'f'
	tagString = 's'
	tagTuple  = 't'
	tagSub    = 'k'
)

// Of computes the Key for a value tree. Two calls with structurally equal
// trees yield equal keys regardless of how the trees were assembled.
func Of(v Value) Key {
	h := sha256.New()
	write(h, v)
	sum := h.Sum(nil)
	return Key(binary.BigEndian.Uint64(sum[:8]))
}

func write(h interface{ Write([]byte) (int, error) }, v Value) {
	var buf [9]byte
	switch x := v.(type) {
	case Bool:
		buf[0] = tagBool
		if x {
			buf[1] = 1
		}
		h.Write(buf[:2])
	case Int:
		buf[0] = tagInt
		binary.BigEndian.PutUint64(buf[1:], uint64(x))
		h.Write(buf[:9])
	case Float:
		buf[0] = tagFloat
		binary.BigEndian.PutUint64(buf[1:], math.Float64bits(float64(x)))
		h.Write(buf[:9])
	case String:
		buf[0] = tagString
		binary.BigEndian.PutUint64(buf[1:], uint64(len(x)))
		h.Write(buf[:9])
		h.Write([]byte(x))
	case Tuple:
		buf[0] = tagTuple
		binary.BigEndian.PutUint64(buf[1:], uint64(len(x)))
		h.Write(buf[:9])
		for _, e := range x {
			write(h, e)
		}
	case Sub:
		buf[0] = tagSub
		binary.BigEndian.PutUint64(buf[1:], uint64(x))
		h.Write(buf[:9])
	default:
		panic(fmt.Sprintf("hashkey: unknown value type %T", v))
	}
}
