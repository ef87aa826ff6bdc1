package valuetree

import (
	"github.com/holiman/uint256"

	"ChainSnap/internal/amount"
	"ChainSnap/internal/types"
)

// Value is one node of a self-describing value tree.
// Implementations are Uint, Int, Bool, Str, Bytes, Named, Unnamed and Variant.
type Value interface {
	Kind() types.ValueKind
}

// Uint is an unsigned scalar of up to 256 bits.
type Uint struct {
	n uint256.Int
}

// Int is a signed scalar.
type Int int64

// Bool is a boolean scalar.
type Bool bool

// Str is a text scalar.
type Str string

// Bytes is an opaque byte string scalar.
type Bytes []byte

// Field is one named child of a Named composite.
type Field struct {
	Name  string // Name is the field name
	Value Value  // Value is the field value
}

// Named is a composite whose children carry field names.
type Named []Field

// Unnamed is a composite whose children are positional.
type Unnamed []Value

// Variant is an enum value: a variant name plus positional values.
type Variant struct {
	Name   string  // Name is the variant name
	Values []Value // Values are the variant's positional payload
}

func (Uint) Kind() types.ValueKind    { return types.ValueKindUint }
func (Int) Kind() types.ValueKind     { return types.ValueKindInt }
func (Bool) Kind() types.ValueKind    { return types.ValueKindBool }
func (Str) Kind() types.ValueKind     { return types.ValueKindString }
func (Bytes) Kind() types.ValueKind   { return types.ValueKindBytes }
func (Named) Kind() types.ValueKind   { return types.ValueKindNamed }
func (Unnamed) Kind() types.ValueKind { return types.ValueKindUnnamed }
func (Variant) Kind() types.ValueKind { return types.ValueKindVariant }

// NewUint creates a Uint from a 256-bit integer.
func NewUint(n *uint256.Int) Uint {
	return Uint{n: *n}
}

// U8 creates a byte-valued Uint.
func U8(b byte) Uint {
	return U64(uint64(b))
}

// U32 creates a Uint from a uint32.
func U32(n uint32) Uint {
	return U64(uint64(n))
}

// U64 creates a Uint from a uint64.
func U64(n uint64) Uint {
	var u Uint
	u.n.SetUint64(n)

	return u
}

// U128 creates a Uint from a ledger amount.
func U128(a amount.Amount) Uint {
	return NewUint(a.Big())
}

// Big returns a copy of the scalar as a 256-bit integer.
func (u Uint) Big() *uint256.Int {
	return u.n.Clone()
}

// BitLen returns the number of significant bits.
func (u Uint) BitLen() int {
	return u.n.BitLen()
}

// Uint64 returns the low 64 bits and whether the value fits.
func (u Uint) Uint64() (uint64, bool) {
	return u.n.Uint64(), u.n.IsUint64()
}

// String returns the decimal representation.
func (u Uint) String() string {
	return u.n.Dec()
}

// ByteArray represents a fixed-size byte array as a composite of byte scalars.
func ByteArray(b []byte) Unnamed {
	out := make(Unnamed, len(b))
	for i, v := range b {
		out[i] = U8(v)
	}

	return out
}

// Newtype wraps a single value in a one-element composite.
func Newtype(v Value) Unnamed {
	return Unnamed{v}
}

// Record builds a named composite.
func Record(fields ...Field) Named {
	return Named(fields)
}

// F is shorthand for a Field.
func F(name string, v Value) Field {
	return Field{Name: name, Value: v}
}

// With returns a copy of n with the named field replaced, or appended when absent.
func (n Named) With(name string, v Value) Named {
	out := make(Named, len(n), len(n)+1)
	copy(out, n)

	for i := range out {
		if out[i].Name == name {
			out[i].Value = v
			return out
		}
	}

	return append(out, F(name, v))
}

// Tuple builds a positional composite.
func Tuple(values ...Value) Unnamed {
	return Unnamed(values)
}

// Some builds an optional value that is present.
func Some(v Value) Variant {
	return Variant{Name: "Some", Values: []Value{v}}
}

// None builds an optional value that is absent.
func None() Variant {
	return Variant{Name: "None"}
}

// Enum builds a unit variant.
func Enum(name string) Variant {
	return Variant{Name: name}
}

// IsComposite reports whether v has children.
func IsComposite(v Value) bool {
	switch v.(type) {
	case Named, Unnamed, Variant:
		return true
	default:
		return false
	}
}

// Children returns the positional children of a composite, or nil for scalars.
func Children(v Value) []Value {
	switch c := v.(type) {
	case Unnamed:
		return c
	case Named:
		out := make([]Value, len(c))
		for i, f := range c {
			out[i] = f.Value
		}
		return out
	case Variant:
		return c.Values
	default:
		return nil
	}
}

// At returns the i-th child of a composite.
func At(v Value, i int) (Value, bool) {
	children := Children(v)
	if i < 0 || i >= len(children) {
		return nil, false
	}

	return children[i], true
}

// Lookup returns the child field with the given name.
func Lookup(v Value, name string) (Value, bool) {
	named, ok := v.(Named)
	if !ok {
		return nil, false
	}

	for _, f := range named {
		if f.Name == name {
			return f.Value, true
		}
	}

	return nil, false
}

// KindName returns a readable kind name for diagnostics.
func KindName(v Value) string {
	if v == nil {
		return "nil"
	}

	return v.Kind().String()
}
