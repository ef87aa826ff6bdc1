package valuetree

import (
	"errors"
	"reflect"
	"testing"

	"ChainSnap/internal/amount"
)

// accountTree builds a tree shaped like an on-chain account record.
func accountTree() Value {
	return Record(
		F("nonce", U32(7)),
		F("consumers", U32(1)),
		F("providers", U32(1)),
		F("sufficients", U32(0)),
		F("data", Record(
			F("free", U128(amount.MustParse("340282366920938463463374607431768211455"))),
			F("reserved", U128(amount.FromUint64(0))),
			F("frozen", U128(amount.FromUint64(5))),
			F("flags", Newtype(U128(amount.MustParse("170141183460469231731687303715884105728")))),
		)),
	)
}

// TestUnmarshalPreservesTree tests that every node kind survives encoding.
func TestUnmarshalPreservesTree(t *testing.T) {
	tree := Tuple(
		accountTree(),
		Int(-42),
		Bool(true),
		Str("module"),
		Bytes{0xde, 0xad},
		Some(ByteArray([]byte{1, 2, 3})),
		None(),
		Enum("Official"),
	)

	got, err := Unmarshal(Marshal(tree))
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !reflect.DeepEqual(got, tree) {
		t.Fatalf("tree mismatch:\ngot  %#v\nwant %#v", got, tree)
	}
}

// TestEntryKeysAndValue tests storage entry encoding with multiple key parts.
func TestEntryKeysAndValue(t *testing.T) {
	from := Newtype(ByteArray(make([]byte, 32)))
	to := Newtype(ByteArray([]byte{9, 9, 9}))
	value := U128(amount.FromUint64(50))

	keys, got, err := UnmarshalEntry(MarshalEntry([]Value{from, to}, value))
	if err != nil {
		t.Fatalf("unmarshal entry: %v", err)
	}

	if len(keys) != 2 {
		t.Fatalf("keys = %d, want 2", len(keys))
	}

	if !reflect.DeepEqual(keys[0], from) || !reflect.DeepEqual(keys[1], to) {
		t.Errorf("keys mismatch: %#v", keys)
	}

	if !reflect.DeepEqual(got, value) {
		t.Errorf("value = %#v", got)
	}
}

// TestUnmarshalGarbage tests that corrupt input errors instead of panicking.
func TestUnmarshalGarbage(t *testing.T) {
	inputs := [][]byte{
		nil,
		{1, 2},
		{0xff, 0xff, 0xff, 0x7f, 0, 0, 0, 0},
		{8, 0, 0, 0, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
	}

	for _, in := range inputs {
		if _, err := Unmarshal(in); !errors.Is(err, ErrMalformed) {
			t.Errorf("Unmarshal(%x) err = %v, want ErrMalformed", in, err)
		}

		if _, _, err := UnmarshalEntry(in); !errors.Is(err, ErrMalformed) {
			t.Errorf("UnmarshalEntry(%x) err = %v, want ErrMalformed", in, err)
		}
	}
}

// TestUnmarshalDepthLimit tests that overly nested trees are rejected.
func TestUnmarshalDepthLimit(t *testing.T) {
	var v Value = U8(1)
	for i := 0; i <= MaxDepth+1; i++ {
		v = Newtype(v)
	}

	if _, err := Unmarshal(Marshal(v)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
}

// TestAccessors tests child lookup helpers.
func TestAccessors(t *testing.T) {
	tree := accountTree()

	data, ok := Lookup(tree, "data")
	if !ok {
		t.Fatal("data field missing")
	}

	free, ok := At(data, 0)
	if !ok || KindName(free) != "Uint" {
		t.Fatalf("free = %#v", free)
	}

	if _, ok := At(data, 4); ok {
		t.Error("At past the end succeeded")
	}

	if _, ok := Lookup(Tuple(U8(1)), "data"); ok {
		t.Error("Lookup on positional composite succeeded")
	}

	if IsComposite(U8(1)) || !IsComposite(None()) {
		t.Error("IsComposite misreports")
	}
}
