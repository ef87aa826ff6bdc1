package decode

import (
	"errors"
	"testing"

	"ChainSnap/internal/amount"
	"ChainSnap/internal/chain"
	"ChainSnap/internal/identity"
	vt "ChainSnap/internal/valuetree"
)

// seq returns n bytes counting up from start.
func seq(start byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = start + byte(i)
	}
	return out
}

// accountKey builds a key part shaped as a newtype over a byte array.
func accountKey(raw []byte) vt.Value {
	return vt.Newtype(vt.ByteArray(raw))
}

// TestIdentityDescent tests decoding identities from key trees.
func TestIdentityDescent(t *testing.T) {
	raw := seq(1, 32)

	id, err := IdentityFromKey([]vt.Value{accountKey(raw)}, 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	again, err := IdentityFromKey([]vt.Value{accountKey(raw)}, 0)
	if err != nil {
		t.Fatalf("decode again: %v", err)
	}

	if id != again {
		t.Fatal("decoding is not deterministic")
	}

	want, _ := identity.FromBytes(raw)
	if id != want {
		t.Errorf("id = %x, want %x", id, want)
	}
}

// TestIdentityUsesFirst32Bytes tests keys carrying trailing bytes.
func TestIdentityUsesFirst32Bytes(t *testing.T) {
	raw := seq(0, 40)

	id, err := Identity(accountKey(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if id[0] != 0 || id[31] != 31 {
		t.Errorf("id = %x", id)
	}
}

// TestIdentityAcceptsByteString tests inner composites holding a byte string.
func TestIdentityAcceptsByteString(t *testing.T) {
	id, err := Identity(vt.Tuple(vt.Tuple(vt.Bytes(seq(7, 32)))))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if id[0] != 7 {
		t.Errorf("id = %x", id)
	}
}

// TestIdentityShapeErrors tests every way the descent can fail.
func TestIdentityShapeErrors(t *testing.T) {
	tests := []struct {
		name string
		key  vt.Value
	}{
		{"short", accountKey(seq(0, 31))},
		{"scalar key", vt.U8(1)},
		{"empty outer", vt.Tuple()},
		{"scalar inner", vt.Tuple(vt.U8(1))},
		{"wide leaf", vt.Tuple(vt.Tuple(vt.U32(300)))},
		{"text leaf", vt.Tuple(vt.Tuple(vt.Str("abc")))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Identity(tt.key)

			var decodeErr *Error
			if !errors.As(err, &decodeErr) {
				t.Fatalf("err = %v, want *Error", err)
			}
		})
	}
}

// TestIdentityPair tests two-part keys decoding independently.
func TestIdentityPair(t *testing.T) {
	keys := []vt.Value{accountKey(seq(1, 32)), accountKey(seq(100, 32))}

	from, to, err := IdentityPair(keys)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if from[0] != 1 || to[0] != 100 {
		t.Errorf("from=%x to=%x", from, to)
	}

	_, _, err = IdentityPair(keys[:1])
	var decodeErr *Error
	if !errors.As(err, &decodeErr) || decodeErr.Path != "key[1]" {
		t.Fatalf("err = %v, want missing key[1]", err)
	}

	_, _, err = IdentityPair([]vt.Value{keys[0], accountKey(seq(0, 8))})
	if !errors.As(err, &decodeErr) || decodeErr.Path != "key[1].0" {
		t.Fatalf("err = %v, want short key[1]", err)
	}
}

// namedAccount builds a named account record.
func namedAccount(dataFields ...vt.Field) vt.Value {
	return vt.Record(
		vt.F("nonce", vt.U32(3)),
		vt.F("consumers", vt.U32(1)),
		vt.F("providers", vt.U32(2)),
		vt.F("sufficients", vt.U32(0)),
		vt.F("data", vt.Record(dataFields...)),
		vt.F("unexpected", vt.Str("ignored")),
	)
}

// TestAccountInfoNamed tests name-matched account records.
func TestAccountInfoNamed(t *testing.T) {
	v := namedAccount(
		vt.F("free", vt.U64(100)),
		vt.F("reserved", vt.U64(20)),
		vt.F("frozen", vt.U64(5)),
		vt.F("flags", vt.Newtype(vt.U128(amount.MustParse("170141183460469231731687303715884105728")))),
	)

	info, err := AccountInfo(v)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if info.Nonce != 3 || info.Providers != 2 || info.Data.Free != 100 || info.Data.Reserved != 20 || info.Data.Frozen != 5 {
		t.Errorf("info = %+v", info)
	}

	if info.Data.Flags.String() != "170141183460469231731687303715884105728" {
		t.Errorf("flags = %s", info.Data.Flags)
	}
}

// TestAccountInfoLegacyFrozen tests the misc/fee frozen fallback.
func TestAccountInfoLegacyFrozen(t *testing.T) {
	v := namedAccount(
		vt.F("free", vt.U64(100)),
		vt.F("reserved", vt.U64(0)),
		vt.F("misc_frozen", vt.U64(7)),
		vt.F("fee_frozen", vt.U64(9)),
	)

	info, err := AccountInfo(v)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if info.Data.Frozen != 9 || !info.Data.Flags.IsZero() {
		t.Errorf("data = %+v", info.Data)
	}
}

// TestAccountInfoPositional tests positionally-ordered records.
func TestAccountInfoPositional(t *testing.T) {
	v := vt.Tuple(vt.U32(1), vt.U32(0), vt.U32(1), vt.U32(0), vt.Tuple(vt.U64(10), vt.U64(11), vt.U64(12), vt.U128(amount.FromUint64(1))))

	info, err := AccountInfo(v)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	want := chain.AccountData{Free: 10, Reserved: 11, Frozen: 12, Flags: amount.FromUint64(1)}
	if info.Data.Free != want.Free || info.Data.Reserved != want.Reserved || info.Data.Frozen != want.Frozen || info.Data.Flags.Cmp(want.Flags) != 0 {
		t.Errorf("data = %+v", info.Data)
	}
}

// TestAccountInfoShapeErrors tests rejected account layouts.
func TestAccountInfoShapeErrors(t *testing.T) {
	tests := []struct {
		name string
		v    vt.Value
	}{
		{"scalar", vt.U64(1)},
		{"short tuple", vt.Tuple(vt.U32(1), vt.U32(0))},
		{"missing data", vt.Record(vt.F("nonce", vt.U32(1)), vt.F("consumers", vt.U32(0)), vt.F("providers", vt.U32(0)), vt.F("sufficients", vt.U32(0)))},
		{"nonce too wide", namedAccount(vt.F("free", vt.U64(1)), vt.F("reserved", vt.U64(0)), vt.F("frozen", vt.U64(0))).(vt.Named).With("nonce", vt.U64(1 << 40))},
		{"free is text", namedAccount(vt.F("free", vt.Str("1")), vt.F("reserved", vt.U64(0)), vt.F("frozen", vt.U64(0)))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var decodeErr *Error
			if _, err := AccountInfo(tt.v); !errors.As(err, &decodeErr) {
				t.Fatalf("err = %v, want *Error", err)
			}
		})
	}
}

// TestAmountScalarOrNewtype tests stake values in both shapes.
func TestAmountScalarOrNewtype(t *testing.T) {
	for _, v := range []vt.Value{vt.U128(amount.FromUint64(50)), vt.Newtype(vt.U128(amount.FromUint64(50))), vt.Int(50)} {
		got, err := Amount(v)
		if err != nil {
			t.Fatalf("Amount(%#v): %v", v, err)
		}

		if got.Cmp(amount.FromUint64(50)) != 0 {
			t.Errorf("Amount(%#v) = %s", v, got)
		}
	}

	if _, err := Amount(vt.Tuple(vt.U8(1), vt.U8(2))); err == nil {
		t.Error("two-field composite decoded as amount")
	}

	if _, err := Amount(vt.Int(-1)); err == nil {
		t.Error("negative value decoded as amount")
	}
}

// moduleValue builds a named module record.
func moduleValue() vt.Named {
	return vt.Record(
		vt.F("owner", accountKey(seq(1, 32))),
		vt.F("id", vt.U64(4)),
		vt.F("name", vt.Newtype(vt.ByteArray([]byte("relay")))),
		vt.F("data", vt.Some(vt.Newtype(vt.ByteArray([]byte("ipfs://x"))))),
		vt.F("url", vt.None()),
		vt.F("collateral", vt.U128(amount.FromUint64(1000))),
		vt.F("take", vt.Newtype(vt.U8(5))),
		vt.F("tier", vt.Enum("Official")),
		vt.F("created_at", vt.U64(10)),
		vt.F("last_updated", vt.U64(12)),
	)
}

// TestModuleNamed tests a named module record.
func TestModuleNamed(t *testing.T) {
	m, err := Module(moduleValue())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if m.ID != 4 || m.Name != "relay" || m.Take != 5 || m.Tier != chain.TierOfficial || m.CreatedAt != 10 || m.LastUpdated != 12 {
		t.Errorf("module = %+v", m)
	}

	if m.Data == nil || *m.Data != "ipfs://x" || m.URL != nil {
		t.Errorf("data=%v url=%v", m.Data, m.URL)
	}

	if m.Owner[0] != 1 {
		t.Errorf("owner = %x", m.Owner)
	}
}

// TestModulePositionalWithoutTier tests the older positional layout.
func TestModulePositionalWithoutTier(t *testing.T) {
	fields := vt.Children(moduleValue())
	legacy := vt.Tuple(append(append([]vt.Value{}, fields[:7]...), fields[8:]...)...)

	m, err := Module(legacy)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if m.Tier != chain.TierUnapproved || m.CreatedAt != 10 || m.LastUpdated != 12 {
		t.Errorf("module = %+v", m)
	}
}

// TestModuleBadTier tests an unknown tier variant.
func TestModuleBadTier(t *testing.T) {
	_, err := Module(moduleValue().With("tier", vt.Enum("Mythic")))

	var decodeErr *Error
	if !errors.As(err, &decodeErr) || decodeErr.Path != "value.tier" {
		t.Fatalf("err = %v", err)
	}
}

// TestModuleID tests the optional module index.
func TestModuleID(t *testing.T) {
	id, ok, err := ModuleID(vt.Some(vt.U64(9)))
	if err != nil || !ok || id != 9 {
		t.Fatalf("Some(9) = %d, %v, %v", id, ok, err)
	}

	if _, ok, err := ModuleID(vt.None()); ok || err != nil {
		t.Fatalf("None = %v, %v", ok, err)
	}

	if _, _, err := ModuleID(vt.Variant{Name: "Other"}); err == nil {
		t.Fatal("unexpected variant accepted")
	}
}
