package chainstate

import (
	"ChainSnap/internal/amount"
	"ChainSnap/internal/chain"
	"ChainSnap/internal/identity"
	"ChainSnap/internal/ledger"
	vt "ChainSnap/internal/valuetree"
)

// Write is one pending change to ledger state.
type Write struct {
	Key   []byte // Key is the full storage key
	Value []byte // Value is the binary storage entry, nil to delete
}

// AccountKey is the key tree of an account identifier.
func AccountKey(id identity.Identity) vt.Value {
	return vt.Newtype(vt.ByteArray(id[:]))
}

// AccountValue is the on-chain layout of an account record.
func AccountValue(info chain.AccountInfo) vt.Value {
	return vt.Record(
		vt.F("nonce", vt.U32(info.Nonce)),
		vt.F("consumers", vt.U32(info.Consumers)),
		vt.F("providers", vt.U32(info.Providers)),
		vt.F("sufficients", vt.U32(info.Sufficients)),
		vt.F("data", vt.Record(
			vt.F("free", vt.U64(info.Data.Free)),
			vt.F("reserved", vt.U64(info.Data.Reserved)),
			vt.F("frozen", vt.U64(info.Data.Frozen)),
			vt.F("flags", vt.Newtype(vt.U128(info.Data.Flags))),
		)),
	)
}

// ModuleValue is the on-chain layout of a module record.
func ModuleValue(m chain.Module) vt.Value {
	return vt.Record(
		vt.F("owner", AccountKey(m.Owner)),
		vt.F("id", vt.U64(m.ID)),
		vt.F("name", vt.Newtype(vt.ByteArray([]byte(m.Name)))),
		vt.F("data", optionalBytes(m.Data)),
		vt.F("url", optionalBytes(m.URL)),
		vt.F("collateral", vt.U128(m.Collateral)),
		vt.F("take", vt.Newtype(vt.U8(m.Take))),
		vt.F("tier", vt.Enum(m.Tier.String())),
		vt.F("created_at", vt.U64(m.CreatedAt)),
		vt.F("last_updated", vt.U64(m.LastUpdated)),
	)
}

// optionalBytes encodes an optional string as Option<BoundedVec<u8>>.
func optionalBytes(s *string) vt.Value {
	if s == nil {
		return vt.None()
	}

	return vt.Some(vt.Newtype(vt.ByteArray([]byte(*s))))
}

// AccountWrite stores an account record.
func AccountWrite(id identity.Identity, info chain.AccountInfo) Write {
	return Write{
		Key:   ledger.Key(ledger.SystemAccount, id[:]),
		Value: vt.MarshalEntry([]vt.Value{AccountKey(id)}, AccountValue(info)),
	}
}

// StakeWrite stores a stake edge.
func StakeWrite(from, to identity.Identity, amt amount.Amount) Write {
	return Write{
		Key:   ledger.Key(ledger.StakeTo, from[:], to[:]),
		Value: vt.MarshalEntry([]vt.Value{AccountKey(from), AccountKey(to)}, vt.U128(amt)),
	}
}

// ModuleWrite stores a module record under its index.
func ModuleWrite(m chain.Module) Write {
	return Write{
		Key:   ModuleKey(m.ID),
		Value: vt.MarshalEntry([]vt.Value{vt.U64(m.ID)}, ModuleValue(m)),
	}
}

// ModuleKey is the storage key of a module index.
func ModuleKey(id uint64) []byte {
	return ledger.Key(ledger.Modules, ledger.U64Part(id))
}

// AuthorizedWrite stores the authorized module index; nil clears it.
func AuthorizedWrite(id *uint64) Write {
	value := vt.Value(vt.None())
	if id != nil {
		value = vt.Some(vt.U64(*id))
	}

	return Write{
		Key:   ledger.Key(ledger.AuthorizedModule),
		Value: vt.MarshalEntry(nil, value),
	}
}

// Delete removes the entry under key.
func Delete(key []byte) Write {
	return Write{Key: key}
}
