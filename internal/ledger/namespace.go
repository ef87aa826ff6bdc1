package ledger

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// hashSize is the length of each hashed segment in a storage key.
const hashSize = 16

// Namespace names a partition of the remote key-value store.
type Namespace struct {
	Pallet string // Pallet is the owning module name
	Entry  string // Entry is the storage item name
}

// Well-known namespaces.
var (
	SystemAccount    = Namespace{Pallet: "System", Entry: "Account"}
	StakeTo          = Namespace{Pallet: "SubspaceModule", Entry: "StakeTo"}
	Modules          = Namespace{Pallet: "Modules", Entry: "Modules"}
	AuthorizedModule = Namespace{Pallet: "Modules", Entry: "AuthorizedModule"}
)

// String returns "Pallet.Entry".
func (ns Namespace) String() string {
	return ns.Pallet + "." + ns.Entry
}

// Prefix returns the storage key prefix shared by every entry of the namespace.
func (ns Namespace) Prefix() []byte {
	out := make([]byte, 0, 2*hashSize)
	out = append(out, hash128([]byte(ns.Pallet))...)
	out = append(out, hash128([]byte(ns.Entry))...)

	return out
}

// Key builds the full storage key for the given raw key parts.
func Key(ns Namespace, parts ...[]byte) []byte {
	return append(ns.Prefix(), KeyParts(parts...)...)
}

// KeyParts encodes raw key parts as hash(part) ‖ part each.
func KeyParts(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, hash128(p)...)
		out = append(out, p...)
	}

	return out
}

// U64Part encodes an integer key part little-endian.
func U64Part(n uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], n)

	return buf[:]
}

// hash128 returns the first 16 bytes of the blake3 digest.
func hash128(data []byte) []byte {
	sum := blake3.Sum256(data)

	return sum[:hashSize]
}

// Root identifies one point-in-time state of the ledger.
// The zero root means "latest".
type Root [32]byte

// IsZero reports whether the root is unset.
func (r Root) IsZero() bool {
	return r == Root{}
}

// String returns the 0x-prefixed hex form.
func (r Root) String() string {
	return "0x" + hex.EncodeToString(r[:])
}

// RootFromBytes converts raw bytes; empty input yields the zero root.
func RootFromBytes(b []byte) (Root, error) {
	var r Root

	if len(b) == 0 {
		return r, nil
	}

	if len(b) != len(r) {
		return r, fmt.Errorf("state root must be %d bytes, got %d", len(r), len(b))
	}

	copy(r[:], b)

	return r, nil
}

// ParseRoot parses a hex root with optional 0x prefix; empty means latest.
func ParseRoot(s string) (Root, error) {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}

	raw, err := hex.DecodeString(s)
	if err != nil {
		return Root{}, fmt.Errorf("parse state root: %w", err)
	}

	return RootFromBytes(raw)
}

// Bytes returns nil for the zero root, else a copy of the root bytes.
func (r Root) Bytes() []byte {
	if r.IsZero() {
		return nil
	}

	out := make([]byte, len(r))
	copy(out, r[:])

	return out
}
