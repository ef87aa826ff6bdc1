package identity

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
	"golang.org/x/crypto/blake2b"
)

const (
	// Size is the length of an identity in bytes.
	Size = 32

	// DefaultPrefix is the generic network prefix used for textual addresses.
	DefaultPrefix uint16 = 42

	// checksumSize is the number of checksum bytes appended to an address.
	checksumSize = 2

	// maxPrefix is the largest prefix representable by the two-byte encoding.
	maxPrefix = 16383
)

var checksumPreimage = []byte("SS58PRE")

var (
	// ErrLength is returned when raw bytes or a decoded address have the wrong size.
	ErrLength = errors.New("invalid identity length")

	// ErrPrefix is returned for reserved or out-of-range network prefixes.
	ErrPrefix = errors.New("invalid network prefix")

	// ErrChecksum is returned when an address checksum does not match.
	ErrChecksum = errors.New("invalid address checksum")

	// ErrEncoding is returned when an address is not valid base58.
	ErrEncoding = errors.New("invalid address encoding")
)

// Identity is a 32-byte public account identifier.
type Identity [Size]byte

// FromBytes copies exactly Size bytes into an Identity.
func FromBytes(b []byte) (Identity, error) {
	var id Identity

	if len(b) != Size {
		return id, fmt.Errorf("%w: got %d bytes", ErrLength, len(b))
	}

	copy(id[:], b)

	return id, nil
}

// Bytes returns a copy of the identity bytes.
func (id Identity) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, id[:])

	return out
}

// IsZero reports whether every byte is zero.
func (id Identity) IsZero() bool {
	return id == Identity{}
}

// Hex returns the 0x-prefixed hex form.
func (id Identity) Hex() string {
	return "0x" + hex.EncodeToString(id[:])
}

// String returns the address under DefaultPrefix.
func (id Identity) String() string {
	return Encode(id, DefaultPrefix)
}

// MarshalText implements encoding.TextMarshaler.
func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
// Any valid prefix is accepted.
func (id *Identity) UnmarshalText(text []byte) error {
	parsed, _, err := Decode(string(text))
	if err != nil {
		return err
	}

	*id = parsed

	return nil
}

// Compare orders identities by their raw bytes.
func Compare(a, b Identity) int {
	return bytes.Compare(a[:], b[:])
}

// Encode renders an identity as a checksummed, network-prefixed address.
func Encode(id Identity, prefix uint16) string {
	pre := encodePrefix(prefix)

	payload := make([]byte, 0, len(pre)+Size+checksumSize)
	payload = append(payload, pre...)
	payload = append(payload, id[:]...)

	sum := checksum(payload)
	payload = append(payload, sum[:checksumSize]...)

	return base58.Encode(payload)
}

// Decode parses an address back into its identity and network prefix.
func Decode(address string) (Identity, uint16, error) {
	var id Identity

	raw := base58.Decode(address)
	if len(raw) == 0 {
		return id, 0, ErrEncoding
	}

	prefix, prefixLen, err := decodePrefix(raw)
	if err != nil {
		return id, 0, err
	}

	if len(raw) != prefixLen+Size+checksumSize {
		return id, 0, fmt.Errorf("%w: address payload is %d bytes", ErrLength, len(raw))
	}

	body := raw[:prefixLen+Size]
	sum := checksum(body)

	if !bytes.Equal(sum[:checksumSize], raw[prefixLen+Size:]) {
		return id, 0, ErrChecksum
	}

	copy(id[:], raw[prefixLen:prefixLen+Size])

	return id, prefix, nil
}

// Parse accepts either an address or a 0x-prefixed hex identity.
func Parse(s string) (Identity, error) {
	if len(s) == 2+2*Size && (s[:2] == "0x" || s[:2] == "0X") {
		raw, err := hex.DecodeString(s[2:])
		if err != nil {
			return Identity{}, fmt.Errorf("%w: %v", ErrEncoding, err)
		}

		return FromBytes(raw)
	}

	id, _, err := Decode(s)

	return id, err
}

// encodePrefix returns the one- or two-byte prefix encoding.
func encodePrefix(prefix uint16) []byte {
	if prefix < 64 {
		return []byte{byte(prefix)}
	}

	first := byte((prefix&0x00fc)>>2) | 0x40
	second := byte(prefix>>8) | byte((prefix&0x0003)<<6)

	return []byte{first, second}
}

// decodePrefix reads the prefix at the start of a raw address.
func decodePrefix(raw []byte) (uint16, int, error) {
	switch {
	case raw[0] < 64:
		if isReserved(uint16(raw[0])) {
			return 0, 0, fmt.Errorf("%w: %d is reserved", ErrPrefix, raw[0])
		}
		return uint16(raw[0]), 1, nil

	case raw[0] < 128:
		if len(raw) < 2 {
			return 0, 0, ErrLength
		}

		lower := (raw[0] << 2) | (raw[1] >> 6)
		upper := raw[1] & 0x3f
		prefix := uint16(lower) | uint16(upper)<<8

		if prefix < 64 || prefix > maxPrefix {
			return 0, 0, fmt.Errorf("%w: %d", ErrPrefix, prefix)
		}

		return prefix, 2, nil

	default:
		return 0, 0, fmt.Errorf("%w: leading byte %d", ErrPrefix, raw[0])
	}
}

// isReserved reports prefixes that must not be used for account addresses.
func isReserved(prefix uint16) bool {
	return prefix == 46 || prefix == 47
}

// checksum computes the blake2b-512 address checksum over a prefixed body.
func checksum(body []byte) [blake2b.Size]byte {
	data := make([]byte, 0, len(checksumPreimage)+len(body))
	data = append(data, checksumPreimage...)
	data = append(data, body...)

	return blake2b.Sum512(data)
}
