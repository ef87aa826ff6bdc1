package amount

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Bits is the width of a ledger amount.
const Bits = 128

var (
	// ErrOverflow is returned when a result does not fit in 128 bits.
	ErrOverflow = errors.New("amount overflows 128 bits")

	// ErrInvalid is returned for unparsable amount text.
	ErrInvalid = errors.New("invalid amount")
)

// Amount is an unsigned 128-bit ledger amount.
// The zero value is 0 and Amount is safe to copy.
type Amount struct {
	v uint256.Int
}

// Zero returns the zero amount.
func Zero() Amount {
	return Amount{}
}

// FromUint64 creates an amount from a uint64.
func FromUint64(n uint64) Amount {
	var a Amount
	a.v.SetUint64(n)

	return a
}

// FromBig converts a 256-bit integer, rejecting values wider than 128 bits.
func FromBig(n *uint256.Int) (Amount, error) {
	if n.BitLen() > Bits {
		return Amount{}, ErrOverflow
	}

	return Amount{v: *n}, nil
}

// FromBytesBE creates an amount from big-endian bytes.
func FromBytesBE(b []byte) (Amount, error) {
	trimmed := bytes.TrimLeft(b, "\x00")
	if len(trimmed) > Bits/8 {
		return Amount{}, ErrOverflow
	}

	var a Amount
	a.v.SetBytes(trimmed)

	return a, nil
}

// Parse parses a base-10 amount.
func Parse(s string) (Amount, error) {
	n, err := uint256.FromDecimal(strings.TrimSpace(s))
	if err != nil {
		return Amount{}, fmt.Errorf("%w %q: %v", ErrInvalid, s, err)
	}

	return FromBig(n)
}

// MustParse is Parse for constants; it panics on error.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}

	return a
}

// Add returns a+b or ErrOverflow.
func (a Amount) Add(b Amount) (Amount, error) {
	var sum Amount

	if _, overflow := sum.v.AddOverflow(&a.v, &b.v); overflow || sum.v.BitLen() > Bits {
		return Amount{}, ErrOverflow
	}

	return sum, nil
}

// Sub returns a-b, or zero when b exceeds a.
func (a Amount) Sub(b Amount) Amount {
	var diff Amount

	if _, underflow := diff.v.SubOverflow(&a.v, &b.v); underflow {
		return Amount{}
	}

	return diff
}

// Cmp compares a and b and returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int {
	return a.v.Cmp(&b.v)
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool {
	return a.v.IsZero()
}

// Uint64 returns the low 64 bits and whether the value fits.
func (a Amount) Uint64() (uint64, bool) {
	return a.v.Uint64(), a.v.IsUint64()
}

// Big returns a copy of the underlying integer.
func (a Amount) Big() *uint256.Int {
	return a.v.Clone()
}

// BytesBE returns the 16-byte big-endian representation.
func (a Amount) BytesBE() []byte {
	full := a.v.Bytes32()
	out := make([]byte, Bits/8)
	copy(out, full[32-Bits/8:])

	return out
}

// Float64 returns the nearest float64.
func (a Amount) Float64() float64 {
	return a.v.Float64()
}

// String returns the decimal representation.
func (a Amount) String() string {
	return a.v.Dec()
}

// Format renders the amount as a fixed-point number with the given decimals,
// trimming trailing fractional zeros.
func (a Amount) Format(decimals int) string {
	s := a.v.Dec()
	if decimals <= 0 {
		return s
	}

	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}

	whole := s[:len(s)-decimals]
	frac := strings.TrimRight(s[len(s)-decimals:], "0")

	if frac == "" {
		return whole
	}

	return whole + "." + frac
}

// MarshalJSON encodes the amount as a quoted decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.v.Dec() + `"`), nil
}

// UnmarshalJSON accepts a quoted decimal string or a bare JSON number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return fmt.Errorf("%w: null", ErrInvalid)
	}

	s = strings.Trim(s, `"`)

	parsed, err := Parse(s)
	if err != nil {
		return err
	}

	*a = parsed

	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.v.Dec()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}

	*a = parsed

	return nil
}

// Sum adds all amounts, failing on overflow.
func Sum(values ...Amount) (Amount, error) {
	var total Amount

	for _, v := range values {
		next, err := total.Add(v)
		if err != nil {
			return Amount{}, err
		}
		total = next
	}

	return total, nil
}
