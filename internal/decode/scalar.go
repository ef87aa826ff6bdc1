package decode

import (
	"github.com/holiman/uint256"

	"ChainSnap/internal/amount"
	"ChainSnap/internal/valuetree"
)

// maxNesting bounds newtype unwrapping and byte flattening.
const maxNesting = 8

// Uint coerces a value to an unsigned integer of at most bits width.
// Single-child composites (newtypes) are unwrapped.
func Uint(v valuetree.Value, bits int) (*uint256.Int, error) {
	return uintAt("", v, bits)
}

// Amount coerces a value to a 128-bit ledger amount.
func Amount(v valuetree.Value) (amount.Amount, error) {
	return amountAt("", v)
}

// amountAt is Amount with a diagnostic path.
func amountAt(path string, v valuetree.Value) (amount.Amount, error) {
	n, err := uintAt(path, v, amount.Bits)
	if err != nil {
		return amount.Amount{}, err
	}

	return amount.FromBig(n)
}

// uint64At coerces a value to a uint of at most bits (<= 64) width.
func uint64At(path string, v valuetree.Value, bits int) (uint64, error) {
	n, err := uintAt(path, v, bits)
	if err != nil {
		return 0, err
	}

	return n.Uint64(), nil
}

// uintAt unwraps newtypes and checks the scalar width.
func uintAt(path string, v valuetree.Value, bits int) (*uint256.Int, error) {
	for depth := 0; ; depth++ {
		if depth > maxNesting {
			return nil, fail(path, "scalar nested too deeply")
		}

		switch n := v.(type) {
		case valuetree.Uint:
			if n.BitLen() > bits {
				return nil, fail(path, "value %s exceeds %d bits", n, bits)
			}
			return n.Big(), nil

		case valuetree.Int:
			if n < 0 {
				return nil, fail(path, "negative value %d for unsigned field", int64(n))
			}
			u := uint256.NewInt(uint64(n))
			if u.BitLen() > bits {
				return nil, fail(path, "value %d exceeds %d bits", int64(n), bits)
			}
			return u, nil

		case valuetree.Named, valuetree.Unnamed:
			children := valuetree.Children(n)
			if len(children) != 1 {
				return nil, fail(path, "expected scalar, got composite of %d", len(children))
			}
			v = children[0]
			path = join(path, "0")

		default:
			return nil, fail(path, "expected unsigned scalar, got %s", valuetree.KindName(v))
		}
	}
}
