package decode

import (
	"fmt"

	"ChainSnap/internal/identity"
	"ChainSnap/internal/valuetree"
)

// Identity extracts an identity from a key part or an identity-typed value.
//
// The value must be a composite whose first child is itself a composite of
// byte leaves; at least 32 bytes must be present and the first 32 are used.
func Identity(v valuetree.Value) (identity.Identity, error) {
	return identityAt("", v)
}

// IdentityFromKey decodes the identity held in key part i.
func IdentityFromKey(keys []valuetree.Value, i int) (identity.Identity, error) {
	path := fmt.Sprintf("key[%d]", i)

	if i < 0 || i >= len(keys) {
		return identity.Identity{}, fail(path, "key has %d parts", len(keys))
	}

	return identityAt(path, keys[i])
}

// IdentityPair decodes two identities from key parts 0 and 1.
func IdentityPair(keys []valuetree.Value) (identity.Identity, identity.Identity, error) {
	first, err := IdentityFromKey(keys, 0)
	if err != nil {
		return identity.Identity{}, identity.Identity{}, err
	}

	second, err := IdentityFromKey(keys, 1)
	if err != nil {
		return identity.Identity{}, identity.Identity{}, err
	}

	return first, second, nil
}

// identityAt runs the identity descent, reporting failures under path.
func identityAt(path string, v valuetree.Value) (identity.Identity, error) {
	var id identity.Identity

	if !valuetree.IsComposite(v) {
		return id, fail(path, "expected composite, got %s", valuetree.KindName(v))
	}

	inner, ok := valuetree.At(v, 0)
	if !ok {
		return id, fail(path, "empty composite")
	}

	innerPath := join(path, "0")
	if !valuetree.IsComposite(inner) {
		return id, fail(innerPath, "expected composite, got %s", valuetree.KindName(inner))
	}

	raw, err := flattenBytes(innerPath, inner, 0)
	if err != nil {
		return id, err
	}

	if len(raw) < identity.Size {
		return id, fail(innerPath, "identity needs %d bytes, got %d", identity.Size, len(raw))
	}

	copy(id[:], raw[:identity.Size])

	return id, nil
}

// flattenBytes collects the byte leaves of a composite in order.
func flattenBytes(path string, v valuetree.Value, depth int) ([]byte, error) {
	if depth > maxNesting {
		return nil, fail(path, "byte sequence nested too deeply")
	}

	switch n := v.(type) {
	case valuetree.Bytes:
		return []byte(n), nil

	case valuetree.Uint:
		b, ok := n.Uint64()
		if !ok || b > 0xff {
			return nil, fail(path, "leaf %s is not a byte", n)
		}
		return []byte{byte(b)}, nil

	case valuetree.Named, valuetree.Unnamed:
		children := valuetree.Children(n)
		out := make([]byte, 0, len(children))
		for i, c := range children {
			b, err := flattenBytes(join(path, fmt.Sprint(i)), c, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, b...)
		}
		return out, nil

	default:
		return nil, fail(path, "expected byte leaf, got %s", valuetree.KindName(v))
	}
}
