package valuetree

import (
	"errors"
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"

	"ChainSnap/internal/types"
)

// MaxDepth bounds the nesting accepted when decoding untrusted trees.
const MaxDepth = 64

// ErrMalformed is returned for binary input that is not a valid value tree.
var ErrMalformed = errors.New("malformed value tree")

// Marshal encodes a value tree into its binary form.
func Marshal(v Value) []byte {
	builder := flatbuffers.NewBuilder(256)

	offset := buildNode(builder, v)
	builder.Finish(offset)

	return builder.FinishedBytes()
}

// Unmarshal decodes a binary value tree.
func Unmarshal(data []byte) (v Value, err error) {
	defer recoverMalformed(&err)

	if len(data) < flatbuffers.SizeUOffsetT {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformed, len(data))
	}

	return readNode(types.GetRootAsValueNode(data, 0), 0)
}

// MarshalEntry encodes a storage record: the decoded key parts and the value.
func MarshalEntry(keys []Value, value Value) []byte {
	builder := flatbuffers.NewBuilder(512)

	keyOffsets := make([]flatbuffers.UOffsetT, len(keys))
	for i, k := range keys {
		keyOffsets[i] = buildNode(builder, k)
	}

	valueOffset := buildNode(builder, value)
	keysVector := buildOffsetVector(builder, keyOffsets)

	types.StorageEntryStart(builder)
	types.StorageEntryAddKeys(builder, keysVector)
	types.StorageEntryAddValue(builder, valueOffset)
	builder.Finish(types.StorageEntryEnd(builder))

	return builder.FinishedBytes()
}

// UnmarshalEntry decodes a storage record produced by MarshalEntry.
func UnmarshalEntry(data []byte) (keys []Value, value Value, err error) {
	defer recoverMalformed(&err)

	if len(data) < flatbuffers.SizeUOffsetT {
		return nil, nil, fmt.Errorf("%w: %d bytes", ErrMalformed, len(data))
	}

	entry := types.GetRootAsStorageEntry(data, 0)

	var node types.ValueNode
	keys = make([]Value, entry.KeysLength())

	for i := range keys {
		if !entry.Keys(&node, i) {
			return nil, nil, fmt.Errorf("%w: key %d missing", ErrMalformed, i)
		}

		if keys[i], err = readNode(&node, 0); err != nil {
			return nil, nil, fmt.Errorf("key %d:\n%w", i, err)
		}
	}

	root := entry.Value(nil)
	if root == nil {
		return nil, nil, fmt.Errorf("%w: entry has no value", ErrMalformed)
	}

	if value, err = readNode(root, 0); err != nil {
		return nil, nil, fmt.Errorf("value:\n%w", err)
	}

	return keys, value, nil
}

// recoverMalformed converts a flatbuffers bounds panic into ErrMalformed.
func recoverMalformed(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: %v", ErrMalformed, r)
	}
}

// buildNode serializes one node and its subtree, children first.
func buildNode(b *flatbuffers.Builder, v Value) flatbuffers.UOffsetT {
	var (
		numOffset, textOffset, dataOffset flatbuffers.UOffsetT
		namesOffset, childrenOffset       flatbuffers.UOffsetT
		signed                            int64
		flag                              bool
	)

	kind := types.ValueKindNone
	if v != nil {
		kind = v.Kind()
	}

	switch n := v.(type) {
	case Uint:
		numOffset = b.CreateByteVector(n.n.Bytes())
	case Int:
		signed = int64(n)
	case Bool:
		flag = bool(n)
	case Str:
		textOffset = b.CreateString(string(n))
	case Bytes:
		dataOffset = b.CreateByteVector(n)
	case Named:
		children := make([]flatbuffers.UOffsetT, len(n))
		names := make([]flatbuffers.UOffsetT, len(n))
		for i, f := range n {
			children[i] = buildNode(b, f.Value)
			names[i] = b.CreateString(f.Name)
		}
		childrenOffset = buildOffsetVector(b, children)
		namesOffset = buildOffsetVector(b, names)
	case Unnamed:
		childrenOffset = buildChildren(b, n)
	case Variant:
		childrenOffset = buildChildren(b, n.Values)
		textOffset = b.CreateString(n.Name)
	}

	types.ValueNodeStart(b)
	types.ValueNodeAddKind(b, kind)
	if numOffset != 0 {
		types.ValueNodeAddNum(b, numOffset)
	}
	if signed != 0 {
		types.ValueNodeAddSigned(b, signed)
	}
	if flag {
		types.ValueNodeAddFlag(b, flag)
	}
	if textOffset != 0 {
		types.ValueNodeAddText(b, textOffset)
	}
	if dataOffset != 0 {
		types.ValueNodeAddData(b, dataOffset)
	}
	if namesOffset != 0 {
		types.ValueNodeAddNames(b, namesOffset)
	}
	if childrenOffset != 0 {
		types.ValueNodeAddChildren(b, childrenOffset)
	}

	return types.ValueNodeEnd(b)
}

// buildChildren serializes a list of positional children.
func buildChildren(b *flatbuffers.Builder, values []Value) flatbuffers.UOffsetT {
	offsets := make([]flatbuffers.UOffsetT, len(values))
	for i, c := range values {
		offsets[i] = buildNode(b, c)
	}

	return buildOffsetVector(b, offsets)
}

// buildOffsetVector writes a vector of table or string offsets.
func buildOffsetVector(b *flatbuffers.Builder, offsets []flatbuffers.UOffsetT) flatbuffers.UOffsetT {
	b.StartVector(flatbuffers.SizeUOffsetT, len(offsets), flatbuffers.SizeUOffsetT)
	for i := len(offsets) - 1; i >= 0; i-- {
		b.PrependUOffsetT(offsets[i])
	}

	return b.EndVector(len(offsets))
}

// readNode decodes one node and its subtree.
func readNode(n *types.ValueNode, depth int) (Value, error) {
	if depth > MaxDepth {
		return nil, fmt.Errorf("%w: nesting deeper than %d", ErrMalformed, MaxDepth)
	}

	switch n.Kind() {
	case types.ValueKindUint:
		num := n.NumBytes()
		if len(num) > 32 {
			return nil, fmt.Errorf("%w: scalar of %d bytes", ErrMalformed, len(num))
		}
		var u Uint
		u.n.SetBytes(num)
		return u, nil

	case types.ValueKindInt:
		return Int(n.Signed()), nil

	case types.ValueKindBool:
		return Bool(n.Flag()), nil

	case types.ValueKindString:
		return Str(n.Text()), nil

	case types.ValueKindBytes:
		raw := n.DataBytes()
		out := make(Bytes, len(raw))
		copy(out, raw)
		return out, nil

	case types.ValueKindNamed:
		children, err := readChildren(n, depth)
		if err != nil {
			return nil, err
		}
		if n.NamesLength() != len(children) {
			return nil, fmt.Errorf("%w: %d names for %d fields", ErrMalformed, n.NamesLength(), len(children))
		}
		out := make(Named, len(children))
		for i, c := range children {
			out[i] = Field{Name: string(n.Names(i)), Value: c}
		}
		return out, nil

	case types.ValueKindUnnamed:
		children, err := readChildren(n, depth)
		if err != nil {
			return nil, err
		}
		return Unnamed(children), nil

	case types.ValueKindVariant:
		children, err := readChildren(n, depth)
		if err != nil {
			return nil, err
		}
		if len(children) == 0 {
			children = nil
		}
		return Variant{Name: string(n.Text()), Values: children}, nil

	default:
		return nil, fmt.Errorf("%w: unknown kind %s", ErrMalformed, n.Kind())
	}
}

// readChildren decodes the children of a composite node.
func readChildren(n *types.ValueNode, depth int) ([]Value, error) {
	count := n.ChildrenLength()
	out := make([]Value, count)

	for i := 0; i < count; i++ {
		var child types.ValueNode
		if !n.Children(&child, i) {
			return nil, fmt.Errorf("%w: child %d missing", ErrMalformed, i)
		}

		v, err := readNode(&child, depth+1)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}

	return out, nil
}
