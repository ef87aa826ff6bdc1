package decode

import (
	"fmt"
	"unicode/utf8"

	"ChainSnap/internal/valuetree"
)

// record gives uniform field access to named or positional composites.
type record struct {
	path   string            // path is the record's location
	named  valuetree.Named   // named is set for named layouts
	values []valuetree.Value // values is set for positional layouts
}

// newRecord wraps a composite value; positional records need at least min children.
func newRecord(path string, v valuetree.Value, min int) (*record, error) {
	switch c := v.(type) {
	case valuetree.Named:
		return &record{path: path, named: c}, nil
	case valuetree.Unnamed:
		if len(c) < min {
			return nil, fail(path, "expected at least %d fields, got %d", min, len(c))
		}
		return &record{path: path, values: c}, nil
	default:
		return nil, fail(path, "expected record, got %s", valuetree.KindName(v))
	}
}

// isNamed reports whether fields are matched by name.
func (r *record) isNamed() bool {
	return r.named != nil
}

// lookup returns a field by name (named layout) or position.
func (r *record) lookup(name string, pos int) (valuetree.Value, string, bool) {
	if r.isNamed() {
		v, ok := valuetree.Lookup(r.named, name)
		return v, join(r.path, name), ok
	}

	path := join(r.path, fmt.Sprint(pos))
	if pos < 0 || pos >= len(r.values) {
		return nil, path, false
	}

	return r.values[pos], path, true
}

// field returns a required field.
func (r *record) field(name string, pos int) (valuetree.Value, string, error) {
	v, path, ok := r.lookup(name, pos)
	if !ok {
		return nil, path, fail(path, "missing field")
	}

	return v, path, nil
}

// uint returns a required unsigned field of the given width.
func (r *record) uint(name string, pos, bits int) (uint64, error) {
	v, path, err := r.field(name, pos)
	if err != nil {
		return 0, err
	}

	return uint64At(path, v, bits)
}

// text converts a string, byte string or byte composite into text.
func text(path string, v valuetree.Value) (string, error) {
	switch n := v.(type) {
	case valuetree.Str:
		return string(n), nil
	case valuetree.Bytes:
		return lossy(n), nil
	default:
		raw, err := flattenBytes(path, v, 0)
		if err != nil {
			return "", err
		}
		return lossy(raw), nil
	}
}

// optionalText decodes an Option of text; absent or None yields nil.
func optionalText(path string, v valuetree.Value, present bool) (*string, error) {
	if !present || v == nil {
		return nil, nil
	}

	inner, ok, err := option(path, v)
	if err != nil || !ok {
		return nil, err
	}

	s, err := text(join(path, "Some"), inner)
	if err != nil {
		return nil, err
	}

	return &s, nil
}

// option unwraps an Option variant. Values that are not variants are treated as present.
func option(path string, v valuetree.Value) (valuetree.Value, bool, error) {
	variant, ok := v.(valuetree.Variant)
	if !ok {
		return v, true, nil
	}

	switch variant.Name {
	case "None":
		return nil, false, nil
	case "Some":
		if len(variant.Values) != 1 {
			return nil, false, fail(path, "Some carries %d values", len(variant.Values))
		}
		return variant.Values[0], true, nil
	default:
		return nil, false, fail(path, "expected Option, got variant %q", variant.Name)
	}
}

// lossy converts bytes to a string, replacing invalid UTF-8.
func lossy(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}

	out := make([]rune, 0, len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		out = append(out, r)
		b = b[size:]
	}

	return string(out)
}
