package storage

import (
	"bytes"

	"github.com/cockroachdb/pebble"
)

// View is a read-only snapshot of the store at one point in time.
// Writes committed after the view was opened are not visible through it.
type View struct {
	snap *pebble.Snapshot // snap is the underlying Pebble snapshot
}

// Get retrieves the value for the given key as of the view.
// Returns nil if the key does not exist.
func (v *View) Get(key []byte) ([]byte, error) {
	value, closer, err := v.snap.Get(key)
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	result := make([]byte, len(value))
	copy(result, value)

	return result, nil
}

// Scan returns up to limit pairs whose keys start with prefix, in key order,
// beginning strictly after start (or at the first key when start is empty).
// more reports whether further keys exist after the last one returned.
func (v *View) Scan(prefix, start []byte, limit int) (pairs []KeyValue, more bool, err error) {
	iter, err := v.snap.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return nil, false, err
	}
	defer iter.Close()

	valid := iter.First()
	if len(start) > 0 {
		valid = iter.SeekGE(start)
		if valid && bytes.Equal(iter.Key(), start) {
			valid = iter.Next()
		}
	}

	for ; valid; valid = iter.Next() {
		if limit > 0 && len(pairs) == limit {
			return pairs, true, iter.Error()
		}

		value, err := iter.ValueAndErr()
		if err != nil {
			return nil, false, err
		}

		// Copy key and value since they are invalid after Next
		pairs = append(pairs, KeyValue{
			Key:   bytes.Clone(iter.Key()),
			Value: bytes.Clone(value),
		})
	}

	return pairs, false, iter.Error()
}

// Close releases the snapshot.
func (v *View) Close() error {
	return v.snap.Close()
}
