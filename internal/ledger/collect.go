package ledger

import (
	"encoding/hex"
	"errors"
	"iter"

	"ChainSnap/internal/decode"
	"ChainSnap/internal/logger"
)

// Skip records an entry excluded from a collection.
type Skip struct {
	Key []byte // Key is the raw storage key of the skipped entry
	Err error  // Err is the decode failure
}

// Result holds the outcome of collecting a namespace.
type Result[T any] struct {
	Items   []T    // Items are the successfully decoded records, in key order
	Skipped []Skip // Skipped lists entries that failed to decode
}

// Collect folds a sequence into typed records.
//
// Decode failures, from the sequence or from fn, are logged and recorded in
// Skipped without stopping the fold. Any other error aborts it.
func Collect[T any](ns Namespace, seq iter.Seq2[Entry, error], fn func(Entry) (T, error)) (Result[T], error) {
	var res Result[T]

	for entry, err := range seq {
		if err == nil {
			var item T
			item, err = fn(entry)
			if err == nil {
				res.Items = append(res.Items, item)
				continue
			}
		}

		var decodeErr *decode.Error
		if !errors.As(err, &decodeErr) {
			return res, err
		}

		logger.Warn("skipping undecodable entry",
			"namespace", ns.String(),
			"key", shortKey(entry.Key),
			"error", err,
		)

		res.Skipped = append(res.Skipped, Skip{Key: entry.Key, Err: err})
	}

	return res, nil
}

// shortKey renders the tail of a storage key, which holds the raw key parts.
func shortKey(key []byte) string {
	const keep = 24

	if len(key) <= keep {
		return hex.EncodeToString(key)
	}

	return "…" + hex.EncodeToString(key[len(key)-keep:])
}
