package ledger

import (
	"context"
	"fmt"
)

// Source is the remote ledger query interface.
// Implementations are stateless per call and safe for concurrent use.
type Source interface {
	// Head returns the latest state root.
	Head(ctx context.Context) (Root, error)

	// Page returns up to Limit entries of a namespace in key order, starting
	// strictly after StartKey, against the state at At (latest if zero).
	Page(ctx context.Context, req PageRequest) (*Page, error)

	// Fetch returns the entry stored under an explicit key.
	Fetch(ctx context.Context, req FetchRequest) (*Fetched, error)
}

// PageRequest selects one page of a namespace.
type PageRequest struct {
	Namespace Namespace // Namespace is the partition to scan
	Prefix    []byte    // Prefix narrows the scan to keys starting with ns prefix ‖ Prefix
	StartKey  []byte    // StartKey is exclusive; empty starts at the beginning
	At        Root      // At pins the state; zero means latest
	Limit     int       // Limit caps the number of entries returned
}

// RawEntry is one undecoded key-value pair.
type RawEntry struct {
	Key  []byte // Key is the full storage key
	Data []byte // Data is the binary storage entry
}

// Page is one response page.
type Page struct {
	Root    Root       // Root is the state the page was read from
	Entries []RawEntry // Entries are in store key order
	NextKey []byte     // NextKey continues the scan; empty at the end
}

// FetchRequest selects a single key.
type FetchRequest struct {
	Key []byte // Key is the full storage key
	At  Root   // At pins the state; zero means latest
}

// Fetched is the result of a point lookup.
type Fetched struct {
	Root  Root   // Root is the state the value was read from
	Data  []byte // Data is the binary storage entry
	Found bool   // Found reports whether the key exists
}

// TransportError reports a failure talking to the ledger node.
// It is fatal to the call that produced it.
type TransportError struct {
	Op  string // Op is the failed operation
	Err error  // Err is the underlying cause
}

// Error implements error.
func (e *TransportError) Error() string {
	return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Err
}
