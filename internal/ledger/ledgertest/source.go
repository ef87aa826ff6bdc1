// Package ledgertest provides an in-memory ledger.Source for tests.
package ledgertest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/zeebo/blake3"

	"ChainSnap/internal/ledger"
)

// ErrStaleRoot is returned when a request pins a root other than the current one.
var ErrStaleRoot = errors.New("stale state root")

// Source is an in-memory ledger.Source holding a single state.
type Source struct {
	mu      sync.Mutex
	entries map[string][]byte // entries maps full storage keys to entry bytes
	root    ledger.Root       // root changes on every mutation

	failPage  int   // failPage is the 1-based page call to fail; 0 disables
	failErr   error // failErr is returned by the failing page call
	pageCalls int   // pageCalls counts Page calls
	maxLimit  int   // maxLimit caps page sizes; 0 means no cap
}

// New creates an empty source.
func New() *Source {
	s := &Source{entries: make(map[string][]byte)}
	s.bump()

	return s
}

// Put stores raw entry bytes under a full storage key.
func (s *Source) Put(key, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[string(key)] = bytes.Clone(data)
	s.bump()
}

// Delete removes the entry under key.
func (s *Source) Delete(key []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, string(key))
	s.bump()
}

// FailPage makes the n-th Page call (1-based, counted from now) fail with err.
func (s *Source) FailPage(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pageCalls = 0
	s.failPage = n
	s.failErr = err
}

// LimitPages caps the number of entries returned per page.
func (s *Source) LimitPages(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.maxLimit = n
}

// PageCalls returns the number of Page calls served.
func (s *Source) PageCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pageCalls
}

// Head returns the current root.
func (s *Source) Head(ctx context.Context) (ledger.Root, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Root{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.root, nil
}

// Page returns one page of the namespace.
func (s *Source) Page(ctx context.Context, req ledger.PageRequest) (*ledger.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pageCalls++
	if s.failPage > 0 && s.pageCalls == s.failPage {
		return nil, s.failErr
	}

	if !req.At.IsZero() && req.At != s.root {
		return nil, fmt.Errorf("%w: %s", ErrStaleRoot, req.At)
	}

	prefix := append(req.Namespace.Prefix(), req.Prefix...)

	var keys []string
	for k := range s.entries {
		if bytes.HasPrefix([]byte(k), prefix) && (len(req.StartKey) == 0 || k > string(req.StartKey)) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	limit := req.Limit
	if s.maxLimit > 0 && (limit <= 0 || limit > s.maxLimit) {
		limit = s.maxLimit
	}

	page := &ledger.Page{Root: s.root}
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
		page.NextKey = []byte(keys[limit-1])
	}

	for _, k := range keys {
		page.Entries = append(page.Entries, ledger.RawEntry{Key: []byte(k), Data: bytes.Clone(s.entries[k])})
	}

	return page, nil
}

// Fetch returns the entry under an explicit key.
func (s *Source) Fetch(ctx context.Context, req ledger.FetchRequest) (*ledger.Fetched, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !req.At.IsZero() && req.At != s.root {
		return nil, fmt.Errorf("%w: %s", ErrStaleRoot, req.At)
	}

	data, ok := s.entries[string(req.Key)]

	return &ledger.Fetched{Root: s.root, Data: bytes.Clone(data), Found: ok}, nil
}

// bump derives a new root from the previous one.
func (s *Source) bump() {
	s.root = ledger.Root(blake3.Sum256(append(s.root[:], byte(len(s.entries)))))
}
