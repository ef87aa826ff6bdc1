package chainstate

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/zeebo/blake3"

	"ChainSnap/internal/ledger"
	"ChainSnap/internal/logger"
	"ChainSnap/internal/storage"
)

const (
	// DefaultRetain is the number of past states kept readable.
	DefaultRetain = 16

	// maxPageSize caps the entries returned by a single page.
	maxPageSize = 4096
)

var (
	// entryKeyPrefix prefixes every ledger entry in Pebble.
	entryKeyPrefix = []byte("s:")

	// headKey stores the current state root.
	headKey = []byte("m:head")

	// genesisRoot is the root of an empty state.
	genesisRoot = ledger.Root(blake3.Sum256([]byte("chainsnap/genesis")))
)

// ErrUnknownRoot is returned for a state root that is not retained.
var ErrUnknownRoot = errors.New("unknown state root")

// State is the ledger node's key-value state with retained point-in-time views.
// It implements ledger.Source.
type State struct {
	db     *storage.Storage // db is the underlying Pebble storage
	retain int              // retain is the number of views kept

	mu    sync.RWMutex                  // mu protects head, views and order
	head  ledger.Root                   // head is the latest state root
	views map[ledger.Root]*storage.View // views maps retained roots to snapshots
	order []ledger.Root                 // order lists retained roots, oldest first
}

// Open loads the state stored in db, keeping up to retain past views.
func Open(db *storage.Storage, retain int) (*State, error) {
	if retain <= 0 {
		retain = DefaultRetain
	}

	stored, err := db.Get(headKey)
	if err != nil {
		return nil, fmt.Errorf("read head:\n%w", err)
	}

	head := genesisRoot
	if stored != nil {
		if head, err = ledger.RootFromBytes(stored); err != nil {
			return nil, fmt.Errorf("decode head:\n%w", err)
		}
	}

	s := &State{
		db:     db,
		retain: retain,
		views:  make(map[ledger.Root]*storage.View),
	}
	s.publish(head, db.View())

	return s, nil
}

// Apply commits writes atomically and returns the new state root.
// The root chains the previous root with the sorted writes.
func (s *State) Apply(writes []Write) (ledger.Root, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := slices.Clone(writes)
	slices.SortStableFunc(sorted, func(a, b Write) int {
		return bytes.Compare(a.Key, b.Key)
	})

	root := nextRoot(s.head, sorted)

	pairs := make([]storage.KeyValue, 0, len(sorted)+1)
	for _, w := range sorted {
		pairs = append(pairs, storage.KeyValue{Key: entryKey(w.Key), Value: w.Value})
	}
	pairs = append(pairs, storage.KeyValue{Key: headKey, Value: root[:]})

	if err := s.db.SetBatch(pairs); err != nil {
		return ledger.Root{}, fmt.Errorf("commit writes:\n%w", err)
	}

	s.publishLocked(root, s.db.View())

	logger.Debug("state applied", "writes", len(writes), "root", root)

	return root, nil
}

// Head returns the latest state root.
func (s *State) Head(_ context.Context) (ledger.Root, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.head, nil
}

// Fresh reports whether nothing has been applied yet.
func (s *State) Fresh() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.head == genesisRoot
}

// Page returns one page of a namespace at the requested state.
func (s *State) Page(ctx context.Context, req ledger.PageRequest) (*ledger.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	root, view, err := s.viewLocked(req.At)
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}

	prefix := entryKey(append(req.Namespace.Prefix(), req.Prefix...))

	var start []byte
	if len(req.StartKey) > 0 {
		start = entryKey(req.StartKey)
	}

	pairs, more, err := view.Scan(prefix, start, limit)
	if err != nil {
		return nil, fmt.Errorf("scan %s:\n%w", req.Namespace, err)
	}

	page := &ledger.Page{Root: root, Entries: make([]ledger.RawEntry, len(pairs))}
	for i, kv := range pairs {
		page.Entries[i] = ledger.RawEntry{Key: kv.Key[len(entryKeyPrefix):], Data: kv.Value}
	}

	if more {
		page.NextKey = page.Entries[len(page.Entries)-1].Key
	}

	return page, nil
}

// Fetch returns the entry stored under an explicit key at the requested state.
func (s *State) Fetch(ctx context.Context, req ledger.FetchRequest) (*ledger.Fetched, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	root, view, err := s.viewLocked(req.At)
	if err != nil {
		return nil, err
	}

	data, err := view.Get(entryKey(req.Key))
	if err != nil {
		return nil, fmt.Errorf("get entry:\n%w", err)
	}

	return &ledger.Fetched{Root: root, Data: data, Found: data != nil}, nil
}

// Close releases every retained view. The storage is not closed.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, root := range s.order {
		errs = append(errs, s.views[root].Close())
	}

	s.views = make(map[ledger.Root]*storage.View)
	s.order = nil

	return errors.Join(errs...)
}

// publish registers a view for root and makes it the head.
func (s *State) publish(root ledger.Root, view *storage.View) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.publishLocked(root, view)
}

// publishLocked is publish with mu held. Views beyond retain are closed.
func (s *State) publishLocked(root ledger.Root, view *storage.View) {
	if old, ok := s.views[root]; ok {
		old.Close()
		s.order = slices.DeleteFunc(s.order, func(r ledger.Root) bool { return r == root })
	}

	s.head = root
	s.views[root] = view
	s.order = append(s.order, root)

	for len(s.order) > s.retain {
		oldest := s.order[0]
		s.order = s.order[1:]
		s.views[oldest].Close()
		delete(s.views, oldest)
	}
}

// viewLocked resolves a requested root (zero means head) to a view.
func (s *State) viewLocked(at ledger.Root) (ledger.Root, *storage.View, error) {
	root := at
	if root.IsZero() {
		root = s.head
	}

	view, ok := s.views[root]
	if !ok {
		return ledger.Root{}, nil, fmt.Errorf("%w: %s", ErrUnknownRoot, root)
	}

	return root, view, nil
}

// entryKey prefixes a ledger storage key for Pebble.
func entryKey(key []byte) []byte {
	out := make([]byte, 0, len(entryKeyPrefix)+len(key))
	out = append(out, entryKeyPrefix...)

	return append(out, key...)
}

// nextRoot computes blake3(prev ‖ count ‖ (len key ‖ key ‖ len value ‖ value)...).
func nextRoot(prev ledger.Root, sorted []Write) ledger.Root {
	hasher := blake3.New()
	hasher.Write(prev[:])

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(len(sorted)))
	hasher.Write(buf[:])

	for _, w := range sorted {
		binary.BigEndian.PutUint32(buf[:4], uint32(len(w.Key)))
		hasher.Write(buf[:4])
		hasher.Write(w.Key)

		binary.BigEndian.PutUint32(buf[:4], uint32(len(w.Value)))
		hasher.Write(buf[:4])
		hasher.Write(w.Value)
	}

	var root ledger.Root
	hasher.Sum(root[:0])

	return root
}
