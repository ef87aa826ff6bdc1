package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ChainSnap/internal/decode"
	"ChainSnap/internal/metrics"
	"ChainSnap/internal/valuetree"
)

const (
	// DefaultPageSize is the number of entries requested per page.
	DefaultPageSize = 512

	// defaultPrefetch is the number of pages buffered ahead of the consumer.
	defaultPrefetch = 1
)

var tracer = otel.Tracer("ChainSnap/internal/ledger")

// Entry is one decoded record of a namespace.
type Entry struct {
	Key   []byte            // Key is the full raw storage key
	Keys  []valuetree.Value // Keys are the decoded key parts
	Value valuetree.Value   // Value is the decoded value tree
}

// Reader iterates ledger namespaces over a shared Source.
// A Reader is read-only and safe to share across concurrent iterations.
type Reader struct {
	src         Source                 // src performs the remote calls
	pageSize    int                    // pageSize is the default page size
	prefetch    int                    // prefetch is the page buffer depth
	callTimeout time.Duration          // callTimeout bounds each remote call; 0 disables
	metrics     *metrics.LedgerMetrics // metrics records pages and entries
}

// Option configures a Reader.
type Option func(*Reader)

// WithPageSize sets the default page size.
func WithPageSize(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.pageSize = n
		}
	}
}

// WithPrefetch sets how many pages are fetched ahead of decoding.
func WithPrefetch(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.prefetch = n
		}
	}
}

// WithCallTimeout bounds each remote call.
func WithCallTimeout(d time.Duration) Option {
	return func(r *Reader) {
		r.callTimeout = d
	}
}

// NewReader creates a Reader over src.
func NewReader(src Source, opts ...Option) *Reader {
	r := &Reader{
		src:      src,
		pageSize: DefaultPageSize,
		prefetch: defaultPrefetch,
		metrics:  metrics.Ledger(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// IterOption configures one iteration.
type IterOption func(*iterConfig)

// iterConfig holds per-iteration settings.
type iterConfig struct {
	prefix   []byte // prefix is appended to the namespace prefix
	at       Root   // at pins the state; zero resolves latest once
	pageSize int    // pageSize overrides the reader default
}

// WithPrefix restricts iteration to keys starting with the given raw key parts.
func WithPrefix(parts ...[]byte) IterOption {
	return func(c *iterConfig) {
		c.prefix = KeyParts(parts...)
	}
}

// At pins the iteration to a state root.
func At(root Root) IterOption {
	return func(c *iterConfig) {
		c.at = root
	}
}

// PageSize overrides the page size for one iteration.
func PageSize(n int) IterOption {
	return func(c *iterConfig) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// Head returns the latest state root.
func (r *Reader) Head(ctx context.Context) (Root, error) {
	ctx, cancel := r.callContext(ctx)
	defer cancel()

	root, err := r.src.Head(ctx)
	if err != nil {
		return Root{}, &TransportError{Op: "head", Err: err}
	}

	return root, nil
}

// Iterate returns the entries of a namespace as a lazy sequence.
//
// The state root is resolved once so every page comes from the same state.
// An entry that cannot be decoded yields a *decode.Error with the raw key set
// and iteration continues; a transport failure yields a *TransportError and
// ends the sequence. Cancelling ctx also ends it with a *TransportError.
// Abandoning the loop stops the prefetcher.
func (r *Reader) Iterate(ctx context.Context, ns Namespace, opts ...IterOption) iter.Seq2[Entry, error] {
	cfg := iterConfig{pageSize: r.pageSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(yield func(Entry, error) bool) {
		ctx, span := tracer.Start(ctx, "ledger.iterate", trace.WithAttributes(
			attribute.String("namespace", ns.String()),
		))
		defer span.End()

		ctx, cancel := context.WithCancel(ctx)

		root := cfg.at
		if root.IsZero() {
			head, err := r.Head(ctx)
			if err != nil {
				cancel()
				span.SetStatus(codes.Error, err.Error())
				yield(Entry{}, err)
				return
			}
			root = head
		}

		span.SetAttributes(attribute.String("root", root.String()))

		pages := r.prefetchPages(ctx, ns, root, cfg)
		defer func() {
			cancel()
			for range pages {
			}
		}()

		for res := range pages {
			if res.err != nil {
				span.SetStatus(codes.Error, res.err.Error())
				yield(Entry{}, res.err)
				return
			}

			for _, raw := range res.page.Entries {
				entry, err := decodeEntry(raw)
				r.metrics.ObserveEntry(ns.String(), err == nil)

				if !yield(entry, err) {
					return
				}
			}
		}

		// A cancelled prefetcher closes without sending an error.
		if err := ctx.Err(); err != nil {
			err = &TransportError{Op: "page " + ns.String(), Err: err}
			span.SetStatus(codes.Error, err.Error())
			yield(Entry{}, err)
		}
	}
}

// Fetch performs a point lookup of the entry under the given raw key parts.
// It reports false when the key is absent; decode failures are returned.
func (r *Reader) Fetch(ctx context.Context, ns Namespace, at Root, parts ...[]byte) (Entry, bool, error) {
	ctx, cancel := r.callContext(ctx)
	defer cancel()

	key := Key(ns, parts...)

	fetched, err := r.src.Fetch(ctx, FetchRequest{Key: key, At: at})
	if err != nil {
		return Entry{}, false, &TransportError{Op: "fetch " + ns.String(), Err: err}
	}

	if !fetched.Found {
		return Entry{}, false, nil
	}

	entry, err := decodeEntry(RawEntry{Key: key, Data: fetched.Data})
	if err != nil {
		return Entry{}, false, err
	}

	return entry, true, nil
}

// pageResult is one fetched page or the error that ended fetching.
type pageResult struct {
	page *Page
	err  error
}

// prefetchPages fetches pages in order on a separate goroutine.
// The channel is closed when fetching ends or ctx is cancelled.
func (r *Reader) prefetchPages(ctx context.Context, ns Namespace, root Root, cfg iterConfig) <-chan pageResult {
	out := make(chan pageResult, r.prefetch)

	go func() {
		defer close(out)

		var next []byte

		for {
			page, err := r.fetchPage(ctx, ns, root, cfg, next)
			if err == nil && len(page.NextKey) > 0 && bytes.Equal(page.NextKey, next) {
				err = &TransportError{Op: "page " + ns.String(), Err: errors.New("cursor did not advance")}
			}

			select {
			case out <- pageResult{page: page, err: err}:
			case <-ctx.Done():
				return
			}

			if err != nil || len(page.NextKey) == 0 {
				return
			}

			next = page.NextKey
		}
	}()

	return out
}

// fetchPage requests one page and checks it belongs to the pinned state.
func (r *Reader) fetchPage(ctx context.Context, ns Namespace, root Root, cfg iterConfig, start []byte) (*Page, error) {
	ctx, cancel := r.callContext(ctx)
	defer cancel()

	begin := time.Now()

	page, err := r.src.Page(ctx, PageRequest{
		Namespace: ns,
		Prefix:    cfg.prefix,
		StartKey:  start,
		At:        root,
		Limit:     cfg.pageSize,
	})
	if err != nil {
		return nil, &TransportError{Op: "page " + ns.String(), Err: err}
	}

	r.metrics.ObservePage(ns.String(), time.Since(begin))

	if !page.Root.IsZero() && page.Root != root {
		return nil, &TransportError{
			Op:  "page " + ns.String(),
			Err: fmt.Errorf("page read from state %s, want %s", page.Root, root),
		}
	}

	return page, nil
}

// callContext applies the per-call timeout, if any.
func (r *Reader) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, r.callTimeout)
}

// decodeEntry decodes a raw storage entry into key parts and value.
func decodeEntry(raw RawEntry) (Entry, error) {
	entry := Entry{Key: raw.Key}

	keys, value, err := valuetree.UnmarshalEntry(raw.Data)
	if err != nil {
		return entry, &decode.Error{Path: "entry", Reason: "malformed storage entry", Err: err}
	}

	entry.Keys = keys
	entry.Value = value

	return entry, nil
}
