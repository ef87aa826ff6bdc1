package network

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/quic-go/quic-go"

	"ChainSnap/internal/ledger"
	"ChainSnap/internal/types"
)

// ClientConfig holds the configuration for a Client.
type ClientConfig struct {
	PrivateKey ed25519.PrivateKey // PrivateKey is an optional client identity key
	ServerKey  ed25519.PublicKey  // ServerKey pins the server's identity; nil accepts any
}

// Client queries a ledger node over QUIC. It implements ledger.Source.
type Client struct {
	conn   *quic.Conn    // conn is the underlying QUIC connection
	nextID atomic.Uint64 // nextID numbers requests
	closed atomic.Bool   // closed indicates if the client is closed
}

// Dial connects to the ledger node at addr.
func Dial(ctx context.Context, addr string, cfg ClientConfig) (*Client, error) {
	tlsConfig, err := clientTLS(cfg.PrivateKey, cfg.ServerKey)
	if err != nil {
		return nil, fmt.Errorf("client tls:\n%w", err)
	}

	conn, err := quic.DialAddr(ctx, addr, tlsConfig, defaultQUICConfig())
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	return &Client{conn: conn}, nil
}

// Head returns the latest state root.
func (c *Client) Head(ctx context.Context) (ledger.Root, error) {
	r, err := c.request(ctx, query{method: types.QueryMethodHead})
	if err != nil {
		return ledger.Root{}, err
	}

	return r.root, nil
}

// Page returns one page of a namespace.
func (c *Client) Page(ctx context.Context, req ledger.PageRequest) (*ledger.Page, error) {
	r, err := c.request(ctx, query{method: types.QueryMethodPage, page: req})
	if err != nil {
		return nil, err
	}

	return r.page, nil
}

// Fetch returns the entry under an explicit key.
func (c *Client) Fetch(ctx context.Context, req ledger.FetchRequest) (*ledger.Fetched, error) {
	r, err := c.request(ctx, query{method: types.QueryMethodFetch, fetch: req})
	if err != nil {
		return nil, err
	}

	return &ledger.Fetched{Root: r.root, Data: r.data, Found: r.found}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	return c.conn.CloseWithError(0, "closed")
}

// request sends a query on a new bidirectional stream and waits for the reply.
func (c *Client) request(ctx context.Context, q query) (reply, error) {
	if c.closed.Load() {
		return reply{}, errors.New("client is closed")
	}

	q.id = c.nextID.Add(1)

	stream, err := c.conn.OpenStreamSync(ctx)
	if err != nil {
		return reply{}, fmt.Errorf("open stream:\n%w", err)
	}
	defer stream.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultRequestTimeout)
	}
	stream.SetDeadline(deadline)

	if err := writeMessage(stream, encodeQuery(q)); err != nil {
		return reply{}, fmt.Errorf("write request:\n%w", err)
	}

	data, err := readMessage(stream)
	if err != nil {
		return reply{}, fmt.Errorf("read response:\n%w", err)
	}

	r, err := decodeReply(data)
	if err != nil {
		return reply{}, fmt.Errorf("decode response:\n%w", err)
	}

	if r.id != q.id {
		return reply{}, fmt.Errorf("response id %d does not match request %d", r.id, q.id)
	}

	if r.err != "" {
		return reply{}, &RemoteError{Message: r.err}
	}

	return r, nil
}

// RemoteError is a failure reported by the ledger node.
type RemoteError struct {
	Message string
}

// Error implements error.
func (e *RemoteError) Error() string {
	return "remote: " + e.Message
}
