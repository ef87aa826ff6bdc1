// Package endpoint connects to a ledger node by URL.
package endpoint

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"net/url"
	"time"

	"ChainSnap/internal/config"
	"ChainSnap/internal/ledger"
	"ChainSnap/internal/network"
	"ChainSnap/internal/rpc"
)

// Conn is a connected ledger source.
type Conn struct {
	ledger.Source
	close func() error
}

// Close releases the connection.
func (c *Conn) Close() error {
	if c.close == nil {
		return nil
	}

	return c.close()
}

// Dial connects to the node named by cfg.Endpoint: http(s):// selects JSON-RPC,
// quic://host:port the QUIC transport.
func Dial(ctx context.Context, cfg config.NodeConfig) (*Conn, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint %q:\n%w", cfg.Endpoint, err)
	}

	switch u.Scheme {
	case "http", "https":
		client, err := rpc.NewClient(cfg.Endpoint, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		return &Conn{Source: client}, nil

	case "quic":
		serverKey, err := parseServerKey(cfg.ServerKey)
		if err != nil {
			return nil, err
		}

		dialCtx, cancel := context.WithTimeout(ctx, dialTimeout(cfg.Timeout))
		defer cancel()

		client, err := network.Dial(dialCtx, u.Host, network.ClientConfig{ServerKey: serverKey})
		if err != nil {
			return nil, fmt.Errorf("dial %s:\n%w", u.Host, err)
		}
		return &Conn{Source: client, close: client.Close}, nil

	default:
		return nil, fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
}

// Reader dials the node and wraps it in a reader configured by cfg.
func Reader(ctx context.Context, cfg config.NodeConfig) (*ledger.Reader, *Conn, error) {
	conn, err := Dial(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	reader := ledger.NewReader(conn,
		ledger.WithPageSize(cfg.PageSize),
		ledger.WithPrefetch(cfg.Prefetch),
		ledger.WithCallTimeout(cfg.Timeout),
	)

	return reader, conn, nil
}

func parseServerKey(text string) (ed25519.PublicKey, error) {
	if text == "" {
		return nil, nil
	}

	key, err := hex.DecodeString(text)
	if err != nil || len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid server key %q", text)
	}

	return ed25519.PublicKey(key), nil
}

func dialTimeout(call time.Duration) time.Duration {
	if call > 0 {
		return call
	}

	return 10 * time.Second
}
