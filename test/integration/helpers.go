package integration

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"ChainSnap/client"
	"ChainSnap/internal/api"
	"ChainSnap/internal/attest"
	"ChainSnap/internal/balance"
	"ChainSnap/internal/chainstate"
	"ChainSnap/internal/config"
	"ChainSnap/internal/endpoint"
	"ChainSnap/internal/ledger"
	"ChainSnap/internal/modules"
	"ChainSnap/internal/network"
	"ChainSnap/internal/pipeline"
	"ChainSnap/internal/rpc"
	"ChainSnap/internal/snapshot"
	"ChainSnap/internal/storage"
)

// testLedger is an in-process ledger node serving JSON-RPC and QUIC.
type testLedger struct {
	state   *chainstate.State // state is the served ledger state
	rpcURL  string            // rpcURL is the JSON-RPC endpoint
	quicURL string            // quicURL is the quic:// endpoint
	key     string            // key is the QUIC server's public key, hex
}

// startLedger opens a pebble-backed state seeded with the dev genesis.
func startLedger(t *testing.T) *testLedger {
	t.Helper()

	db, err := storage.New(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	st, err := chainstate.Open(db, 8)
	if err != nil {
		t.Fatalf("open state: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if _, err := st.Apply(chainstate.DevGenesis().Writes()); err != nil {
		t.Fatalf("apply genesis: %v", err)
	}

	ts := httptest.NewServer(rpc.NewServer(st))
	t.Cleanup(ts.Close)

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	srv, err := network.NewServer(network.Config{PrivateKey: priv, ListenAddr: "127.0.0.1:0"}, st)
	if err != nil {
		t.Fatalf("create quic server: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("start quic server: %v", err)
	}
	t.Cleanup(func() { srv.Close() })

	return &testLedger{
		state:   st,
		rpcURL:  ts.URL,
		quicURL: "quic://" + srv.Addr(),
		key:     hex.EncodeToString(srv.PublicKey()),
	}
}

// reader connects a ledger reader to url.
func (l *testLedger) reader(t *testing.T, url string) *ledger.Reader {
	t.Helper()

	cfg := config.Default().Node
	cfg.Endpoint = url
	cfg.ServerKey = l.key
	cfg.PageSize = 3

	reader, conn, err := endpoint.Reader(context.Background(), cfg)
	if err != nil {
		t.Fatalf("connect %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })

	return reader
}

// newPipeline creates a pipeline over url writing to a fresh directory.
func (l *testLedger) newPipeline(t *testing.T, url string) (*pipeline.Pipeline, *snapshot.Store) {
	t.Helper()

	store, err := snapshot.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	return pipeline.New(l.reader(t, url), store), store
}

// startTelemetry serves the API over the ledger and store and returns a client.
func startTelemetry(t *testing.T, reader *ledger.Reader, store *snapshot.Store) *client.Client {
	t.Helper()

	server := api.New(api.Options{
		Report: balance.ReportOptions{Top: 3, Decimals: 9},
	}, modules.NewService(reader), attest.NewVerifier(""), store)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	c, err := client.New(ts.URL)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	return c
}
