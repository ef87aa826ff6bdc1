package network

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ChainSnap/internal/ledger"
	"ChainSnap/internal/ledger/ledgertest"
	"ChainSnap/internal/types"
)

// generateTestKey generates a random ed25519 key pair for testing.
func generateTestKey(t *testing.T) ed25519.PrivateKey {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	return priv
}

// startTestServer serves a seeded in-memory source on a loopback port.
func startTestServer(t *testing.T) (*Server, *ledgertest.Source) {
	t.Helper()

	src := ledgertest.New()
	for i := range 20 {
		src.Put(ledger.Key(ledger.SystemAccount, fmt.Appendf(nil, "acct-%02d", i)), fmt.Appendf(nil, "data-%02d", i))
	}

	server, err := NewServer(Config{PrivateKey: generateTestKey(t), ListenAddr: "127.0.0.1:0"}, src)
	if err != nil {
		t.Fatalf("create server: %v", err)
	}

	if err := server.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() { server.Close() })

	return server, src
}

func dialTestClient(t *testing.T, server *Server) *Client {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, server.Addr(), ClientConfig{ServerKey: server.PublicKey()})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return client
}

// TestServerStartStop tests starting and stopping a server.
func TestServerStartStop(t *testing.T) {
	server, err := NewServer(Config{
		PrivateKey: generateTestKey(t),
		ListenAddr: "127.0.0.1:0",
	}, ledgertest.New())
	if err != nil {
		t.Fatalf("create server: %v", err)
	}

	if err := server.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}

	if server.Addr() == "" {
		t.Fatal("started server has no address")
	}

	if err := server.Close(); err != nil {
		t.Fatalf("close server: %v", err)
	}
}

func TestNewServerValidation(t *testing.T) {
	if _, err := NewServer(Config{ListenAddr: ":0"}, ledgertest.New()); err == nil {
		t.Error("missing key accepted")
	}

	if _, err := NewServer(Config{PrivateKey: generateTestKey(t)}, ledgertest.New()); err == nil {
		t.Error("missing address accepted")
	}
}

func TestClientHeadAndFetch(t *testing.T) {
	server, src := startTestServer(t)
	client := dialTestClient(t, server)
	ctx := context.Background()

	want, _ := src.Head(ctx)

	got, err := client.Head(ctx)
	if err != nil {
		t.Fatalf("Head: %v", err)
	}

	if got != want {
		t.Fatalf("head = %s, want %s", got, want)
	}

	fetched, err := client.Fetch(ctx, ledger.FetchRequest{Key: ledger.Key(ledger.SystemAccount, []byte("acct-07"))})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if !fetched.Found || string(fetched.Data) != "data-07" || fetched.Root != want {
		t.Fatalf("fetched = %+v", fetched)
	}

	missing, err := client.Fetch(ctx, ledger.FetchRequest{Key: []byte("nope")})
	if err != nil {
		t.Fatalf("Fetch missing: %v", err)
	}

	if missing.Found {
		t.Fatal("missing key reported found")
	}
}

func TestClientPagesThroughReader(t *testing.T) {
	server, src := startTestServer(t)
	client := dialTestClient(t, server)

	reader := ledger.NewReader(client, ledger.WithPageSize(6))

	var keys [][]byte
	for e := range reader.Iterate(context.Background(), ledger.SystemAccount) {
		keys = append(keys, e.Key)
	}

	if len(keys) != 20 {
		t.Fatalf("got %d keys, want 20", len(keys))
	}

	for i := 1; i < len(keys); i++ {
		if bytes.Compare(keys[i-1], keys[i]) >= 0 {
			t.Fatalf("keys out of order at %d", i)
		}
	}

	if calls := src.PageCalls(); calls != 4 {
		t.Errorf("page calls = %d, want 4", calls)
	}
}

func TestRemoteErrorPropagates(t *testing.T) {
	server, src := startTestServer(t)
	client := dialTestClient(t, server)

	src.FailPage(1, errors.New("storage offline"))

	_, err := client.Page(context.Background(), ledger.PageRequest{Namespace: ledger.SystemAccount, Limit: 5})

	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("err = %v, want RemoteError", err)
	}

	if remote.Message != "storage offline" {
		t.Errorf("message = %q", remote.Message)
	}
}

func TestDialRejectsWrongServerKey(t *testing.T) {
	server, _ := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	other := generateTestKey(t).Public().(ed25519.PublicKey)

	if _, err := Dial(ctx, server.Addr(), ClientConfig{ServerKey: other}); err == nil {
		t.Fatal("dial succeeded with a mismatched pinned key")
	}
}

func TestConcurrentRequests(t *testing.T) {
	server, _ := startTestServer(t)
	client := dialTestClient(t, server)

	var wg sync.WaitGroup
	errs := make(chan error, 32)

	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			key := ledger.Key(ledger.SystemAccount, fmt.Appendf(nil, "acct-%02d", i%20))

			fetched, err := client.Fetch(context.Background(), ledger.FetchRequest{Key: key})
			if err != nil {
				errs <- err
				return
			}

			if want := fmt.Sprintf("data-%02d", i%20); string(fetched.Data) != want {
				errs <- fmt.Errorf("got %q, want %q", fetched.Data, want)
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestClosedClient(t *testing.T) {
	server, _ := startTestServer(t)
	client := dialTestClient(t, server)

	client.Close()

	if _, err := client.Head(context.Background()); err == nil {
		t.Fatal("request on closed client succeeded")
	}
}

func TestQueryCodec(t *testing.T) {
	root := ledger.Root{1, 2, 3}

	in := query{
		id:     9,
		method: types.QueryMethodPage,
		page: ledger.PageRequest{
			Namespace: ledger.StakeTo,
			Prefix:    []byte{0xaa},
			StartKey:  []byte{0xbb, 0xcc},
			At:        root,
			Limit:     17,
		},
	}

	out, err := decodeQuery(encodeQuery(in))
	if err != nil {
		t.Fatalf("decodeQuery: %v", err)
	}

	if out.id != 9 || out.method != types.QueryMethodPage || out.page.Namespace != ledger.StakeTo ||
		!bytes.Equal(out.page.Prefix, in.page.Prefix) || !bytes.Equal(out.page.StartKey, in.page.StartKey) ||
		out.page.At != root || out.page.Limit != 17 {
		t.Fatalf("decoded query = %+v", out)
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, err := decodeReply([]byte{0xff, 0xff, 0xff, 0x7f}); err == nil {
		t.Error("garbage reply decoded")
	}
}

// TestLargeMessage checks the frame limit on both sides.
func TestLargeMessage(t *testing.T) {
	var buf bytes.Buffer

	if err := writeMessage(&buf, make([]byte, maxMessageSize+1)); err == nil {
		t.Fatal("oversized message written")
	}

	payload := bytes.Repeat([]byte{7}, 1<<20)
	if err := writeMessage(&buf, payload); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := readMessage(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if !bytes.Equal(got, payload) {
		t.Fatal("payload mismatch")
	}
}

func TestVerifyNodeCertificate(t *testing.T) {
	key := generateTestKey(t)
	cert, err := nodeCertificate(key)
	if err != nil {
		t.Fatalf("nodeCertificate: %v", err)
	}

	raw := cert.Certificate
	public := key.Public().(ed25519.PublicKey)
	other := generateTestKey(t).Public().(ed25519.PublicKey)

	if err := verifyNodeCertificate(nil)(raw, nil); err != nil {
		t.Errorf("unpinned: %v", err)
	}

	if err := verifyNodeCertificate(public)(raw, nil); err != nil {
		t.Errorf("matching pin: %v", err)
	}

	if err := verifyNodeCertificate(other)(raw, nil); !errors.Is(err, ErrServerKeyMismatch) {
		t.Errorf("mismatched pin: err = %v, want ErrServerKeyMismatch", err)
	}

	if err := verifyNodeCertificate(nil)(nil, nil); err == nil {
		t.Error("empty chain accepted")
	}

	if err := verifyNodeCertificate(nil)([][]byte{[]byte("garbage")}, nil); err == nil {
		t.Error("garbage certificate accepted")
	}
}

func TestDialPinnedServerKey(t *testing.T) {
	server, _ := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, server.Addr(), ClientConfig{ServerKey: server.PublicKey()})
	if err != nil {
		t.Fatalf("dial with matching pin: %v", err)
	}
	defer client.Close()

	if _, err := client.Head(ctx); err != nil {
		t.Fatalf("Head: %v", err)
	}
}
