package pipeline

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"ChainSnap/internal/amount"
	"ChainSnap/internal/balance"
	"ChainSnap/internal/chainstate"
	"ChainSnap/internal/identity"
	"ChainSnap/internal/ledger"
	"ChainSnap/internal/ledger/ledgertest"
	"ChainSnap/internal/snapshot"
)

func newTestPipeline(t *testing.T) (*Pipeline, *ledgertest.Source, *snapshot.Store) {
	t.Helper()

	src := ledgertest.New()
	for _, w := range chainstate.DevGenesis().Writes() {
		src.Put(w.Key, w.Value)
	}

	store, err := snapshot.Open(filepath.Join(t.TempDir(), "snap"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	return New(ledger.NewReader(src, ledger.WithPageSize(3)), store), src, store
}

func TestRunWritesAllSnapshots(t *testing.T) {
	p, src, store := newTestPipeline(t)
	g := chainstate.DevGenesis()

	fetched, aggregated, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	head, _ := src.Head(context.Background())
	if fetched.Root != head {
		t.Errorf("root = %s, want %s", fetched.Root, head)
	}

	if fetched.Accounts != len(g.Accounts) || fetched.Stake != len(g.Stake) {
		t.Fatalf("fetched %d accounts %d stake, want %d and %d",
			fetched.Accounts, fetched.Stake, len(g.Accounts), len(g.Stake))
	}

	if aggregated.Identities != len(g.Accounts) {
		t.Errorf("identities = %d, want %d", aggregated.Identities, len(g.Accounts))
	}

	totals, err := snapshot.LoadBalances(store)
	if err != nil {
		t.Fatalf("LoadBalances: %v", err)
	}

	want, err := balance.Aggregate(g.Accounts, g.Stake)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	if len(totals) != len(want) {
		t.Fatalf("got %d totals, want %d", len(totals), len(want))
	}

	for id, v := range want {
		if totals[id].Cmp(v) != 0 {
			t.Errorf("%s = %s, want %s", id, totals[id], v)
		}
	}
}

func TestFetchSkipsUndecodableEntries(t *testing.T) {
	p, src, _ := newTestPipeline(t)

	// A key part shorter than an identity cannot be decoded.
	src.Put(ledger.Key(ledger.SystemAccount, []byte{1, 2, 3}), []byte("garbage"))

	short := chainstate.StakeWrite(chainstate.DevIdentity(0), chainstate.DevIdentity(1), amount.FromUint64(1))
	src.Put(ledger.Key(ledger.StakeTo, []byte{9}), short.Value[:len(short.Value)/2])

	fetched, err := p.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if fetched.SkippedAccount != 1 || fetched.SkippedStake != 1 {
		t.Fatalf("skipped %d accounts %d stake, want 1 and 1", fetched.SkippedAccount, fetched.SkippedStake)
	}
}

func TestFetchTransportErrorLeavesSnapshots(t *testing.T) {
	p, src, store := newTestPipeline(t)

	if _, err := p.Fetch(context.Background()); err != nil {
		t.Fatalf("first Fetch: %v", err)
	}

	before, _ := snapshot.LoadAccounts(store)

	src.FailPage(1, errors.New("node unreachable"))

	_, err := p.Fetch(context.Background())

	var transportErr *ledger.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("err = %v, want TransportError", err)
	}

	after, err := snapshot.LoadAccounts(store)
	if err != nil || len(after) != len(before) {
		t.Fatalf("previous snapshot damaged: %d accounts err=%v", len(after), err)
	}
}

func TestFetchCancelledSavesNothing(t *testing.T) {
	p, _, store := newTestPipeline(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Fetch(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	if store.Exists(snapshot.Accounts) || store.Exists(snapshot.Stake) {
		t.Fatal("cancelled fetch wrote a snapshot")
	}
}

func TestAggregateWithoutFetch(t *testing.T) {
	p, _, _ := newTestPipeline(t)

	_, err := p.Aggregate(context.Background())

	var ioErr *snapshot.IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("err = %v, want snapshot IOError", err)
	}
}

func TestReport(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	ctx := context.Background()

	if _, _, err := p.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	report, err := p.Report(ctx, balance.ReportOptions{
		Threshold: amount.FromUint64(500),
		Top:       3,
		Decimals:  9,
		Prefix:    identity.DefaultPrefix,
	})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}

	if report.DustCount != 1 || len(report.Top) != 3 {
		t.Fatalf("dust=%d top=%d, want 1 and 3", report.DustCount, len(report.Top))
	}

	var buf bytes.Buffer
	if _, err := report.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	if !strings.Contains(buf.String(), "1 nonexistent accounts totalling 0.0000001") {
		t.Errorf("report:\n%s", buf.String())
	}
}
