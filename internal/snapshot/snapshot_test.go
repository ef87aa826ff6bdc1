package snapshot

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"ChainSnap/internal/amount"
	"ChainSnap/internal/chain"
	"ChainSnap/internal/identity"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "snapshots"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	return s
}

func testID(b byte) identity.Identity {
	var id identity.Identity
	for i := range id {
		id[i] = b
	}

	return id
}

func sampleAccounts() []chain.AccountEntry {
	return []chain.AccountEntry{
		{ID: testID(1), Info: chain.AccountInfo{Nonce: 3, Providers: 1, Data: chain.AccountData{Free: 100, Reserved: 5}}},
		{ID: testID(2), Info: chain.AccountInfo{Data: chain.AccountData{Frozen: 7, Flags: amount.MustParse("170141183460469231731687303715884105728")}}},
	}
}

func TestAccountsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	want := sampleAccounts()

	if err := SaveAccounts(s, want); err != nil {
		t.Fatalf("SaveAccounts: %v", err)
	}

	got, err := LoadAccounts(s)
	if err != nil {
		t.Fatalf("LoadAccounts: %v", err)
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestStakeRoundTrip(t *testing.T) {
	s := newTestStore(t)
	want := []chain.StakeEdge{
		{From: testID(1), To: testID(2), Amount: amount.MustParse("340282366920938463463374607431768211455")},
		{From: testID(1), To: testID(3), Amount: amount.FromUint64(50)},
	}

	if err := SaveStake(s, want); err != nil {
		t.Fatalf("SaveStake: %v", err)
	}

	got, err := LoadStake(s)
	if err != nil {
		t.Fatalf("LoadStake: %v", err)
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestBalancesRoundTrip(t *testing.T) {
	s := newTestStore(t)
	want := map[identity.Identity]amount.Amount{
		testID(1): amount.FromUint64(150),
		testID(2): amount.Zero(),
	}

	if err := SaveBalances(s, want); err != nil {
		t.Fatalf("SaveBalances: %v", err)
	}

	got, err := LoadBalances(s)
	if err != nil {
		t.Fatalf("LoadBalances: %v", err)
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	raw, _ := os.ReadFile(s.Path(Balances))
	if !strings.Contains(string(raw), `"150"`) {
		t.Errorf("amounts should be encoded as strings: %s", raw)
	}

	if !strings.Contains(string(raw), testID(1).String()) {
		t.Errorf("keys should be SS58 addresses: %s", raw)
	}
}

func TestSnapshotFileLayout(t *testing.T) {
	s := newTestStore(t)

	if err := SaveStake(s, []chain.StakeEdge{{From: testID(1), To: testID(2), Amount: amount.FromUint64(9)}}); err != nil {
		t.Fatalf("SaveStake: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(s.Dir(), "stake.json"))
	if err != nil {
		t.Fatalf("read stake.json: %v", err)
	}

	compact := strings.Join(strings.Fields(string(raw)), "")
	want := `[["` + testID(1).String() + `","` + testID(2).String() + `","9"]]`

	if compact != want {
		t.Fatalf("stake.json = %s, want %s", compact, want)
	}
}

func TestEmptyCollectionsEncodeAsArrays(t *testing.T) {
	s := newTestStore(t)

	if err := SaveAccounts(s, nil); err != nil {
		t.Fatalf("SaveAccounts: %v", err)
	}

	raw, _ := os.ReadFile(s.Path(Accounts))
	if strings.TrimSpace(string(raw)) != "[]" {
		t.Fatalf("empty accounts = %q, want []", raw)
	}
}

func TestLoadMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := LoadAccounts(s)

	var ioErr *IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("err = %v, want IOError", err)
	}

	if !IsMissing(err) {
		t.Errorf("IsMissing(%v) = false", err)
	}
}

func TestLoadCorrupt(t *testing.T) {
	s := newTestStore(t)

	if err := os.WriteFile(s.Path(Stake), []byte(`[["not-an-address"`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := LoadStake(s)

	var ioErr *IOError
	if !errors.As(err, &ioErr) || ioErr.Op != "load" {
		t.Fatalf("err = %v, want load IOError", err)
	}

	if IsMissing(err) {
		t.Error("corrupt file reported as missing")
	}
}

func TestSaveReplacesWhole(t *testing.T) {
	s := newTestStore(t)

	if err := SaveAccounts(s, sampleAccounts()); err != nil {
		t.Fatalf("SaveAccounts: %v", err)
	}

	if err := SaveAccounts(s, sampleAccounts()[:1]); err != nil {
		t.Fatalf("SaveAccounts: %v", err)
	}

	got, err := LoadAccounts(s)
	if err != nil || len(got) != 1 {
		t.Fatalf("got %d accounts err=%v, want 1", len(got), err)
	}

	entries, _ := os.ReadDir(s.Dir())
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestFailedSaveKeepsPrevious(t *testing.T) {
	s := newTestStore(t)

	if err := SaveAccounts(s, sampleAccounts()); err != nil {
		t.Fatalf("SaveAccounts: %v", err)
	}

	// Channels cannot be encoded, so the save fails before touching disk.
	if err := Save(s, Accounts, make(chan int)); err == nil {
		t.Fatal("save of unencodable value succeeded")
	}

	got, err := LoadAccounts(s)
	if err != nil || len(got) != 2 {
		t.Fatalf("previous snapshot damaged: %d accounts err=%v", len(got), err)
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	src := newTestStore(t)

	if err := SaveAccounts(src, sampleAccounts()); err != nil {
		t.Fatalf("SaveAccounts: %v", err)
	}

	if err := SaveBalances(src, map[identity.Identity]amount.Amount{testID(1): amount.FromUint64(105)}); err != nil {
		t.Fatalf("SaveBalances: %v", err)
	}

	var buf bytes.Buffer

	written, err := WriteArchive(&buf, src)
	if err != nil {
		t.Fatalf("WriteArchive: %v", err)
	}

	if !reflect.DeepEqual(written.Files, []string{Accounts, Balances}) {
		t.Fatalf("archived files = %v", written.Files)
	}

	dst := newTestStore(t)

	restored, err := ReadArchive(bytes.NewReader(buf.Bytes()), dst)
	if err != nil {
		t.Fatalf("ReadArchive: %v", err)
	}

	if !restored.CreatedAt.Equal(written.CreatedAt.Truncate(1e6)) {
		t.Errorf("created at = %v, want %v", restored.CreatedAt, written.CreatedAt)
	}

	for _, name := range []string{Accounts, Balances} {
		want, _ := os.ReadFile(src.Path(name))
		got, _ := os.ReadFile(dst.Path(name))

		if !bytes.Equal(got, want) {
			t.Errorf("%s differs after restore", name)
		}
	}

	if dst.Exists(Stake) {
		t.Error("stake restored though it was never archived")
	}
}

func TestArchiveRejectsTampering(t *testing.T) {
	src := newTestStore(t)

	if err := SaveAccounts(src, sampleAccounts()); err != nil {
		t.Fatalf("SaveAccounts: %v", err)
	}

	raw := buildArchive(testTime(), []archiveFile{{name: Accounts, data: []byte(`[]`)}})

	// Flip a byte inside the stored file contents.
	idx := bytes.Index(raw, []byte(`[]`))
	tampered := bytes.Clone(raw)
	tampered[idx] = '{'

	compressed, err := compress(tampered)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}

	if _, err := ReadArchive(bytes.NewReader(compressed), src); err == nil {
		t.Fatal("tampered archive accepted")
	}

	got, err := LoadAccounts(src)
	if err != nil || len(got) != 2 {
		t.Fatalf("existing snapshot changed by rejected archive: %d err=%v", len(got), err)
	}
}

func TestArchiveEmptyStore(t *testing.T) {
	var buf bytes.Buffer

	if _, err := WriteArchive(&buf, newTestStore(t)); err == nil {
		t.Fatal("archive of empty store succeeded")
	}
}

func TestReadArchiveGarbage(t *testing.T) {
	if _, err := ReadArchive(strings.NewReader("definitely not zstd"), newTestStore(t)); err == nil {
		t.Fatal("garbage archive accepted")
	}
}

func testTime() time.Time {
	return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
}
