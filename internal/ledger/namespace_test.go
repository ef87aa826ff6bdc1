package ledger

import (
	"bytes"
	"testing"
)

func TestKeyLayout(t *testing.T) {
	part := []byte{1, 2, 3}
	key := Key(StakeTo, part)

	prefix := StakeTo.Prefix()
	if len(prefix) != 2*hashSize {
		t.Fatalf("prefix length = %d, want %d", len(prefix), 2*hashSize)
	}

	if !bytes.HasPrefix(key, prefix) {
		t.Fatal("key does not start with namespace prefix")
	}

	rest := key[len(prefix):]
	if !bytes.Equal(rest[:hashSize], hash128(part)) || !bytes.Equal(rest[hashSize:], part) {
		t.Fatalf("key part = %x, want hash ‖ raw", rest)
	}
}

func TestNamespacesDistinct(t *testing.T) {
	seen := make(map[string]Namespace)

	for _, ns := range []Namespace{SystemAccount, StakeTo, Modules, AuthorizedModule} {
		p := string(ns.Prefix())
		if other, ok := seen[p]; ok {
			t.Fatalf("%s and %s share a prefix", ns, other)
		}
		seen[p] = ns
	}
}

func TestParseRoot(t *testing.T) {
	var want Root
	for i := range want {
		want[i] = byte(i)
	}

	got, err := ParseRoot(want.String())
	if err != nil {
		t.Fatalf("ParseRoot failed: %v", err)
	}

	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}

	latest, err := ParseRoot("")
	if err != nil || !latest.IsZero() {
		t.Fatalf("empty root = %s err=%v, want zero", latest, err)
	}

	if _, err := ParseRoot("0xabcd"); err == nil {
		t.Fatal("short root accepted")
	}

	if (Root{}).Bytes() != nil {
		t.Fatal("zero root bytes should be nil")
	}
}
