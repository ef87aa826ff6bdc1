package storage

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// newTestStorage creates a temporary storage for testing.
func newTestStorage(t *testing.T) (*Storage, func()) {
	t.Helper()

	dir, err := os.MkdirTemp("", "storage-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	s, err := New(filepath.Join(dir, "db"))
	if err != nil {
		os.RemoveAll(dir)
		t.Fatalf("failed to create storage: %v", err)
	}

	cleanup := func() {
		s.Close()
		os.RemoveAll(dir)
	}

	return s, cleanup
}

// fill writes n keys "p:000".."p:n-1" with values "v000"...
func fill(t *testing.T, s *Storage, prefix string, n int) {
	t.Helper()

	pairs := make([]KeyValue, n)
	for i := range pairs {
		pairs[i] = KeyValue{
			Key:   []byte(fmt.Sprintf("%s%03d", prefix, i)),
			Value: []byte(fmt.Sprintf("v%03d", i)),
		}
	}

	if err := s.SetBatch(pairs); err != nil {
		t.Fatalf("SetBatch failed: %v", err)
	}
}

func TestSetAndGet(t *testing.T) {
	s, cleanup := newTestStorage(t)
	defer cleanup()

	if err := s.Set([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := s.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if !bytes.Equal(got, []byte("v")) {
		t.Errorf("Get returned %q, want %q", got, "v")
	}

	missing, err := s.Get([]byte("missing"))
	if err != nil || missing != nil {
		t.Errorf("Get(missing) = %q, %v; want nil, nil", missing, err)
	}
}

func TestSetBatchDeletes(t *testing.T) {
	s, cleanup := newTestStorage(t)
	defer cleanup()

	fill(t, s, "a:", 3)

	err := s.SetBatch([]KeyValue{
		{Key: []byte("a:001"), Value: nil},
		{Key: []byte("a:003"), Value: []byte("new")},
	})
	if err != nil {
		t.Fatalf("SetBatch failed: %v", err)
	}

	if got, _ := s.Get([]byte("a:001")); got != nil {
		t.Errorf("deleted key still present: %q", got)
	}

	if got, _ := s.Get([]byte("a:003")); !bytes.Equal(got, []byte("new")) {
		t.Errorf("a:003 = %q", got)
	}
}

func TestIteratePrefix(t *testing.T) {
	s, cleanup := newTestStorage(t)
	defer cleanup()

	fill(t, s, "a:", 5)
	fill(t, s, "b:", 2)

	var keys []string
	err := s.IteratePrefix([]byte("b:"), func(key, _ []byte) error {
		keys = append(keys, string(key))
		return nil
	})
	if err != nil {
		t.Fatalf("IteratePrefix failed: %v", err)
	}

	if len(keys) != 2 || keys[0] != "b:000" || keys[1] != "b:001" {
		t.Errorf("keys = %v", keys)
	}
}

func TestViewIsolation(t *testing.T) {
	s, cleanup := newTestStorage(t)
	defer cleanup()

	fill(t, s, "a:", 2)

	view := s.View()
	defer view.Close()

	if err := s.Set([]byte("a:000"), []byte("changed")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := view.Get([]byte("a:000"))
	if err != nil {
		t.Fatalf("view Get failed: %v", err)
	}

	if !bytes.Equal(got, []byte("v000")) {
		t.Errorf("view saw later write: %q", got)
	}
}

func TestViewScanPages(t *testing.T) {
	s, cleanup := newTestStorage(t)
	defer cleanup()

	fill(t, s, "a:", 7)
	fill(t, s, "b:", 3)

	view := s.View()
	defer view.Close()

	var (
		all   []string
		start []byte
		pages int
	)

	for {
		pairs, more, err := view.Scan([]byte("a:"), start, 3)
		if err != nil {
			t.Fatalf("Scan failed: %v", err)
		}
		pages++

		for _, kv := range pairs {
			all = append(all, string(kv.Key))
		}

		if !more {
			break
		}
		start = pairs[len(pairs)-1].Key
	}

	if pages != 3 || len(all) != 7 || all[0] != "a:000" || all[6] != "a:006" {
		t.Errorf("pages=%d keys=%v", pages, all)
	}
}

func TestViewScanExactPage(t *testing.T) {
	s, cleanup := newTestStorage(t)
	defer cleanup()

	fill(t, s, "a:", 3)

	view := s.View()
	defer view.Close()

	pairs, more, err := view.Scan([]byte("a:"), nil, 3)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if len(pairs) != 3 || more {
		t.Errorf("len=%d more=%v, want 3 false", len(pairs), more)
	}
}

func BenchmarkViewScan(b *testing.B) {
	dir := b.TempDir()

	s, err := New(filepath.Join(dir, "db"))
	if err != nil {
		b.Fatalf("failed to create storage: %v", err)
	}
	defer s.Close()

	pairs := make([]KeyValue, 10_000)
	for i := range pairs {
		pairs[i] = KeyValue{Key: []byte(fmt.Sprintf("a:%06d", i)), Value: make([]byte, 96)}
	}
	if err := s.SetBatch(pairs); err != nil {
		b.Fatalf("SetBatch failed: %v", err)
	}

	view := s.View()
	defer view.Close()

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, _, err := view.Scan([]byte("a:"), nil, 512); err != nil {
			b.Fatal(err)
		}
	}
}
