// Package snapshot persists decoded ledger collections as named JSON documents.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"ChainSnap/internal/amount"
	"ChainSnap/internal/chain"
	"ChainSnap/internal/identity"
)

// Logical snapshot names.
const (
	Accounts = "accounts"
	Stake    = "stake"
	Balances = "total_balances"
)

// Names lists every snapshot name the store manages.
var Names = []string{Accounts, Stake, Balances}

// IOError is a snapshot read, write or parse failure.
// It is fatal to the phase that needs the snapshot.
type IOError struct {
	Op   string // Op is "save" or "load"
	Name string // Name is the logical snapshot name
	Path string // Path is the file on disk
	Err  error  // Err is the underlying cause
}

// Error implements error.
func (e *IOError) Error() string {
	return fmt.Sprintf("snapshot %s %s (%s): %v", e.Op, e.Name, e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *IOError) Unwrap() error {
	return e.Err
}

// Store maps logical names to JSON files in one directory.
// It assumes a single writer.
type Store struct {
	dir string // dir holds the snapshot files
}

// Open creates the directory if needed and returns a store over it.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir:\n%w", err)
	}

	return &Store{dir: dir}, nil
}

// Dir returns the snapshot directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file that backs name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// Exists reports whether a snapshot is present on disk.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}

// Save writes data as pretty JSON, replacing any previous snapshot whole.
// The previous file stays intact if the write fails at any point.
func Save[T any](s *Store, name string, data T) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return &IOError{Op: "save", Name: name, Path: s.Path(name), Err: err}
	}

	return s.writeRaw(name, append(raw, '\n'))
}

// Load reads a snapshot into a fresh value.
// A missing or unparsable file is an *IOError.
func Load[T any](s *Store, name string) (T, error) {
	var out T

	raw, err := s.readRaw(name)
	if err != nil {
		return out, err
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		return out, &IOError{Op: "load", Name: name, Path: s.Path(name), Err: err}
	}

	return out, nil
}

// IsMissing reports whether err is a load of a snapshot that does not exist.
func IsMissing(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// SaveAccounts stores accounts as [identity, record] pairs.
func SaveAccounts(s *Store, accounts []chain.AccountEntry) error {
	return Save(s, Accounts, nonNil(accounts))
}

// LoadAccounts reads the accounts snapshot.
func LoadAccounts(s *Store) ([]chain.AccountEntry, error) {
	return Load[[]chain.AccountEntry](s, Accounts)
}

// SaveStake stores stake edges as [from, to, amount] triples.
func SaveStake(s *Store, edges []chain.StakeEdge) error {
	return Save(s, Stake, nonNil(edges))
}

// LoadStake reads the stake snapshot.
func LoadStake(s *Store) ([]chain.StakeEdge, error) {
	return Load[[]chain.StakeEdge](s, Stake)
}

// SaveBalances stores totals as {identity: "amount"}.
func SaveBalances(s *Store, totals map[identity.Identity]amount.Amount) error {
	if totals == nil {
		totals = map[identity.Identity]amount.Amount{}
	}

	return Save(s, Balances, totals)
}

// LoadBalances reads the total balances snapshot.
func LoadBalances(s *Store) (map[identity.Identity]amount.Amount, error) {
	return Load[map[identity.Identity]amount.Amount](s, Balances)
}

// writeRaw atomically replaces the file for name with data.
func (s *Store) writeRaw(name string, data []byte) error {
	path := s.Path(name)
	fail := func(err error) error {
		return &IOError{Op: "save", Name: name, Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+"-*.tmp")
	if err != nil {
		return fail(err)
	}

	cleanup := func() {
		_ = os.Remove(tmp.Name())
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fail(err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fail(err)
	}

	if err := tmp.Close(); err != nil {
		cleanup()
		return fail(err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		cleanup()
		return fail(err)
	}

	return nil
}

// readRaw returns the file contents for name.
func (s *Store) readRaw(name string) ([]byte, error) {
	path := s.Path(name)

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &IOError{Op: "load", Name: name, Path: path, Err: err}
	}

	return raw, nil
}

// known reports whether name is a managed snapshot name.
func known(name string) bool {
	return slices.Contains(Names, name)
}

// nonNil makes empty collections encode as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}

	return items
}
