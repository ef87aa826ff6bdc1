// Package modules reads the registered module set from the ledger.
package modules

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"ChainSnap/internal/chain"
	"ChainSnap/internal/decode"
	"ChainSnap/internal/ledger"
)

// ErrNotFound is returned for a module index with no entry.
var ErrNotFound = errors.New("module not found")

// Service answers module queries against the latest ledger state.
type Service struct {
	reader *ledger.Reader // reader is the shared ledger handle
}

// NewService creates a service over reader.
func NewService(reader *ledger.Reader) *Service {
	return &Service{reader: reader}
}

// List returns every decodable module ordered by index.
// Entries that fail to decode are logged and left out.
func (s *Service) List(ctx context.Context) ([]chain.Module, error) {
	res, err := ledger.Collect(ledger.Modules, s.reader.Iterate(ctx, ledger.Modules), func(e ledger.Entry) (chain.Module, error) {
		return decode.Module(e.Value)
	})
	if err != nil {
		return nil, fmt.Errorf("list modules:\n%w", err)
	}

	items := res.Items
	if items == nil {
		items = []chain.Module{}
	}

	slices.SortFunc(items, func(a, b chain.Module) int {
		return cmp.Compare(a.ID, b.ID)
	})

	return items, nil
}

// Get returns the module at index id.
// A decode failure is returned rather than skipped.
func (s *Service) Get(ctx context.Context, id uint64) (chain.Module, error) {
	entry, ok, err := s.reader.Fetch(ctx, ledger.Modules, ledger.Root{}, ledger.U64Part(id))
	if err != nil {
		return chain.Module{}, fmt.Errorf("fetch module %d:\n%w", id, err)
	}

	if !ok {
		return chain.Module{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	m, err := decode.Module(entry.Value)
	if err != nil {
		return chain.Module{}, fmt.Errorf("module %d:\n%w", id, err)
	}

	return m, nil
}

// AuthorizedModule returns the authorized module index, or 0 when unset.
func (s *Service) AuthorizedModule(ctx context.Context) (uint64, error) {
	entry, ok, err := s.reader.Fetch(ctx, ledger.AuthorizedModule, ledger.Root{})
	if err != nil {
		return 0, fmt.Errorf("fetch authorized module:\n%w", err)
	}

	if !ok {
		return 0, nil
	}

	id, _, err := decode.ModuleID(entry.Value)
	if err != nil {
		return 0, fmt.Errorf("authorized module:\n%w", err)
	}

	return id, nil
}
