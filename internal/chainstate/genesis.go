package chainstate

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/zeebo/blake3"

	"ChainSnap/internal/amount"
	"ChainSnap/internal/chain"
	"ChainSnap/internal/identity"
)

// Genesis is the initial content of a development ledger.
type Genesis struct {
	Accounts         []chain.AccountEntry `json:"accounts"`                    // Accounts are the seeded account records
	Stake            []chain.StakeEdge    `json:"stake"`                       // Stake are the seeded stake edges
	Modules          []chain.Module       `json:"modules"`                     // Modules are the registered modules
	AuthorizedModule *uint64              `json:"authorized_module,omitempty"` // AuthorizedModule is the optional authorized index
}

// LoadGenesis reads a genesis JSON file.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis:\n%w", err)
	}

	var g Genesis
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse genesis %s:\n%w", path, err)
	}

	return &g, nil
}

// Writes converts the genesis into ledger writes.
func (g *Genesis) Writes() []Write {
	writes := make([]Write, 0, len(g.Accounts)+len(g.Stake)+len(g.Modules)+1)

	for _, a := range g.Accounts {
		writes = append(writes, AccountWrite(a.ID, a.Info))
	}

	for _, s := range g.Stake {
		writes = append(writes, StakeWrite(s.From, s.To, s.Amount))
	}

	for _, m := range g.Modules {
		writes = append(writes, ModuleWrite(m))
	}

	if g.AuthorizedModule != nil {
		writes = append(writes, AuthorizedWrite(g.AuthorizedModule))
	}

	return writes
}

// DevIdentity derives the deterministic identity of development account i.
func DevIdentity(i int) identity.Identity {
	return identity.Identity(blake3.Sum256(fmt.Appendf(nil, "dev-account-%d", i)))
}

// DevGenesis returns a small deterministic fixture: eight accounts with
// growing balances, a few stake edges and two modules.
func DevGenesis() *Genesis {
	const accounts = 8

	g := &Genesis{}

	for i := range accounts {
		unit := uint64(i+1) * 1_000_000_000
		g.Accounts = append(g.Accounts, chain.AccountEntry{
			ID: DevIdentity(i),
			Info: chain.AccountInfo{
				Nonce:     uint32(i),
				Providers: 1,
				Data: chain.AccountData{
					Free:     unit,
					Reserved: unit / 10,
					Frozen:   unit / 100,
				},
			},
		})
	}

	// Dust account below the default existential deposit.
	g.Accounts = append(g.Accounts, chain.AccountEntry{
		ID:   DevIdentity(accounts),
		Info: chain.AccountInfo{Providers: 1, Data: chain.AccountData{Free: 100}},
	})

	g.Stake = []chain.StakeEdge{
		{From: DevIdentity(0), To: DevIdentity(1), Amount: amount.FromUint64(500_000_000)},
		{From: DevIdentity(0), To: DevIdentity(2), Amount: amount.FromUint64(250_000_000)},
		{From: DevIdentity(3), To: DevIdentity(1), Amount: amount.FromUint64(2_000_000_000)},
		{From: DevIdentity(5), To: DevIdentity(5), Amount: amount.FromUint64(1_000_000_000)},
	}

	url := "https://modules.example/search"
	g.Modules = []chain.Module{
		{
			Owner:       DevIdentity(0),
			ID:          0,
			Name:        "search",
			URL:         &url,
			Collateral:  amount.FromUint64(10_000_000_000),
			Take:        5,
			Tier:        chain.TierOfficial,
			CreatedAt:   10,
			LastUpdated: 42,
		},
		{
			Owner:       DevIdentity(1),
			ID:          1,
			Name:        "summarize",
			Collateral:  amount.FromUint64(1_000_000_000),
			Tier:        chain.TierUnapproved,
			CreatedAt:   12,
			LastUpdated: 12,
		},
	}

	authorized := uint64(0)
	g.AuthorizedModule = &authorized

	return g
}
