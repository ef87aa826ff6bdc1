package chain

import (
	"fmt"

	"ChainSnap/internal/amount"
	"ChainSnap/internal/identity"
)

// ModuleTier is the curation level of a registered module.
type ModuleTier uint8

const (
	TierUnapproved ModuleTier = iota
	TierApproved
	TierOfficial
	TierDelisted
)

var tierNames = map[ModuleTier]string{
	TierUnapproved: "Unapproved",
	TierApproved:   "Approved",
	TierOfficial:   "Official",
	TierDelisted:   "Delisted",
}

// ParseTier maps a variant name to a tier.
func ParseTier(name string) (ModuleTier, error) {
	for tier, n := range tierNames {
		if n == name {
			return tier, nil
		}
	}

	return 0, fmt.Errorf("unknown module tier %q", name)
}

// String returns the variant name.
func (t ModuleTier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}

	return fmt.Sprintf("ModuleTier(%d)", uint8(t))
}

// MarshalText implements encoding.TextMarshaler.
func (t ModuleTier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ModuleTier) UnmarshalText(text []byte) error {
	parsed, err := ParseTier(string(text))
	if err != nil {
		return err
	}

	*t = parsed

	return nil
}

// Module is a registered network module.
type Module struct {
	Owner       identity.Identity `json:"owner"`        // Owner registered the module
	ID          uint64            `json:"id"`           // ID is the registry index
	Name        string            `json:"name"`         // Name is the display name
	Data        *string           `json:"data"`         // Data is an optional storage reference
	URL         *string           `json:"url"`          // URL is an optional endpoint
	Collateral  amount.Amount     `json:"collateral"`   // Collateral is the bonded amount
	Take        uint8             `json:"take"`         // Take is the fee percentage
	Tier        ModuleTier        `json:"tier"`         // Tier is the curation level
	CreatedAt   uint64            `json:"created_at"`   // CreatedAt is the registration block
	LastUpdated uint64            `json:"last_updated"` // LastUpdated is the last change block
}

// String returns a short description for logs.
func (m Module) String() string {
	return fmt.Sprintf("module %d %q (%s)", m.ID, m.Name, m.Tier)
}
