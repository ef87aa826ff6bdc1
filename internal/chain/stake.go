package chain

import (
	"encoding/json"
	"fmt"

	"ChainSnap/internal/amount"
	"ChainSnap/internal/identity"
)

// StakeEdge is stake delegated from one identity to another.
// It encodes as a three-element JSON array.
type StakeEdge struct {
	From   identity.Identity // From is the staking identity
	To     identity.Identity // To is the recipient of the stake
	Amount amount.Amount     // Amount is the staked principal
}

// MarshalJSON encodes the edge as [from, to, amount].
func (s StakeEdge) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]any{s.From, s.To, s.Amount})
}

// UnmarshalJSON decodes a [from, to, amount] triple.
func (s *StakeEdge) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if len(raw) != 3 {
		return fmt.Errorf("stake edge has %d elements, want 3", len(raw))
	}

	if err := json.Unmarshal(raw[0], &s.From); err != nil {
		return fmt.Errorf("stake from:\n%w", err)
	}

	if err := json.Unmarshal(raw[1], &s.To); err != nil {
		return fmt.Errorf("stake to:\n%w", err)
	}

	if err := json.Unmarshal(raw[2], &s.Amount); err != nil {
		return fmt.Errorf("stake amount:\n%w", err)
	}

	return nil
}
