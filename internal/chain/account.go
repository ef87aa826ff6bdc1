package chain

import (
	"encoding/json"
	"fmt"

	"ChainSnap/internal/amount"
	"ChainSnap/internal/identity"
)

// AccountData holds the balance portion of an account record.
type AccountData struct {
	Free     uint64        `json:"free"`     // Free is the transferable balance
	Reserved uint64        `json:"reserved"` // Reserved is the balance held by the runtime
	Frozen   uint64        `json:"frozen"`   // Frozen is the balance locked against withdrawal
	Flags    amount.Amount `json:"flags"`    // Flags is an opaque runtime bitfield
}

// AccountInfo is one decoded entry of the system account namespace.
type AccountInfo struct {
	Nonce       uint32      `json:"nonce"`       // Nonce is the number of transactions sent
	Consumers   uint32      `json:"consumers"`   // Consumers is the consumer reference count
	Providers   uint32      `json:"providers"`   // Providers is the provider reference count
	Sufficients uint32      `json:"sufficients"` // Sufficients is the self-sufficient reference count
	Data        AccountData `json:"data"`        // Data is the account balance
}

// Holdings returns free + reserved + frozen.
func (a AccountInfo) Holdings() (amount.Amount, error) {
	return amount.Sum(
		amount.FromUint64(a.Data.Free),
		amount.FromUint64(a.Data.Reserved),
		amount.FromUint64(a.Data.Frozen),
	)
}

// AccountEntry pairs an identity with its account record.
// It encodes as a two-element JSON array.
type AccountEntry struct {
	ID   identity.Identity // ID is the account identity
	Info AccountInfo       // Info is the decoded account record
}

// MarshalJSON encodes the entry as [identity, info].
func (e AccountEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{e.ID, e.Info})
}

// UnmarshalJSON decodes an [identity, info] pair.
func (e *AccountEntry) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if len(raw) != 2 {
		return fmt.Errorf("account entry has %d elements, want 2", len(raw))
	}

	if err := json.Unmarshal(raw[0], &e.ID); err != nil {
		return fmt.Errorf("account identity:\n%w", err)
	}

	if err := json.Unmarshal(raw[1], &e.Info); err != nil {
		return fmt.Errorf("account info:\n%w", err)
	}

	return nil
}
