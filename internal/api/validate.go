package api

import (
	"errors"

	"ChainSnap/internal/amount"
	"ChainSnap/internal/attest"
	"ChainSnap/internal/balance"
	"ChainSnap/internal/identity"
)

// ServerSignature is the signer block of a verification request.
type ServerSignature struct {
	Scheme    string `json:"scheme,omitempty"` // Scheme defaults to sr25519
	Address   string `json:"address"`          // Address is the SS58 signer address
	Signature string `json:"signature"`        // Signature is 0x-prefixed hex
}

// VerifyRequest is the body of POST /v1/verify.
type VerifyRequest struct {
	Data   string          `json:"data"`
	Server ServerSignature `json:"server"`
}

// VerifyResponse is the result of a verification.
type VerifyResponse struct {
	Valid   bool          `json:"valid"`
	Scheme  attest.Scheme `json:"scheme,omitempty"`
	Address string        `json:"address,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// BalanceResponse is the total of one identity.
type BalanceResponse struct {
	Address string        `json:"address"`
	Total   amount.Amount `json:"total"`
}

// validate checks that the required fields are present.
func (r *VerifyRequest) validate() error {
	var errs []error

	if r.Server.Address == "" {
		errs = append(errs, errors.New("missing server.address"))
	}

	if r.Server.Signature == "" {
		errs = append(errs, errors.New("missing server.signature"))
	}

	return errors.Join(errs...)
}

// attestation converts the request into verifier input.
func (r *VerifyRequest) attestation(scheme attest.Scheme) attest.UsageAttestation {
	return attest.UsageAttestation{
		Payload:   []byte(r.Data),
		Address:   r.Server.Address,
		Signature: r.Server.Signature,
		Scheme:    scheme,
	}
}

// balanceReport builds the statistics for totals.
func balanceReport(totals map[identity.Identity]amount.Amount, opts balance.ReportOptions) (*balance.Report, error) {
	return balance.BuildReport(balance.Totals(totals), opts)
}
