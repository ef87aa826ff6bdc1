package balance

import (
	"fmt"
	"io"
	"strings"

	"ChainSnap/internal/amount"
	"ChainSnap/internal/identity"
)

// ReportOptions controls the human-readable report.
type ReportOptions struct {
	Threshold amount.Amount // Threshold is the existential deposit for dust
	Top       int           // Top is the ranking length
	Decimals  int           // Decimals is the token's fixed-point scale
	Prefix    uint16        // Prefix is the address network prefix
}

// Report holds the derived network statistics.
type Report struct {
	Accounts  int           `json:"accounts"`   // Accounts is the number of identities
	Issuance  amount.Amount `json:"issuance"`   // Issuance is the sum of all totals
	DustCount int           `json:"dust_count"` // DustCount is the number of dust identities
	DustTotal amount.Amount `json:"dust_total"` // DustTotal is their combined total
	Threshold amount.Amount `json:"threshold"`  // Threshold is the dust cutoff used
	Top       []Ranked      `json:"top"`        // Top is the ranking, largest first

	decimals int    // decimals scales amounts for display
	prefix   uint16 // prefix renders addresses
}

// BuildReport derives the report for t.
func BuildReport(t Totals, opts ReportOptions) (*Report, error) {
	issuance, err := Issuance(t)
	if err != nil {
		return nil, err
	}

	count, dust, err := Dust(t, opts.Threshold)
	if err != nil {
		return nil, err
	}

	return &Report{
		Accounts:  len(t),
		Issuance:  issuance,
		DustCount: count,
		DustTotal: dust,
		Threshold: opts.Threshold,
		Top:       TopN(t, opts.Top),
		decimals:  opts.Decimals,
		prefix:    opts.Prefix,
	}, nil
}

// WriteTo prints the report.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "Total Issuance: %s\n", r.Issuance.Format(r.decimals))
	fmt.Fprintf(&b, "%d nonexistent accounts totalling %s\n", r.DustCount, r.DustTotal.Format(r.decimals))
	fmt.Fprintf(&b, "Top %d highest total balances:\n", len(r.Top))

	for _, entry := range r.Top {
		fmt.Fprintf(&b, "%s: %s (%.4f%%)\n",
			identity.Encode(entry.ID, r.prefix),
			entry.Total.Format(r.decimals),
			Percent(entry.Total, r.Issuance),
		)
	}

	n, err := io.WriteString(w, b.String())

	return int64(n), err
}
