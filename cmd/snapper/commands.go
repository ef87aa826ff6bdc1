package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"ChainSnap/internal/attest"
	"ChainSnap/internal/balance"
	"ChainSnap/internal/endpoint"
	"ChainSnap/internal/identity"
	"ChainSnap/internal/pipeline"
	"ChainSnap/internal/snapshot"
)

// newFlags creates a subcommand flag set writing to env's stderr.
func (e *env) newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("snapper "+name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)

	return fs
}

// reportFlag registers -r and --show-report on fs.
func reportFlag(fs *flag.FlagSet) *bool {
	show := new(bool)
	fs.BoolVar(show, "r", false, "print the report after aggregating")
	fs.BoolVar(show, "show-report", false, "print the report after aggregating")

	return show
}

// pipeline opens the snapshot store and, when dial is set, the ledger node.
func (e *env) pipeline(ctx context.Context, dial bool) (*pipeline.Pipeline, func(), error) {
	store, err := snapshot.Open(e.cfg.Snapshot.Dir)
	if err != nil {
		return nil, nil, err
	}

	if !dial {
		return pipeline.New(nil, store), func() {}, nil
	}

	reader, conn, err := endpoint.Reader(ctx, e.cfg.Node)
	if err != nil {
		return nil, nil, err
	}

	return pipeline.New(reader, store), func() { conn.Close() }, nil
}

// reportOptions maps the report section onto balance options.
func (e *env) reportOptions() balance.ReportOptions {
	return balance.ReportOptions{
		Threshold: e.cfg.Threshold(),
		Top:       e.cfg.Report.Top,
		Decimals:  e.cfg.Report.Decimals,
		Prefix:    e.cfg.Report.SS58Prefix,
	}
}

// printReport builds and prints the report of saved totals.
func (e *env) printReport(ctx context.Context, p *pipeline.Pipeline) error {
	report, err := p.Report(ctx, e.reportOptions())
	if err != nil {
		return err
	}

	_, err = report.WriteTo(e.stdout)

	return err
}

// cmdSnap runs fetch then aggregate, and optionally the report.
func cmdSnap(ctx context.Context, e *env, args []string) error {
	fs := e.newFlags("snap")
	show := reportFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	p, done, err := e.pipeline(ctx, true)
	if err != nil {
		return err
	}
	defer done()

	fetched, aggregated, err := p.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(e.stderr, "snapshot at %s: %d accounts, %d stake edges, %d totals\n",
		fetched.Root, fetched.Accounts, fetched.Stake, aggregated.Identities)

	if *show {
		return e.printReport(ctx, p)
	}

	return nil
}

// cmdFetch saves the account and stake snapshots.
func cmdFetch(ctx context.Context, e *env, args []string) error {
	if err := e.newFlags("fetch").Parse(args); err != nil {
		return err
	}

	p, done, err := e.pipeline(ctx, true)
	if err != nil {
		return err
	}
	defer done()

	res, err := p.Fetch(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(e.stderr, "fetched at %s: %d accounts (%d skipped), %d stake edges (%d skipped)\n",
		res.Root, res.Accounts, res.SkippedAccount, res.Stake, res.SkippedStake)

	return nil
}

// cmdAggregate computes totals from the saved snapshots.
func cmdAggregate(ctx context.Context, e *env, args []string) error {
	fs := e.newFlags("aggregate")
	show := reportFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	p, done, err := e.pipeline(ctx, false)
	if err != nil {
		return err
	}
	defer done()

	if _, err := p.Aggregate(ctx); err != nil {
		return err
	}

	if *show {
		return e.printReport(ctx, p)
	}

	return nil
}

// cmdReport prints the report of saved totals.
func cmdReport(ctx context.Context, e *env, args []string) error {
	if err := e.newFlags("report").Parse(args); err != nil {
		return err
	}

	p, done, err := e.pipeline(ctx, false)
	if err != nil {
		return err
	}
	defer done()

	return e.printReport(ctx, p)
}

// cmdArchive writes the snapshot archive.
func cmdArchive(_ context.Context, e *env, args []string) error {
	fs := e.newFlags("archive")
	out := fs.String("out", "snapshot.snap", "archive file to write")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := snapshot.Open(e.cfg.Snapshot.Dir)
	if err != nil {
		return err
	}

	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create archive:\n%w", err)
	}

	m, err := snapshot.WriteArchive(f, store)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(*out)
		return err
	}

	fmt.Fprintf(e.stderr, "archived %v to %s\n", m.Files, *out)

	return nil
}

// cmdRestore unpacks an archive into the snapshot directory.
func cmdRestore(_ context.Context, e *env, args []string) error {
	fs := e.newFlags("restore")
	in := fs.String("in", "snapshot.snap", "archive file to read")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := snapshot.Open(e.cfg.Snapshot.Dir)
	if err != nil {
		return err
	}

	f, err := os.Open(*in)
	if err != nil {
		return fmt.Errorf("open archive:\n%w", err)
	}
	defer f.Close()

	m, err := snapshot.ReadArchive(f, store)
	if err != nil {
		return err
	}

	fmt.Fprintf(e.stderr, "restored %v created %s\n", m.Files, m.CreatedAt.Format("2006-01-02 15:04:05"))

	return nil
}

// errInvalidSignature makes verify exit non-zero for a well-formed signature that does not match.
var errInvalidSignature = errors.New("signature does not verify")

// cmdVerify checks an attestation locally.
func cmdVerify(_ context.Context, e *env, args []string) error {
	fs := e.newFlags("verify")
	data := fs.String("data", "", "signed payload text")
	address := fs.String("address", "", "signer SS58 address")
	signature := fs.String("signature", "", "0x-prefixed hex signature")
	scheme := fs.String("scheme", "", "sr25519 (default), ed25519 or ecdsa")
	signingCtx := fs.String("context", attest.DefaultContext, "sr25519 signing context")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *address == "" || *signature == "" {
		return errors.New("-address and -signature are required")
	}

	s, err := attest.ParseScheme(*scheme)
	if err != nil {
		return err
	}

	valid, err := attest.NewVerifier(*signingCtx).VerifyAttestation(attest.UsageAttestation{
		Payload:   []byte(*data),
		Address:   *address,
		Signature: *signature,
		Scheme:    s,
	})
	if err != nil {
		return err
	}

	id, _ := identity.Parse(*address)
	fmt.Fprintf(e.stdout, "%s %s: valid=%t\n", s, identity.Encode(id, e.cfg.Report.SS58Prefix), valid)

	if !valid {
		return errInvalidSignature
	}

	return nil
}
