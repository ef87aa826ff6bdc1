// Package pipeline runs the fetch, aggregate and report phases of a snapshot.
//
// Each phase reads its inputs from the snapshot store and writes its outputs
// back, so phases can be run and retried independently.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"ChainSnap/internal/balance"
	"ChainSnap/internal/chain"
	"ChainSnap/internal/decode"
	"ChainSnap/internal/ledger"
	"ChainSnap/internal/logger"
	"ChainSnap/internal/metrics"
	"ChainSnap/internal/snapshot"
)

var tracer = otel.Tracer("ChainSnap/internal/pipeline")

// Pipeline wires the ledger reader to the snapshot store.
type Pipeline struct {
	reader  *ledger.Reader           // reader is the shared ledger handle
	store   *snapshot.Store          // store persists phase outputs
	metrics *metrics.PipelineMetrics // metrics records phase timings
}

// New creates a pipeline.
func New(reader *ledger.Reader, store *snapshot.Store) *Pipeline {
	return &Pipeline{reader: reader, store: store, metrics: metrics.Pipeline()}
}

// FetchResult summarizes a fetch phase.
type FetchResult struct {
	Root           ledger.Root // Root is the state both namespaces were read at
	Accounts       int         // Accounts is the number of accounts saved
	Stake          int         // Stake is the number of stake edges saved
	SkippedAccount int         // SkippedAccount counts undecodable account entries
	SkippedStake   int         // SkippedStake counts undecodable stake entries
}

// AggregateResult summarizes an aggregate phase.
type AggregateResult struct {
	Identities int // Identities is the number of totals saved
}

// Fetch reads the account and stake namespaces at one state root and saves both snapshots.
func (p *Pipeline) Fetch(ctx context.Context) (res FetchResult, err error) {
	ctx, end := p.phase(ctx, "fetch")
	defer func() { end(err) }()

	res.Root, err = p.reader.Head(ctx)
	if err != nil {
		return res, err
	}

	logger.Info("fetching ledger state", "root", res.Root)

	var (
		accounts ledger.Result[chain.AccountEntry]
		stake    ledger.Result[chain.StakeEdge]
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		accounts, err = ledger.Collect(ledger.SystemAccount,
			p.reader.Iterate(gctx, ledger.SystemAccount, ledger.At(res.Root)), decodeAccount)
		return err
	})

	g.Go(func() error {
		var err error
		stake, err = ledger.Collect(ledger.StakeTo,
			p.reader.Iterate(gctx, ledger.StakeTo, ledger.At(res.Root)), decodeStake)
		return err
	})

	if err := g.Wait(); err != nil {
		return res, err
	}

	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("fetch cancelled:\n%w", err)
	}

	if err := snapshot.SaveAccounts(p.store, accounts.Items); err != nil {
		return res, err
	}

	if err := snapshot.SaveStake(p.store, stake.Items); err != nil {
		return res, err
	}

	res.Accounts = len(accounts.Items)
	res.Stake = len(stake.Items)
	res.SkippedAccount = len(accounts.Skipped)
	res.SkippedStake = len(stake.Skipped)

	p.metrics.SetRecords(snapshot.Accounts, res.Accounts)
	p.metrics.SetRecords(snapshot.Stake, res.Stake)

	logger.Info("ledger state saved",
		"accounts", res.Accounts,
		"stake", res.Stake,
		"skipped", res.SkippedAccount+res.SkippedStake,
	)

	return res, nil
}

// Aggregate loads the account and stake snapshots and saves the totals.
func (p *Pipeline) Aggregate(ctx context.Context) (res AggregateResult, err error) {
	_, end := p.phase(ctx, "aggregate")
	defer func() { end(err) }()

	totals, err := p.aggregate()
	if err != nil {
		return res, err
	}

	if err := snapshot.SaveBalances(p.store, totals); err != nil {
		return res, err
	}

	res.Identities = len(totals)
	p.metrics.SetRecords(snapshot.Balances, res.Identities)

	logger.Info("balances aggregated", "identities", res.Identities)

	return res, nil
}

func (p *Pipeline) aggregate() (balance.Totals, error) {
	accounts, err := snapshot.LoadAccounts(p.store)
	if err != nil {
		return nil, err
	}

	stake, err := snapshot.LoadStake(p.store)
	if err != nil {
		return nil, err
	}

	totals, err := balance.Aggregate(accounts, stake)
	if err != nil {
		return nil, fmt.Errorf("aggregate:\n%w", err)
	}

	return totals, nil
}

// Report builds the report from the saved totals.
func (p *Pipeline) Report(ctx context.Context, opts balance.ReportOptions) (report *balance.Report, err error) {
	_, end := p.phase(ctx, "report")
	defer func() { end(err) }()

	totals, err := snapshot.LoadBalances(p.store)
	if err != nil {
		return nil, err
	}

	return balance.BuildReport(totals, opts)
}

// Run performs Fetch then Aggregate.
func (p *Pipeline) Run(ctx context.Context) (FetchResult, AggregateResult, error) {
	fetched, err := p.Fetch(ctx)
	if err != nil {
		return fetched, AggregateResult{}, fmt.Errorf("fetch:\n%w", err)
	}

	aggregated, err := p.Aggregate(ctx)
	if err != nil {
		return fetched, aggregated, fmt.Errorf("aggregate:\n%w", err)
	}

	return fetched, aggregated, nil
}

// phase starts a span and returns a func that records the outcome.
func (p *Pipeline) phase(ctx context.Context, name string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "pipeline."+name, trace.WithAttributes(
		attribute.String("snapshot.dir", p.store.Dir()),
	))

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		p.metrics.ObservePhase(name, time.Since(start))
		logger.Debug("phase finished", "phase", name, logger.Timed(start))
	}
}

func decodeAccount(e ledger.Entry) (chain.AccountEntry, error) {
	id, err := decode.IdentityFromKey(e.Keys, 0)
	if err != nil {
		return chain.AccountEntry{}, err
	}

	info, err := decode.AccountInfo(e.Value)
	if err != nil {
		return chain.AccountEntry{}, err
	}

	return chain.AccountEntry{ID: id, Info: info}, nil
}

func decodeStake(e ledger.Entry) (chain.StakeEdge, error) {
	from, to, err := decode.IdentityPair(e.Keys)
	if err != nil {
		return chain.StakeEdge{}, err
	}

	amt, err := decode.Amount(e.Value)
	if err != nil {
		return chain.StakeEdge{}, err
	}

	return chain.StakeEdge{From: from, To: to, Amount: amt}, nil
}
