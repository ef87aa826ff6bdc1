// Command telemetryd serves the module registry, attestation verification and
// balance statistics over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ChainSnap/internal/api"
	"ChainSnap/internal/attest"
	"ChainSnap/internal/balance"
	"ChainSnap/internal/config"
	"ChainSnap/internal/endpoint"
	"ChainSnap/internal/logger"
	"ChainSnap/internal/modules"
	"ChainSnap/internal/snapshot"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main entry point with error handling.
func run(args []string) error {
	cfg, err := parseFlags(args)
	if err != nil {
		return err
	}

	logger.Init(cfg.LoggerOptions())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reader, conn, err := endpoint.Reader(ctx, cfg.Node)
	if err != nil {
		return fmt.Errorf("connect node:\n%w", err)
	}
	defer conn.Close()

	store, err := snapshot.Open(cfg.Snapshot.Dir)
	if err != nil {
		return err
	}

	server := api.New(api.Options{
		Addr: cfg.API.Addr,
		Report: balance.ReportOptions{
			Threshold: cfg.Threshold(),
			Top:       cfg.Report.Top,
			Decimals:  cfg.Report.Decimals,
			Prefix:    cfg.Report.SS58Prefix,
		},
	}, modules.NewService(reader), attest.NewVerifier(cfg.API.Context), store)

	if err := server.Start(); err != nil {
		return fmt.Errorf("start api:\n%w", err)
	}

	logger.Info("starting telemetry api",
		"addr", server.Addr(),
		"node", cfg.Node.Endpoint,
		"snapshots", cfg.Snapshot.Dir,
	)

	<-ctx.Done()
	logger.Info("shutting down")

	return server.Stop(context.Background())
}

// parseFlags loads the config file, then applies command-line overrides.
func parseFlags(args []string) (*config.Config, error) {
	fs := flag.NewFlagSet("telemetryd", flag.ContinueOnError)

	configPath := fs.String("config", "", "TOML configuration file")
	addr := fs.String("addr", "", "HTTP listen address")
	node := fs.String("node", "", "ledger node endpoint (http://, https:// or quic://)")
	dir := fs.String("dir", "", "snapshot directory")
	signingCtx := fs.String("context", "", "sr25519 signing context")
	level := fs.String("log-level", "", "log level: debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}

	for target, value := range map[*string]string{
		&cfg.API.Addr:      *addr,
		&cfg.Node.Endpoint: *node,
		&cfg.Snapshot.Dir:  *dir,
		&cfg.API.Context:   *signingCtx,
		&cfg.Log.Level:     *level,
	} {
		if value != "" {
			*target = value
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
