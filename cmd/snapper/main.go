// Command snapper takes balance snapshots of a ledger and reports on them.
//
// Usage:
//
//	snapper [-config file] [-node url] [-dir path] [-log-level level] <command> [flags]
//
// Commands:
//
//	snap       fetch then aggregate; -r prints the report
//	fetch      save the account and stake snapshots
//	aggregate  compute total balances from saved snapshots; -r prints the report
//	report     print the report of saved total balances
//	archive    bundle the snapshots into one compressed file
//	restore    unpack an archive into the snapshot directory
//	verify     check a signed usage attestation
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"ChainSnap/internal/config"
	"ChainSnap/internal/logger"
)

// command is one subcommand.
type command struct {
	summary string
	run     func(ctx context.Context, env *env, args []string) error
}

var commands = map[string]command{
	"snap":      {"fetch then aggregate; -r prints the report", cmdSnap},
	"fetch":     {"save the account and stake snapshots", cmdFetch},
	"aggregate": {"compute total balances from saved snapshots", cmdAggregate},
	"report":    {"print the report of saved total balances", cmdReport},
	"archive":   {"bundle the snapshots into one compressed file", cmdArchive},
	"restore":   {"unpack an archive into the snapshot directory", cmdRestore},
	"verify":    {"check a signed usage attestation", cmdVerify},
}

// env is the state shared by subcommands.
type env struct {
	cfg    *config.Config
	stdout io.Writer
	stderr io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// run parses the global flags and dispatches to a subcommand.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("snapper", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { usage(fs) }

	configPath := fs.String("config", "", "TOML configuration file")
	node := fs.String("node", "", "ledger node endpoint (http://, https:// or quic://)")
	dir := fs.String("dir", "", "snapshot directory")
	level := fs.String("log-level", "", "log level: debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	if *node != "" {
		cfg.Node.Endpoint = *node
	}
	if *dir != "" {
		cfg.Snapshot.Dir = *dir
	}
	if *level != "" {
		cfg.Log.Level = *level
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	opts := cfg.LoggerOptions()
	opts.Output = stderr
	logger.Configure(opts)

	if fs.NArg() == 0 {
		usage(fs)
		return errors.New("missing command")
	}

	name := fs.Arg(0)

	cmd, ok := commands[name]
	if !ok {
		usage(fs)
		return fmt.Errorf("unknown command %q", name)
	}

	if err := cmd.run(ctx, &env{cfg: cfg, stdout: stdout, stderr: stderr}, fs.Args()[1:]); err != nil {
		return fmt.Errorf("%s:\n%w", name, err)
	}

	return nil
}

// usage prints the global flags and the command list.
func usage(fs *flag.FlagSet) {
	out := fs.Output()

	fmt.Fprintln(out, "usage: snapper [flags] <command> [command flags]")
	fmt.Fprintln(out, "\nflags:")
	fs.PrintDefaults()
	fmt.Fprintln(out, "\ncommands:")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintf(out, "  %-10s %s\n", name, commands[name].summary)
	}
}
