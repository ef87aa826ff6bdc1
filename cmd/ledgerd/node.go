package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"ChainSnap/internal/chainstate"
	"ChainSnap/internal/logger"
	"ChainSnap/internal/network"
	"ChainSnap/internal/rpc"
	"ChainSnap/internal/storage"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 5 * time.Second

// Node is a running development ledger node.
type Node struct {
	cfg     *Config           // cfg is the node configuration
	storage *storage.Storage  // storage is the Pebble database
	state   *chainstate.State // state serves the ledger queries
	http    *http.Server      // http serves JSON-RPC
	quic    *network.Server   // quic serves the QUIC query protocol
}

// NewNode opens storage and the ledger state, seeding genesis on first start.
func NewNode(cfg *Config) (*Node, error) {
	n := &Node{cfg: cfg}

	if err := n.initStorage(); err != nil {
		return nil, err
	}

	if err := n.initState(); err != nil {
		n.Close()
		return nil, err
	}

	if err := n.initNetwork(); err != nil {
		n.Close()
		return nil, err
	}

	return n, nil
}

// initStorage initializes the Pebble storage.
func (n *Node) initStorage() error {
	if err := os.MkdirAll(n.cfg.DataPath, 0755); err != nil {
		return fmt.Errorf("create data directory:\n%w", err)
	}

	db, err := storage.New(filepath.Join(n.cfg.DataPath, "db"))
	if err != nil {
		return fmt.Errorf("init storage:\n%w", err)
	}

	n.storage = db

	return nil
}

// initState opens the ledger state and applies genesis when it is fresh.
func (n *Node) initState() error {
	st, err := chainstate.Open(n.storage, n.cfg.Retain)
	if err != nil {
		return fmt.Errorf("open state:\n%w", err)
	}

	n.state = st

	if !st.Fresh() {
		head, _ := st.Head(context.Background())
		logger.Info("state restored", "root", head)
		return nil
	}

	genesis := chainstate.DevGenesis()
	if n.cfg.GenesisPath != "" {
		if genesis, err = chainstate.LoadGenesis(n.cfg.GenesisPath); err != nil {
			return fmt.Errorf("load genesis:\n%w", err)
		}
	}

	root, err := st.Apply(genesis.Writes())
	if err != nil {
		return fmt.Errorf("apply genesis:\n%w", err)
	}

	logger.Info("genesis applied",
		"root", root,
		"accounts", len(genesis.Accounts),
		"stake", len(genesis.Stake),
		"modules", len(genesis.Modules),
	)

	return nil
}

// initNetwork creates the QUIC server.
func (n *Node) initNetwork() error {
	srv, err := network.NewServer(network.Config{
		PrivateKey: n.cfg.PrivateKey,
		ListenAddr: n.cfg.QUICAddress,
	}, n.state)
	if err != nil {
		return fmt.Errorf("init network:\n%w", err)
	}

	n.quic = srv

	return nil
}

// Run starts both servers and blocks until a shutdown signal.
func (n *Node) Run() error {
	if err := n.quic.Start(); err != nil {
		n.Close()
		return fmt.Errorf("start quic:\n%w", err)
	}

	logger.Info("quic server started", "addr", n.quic.Addr())

	ln, err := net.Listen("tcp", n.cfg.HTTPAddress)
	if err != nil {
		n.Close()
		return fmt.Errorf("listen http:\n%w", err)
	}

	n.http = &http.Server{
		Handler:           rpc.NewServer(n.state),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("json-rpc server started", "addr", ln.Addr().String())

		if err := n.http.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	return n.waitForShutdown()
}

// waitForShutdown blocks until SIGINT or SIGTERM and then closes the node.
func (n *Node) waitForShutdown() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	return n.Close()
}

// Close stops both servers concurrently, then closes state and storage.
func (n *Node) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var g errgroup.Group

	if n.http != nil {
		g.Go(func() error {
			return n.http.Shutdown(ctx)
		})
	}

	if n.quic != nil {
		g.Go(n.quic.Close)
	}

	err := g.Wait()

	if n.state != nil {
		n.state.Close()
	}

	if n.storage != nil {
		if cerr := n.storage.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}

	return err
}
