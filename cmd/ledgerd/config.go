package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"flag"
	"fmt"
	"os"

	"ChainSnap/internal/config"
)

// Config holds the ledger node configuration.
type Config struct {
	// DataPath is the directory for persistent storage.
	DataPath string

	// HTTPAddress is the JSON-RPC listen address.
	HTTPAddress string

	// QUICAddress is the QUIC listen address.
	QUICAddress string

	// GenesisPath is the genesis file applied to a fresh state; empty uses the dev fixture.
	GenesisPath string

	// KeyPath is the path to the Ed25519 private key file.
	KeyPath string

	// Retain is the number of past state roots kept readable.
	Retain int

	// PrivateKey is the node's Ed25519 identity key.
	PrivateKey ed25519.PrivateKey

	// File is the loaded configuration file, for logging settings.
	File *config.Config
}

// parseFlags loads the config file, then applies command-line overrides.
func parseFlags(args []string) (*Config, error) {
	fs := flag.NewFlagSet("ledgerd", flag.ContinueOnError)

	configPath := fs.String("config", "", "TOML configuration file")
	data := fs.String("data", "", "Data directory path")
	httpAddr := fs.String("http", "", "JSON-RPC HTTP address")
	quicAddr := fs.String("quic", "", "QUIC address")
	genesis := fs.String("genesis", "", "Genesis JSON file (dev fixture if unset)")
	key := fs.String("key", "", "Ed25519 private key path (generates new if missing)")
	retain := fs.Int("retain", 0, "Number of past state roots kept readable")
	level := fs.String("log-level", "", "Log level: debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	file, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}

	if *level != "" {
		file.Log.Level = *level
	}

	cfg := &Config{
		DataPath:    override(*data, file.Ledgerd.Data),
		HTTPAddress: override(*httpAddr, file.Ledgerd.HTTP),
		QUICAddress: override(*quicAddr, file.Ledgerd.QUIC),
		GenesisPath: override(*genesis, file.Ledgerd.Genesis),
		KeyPath:     override(*key, file.Ledgerd.Key),
		Retain:      file.Ledgerd.Retain,
		File:        file,
	}

	if *retain > 0 {
		cfg.Retain = *retain
	}

	return cfg, nil
}

// override returns set when non-empty, else fallback.
func override(set, fallback string) string {
	if set != "" {
		return set
	}

	return fallback
}

// loadOrGenerateKey loads the private key from file or generates a new one.
func loadOrGenerateKey(keyPath string) (ed25519.PrivateKey, error) {
	if keyPath == "" {
		return generateNewKey()
	}

	data, err := os.ReadFile(keyPath)
	if os.IsNotExist(err) {
		return generateAndSaveKey(keyPath)
	}

	if err != nil {
		return nil, fmt.Errorf("read key file:\n%w", err)
	}

	if len(data) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid key size: got %d, want %d", len(data), ed25519.PrivateKeySize)
	}

	return ed25519.PrivateKey(data), nil
}

// generateNewKey creates a new Ed25519 private key.
func generateNewKey() (ed25519.PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key:\n%w", err)
	}

	return priv, nil
}

// generateAndSaveKey creates a new key and saves it to the given path.
func generateAndSaveKey(path string) (ed25519.PrivateKey, error) {
	priv, err := generateNewKey()
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(path, priv, 0600); err != nil {
		return nil, fmt.Errorf("save key to %s:\n%w", path, err)
	}

	return priv, nil
}
