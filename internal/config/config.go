// Package config loads the TOML configuration shared by the binaries.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"ChainSnap/internal/amount"
	"ChainSnap/internal/attest"
	"ChainSnap/internal/identity"
	"ChainSnap/internal/logger"
)

// Config is the full configuration file.
type Config struct {
	Node     NodeConfig     `toml:"node"`
	Snapshot SnapshotConfig `toml:"snapshot"`
	Report   ReportConfig   `toml:"report"`
	API      APIConfig      `toml:"api"`
	Ledgerd  LedgerdConfig  `toml:"ledgerd"`
	Log      LogConfig      `toml:"log"`
}

// NodeConfig selects the ledger node the reader talks to.
type NodeConfig struct {
	Endpoint  string        `toml:"endpoint"`   // Endpoint is http(s):// for JSON-RPC or quic://host:port
	ServerKey string        `toml:"server_key"` // ServerKey pins the QUIC server's ed25519 key (hex)
	PageSize  int           `toml:"page_size"`  // PageSize is the entries requested per page
	Prefetch  int           `toml:"prefetch"`   // Prefetch is the pages buffered ahead of decoding
	Timeout   time.Duration `toml:"timeout"`    // Timeout bounds each remote call; 0 disables
}

// SnapshotConfig locates the snapshot files.
type SnapshotConfig struct {
	Dir string `toml:"dir"`
}

// ReportConfig controls the human-readable report.
type ReportConfig struct {
	ExistentialDeposit string `toml:"existential_deposit"` // ExistentialDeposit is the dust cutoff, base units
	Top                int    `toml:"top"`                 // Top is the ranking length
	Decimals           int    `toml:"decimals"`            // Decimals is the token's fixed-point scale
	SS58Prefix         uint16 `toml:"ss58_prefix"`         // SS58Prefix renders addresses
}

// APIConfig configures the public HTTP API.
type APIConfig struct {
	Addr    string `toml:"addr"`
	Context string `toml:"context"` // Context is the sr25519 signing context
}

// LedgerdConfig configures the development ledger node.
type LedgerdConfig struct {
	Data    string `toml:"data"`
	HTTP    string `toml:"http"`
	QUIC    string `toml:"quic"`
	Genesis string `toml:"genesis"`
	Key     string `toml:"key"`
	Retain  int    `toml:"retain"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Node: NodeConfig{
			Endpoint: "http://127.0.0.1:9933",
			PageSize: 512,
			Prefetch: 1,
		},
		Snapshot: SnapshotConfig{Dir: "."},
		Report: ReportConfig{
			ExistentialDeposit: "500",
			Top:                10,
			Decimals:           9,
			SS58Prefix:         identity.DefaultPrefix,
		},
		API: APIConfig{
			Addr:    ":3000",
			Context: attest.DefaultContext,
		},
		Ledgerd: LedgerdConfig{
			Data:   "./ledger-data",
			HTTP:   ":9933",
			QUIC:   ":9944",
			Retain: 16,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s:\n%w", path, err)
	}

	if err := cfg.decode(string(data)); err != nil {
		return nil, fmt.Errorf("config %s:\n%w", path, err)
	}

	return cfg, nil
}

// Parse decodes TOML text over the defaults.
func Parse(text string) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(text); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) decode(text string) error {
	meta, err := toml.Decode(text, c)
	if err != nil {
		return fmt.Errorf("decode toml:\n%w", err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}

	return c.Validate()
}

// Validate checks ranges and addresses.
func (c *Config) Validate() error {
	var errs []error

	if _, err := url.Parse(c.Node.Endpoint); err != nil || !knownScheme(c.Node.Endpoint) {
		errs = append(errs, fmt.Errorf("node.endpoint %q: want http://, https:// or quic://", c.Node.Endpoint))
	}

	if c.Node.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("node.page_size must be positive, got %d", c.Node.PageSize))
	}

	if c.Node.Prefetch <= 0 {
		errs = append(errs, fmt.Errorf("node.prefetch must be positive, got %d", c.Node.Prefetch))
	}

	if c.Node.Timeout < 0 {
		errs = append(errs, fmt.Errorf("node.timeout must not be negative, got %s", c.Node.Timeout))
	}

	if c.Snapshot.Dir == "" {
		errs = append(errs, errors.New("snapshot.dir must be set"))
	}

	if _, err := amount.Parse(c.Report.ExistentialDeposit); err != nil {
		errs = append(errs, fmt.Errorf("report.existential_deposit: %w", err))
	}

	if c.Report.Top < 0 {
		errs = append(errs, fmt.Errorf("report.top must not be negative, got %d", c.Report.Top))
	}

	if c.Report.Decimals < 0 || c.Report.Decimals > 38 {
		errs = append(errs, fmt.Errorf("report.decimals must be in [0, 38], got %d", c.Report.Decimals))
	}

	if c.Report.SS58Prefix > 16383 {
		errs = append(errs, fmt.Errorf("report.ss58_prefix must be at most 16383, got %d", c.Report.SS58Prefix))
	}

	if c.Ledgerd.Retain <= 0 {
		errs = append(errs, fmt.Errorf("ledgerd.retain must be positive, got %d", c.Ledgerd.Retain))
	}

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	return errors.Join(errs...)
}

// Threshold returns the parsed existential deposit.
func (c *Config) Threshold() amount.Amount {
	a, err := amount.Parse(c.Report.ExistentialDeposit)
	if err != nil {
		return amount.Zero()
	}

	return a
}

// LoggerOptions maps the log section onto logger options.
func (c *Config) LoggerOptions() logger.Options {
	return logger.Options{
		Level:      c.Log.Level,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
	}
}

func knownScheme(endpoint string) bool {
	for _, scheme := range []string{"http://", "https://", "quic://"} {
		if strings.HasPrefix(endpoint, scheme) {
			return true
		}
	}

	return false
}
