package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ChainSnap/internal/amount"
)

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Node.PageSize != 512 || cfg.Report.Top != 10 || cfg.Report.Decimals != 9 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}

	if cfg.Threshold().Cmp(amount.FromUint64(500)) != 0 {
		t.Errorf("threshold = %s, want 500", cfg.Threshold())
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chainsnap.toml")
	text := `
[node]
endpoint = "quic://127.0.0.1:9944"
page_size = 64
timeout = "5s"

[snapshot]
dir = "/var/lib/chainsnap"

[report]
existential_deposit = "1000000"
top = 3

[log]
level = "debug"
`
	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Node.Endpoint != "quic://127.0.0.1:9944" || cfg.Node.PageSize != 64 {
		t.Errorf("node = %+v", cfg.Node)
	}

	if cfg.Node.Timeout != 5*time.Second {
		t.Errorf("timeout = %s, want 5s", cfg.Node.Timeout)
	}

	if cfg.Node.Prefetch != 1 {
		t.Errorf("unset prefetch = %d, want default 1", cfg.Node.Prefetch)
	}

	if cfg.Report.Top != 3 || cfg.Report.Decimals != 9 {
		t.Errorf("report = %+v", cfg.Report)
	}

	if cfg.LoggerOptions().Level != "debug" {
		t.Errorf("log level = %q", cfg.LoggerOptions().Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse("[node]\nendpoint = \"http://x\"\npagesize = 3\n")
	if err == nil || !strings.Contains(err.Error(), "node.pagesize") {
		t.Fatalf("err = %v, want unknown key node.pagesize", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad endpoint", func(c *Config) { c.Node.Endpoint = "ws://node" }, "node.endpoint"},
		{"zero page size", func(c *Config) { c.Node.PageSize = 0 }, "node.page_size"},
		{"negative timeout", func(c *Config) { c.Node.Timeout = -time.Second }, "node.timeout"},
		{"bad deposit", func(c *Config) { c.Report.ExistentialDeposit = "1.5" }, "existential_deposit"},
		{"decimals", func(c *Config) { c.Report.Decimals = 40 }, "report.decimals"},
		{"prefix", func(c *Config) { c.Report.SS58Prefix = 20000 }, "ss58_prefix"},
		{"retain", func(c *Config) { c.Ledgerd.Retain = 0 }, "ledgerd.retain"},
		{"level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}
