package logger

import (
	"bytes"
	"log/slog"
	"regexp"
	"strings"
	"testing"
)

// TestHandlerFormat tests the line layout.
func TestHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, slog.LevelDebug))

	log.Info("fetched page", "namespace", "System.Account", "entries", 3)

	line := buf.String()
	pattern := regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3} \[INF\] fetched page namespace=System.Account entries=3\n$`)

	if !pattern.MatchString(line) {
		t.Fatalf("line = %q", line)
	}
}

// TestHandlerLevelFilter tests that records below the minimum are dropped.
func TestHandlerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, slog.LevelWarn))

	log.Info("hidden")
	log.Debug("hidden")
	log.Warn("shown")

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "[WRN] shown") {
		t.Fatalf("output = %q", buf.String())
	}
}

// TestHandlerWithAttrsAndGroup tests attributes carried on derived loggers.
func TestHandlerWithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, slog.LevelInfo)).With("component", "reader").WithGroup("page")

	log.Info("done", "size", 10)

	if !strings.Contains(buf.String(), " component=reader page.size=10") {
		t.Fatalf("output = %q", buf.String())
	}
}

// TestParseLevel tests level names.
func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
	}

	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}

	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

// TestConfigureReplacesLogger tests that each Configure call takes effect.
func TestConfigureReplacesLogger(t *testing.T) {
	t.Cleanup(func() { Configure(Options{}) })

	var quiet, verbose bytes.Buffer

	Configure(Options{Level: "error", Output: &quiet})
	Info("first run")

	Configure(Options{Level: "debug", Output: &verbose})
	Debug("second run")

	if quiet.Len() != 0 {
		t.Errorf("error-level logger wrote %q", quiet.String())
	}

	if !strings.Contains(verbose.String(), "[DBG] second run") {
		t.Errorf("debug logger output = %q", verbose.String())
	}
}
