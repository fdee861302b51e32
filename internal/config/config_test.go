package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"retrovue/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Runtime.FallbackMode != config.FallbackGuide {
		t.Fatalf("fallback mode = %q, want %q", cfg.Runtime.FallbackMode, config.FallbackGuide)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if cfg.Horizons.PlaylogHours != 2 || cfg.Horizons.EPGDays != 2 {
		t.Fatalf("unexpected horizon defaults: %+v", cfg.Horizons)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := strings.Join([]string{
		"[paths]",
		`data_dir = "` + filepath.Join(dir, "data") + `"`,
		`log_dir = "` + filepath.Join(dir, "logs") + `"`,
		"[horizons]",
		"playlog_hours = 4",
		"[runtime]",
		`fallback_mode = "SLATE"`,
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if cfg.Horizons.PlaylogHours != 4 {
		t.Fatalf("playlog_hours = %d", cfg.Horizons.PlaylogHours)
	}
	if cfg.Runtime.FallbackMode != config.FallbackSlate {
		t.Fatalf("fallback_mode = %q", cfg.Runtime.FallbackMode)
	}
	if cfg.Paths.SocketPath != filepath.Join(cfg.Paths.DataDir, "retrovued.sock") {
		t.Fatalf("socket path = %q", cfg.Paths.SocketPath)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero playlog", func(c *config.Config) { c.Horizons.PlaylogHours = 0 }},
		{"zero epg", func(c *config.Config) { c.Horizons.EPGDays = 0 }},
		{"bad fallback", func(c *config.Config) { c.Runtime.FallbackMode = "panic" }},
		{"zero start timeout", func(c *config.Config) { c.Runtime.StartTimeoutSeconds = 0 }},
		{"zero crash limit", func(c *config.Config) { c.Runtime.MaxRapidCrashes = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			if err := cfg.Validate(); err != nil {
				t.Fatalf("baseline invalid: %v", err)
			}
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
