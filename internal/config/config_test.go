package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"aemo-price-feed/internal/nem"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults failed: %v", err)
	}

	if cfg.App.Name != "nemwatch" {
		t.Fatalf("unexpected app name %q", cfg.App.Name)
	}
	if len(cfg.Regions) != 1 || cfg.Regions[0] != "NSW1" {
		t.Fatalf("unexpected default regions %v", cfg.Regions)
	}
	if cfg.Products.Realtime.Interval != 5*time.Second {
		t.Fatalf("unexpected realtime interval %s", cfg.Products.Realtime.Interval)
	}
	if cfg.Products.Predispatch.Interval != 5*time.Minute {
		t.Fatalf("unexpected predispatch interval %s", cfg.Products.Predispatch.Interval)
	}
	if cfg.Feed.BaseURL != "https://nemweb.com.au" {
		t.Fatalf("unexpected base url %q", cfg.Feed.BaseURL)
	}
	if cfg.Engine.FailureThreshold != 3 {
		t.Fatalf("unexpected failure threshold %d", cfg.Engine.FailureThreshold)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte(`regions:
  - VIC1
  - SA1
products:
  realtime:
    interval: 2s
metrics:
  enabled: true
  listen: ":9100"
`)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	regions, err := cfg.ParsedRegions()
	if err != nil {
		t.Fatalf("parse regions: %v", err)
	}
	if len(regions) != 2 || regions[0] != nem.RegionVIC || regions[1] != nem.RegionSA {
		t.Fatalf("unexpected regions %v", regions)
	}
	if cfg.Products.Realtime.Interval != 2*time.Second {
		t.Fatalf("file override lost, got %s", cfg.Products.Realtime.Interval)
	}
	if cfg.Products.FiveMinute.Interval != 30*time.Second {
		t.Fatalf("untouched defaults must survive, got %s", cfg.Products.FiveMinute.Interval)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Listen != ":9100" {
		t.Fatalf("metrics settings lost: %+v", cfg.Metrics)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("NEMWATCH_PRODUCTS_REALTIME_INTERVAL", "2s")
	t.Setenv("NEMWATCH_ENGINE_FAILURE_THRESHOLD", "5")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Products.Realtime.Interval != 2*time.Second {
		t.Fatalf("env override lost, got %s", cfg.Products.Realtime.Interval)
	}
	if cfg.Engine.FailureThreshold != 5 {
		t.Fatalf("env override lost, got %d", cfg.Engine.FailureThreshold)
	}
}

func TestLoadRejectsUnknownRegion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("regions:\n  - MARS1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("unknown region must fail validation")
	}
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	cfg.Regions = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty regions must fail validation")
	}

	cfg.Regions = []string{"NSW1"}
	cfg.Products.FiveMinute.Interval = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero interval must fail validation")
	}

	cfg.Products.FiveMinute.Interval = 30 * time.Second
	cfg.Metrics.Enabled = true
	cfg.Metrics.Listen = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("enabled metrics without a listen address must fail validation")
	}
}

func TestStaleWindowsFallBack(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	cfg.Products.Predispatch.StaleAfter = 0

	windows := cfg.StaleWindows()
	if windows[nem.ProductRealtime] != 15*time.Minute {
		t.Fatalf("unexpected realtime window %s", windows[nem.ProductRealtime])
	}
	if windows[nem.ProductPredispatch] != nem.ProductPredispatch.DefaultStaleAfter() {
		t.Fatalf("unset window must fall back to the product default, got %s", windows[nem.ProductPredispatch])
	}
}

func TestResolveMaxPoints(t *testing.T) {
	cfg := &Config{Export: ExportConfig{MaxDataPoints: 500}}
	if got := cfg.ResolveMaxPoints(0); got != 500 {
		t.Fatalf("expected config default, got %d", got)
	}
	if got := cfg.ResolveMaxPoints(42); got != 42 {
		t.Fatalf("expected override, got %d", got)
	}
}
