package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Feed.URL != "ws://localhost:9001/ws" {
		t.Errorf("feed url = %q", cfg.Feed.URL)
	}
	if len(cfg.Engine.Granularities) != 3 || cfg.Engine.Granularities[0] != 60 {
		t.Errorf("granularities = %v", cfg.Engine.Granularities)
	}
	if cfg.Engine.PrimaryGranularity != 60 {
		t.Errorf("primary = %d", cfg.Engine.PrimaryGranularity)
	}
	if cfg.Engine.HistorySize != 900 {
		t.Errorf("history = %d", cfg.Engine.HistorySize)
	}
	if cfg.Alerts.MinConfidence != 0.8 {
		t.Errorf("min confidence = %v", cfg.Alerts.MinConfidence)
	}
	if cfg.Alerts.SweepCron != "@every 30s" {
		t.Errorf("sweep cron = %q", cfg.Alerts.SweepCron)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_YAMLAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
feed:
  url: ws://feed.internal:9001/ws
engine:
  symbols: [EURUSD, GBPUSD]
  granularities: [60, 300]
  history_size: 500
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("REDIS_ADDR", "redis.internal:6379")
	t.Setenv("SYMBOLS", "XAUUSD")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Feed.URL != "ws://feed.internal:9001/ws" {
		t.Errorf("feed url = %q", cfg.Feed.URL)
	}
	if cfg.Engine.HistorySize != 500 {
		t.Errorf("history = %d", cfg.Engine.HistorySize)
	}
	// Env beats YAML
	if len(cfg.Engine.Symbols) != 1 || cfg.Engine.Symbols[0] != "XAUUSD" {
		t.Errorf("symbols = %v", cfg.Engine.Symbols)
	}
	if cfg.Redis.Addr != "redis.internal:6379" {
		t.Errorf("redis addr = %q", cfg.Redis.Addr)
	}
}

func TestValidate(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}

	cfg.Engine.PrimaryGranularity = 999
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for primary granularity not in list")
	}

	cfg, _ = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	cfg.Alerts.MinConfidence = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for out-of-range confidence")
	}
}
