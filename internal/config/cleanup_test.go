package config

import (
	"testing"
	"time"
)

func TestLoadCleanupDefaults(t *testing.T) {
	cfg, err := LoadCleanup()
	if err != nil {
		t.Fatalf("LoadCleanup() error = %v", err)
	}
	if cfg.Interval != 30*time.Second {
		t.Fatalf("Interval = %v, want 30s", cfg.Interval)
	}
	if cfg.Channel != "realtime_cleanup" {
		t.Fatalf("Channel = %q, want realtime_cleanup", cfg.Channel)
	}
	if cfg.Listen {
		t.Fatal("Listen = true, want false")
	}
}

func TestLoadCleanupOverrides(t *testing.T) {
	t.Setenv("CLEANUP_INTERVAL", "2s")
	t.Setenv("CLEANUP_BATCH", "7")
	t.Setenv("CLEANUP_LISTEN", "true")

	cfg, err := LoadCleanup()
	if err != nil {
		t.Fatalf("LoadCleanup() error = %v", err)
	}
	if cfg.Interval != 2*time.Second || cfg.BatchSize != 7 || !cfg.Listen {
		t.Fatalf("unexpected cleanup config: %+v", cfg)
	}
}
