package main

import (
	"os"
	"path/filepath"
	"testing"

	"lucamon/config"
)

func TestLoadMonitorConfigFromEnvPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "monitor.yaml")
	body := []byte("poller:\n  endpoint: http://backend:8000\n  interval_seconds: 3\n")
	if err := os.WriteFile(path, body, 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(envConfigPath, path)
	t.Setenv(config.EnvEndpoint, "")

	cfg, source, err := loadMonitorConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if source != path {
		t.Fatalf("expected source %q, got %q", path, source)
	}
	if cfg.Poller.Endpoint != "http://backend:8000" || cfg.Poller.IntervalSec != 3 {
		t.Fatalf("unexpected poller config: %+v", cfg.Poller)
	}
}

func TestLoadMonitorConfigFallsBackToEnvEndpoint(t *testing.T) {
	t.Setenv(envConfigPath, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv(config.EnvEndpoint, "http://backend:9000")

	cfg, source, err := loadMonitorConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if source != "built-in defaults" {
		t.Fatalf("expected built-in defaults, got %q", source)
	}
	if cfg.Poller.Endpoint != "http://backend:9000" {
		t.Fatalf("unexpected endpoint %q", cfg.Poller.Endpoint)
	}
	if cfg.Poller.IntervalSec != 5 {
		t.Fatalf("expected default interval, got %d", cfg.Poller.IntervalSec)
	}
}

func TestLoadMonitorConfigErrorsWithoutEndpoint(t *testing.T) {
	t.Setenv(envConfigPath, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv(config.EnvEndpoint, "")

	if _, _, err := loadMonitorConfig(); err == nil {
		t.Fatalf("expected error when no config and no endpoint env")
	}
}
