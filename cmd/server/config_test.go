package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.HTTPAddress != ":8080" {
		t.Errorf("http address = %q", cfg.Server.HTTPAddress)
	}
	if cfg.Server.MetricsAddress != ":9090" {
		t.Errorf("metrics address = %q", cfg.Server.MetricsAddress)
	}
	if cfg.Server.RateLimitPerIP != 300 {
		t.Errorf("rate limit = %d", cfg.Server.RateLimitPerIP)
	}
	if cfg.Server.StreamMaxDuration != 30*time.Minute {
		t.Errorf("stream max duration = %v", cfg.Server.StreamMaxDuration)
	}
	if cfg.Database.Path != "data/buildpulse.db" {
		t.Errorf("database path = %q", cfg.Database.Path)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	yaml := `
server:
  http_address: ":9000"
  rate_limit_per_ip: 100
database:
  path: /var/lib/buildpulse/data.db
rules:
  file: configs/rules.yaml
smtp:
  host: smtp.example.com
  from: ci@example.com
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Server.HTTPAddress != ":9000" {
		t.Errorf("http address = %q", cfg.Server.HTTPAddress)
	}
	if cfg.Server.RateLimitPerIP != 100 {
		t.Errorf("rate limit = %d", cfg.Server.RateLimitPerIP)
	}
	// Unset fields take defaults.
	if cfg.Server.MetricsAddress != ":9090" {
		t.Errorf("metrics address = %q, want default", cfg.Server.MetricsAddress)
	}
	if cfg.Rules.File != "configs/rules.yaml" {
		t.Errorf("rules file = %q", cfg.Rules.File)
	}
	// SMTP port defaults to 587 once a host is set.
	if cfg.SMTP.Port != 587 {
		t.Errorf("smtp port = %d, want 587 default", cfg.SMTP.Port)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig("/does/not/exist.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestConfigValidate_RejectsNegativeRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.RateLimitPerIP = -1

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for negative rate limit")
	}
}

func TestConfigValidate_RejectsSMTPWithoutFrom(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SMTP.Host = "smtp.example.com"
	cfg.SMTP.Port = 587

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error when smtp.from is missing")
	}
}

func TestConfigValidate_RejectsInvalidSMTPPort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SMTP.Host = "smtp.example.com"
	cfg.SMTP.Port = 70000
	cfg.SMTP.From = "ci@example.com"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for out-of-range smtp port")
	}
}
