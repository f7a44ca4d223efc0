package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	data := `
server:
  address: 127.0.0.1
  port: 9090
  db_path: /tmp/explora-db
security:
  rate_limit:
    rps: 25
    burst: 50
  api_keys:
    backend: [bk1, bk2]
archive:
  enabled: true
  cron: "0 3 * * *"
  idle_period: 72h
validation:
  max_content_bytes: 64KB
  roles: [user, assistant, system]
`
	if err := os.WriteFile(p, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr() != "127.0.0.1:9090" {
		t.Fatalf("Addr = %s", cfg.Addr())
	}
	if cfg.Server.DBPath != "/tmp/explora-db" {
		t.Fatalf("DBPath = %s", cfg.Server.DBPath)
	}
	if len(cfg.Security.APIKeys.Backend) != 2 {
		t.Fatalf("backend keys = %v", cfg.Security.APIKeys.Backend)
	}
	if cfg.Archive.IdlePeriod.Duration() != 72*time.Hour {
		t.Fatalf("idle_period = %v", cfg.Archive.IdlePeriod.Duration())
	}
	if cfg.Validation.MaxContentBytes.Int64() != 64*1000 {
		t.Fatalf("max_content_bytes = %d", cfg.Validation.MaxContentBytes.Int64())
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("EXPLORA_ADDR", "0.0.0.0:7070")
	t.Setenv("EXPLORA_DB_PATH", "/data/explora")
	t.Setenv("EXPLORA_API_BACKEND_KEYS", "k1, k2 ,")
	t.Setenv("EXPLORA_RATE_RPS", "12.5")
	var cfg Config
	if !LoadEnvOverrides(&cfg) {
		t.Fatal("env overrides not detected")
	}
	if cfg.Addr() != "0.0.0.0:7070" {
		t.Fatalf("Addr = %s", cfg.Addr())
	}
	if cfg.Server.DBPath != "/data/explora" {
		t.Fatalf("DBPath = %s", cfg.Server.DBPath)
	}
	if len(cfg.Security.APIKeys.Backend) != 2 {
		t.Fatalf("backend keys = %v", cfg.Security.APIKeys.Backend)
	}
	if cfg.Security.RateLimit.RPS != 12.5 {
		t.Fatalf("rps = %v", cfg.Security.RateLimit.RPS)
	}
}

func TestDurationNumericSeconds(t *testing.T) {
	var d Duration
	if err := yaml.Unmarshal([]byte("30"), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Duration() != 30*time.Second {
		t.Fatalf("duration = %v", d.Duration())
	}
}

func TestSizeBytesPlainInt(t *testing.T) {
	var s SizeBytes
	if err := yaml.Unmarshal([]byte("4096"), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s.Int64() != 4096 {
		t.Fatalf("size = %d", s.Int64())
	}
}

func TestLoadEffectiveFlagPrecedence(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte("server:\n  port: 9999\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	eff := LoadEffective(p, ":6060", "/flagdb", map[string]bool{"addr": true, "db": true})
	if eff.Addr != ":6060" {
		t.Fatalf("Addr = %s", eff.Addr)
	}
	if eff.DBPath != "/flagdb" {
		t.Fatalf("DBPath = %s", eff.DBPath)
	}
	if eff.Source != "flags" {
		t.Fatalf("Source = %s", eff.Source)
	}
}
