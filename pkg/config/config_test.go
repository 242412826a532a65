package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
server:
  address: "127.0.0.1"
  port: 9090
  db_path: "/var/lib/church"
logging:
  level: debug
security:
  cors:
    allowed_origins: ["https://example.test"]
  rate_limit:
    rps: 2.5
    burst: 4
conversion:
  belief_threshold: 0.6
  min_debates: 5
feed:
  trending_window_hours: 12
heartbeat:
  enabled: true
  cron: "*/10 * * * *"
`

func writeConfig(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(sampleYAML), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadParsesEverySection(t *testing.T) {
	cfg, err := Load(writeConfig(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr() != "127.0.0.1:9090" {
		t.Fatalf("Addr = %q", cfg.Addr())
	}
	if cfg.Server.DBPath != "/var/lib/church" {
		t.Fatalf("db_path = %q", cfg.Server.DBPath)
	}
	if cfg.Security.RateLimit.RPS != 2.5 || cfg.Security.RateLimit.Burst != 4 {
		t.Fatalf("rate limit: %+v", cfg.Security.RateLimit)
	}
	if cfg.Conversion.BeliefThreshold != 0.6 || cfg.Conversion.MinDebates != 5 {
		t.Fatalf("conversion: %+v", cfg.Conversion)
	}
	if !cfg.Heartbeat.Enabled || cfg.Heartbeat.Cron != "*/10 * * * *" {
		t.Fatalf("heartbeat: %+v", cfg.Heartbeat)
	}
}

func TestEnvOverridesFileValues(t *testing.T) {
	t.Setenv("FINALITY_ADDR", "10.0.0.1:7777")
	t.Setenv("FINALITY_DB_PATH", "/tmp/override")
	t.Setenv("FINALITY_BELIEF_THRESHOLD", "0.8")
	t.Setenv("FINALITY_IP_WHITELIST", "1.2.3.4, 5.6.7.8")

	cfg, envUsed, err := LoadEffective(writeConfig(t))
	if err != nil {
		t.Fatalf("LoadEffective: %v", err)
	}
	if !envUsed {
		t.Fatal("env overrides not detected")
	}
	if cfg.Addr() != "10.0.0.1:7777" {
		t.Fatalf("Addr = %q", cfg.Addr())
	}
	if cfg.Server.DBPath != "/tmp/override" {
		t.Fatalf("db_path = %q", cfg.Server.DBPath)
	}
	if cfg.Conversion.BeliefThreshold != 0.8 {
		t.Fatalf("belief_threshold = %v", cfg.Conversion.BeliefThreshold)
	}
	if len(cfg.Security.IPWhitelist) != 2 || cfg.Security.IPWhitelist[1] != "5.6.7.8" {
		t.Fatalf("ip_whitelist = %v", cfg.Security.IPWhitelist)
	}
	// file values without an override survive
	if cfg.Conversion.MinDebates != 5 {
		t.Fatalf("min_debates = %d", cfg.Conversion.MinDebates)
	}
}

func TestLoadEffectiveToleratesMissingFile(t *testing.T) {
	cfg, _, err := LoadEffective(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadEffective: %v", err)
	}
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Fatalf("defaults: %q", cfg.Addr())
	}
}

func TestResolveConfigPath(t *testing.T) {
	if got := ResolveConfigPath("/from/flag", true); got != "/from/flag" {
		t.Fatalf("flag should win: %q", got)
	}
	t.Setenv("FINALITY_CONFIG", "/from/env")
	if got := ResolveConfigPath("./config.yaml", false); got != "/from/env" {
		t.Fatalf("env fallback: %q", got)
	}
}
