package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestParseYAML(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
telegram:
  token: "abc"
  poll_timeout: "10s"
logging:
  level: "DEBUG"
  console: true
catalog:
  cache_ttl: "45m"
tracker:
  mode: "broadcast"
poll:
  enabled: true
  interval: "7m"
throttle:
  cooldown: "90m"
storage:
  driver: "file"
  path: "./state.json"
`)

	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Telegram.Token != "abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Tracker.Mode != "broadcast" {
		t.Fatalf("mode = %q", cfg.Tracker.Mode)
	}
	if !cfg.Poll.Enabled || cfg.Poll.Interval != "7m" {
		t.Fatalf("poll = %+v", cfg.Poll)
	}

	d, err := ParseDurationField("throttle.cooldown", cfg.Throttle.Cooldown)
	if err != nil || d != 90*time.Minute {
		t.Fatalf("cooldown = %v, %v", d, err)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
telegram:
  token: "abc"
  tocken_typo: "oops"
storage:
  driver: "file"
  path: "./state.json"
`)

	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseJSONPassthrough(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{
  "telegram": {"token": "abc"},
  "storage": {"driver": "sqlite", "path": "./x.db"}
}`)

	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Fatalf("driver = %q", cfg.Storage.Driver)
	}
}

func TestEnvTokenOverride(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
telegram:
  token: "from-file"
storage:
  driver: "file"
  path: "./state.json"
`)

	t.Setenv(envToken, "from-env")
	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Telegram.Token != "from-env" {
		t.Fatalf("token = %q, want env override", cfg.Telegram.Token)
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty: %v, %v", d, err)
	}
	if _, err := ParseDurationField("x", "banana"); err == nil {
		t.Fatal("expected error for invalid duration")
	}
	if _, err := ParseDurationField("x", "-5m"); err == nil {
		t.Fatal("expected error for negative duration")
	}
	if d, err := ParseDurationOrDefault("x", "", time.Minute); err != nil || d != time.Minute {
		t.Fatalf("default: %v, %v", d, err)
	}
}
