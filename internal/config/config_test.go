package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
server:
  port: 9090
database:
  driver: sqlite
  url: ":memory:"
delivery:
  reply_domain: requests.example.org
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("driver = %q", cfg.Database.Driver)
	}
	if cfg.Files.RootDir != "./files" {
		t.Errorf("files root = %q", cfg.Files.RootDir)
	}
	if cfg.Lifecycle.ResponseDays != 20 || cfg.Lifecycle.EmbargoGraceDays != 30 {
		t.Errorf("lifecycle defaults = %+v", cfg.Lifecycle)
	}
	if cfg.Auth.TokenTTL != 12*time.Hour {
		t.Errorf("token ttl = %v", cfg.Auth.TokenTTL)
	}
	if cfg.Delivery.ReplyPrefix != "requests" {
		t.Errorf("reply prefix = %q", cfg.Delivery.ReplyPrefix)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("RECORDSDESK_CONFIG", "/etc/recordsdesk.yaml")
	t.Setenv("RECORDSDESK_PORT", "7000")
	t.Setenv("RECORDSDESK_DATABASE_URL", "postgres://db/records")
	t.Setenv("RECORDSDESK_JWT_SECRET", "s3cret")

	v := NewEnv()
	if got := ConfigPath(v); got != "/etc/recordsdesk.yaml" {
		t.Errorf("config path = %q", got)
	}

	cfg := &Config{}
	cfg.Database.DSN = "from-file"
	cfg.Delivery.WebhookToken = "keep"
	cfg.ApplyEnv(v)

	if cfg.Server.Port != 7000 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Database.DSN != "postgres://db/records" {
		t.Errorf("dsn = %q", cfg.Database.DSN)
	}
	if cfg.Auth.JWTSecret != "s3cret" {
		t.Errorf("jwt secret = %q", cfg.Auth.JWTSecret)
	}
	if cfg.Delivery.WebhookToken != "keep" {
		t.Errorf("unset variable overwrote webhook token: %q", cfg.Delivery.WebhookToken)
	}
}

func TestConfigPathDefault(t *testing.T) {
	t.Setenv("RECORDSDESK_CONFIG", "")
	if got := ConfigPath(NewEnv()); got != DefaultPath {
		t.Errorf("config path = %q, want %q", got, DefaultPath)
	}
}
