package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}
	if cfg.Engine.EvaluateTimeout != 3*time.Second {
		t.Fatalf("unexpected evaluate timeout: %v", cfg.Engine.EvaluateTimeout)
	}
	if cfg.Engine.RestrictedMinLevel != 5 || cfg.Engine.HighSecurityMinLevel != 8 {
		t.Fatalf("unexpected tier thresholds: %d/%d", cfg.Engine.RestrictedMinLevel, cfg.Engine.HighSecurityMinLevel)
	}
	if cfg.Devices.MaxAttempts != 3 {
		t.Fatalf("unexpected device attempts: %d", cfg.Devices.MaxAttempts)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ZONEGATE_SERVER_ADDR", ":9090")
	t.Setenv("ZONEGATE_DATABASE_DSN", "postgres://example/zonegate")
	t.Setenv("ZONEGATE_AUTH_PUBLIC_KEY_DATA", "-----BEGIN PUBLIC KEY-----")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Fatalf("env override ignored: %s", cfg.Server.Addr)
	}
	if cfg.Database.DSN != "postgres://example/zonegate" {
		t.Fatalf("env override ignored: %s", cfg.Database.DSN)
	}
	if string(cfg.Auth.PublicKey) != "-----BEGIN PUBLIC KEY-----" {
		t.Fatalf("key material not loaded from env")
	}
}
