package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/klinik_test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("Port = %q, want 8000", cfg.Port)
	}
	if !cfg.IsDev() {
		t.Error("expected development mode by default")
	}
	if cfg.RecordLockAfter != 24*time.Hour {
		t.Errorf("RecordLockAfter = %s, want 24h", cfg.RecordLockAfter)
	}
	if cfg.SweepInterval != 15*time.Minute {
		t.Errorf("SweepInterval = %s, want 15m", cfg.SweepInterval)
	}
	if cfg.DBMaxConns != 20 || cfg.DBMinConns != 5 {
		t.Errorf("pool sizes = %d/%d, want 20/5", cfg.DBMaxConns, cfg.DBMinConns)
	}
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is unset")
	}
}

func TestValidate_ProductionNeedsSecret(t *testing.T) {
	cfg := &Config{
		Env:             "production",
		SweepInterval:   time.Minute,
		RecordLockAfter: 24 * time.Hour,
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for production without JWT_SECRET")
	}

	cfg.JWTSecret = "s3cret"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_SweepSettings(t *testing.T) {
	cfg := &Config{Env: "development", SweepInterval: 0, RecordLockAfter: 24 * time.Hour}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for non-positive SWEEP_INTERVAL")
	}
	cfg = &Config{Env: "development", SweepInterval: time.Minute, RecordLockAfter: -time.Hour}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for non-positive RECORD_LOCK_AFTER")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/klinik_test")
	t.Setenv("PORT", "9090")
	t.Setenv("RECORD_LOCK_AFTER", "48h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.RecordLockAfter != 48*time.Hour {
		t.Errorf("RecordLockAfter = %s, want 48h", cfg.RecordLockAfter)
	}
}
