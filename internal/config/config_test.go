package config

import (
	"testing"
	"time"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("ADMIN_PASS", "")
	t.Setenv("OWNER_PASS", "")
	t.Setenv("SUPERVISOR_PASS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.AdminPass != "" || cfg.OwnerPass != "" || cfg.SupervisorPass != "" {
		t.Fatalf("expected no default passwords")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("RETAILER_CODE", "  ")
	t.Setenv("ACCESS_TOKEN_TTL", "0s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.RetailerCode != "2500552" {
		t.Fatalf("expected default retailer code, got %q", cfg.RetailerCode)
	}
	if cfg.AccessTokenTTL != 8*time.Hour {
		t.Fatalf("expected 8h token ttl, got %s", cfg.AccessTokenTTL)
	}
	if cfg.Address() != ":"+cfg.Port {
		t.Fatalf("unexpected address %q", cfg.Address())
	}
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	t.Setenv("PRICE_CACHE_TTL", "soon")

	if _, err := Load(); err == nil {
		t.Fatalf("expected malformed duration to be rejected")
	}
}
