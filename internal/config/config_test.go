package config

import (
	"os"
	"testing"
	"time"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if had {
			os.Setenv(key, old)
		} else {
			os.Unsetenv(key)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, "DATABASE_URL", "postgres://localhost/comms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %s", cfg.Port)
	}
	if !cfg.IsDev() {
		t.Error("expected default env to be development")
	}
	if cfg.MediaTokenTTL != time.Hour {
		t.Errorf("expected default media token TTL 1h, got %s", cfg.MediaTokenTTL)
	}
	if cfg.SendBuffer != 256 {
		t.Errorf("expected default send buffer 256, got %d", cfg.SendBuffer)
	}
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	setEnv(t, "DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is missing")
	}
}

func TestValidate_DevelopmentAllowsMissingCredentials(t *testing.T) {
	cfg := &Config{Env: "development"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_ProductionRequiresAuthSecret(t *testing.T) {
	cfg := &Config{
		Env:            "production",
		MediaAPIKey:    "APIxyz",
		MediaAPISecret: "s3cr3t-long-enough",
		MediaTokenTTL:  time.Hour,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when AUTH_SECRET is missing in production")
	}

	cfg.AuthSecret = "signing-secret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_ProductionRejectsPlaceholderMediaCredentials(t *testing.T) {
	cfg := &Config{
		Env:            "production",
		AuthSecret:     "signing-secret",
		MediaAPIKey:    "devkey",
		MediaAPISecret: "secret",
		MediaTokenTTL:  time.Hour,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for placeholder media credentials in production")
	}
}

func TestValidate_ProductionRequiresPositiveTTL(t *testing.T) {
	cfg := &Config{
		Env:            "production",
		AuthSecret:     "signing-secret",
		MediaAPIKey:    "APIxyz",
		MediaAPISecret: "s3cr3t-long-enough",
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when MEDIA_TOKEN_TTL is zero")
	}
}
