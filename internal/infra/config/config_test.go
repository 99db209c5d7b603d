package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/authdb")
	t.Setenv("REDIS_ADDRESS", "localhost:6379")
	t.Setenv("ACCESS_TOKEN_SECRET", "access-secret")
	t.Setenv("REFRESH_TOKEN_SECRET", "refresh-secret")
}

func TestLoad_Success(t *testing.T) {
	setRequired(t)
	t.Setenv("ACCESS_TOKEN_TTL", "2m")
	t.Setenv("REFRESH_TOKEN_TTL", "3h")
	t.Setenv("RESET_TOKEN_TTL", "30m")
	t.Setenv("JWT_ISSUER", "voltmart-auth")
	t.Setenv("HTTP_ADDRESS", ":9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.AccessTokenTTL != 2*time.Minute {
		t.Fatalf("AccessTokenTTL want 2m, got %v", cfg.AccessTokenTTL)
	}
	if cfg.RefreshTokenTTL != 3*time.Hour {
		t.Fatalf("RefreshTokenTTL want 3h, got %v", cfg.RefreshTokenTTL)
	}
	if cfg.ResetTokenTTL != 30*time.Minute {
		t.Fatalf("ResetTokenTTL want 30m, got %v", cfg.ResetTokenTTL)
	}
	if cfg.Issuer != "voltmart-auth" {
		t.Fatalf("Issuer want voltmart-auth, got %q", cfg.Issuer)
	}
	if cfg.HTTPAddress != ":9090" {
		t.Fatalf("HTTPAddress want :9090, got %q", cfg.HTTPAddress)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("default AccessTokenTTL want 15m, got %v", cfg.AccessTokenTTL)
	}
	if cfg.RefreshTokenTTL != 168*time.Hour {
		t.Fatalf("default RefreshTokenTTL want 168h, got %v", cfg.RefreshTokenTTL)
	}
	if cfg.ResetTokenTTL != time.Hour {
		t.Fatalf("default ResetTokenTTL want 1h, got %v", cfg.ResetTokenTTL)
	}
}

func TestLoad_PasswordPepperIsOptional(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.PasswordPepper != "" {
		t.Fatalf("PasswordPepper want empty, got %q", cfg.PasswordPepper)
	}

	t.Setenv("PASSWORD_PEPPER", "site-wide-pepper")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.PasswordPepper != "site-wide-pepper" {
		t.Fatalf("PasswordPepper want site-wide-pepper, got %q", cfg.PasswordPepper)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	// всё, кроме REFRESH_TOKEN_SECRET
	t.Setenv("DATABASE_URL", "db")
	t.Setenv("REDIS_ADDRESS", "r")
	t.Setenv("ACCESS_TOKEN_SECRET", "a")
	t.Setenv("REFRESH_TOKEN_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error due to missing REFRESH_TOKEN_SECRET, got nil")
	}
}

func TestLoad_RejectsNonPositiveTTL(t *testing.T) {
	setRequired(t)
	t.Setenv("ACCESS_TOKEN_TTL", "0s")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero ACCESS_TOKEN_TTL, got nil")
	}
}
