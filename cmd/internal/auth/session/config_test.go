package session

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadConfigFromEnv_MissingSecret(t *testing.T) {
	t.Setenv("RSVP_JWT_ACCESS_SECRET", "")
	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig on missing secret, got %v", err)
	}
}

func TestLoadConfigFromEnv_ShortSecret(t *testing.T) {
	t.Setenv("RSVP_JWT_ACCESS_SECRET", strings.Repeat("x", MinSecretBytes-1))
	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig on short secret, got %v", err)
	}
}

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("RSVP_JWT_ACCESS_SECRET", testSecret)
	for _, k := range []string{
		"RSVP_AUTH_ISSUER", "RSVP_AUTH_ACCESS_TTL", "RSVP_AUTH_REFRESH_TTL",
		"RSVP_AUTH_CLOCK_SKEW", "RSVP_AUTH_SWEEP_INTERVAL", "RSVP_AUTH_REFRESH_TOKEN_BYTES",
	} {
		t.Setenv(k, "")
	}

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.AccessTokenTTL != 15*time.Minute || cfg.RefreshTokenTTL != 7*24*time.Hour {
		t.Fatalf("unexpected ttls: %s %s", cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	}
	if cfg.RefreshTokenBytes != 32 || cfg.Issuer != "rsvp" || string(cfg.AccessSecret) != testSecret {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadConfigFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		key, val string
	}{
		{"RSVP_AUTH_ACCESS_TTL", "-5m"},
		{"RSVP_AUTH_ACCESS_TTL", "0"},
		{"RSVP_AUTH_REFRESH_TTL", "soon"},
		{"RSVP_AUTH_CLOCK_SKEW", "-1s"},
		{"RSVP_AUTH_REFRESH_TOKEN_BYTES", "16"},
		{"RSVP_AUTH_REFRESH_TOKEN_BYTES", "128"},
		{"RSVP_AUTH_REFRESH_TTL", "1m"},
	}
	for _, tc := range tests {
		t.Run(tc.key+"="+tc.val, func(t *testing.T) {
			t.Setenv("RSVP_JWT_ACCESS_SECRET", testSecret)
			t.Setenv(tc.key, tc.val)
			if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("RSVP_JWT_ACCESS_SECRET", testSecret)
	t.Setenv("RSVP_AUTH_ACCESS_TTL", "5m")
	t.Setenv("RSVP_AUTH_REFRESH_TTL", "24h")
	t.Setenv("RSVP_AUTH_SWEEP_INTERVAL", "0")
	t.Setenv("RSVP_AUTH_REFRESH_TOKEN_BYTES", "48")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.AccessTokenTTL != 5*time.Minute || cfg.RefreshTokenTTL != 24*time.Hour ||
		cfg.SweepInterval != 0 || cfg.RefreshTokenBytes != 48 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}
