package session

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// MinSecretBytes is the shortest accepted HS256 signing secret.
const MinSecretBytes = 32

// Config controls token lifetimes, refresh entropy and the signing secret.
type Config struct {
	// Issuer is the "iss" claim of access tokens.
	Issuer string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// ClockSkew is the leeway applied when checking "exp".
	ClockSkew time.Duration

	// RefreshTokenBytes is the random entropy behind each refresh value.
	RefreshTokenBytes int

	// SweepInterval is how often expired refresh records are purged. Zero disables sweeping.
	SweepInterval time.Duration

	AccessSecret []byte
}

// DefaultConfig returns the production lifetimes without a secret.
func DefaultConfig() Config {
	return Config{
		Issuer:            "rsvp",
		AccessTokenTTL:    15 * time.Minute,
		RefreshTokenTTL:   7 * 24 * time.Hour,
		RefreshTokenBytes: 32,
		SweepInterval:     time.Hour,
	}
}

// LoadConfigFromEnv loads session configuration.
//
// Required:
//   - RSVP_JWT_ACCESS_SECRET (at least 32 bytes)
//
// Optional (Go duration strings where applicable):
//   - RSVP_AUTH_ISSUER
//   - RSVP_AUTH_ACCESS_TTL
//   - RSVP_AUTH_REFRESH_TTL
//   - RSVP_AUTH_CLOCK_SKEW
//   - RSVP_AUTH_REFRESH_TOKEN_BYTES (32..64)
//   - RSVP_AUTH_SWEEP_INTERVAL (0 disables)
//
// Errors wrap ErrConfig and name the offending variable.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("RSVP_AUTH_ISSUER")); v != "" {
		cfg.Issuer = v
	}

	durations := []struct {
		key       string
		dst       *time.Duration
		allowZero bool
	}{
		{"RSVP_AUTH_ACCESS_TTL", &cfg.AccessTokenTTL, false},
		{"RSVP_AUTH_REFRESH_TTL", &cfg.RefreshTokenTTL, false},
		{"RSVP_AUTH_CLOCK_SKEW", &cfg.ClockSkew, true},
		{"RSVP_AUTH_SWEEP_INTERVAL", &cfg.SweepInterval, true},
	}
	for _, d := range durations {
		v := strings.TrimSpace(os.Getenv(d.key))
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed < 0 || (parsed == 0 && !d.allowZero) {
			return Config{}, fmt.Errorf("%w: %s", ErrConfig, d.key)
		}
		*d.dst = parsed
	}

	if v := strings.TrimSpace(os.Getenv("RSVP_AUTH_REFRESH_TOKEN_BYTES")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 32 || n > 64 {
			return Config{}, fmt.Errorf("%w: RSVP_AUTH_REFRESH_TOKEN_BYTES", ErrConfig)
		}
		cfg.RefreshTokenBytes = n
	}

	secret := strings.TrimSpace(os.Getenv("RSVP_JWT_ACCESS_SECRET"))
	if len(secret) < MinSecretBytes {
		return Config{}, fmt.Errorf("%w: RSVP_JWT_ACCESS_SECRET must be at least %d bytes", ErrConfig, MinSecretBytes)
	}
	cfg.AccessSecret = []byte(secret)

	if cfg.RefreshTokenTTL <= cfg.AccessTokenTTL {
		return Config{}, fmt.Errorf("%w: refresh ttl must exceed access ttl", ErrConfig)
	}

	return cfg, nil
}
