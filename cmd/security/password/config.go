package password

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy bounds accepted passwords.
type Policy struct {
	MinLength      int
	MaxLength      int
	RejectVeryWeak bool
}

type Config struct {
	Params Argon2idParams
	Policy Policy
}

// DefaultConfig returns the production baseline: 64 MiB, 3 passes,
// parallelism clamped to [1..4], minimum length 8.
func DefaultConfig() Config {
	threads := min(max(runtime.NumCPU(), 1), 4)

	return Config{
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4].
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength: 8,
			MaxLength: 256,
		},
	}
}

type u32Knob struct {
	env      string
	min, max uint32
	dst      func(*Config, uint32) error
}

var u32Knobs = []u32Knob{
	{"RSVP_ARGON2_MEMORY_KIB", 8 * 1024, 1024 * 1024, func(c *Config, v uint32) error { c.Params.MemoryKiB = v; return nil }},
	{"RSVP_ARGON2_ITERATIONS", 1, 20, func(c *Config, v uint32) error { c.Params.Iterations = v; return nil }},
	{"RSVP_ARGON2_PARALLELISM", 1, 64, func(c *Config, v uint32) error {
		if v > math.MaxUint8 {
			return fmt.Errorf("out of range [0..%d]", math.MaxUint8)
		}
		c.Params.Parallelism = uint8(v)
		return nil
	}},
	{"RSVP_ARGON2_SALT_LEN", 8, 64, func(c *Config, v uint32) error { c.Params.SaltLength = v; return nil }},
	{"RSVP_ARGON2_KEY_LEN", 16, 64, func(c *Config, v uint32) error { c.Params.KeyLength = v; return nil }},
	{"RSVP_PASSWORD_MIN_LEN", 1, 1024, func(c *Config, v uint32) error { c.Policy.MinLength = int(v); return nil }},
	{"RSVP_PASSWORD_MAX_LEN", 1, 4096, func(c *Config, v uint32) error { c.Policy.MaxLength = int(v); return nil }},
}

// FromEnv overlays RSVP_PASSWORD_* and RSVP_ARGON2_* variables on DefaultConfig.
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	for _, k := range u32Knobs {
		raw, ok := os.LookupEnv(k.env)
		if !ok {
			continue
		}
		v, err := parseU32(raw, k.min, k.max)
		if err == nil {
			err = k.dst(&cfg, v)
		}
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", k.env, err)
		}
	}

	if raw, ok := os.LookupEnv("RSVP_PASSWORD_REJECT_VERY_WEAK"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return Config{}, fmt.Errorf("RSVP_PASSWORD_REJECT_VERY_WEAK: invalid boolean")
		}
		cfg.Policy.RejectVeryWeak = b
	}

	if cfg.Policy.MinLength > cfg.Policy.MaxLength {
		return Config{}, fmt.Errorf(
			"password policy invalid: min_len(%d) > max_len(%d)",
			cfg.Policy.MinLength,
			cfg.Policy.MaxLength,
		)
	}
	return cfg, nil
}

func parseU32(s string, lo, hi uint32) (uint32, error) {
	u64, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an unsigned integer")
	}
	u := uint32(u64)
	if u < lo || u > hi {
		return 0, fmt.Errorf("out of range [%d..%d]", lo, hi)
	}
	return u, nil
}
