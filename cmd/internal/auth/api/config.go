package authapi

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls auth API behavior and cookie policy.
type Config struct {
	TrustProxy   bool
	MaxBodyBytes int64

	// Register and login share one sliding window per client IP.
	AuthRateMax    int
	AuthRateWindow time.Duration

	CookieName   string
	CookiePath   string
	CookieDomain string
	CookieSecure bool

	// ClientURL is where the federated callback sends the browser.
	ClientURL string
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:   1 << 20,
		AuthRateMax:    20,
		AuthRateWindow: 15 * time.Minute,
		CookieName:     "refreshToken",
		CookiePath:     "/api/auth",
		CookieSecure:   true,
		ClientURL:      "http://localhost:5173",
	}
}

// LoadConfigFromEnv loads auth config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	def := DefaultConfig()
	cfg := Config{
		TrustProxy:     envBool("RSVP_AUTH_TRUST_PROXY", false),
		MaxBodyBytes:   envInt64("RSVP_AUTH_MAX_BODY_BYTES", def.MaxBodyBytes),
		AuthRateMax:    envInt("RSVP_AUTH_RATE_MAX", def.AuthRateMax),
		AuthRateWindow: envDuration("RSVP_AUTH_RATE_WINDOW", def.AuthRateWindow),
		CookieName:     envString("RSVP_COOKIE_NAME", def.CookieName),
		CookiePath:     envString("RSVP_COOKIE_PATH", def.CookiePath),
		CookieDomain:   envString("RSVP_COOKIE_DOMAIN", ""),
		CookieSecure:   envBool("RSVP_COOKIE_SECURE", def.CookieSecure),
		ClientURL:      envString("RSVP_CLIENT_URL", def.ClientURL),
	}
	return cfg.normalized()
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = def.MaxBodyBytes
	}
	if c.AuthRateWindow <= 0 {
		c.AuthRateWindow = def.AuthRateWindow
	}
	if strings.TrimSpace(c.CookieName) == "" {
		c.CookieName = def.CookieName
	}
	if !strings.HasPrefix(c.CookiePath, "/") {
		c.CookiePath = def.CookiePath
	}
	c.ClientURL = strings.TrimRight(strings.TrimSpace(c.ClientURL), "/")
	return c
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
