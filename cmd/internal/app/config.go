package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string // "json" or "pretty"

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL   string
	DBSchema      string
	DBMaxConns    int32
	DBMinConns    int32
	DBAutoMigrate bool

	// RedisURL selects the Redis credential store when no database is configured.
	RedisURL    string
	RedisPrefix string

	// If true, /readyz returns 503 unless a persistent store is configured and reachable.
	ReadinessRequireStore bool

	// If true, RSVP_TOKEN_HMAC_KEY MUST be set (>= 32 bytes) and refresh values are stored as HMACs.
	RequireTokenHMAC bool

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("RSVP_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("RSVP_LOG_LEVEL", "info"),
		LogFormat: EnvString("RSVP_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("RSVP_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("RSVP_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("RSVP_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("RSVP_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("RSVP_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL:   EnvString("RSVP_DATABASE_URL", ""),
		DBSchema:      EnvString("RSVP_DB_SCHEMA", "rsvp"),
		DBMaxConns:    EnvInt32("RSVP_DB_MAX_CONNS", 10),
		DBMinConns:    EnvInt32("RSVP_DB_MIN_CONNS", 0),
		DBAutoMigrate: EnvBool("RSVP_DB_AUTO_MIGRATE", false),

		RedisURL:    EnvString("RSVP_REDIS_URL", ""),
		RedisPrefix: EnvString("RSVP_REDIS_PREFIX", "rsvp:"),

		ReadinessRequireStore: EnvBool("RSVP_READINESS_REQUIRE_STORE", false),

		RequireTokenHMAC: EnvBool("RSVP_REQUIRE_TOKEN_HMAC", false),

		CORSAllowedOrigins:   EnvList("RSVP_CORS_ORIGINS", []string{"http://localhost:5173"}),
		CORSAllowCredentials: EnvBool("RSVP_CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAgeSeconds:    EnvInt("RSVP_CORS_MAX_AGE", 600),
	}
}
