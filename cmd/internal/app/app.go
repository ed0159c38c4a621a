// Package app wires the rsvp server runtime: config, logging, storage
// backends, the session service and the HTTP surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"rsvp/cmd/identity"
	authapi "rsvp/cmd/internal/auth/api"
	"rsvp/cmd/internal/auth/session"
	"rsvp/cmd/internal/migrations"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// backends holds the network resources the app owns and must close.
type backends struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (b backends) persistent() bool { return b.db != nil || b.redis != nil }

func (b backends) close() error {
	var err error
	if b.redis != nil {
		err = b.redis.Close()
	}
	if b.db != nil {
		b.db.Close()
	}
	return err
}

// App is the rsvp server runtime.
type App struct {
	cfg Config
	log Logger

	backends backends
	registry *prometheus.Registry

	sessions *session.Service
	auth     *authapi.Handler
}

// New constructs a fully wired App from config, the session env and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return build(context.Background(), cfg, sessCfg, authapi.LoadConfigFromEnv(), log)
}

func build(ctx context.Context, cfg Config, sessCfg session.Config, authCfg authapi.Config, log Logger) (*App, error) {
	hasher, err := ValidateSecurityConfig(cfg, sessCfg)
	if err != nil {
		return nil, err
	}

	b, creds, users, err := openStores(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := session.NewMetrics(reg)

	svc, err := session.NewService(sessCfg, creds, authapi.NewDirectory(users),
		session.WithLogger(log),
		session.WithMetrics(metrics),
		session.WithHasher(hasher),
	)
	if err != nil {
		_ = b.close()
		return nil, err
	}

	passwords, err := identity.NewPasswords()
	if err != nil {
		_ = b.close()
		return nil, err
	}

	auth, err := authapi.NewHandler(log, authCfg, svc, users, passwords, authapi.WithMetrics(metrics))
	if err != nil {
		_ = b.close()
		return nil, err
	}

	log.Info("app.security",
		"token_hmac", hasher.Keyed(),
		"access_ttl", sessCfg.AccessTokenTTL.String(),
		"refresh_ttl", sessCfg.RefreshTokenTTL.String(),
	)

	return &App{
		cfg:      cfg,
		log:      log,
		backends: b,
		registry: reg,
		sessions: svc,
		auth:     auth,
	}, nil
}

// openStores picks the credential store and identity store.
//
// Credentials go to Redis when RSVP_REDIS_URL is set, else Postgres when
// RSVP_DATABASE_URL is set, else memory. Users live in Postgres when
// configured, else memory.
func openStores(ctx context.Context, cfg Config, log Logger) (backends, session.Store, identity.Store, error) {
	var b backends

	if cfg.DatabaseURL != "" {
		pool, err := NewDBPool(ctx, cfg)
		if err != nil {
			return b, nil, nil, fmt.Errorf("postgres: %w", err)
		}
		b.db = pool

		if cfg.DBAutoMigrate {
			n, err := migrations.Up(ctx, pool, cfg.DBSchema)
			if err != nil {
				_ = b.close()
				return b, nil, nil, fmt.Errorf("migrate: %w", err)
			}
			log.Info("db.migrate.ok", "applied", n, "schema", cfg.DBSchema)
		}
	}

	if cfg.RedisURL != "" {
		rdb, err := NewRedisClient(ctx, cfg)
		if err != nil {
			_ = b.close()
			return b, nil, nil, fmt.Errorf("redis: %w", err)
		}
		b.redis = rdb
	}

	var (
		creds session.Store
		users identity.Store
		err   error
	)

	switch {
	case b.redis != nil:
		creds, err = session.NewRedisStore(b.redis, cfg.RedisPrefix)
		log.Info("store.credentials.redis", "prefix", cfg.RedisPrefix)
	case b.db != nil:
		creds, err = session.NewPostgresStore(b.db, cfg.DBSchema)
		log.Info("store.credentials.postgres", "schema", cfg.DBSchema)
	default:
		creds = session.NewMemoryStore()
		log.Warn("store.credentials.inmemory")
	}
	if err != nil {
		_ = b.close()
		return b, nil, nil, err
	}

	if b.db != nil {
		users, err = identity.NewPostgresStore(b.db, identity.WithSchema(cfg.DBSchema))
		if err != nil {
			_ = b.close()
			return b, nil, nil, err
		}
		log.Info("store.identity.postgres", "schema", cfg.DBSchema)
	} else {
		users = identity.NewMemoryStore()
		log.Warn("store.identity.inmemory")
	}

	return b, creds, users, nil
}

// Handler returns the complete HTTP handler chain.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.backends, a.registry, a.auth)

	var h http.Handler = mux
	h = WithCORS(h, a.cfg, a.log)
	h = WithSecurityHeaders(h)
	h = WithRequestLogging(h, a.log)
	h = WithRequestID(h)
	return h
}

// Run starts the HTTP server and the expiry sweeper, and blocks until
// context cancellation or a fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		session.NewSweeper(a.sessions, a.sessions.Config().SweepInterval, a.log).Run(sweepCtx)
	}()

	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"db_enabled", a.backends.db != nil,
		"redis_enabled", a.backends.redis != nil,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case runErr = <-errCh:
		a.log.Error("server.fail", "err", runErr)
	}

	stopSweep()
	<-sweepDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		if runErr == nil {
			runErr = err
		}
	}

	if err := a.Close(); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}

	if runErr == nil {
		a.log.Info("server.stopped")
	}
	return runErr
}

// Close releases database and Redis connections.
func (a *App) Close() error { return a.backends.close() }

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
