// Command sessiond runs the session security service: the HTTP API, the
// retention sweeper and the optional high risk alerter.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/sessionguard/core/analytics"
	"github.com/dmitrymomot/sessionguard/core/config"
	"github.com/dmitrymomot/sessionguard/core/logger"
	"github.com/dmitrymomot/sessionguard/core/retention"
	"github.com/dmitrymomot/sessionguard/core/security"
	"github.com/dmitrymomot/sessionguard/core/server"
	"github.com/dmitrymomot/sessionguard/core/session"
	"github.com/dmitrymomot/sessionguard/core/session/memstore"
	"github.com/dmitrymomot/sessionguard/core/session/pgstore"
	"github.com/dmitrymomot/sessionguard/core/session/redislock"
	"github.com/dmitrymomot/sessionguard/httpapi"
	"github.com/dmitrymomot/sessionguard/integration/database/pg"
	"github.com/dmitrymomot/sessionguard/integration/database/redis"
	"github.com/dmitrymomot/sessionguard/integration/email/postmark"
	"github.com/dmitrymomot/sessionguard/integration/storage/s3"
	"github.com/dmitrymomot/sessionguard/middleware"
	"github.com/dmitrymomot/sessionguard/pkg/broadcast"
	"github.com/dmitrymomot/sessionguard/pkg/jwt"
)

// Store drivers.
const (
	storePostgres = "postgres"
	storeMemory   = "memory"
)

type appConfig struct {
	AppName      string `env:"APP_NAME" envDefault:"sessionguard"`
	AppEnv       string `env:"APP_ENV" envDefault:"development"`
	LogLevel     string `env:"LOG_LEVEL"`
	Store        string `env:"SESSION_STORE" envDefault:"postgres"`
	CookieName   string `env:"SESSION_COOKIE_NAME" envDefault:"sid"`
	LoginURL     string `env:"SESSION_LOGIN_URL" envDefault:"/login"`
	SecureCookie bool   `env:"SESSION_COOKIE_SECURE" envDefault:"true"`
	NoticeBuffer int    `env:"SESSION_NOTICE_BUFFER" envDefault:"64"`

	// Records fingerprint_drift anomalies on validation.
	FingerprintAnomalies bool `env:"SESSION_FINGERPRINT_ANOMALIES" envDefault:"false"`

	// HS256 key for operator bearer tokens. Operator routes answer 503 without it.
	OperatorJWTSecret string `env:"OPERATOR_JWT_SECRET"`
	OperatorJWTIssuer string `env:"OPERATOR_JWT_ISSUER" envDefault:"sessionguard"`

	// Honoured when SESSION_RETENTION_HOURS is not set.
	LegacyRetentionHours int `env:"USER_SESSION_RETENTION_HOURS"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		cfg      appConfig
		sessCfg  session.Config
		retCfg   retention.Config
		srvCfg   server.Config
		redisCfg redis.Config
		s3Cfg    s3.Config
		emailCfg postmark.Config
	)
	for _, c := range []func() error{
		func() error { return config.Load(&cfg) },
		func() error { return config.Load(&sessCfg) },
		func() error { return config.Load(&retCfg) },
		func() error { return config.Load(&srvCfg) },
		func() error { return config.Load(&redisCfg) },
		func() error { return config.Load(&s3Cfg) },
		func() error { return config.Load(&emailCfg) },
	} {
		if err := c(); err != nil {
			return err
		}
	}
	if _, set := os.LookupEnv("SESSION_RETENTION_HOURS"); !set && cfg.LegacyRetentionHours > 0 {
		sessCfg.RetentionHours = cfg.LegacyRetentionHours
		retCfg.RetentionHours = cfg.LegacyRetentionHours
	}

	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var healthchecks []httpapi.Option

	store, closeStore, err := openStore(ctx, cfg.Store, log)
	if err != nil {
		return err
	}
	defer closeStore()
	if hc, ok := store.(interface{ Healthcheck(context.Context) error }); ok {
		healthchecks = append(healthchecks, httpapi.WithHealthcheck("store", hc.Healthcheck))
	}

	notices := broadcast.NewMemoryBroadcaster[session.Notice](cfg.NoticeBuffer)
	defer func() { _ = notices.Close() }()

	managerOpts := []session.Option{
		session.WithConfig(sessCfg),
		session.WithLogger(log.With(logger.Component("session"))),
		session.WithBroadcaster(notices),
	}
	if cfg.FingerprintAnomalies {
		managerOpts = append(managerOpts, session.WithEngine(
			security.NewEngine(security.WithDetectors(security.FingerprintDrift)),
		))
	}
	if redisCfg.Enabled() {
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		managerOpts = append(managerOpts, session.WithLocker(redislock.New(client,
			redislock.WithLogger(log.With(logger.Component("redislock"))),
		)))
		healthchecks = append(healthchecks, httpapi.WithHealthcheck("redis", redis.Healthcheck(client)))
	}
	manager := session.NewManager(store, managerOpts...)

	sweeperOpts := append(retention.FromConfig(retCfg), retention.WithLogger(log.With(logger.Component("retention"))))
	if s3Cfg.Enabled() {
		archiver, err := s3.New(ctx, s3Cfg)
		if err != nil {
			return err
		}
		sweeperOpts = append(sweeperOpts, retention.WithArchiver(archiver))
		healthchecks = append(healthchecks, httpapi.WithHealthcheck("s3", archiver.Healthcheck))
	}
	sweeper, err := retention.New(store, sweeperOpts...)
	if err != nil {
		return err
	}
	healthchecks = append(healthchecks, httpapi.WithHealthcheck("retention", sweeper.Healthcheck))

	operatorOpts, err := operatorAuth(cfg, log)
	if err != nil {
		return err
	}

	api := httpapi.New(manager, append(append([]httpapi.Option{
		httpapi.WithPurger(sweeper),
		httpapi.WithSummarizer(analytics.New(store)),
		httpapi.WithNotices(notices),
		httpapi.WithCookie(cfg.CookieName, cfg.SecureCookie),
		httpapi.WithLoginURL(cfg.LoginURL),
		httpapi.WithLogger(log.With(logger.Component("http"))),
	}, operatorOpts...), healthchecks...)...)

	srv, err := server.NewFromConfig(srvCfg, server.WithLogger(log))
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(sweeper.Run(ctx))
	g.Go(srv.Run(ctx, api))

	if emailCfg.Enabled() {
		client, err := postmark.New(emailCfg)
		if err != nil {
			return err
		}
		alerter, err := postmark.NewAlerter(client, emailCfg.AlertEmail, log.With(logger.Component("alerts")))
		if err != nil {
			return err
		}
		sub := notices.Subscribe(ctx)
		g.Go(func() error { return alerter.Run(ctx, sub) })
	}

	log.InfoContext(ctx, "sessiond started",
		logger.Key("store", cfg.Store),
		logger.Key("addr", srvCfg.Addr),
		logger.Key("redis_lock", redisCfg.Enabled()),
		logger.Key("s3_archive", s3Cfg.Enabled()),
		logger.Key("email_alerts", emailCfg.Enabled()),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("sessiond stopped")
	return nil
}

func newLogger(cfg appConfig) *slog.Logger {
	envOpt := logger.WithDevelopment(cfg.AppName)
	switch cfg.AppEnv {
	case "production":
		envOpt = logger.WithProduction(cfg.AppName)
	case "staging":
		envOpt = logger.WithStaging(cfg.AppName)
	}
	opts := []logger.Option{envOpt, logger.WithContextExtractors(middleware.RequestIDExtractor)}
	if cfg.LogLevel != "" {
		opts = append(opts, logger.WithLevel(logger.ParseLevel(cfg.LogLevel)))
	}
	return logger.New(opts...)
}

// pgSessionStore adds a healthcheck to the Postgres store.
type pgSessionStore struct {
	*pgstore.Store
	healthcheck func(context.Context) error
}

func (s pgSessionStore) Healthcheck(ctx context.Context) error {
	return s.healthcheck(ctx)
}

func openStore(ctx context.Context, driver string, log *slog.Logger) (session.Store, func(), error) {
	switch driver {
	case storeMemory:
		log.Warn("using in-memory session store, sessions are lost on restart")
		return memstore.New(), func() {}, nil
	case storePostgres:
		var pgCfg pg.Config
		if err := config.Load(&pgCfg); err != nil {
			return nil, nil, err
		}
		pool, err := pg.Connect(ctx, pgCfg)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(ctx, pool, pgCfg, log, pg.WithMigrationsFS(pgstore.Migrations)); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return pgSessionStore{Store: pgstore.New(pool), healthcheck: pg.Healthcheck(pool)}, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown SESSION_STORE %q", driver)
	}
}

func operatorAuth(cfg appConfig, log *slog.Logger) ([]httpapi.Option, error) {
	if cfg.OperatorJWTSecret == "" {
		log.Warn("OPERATOR_JWT_SECRET is not set, operator routes are disabled")
		return nil, nil
	}
	tokens, err := jwt.NewFromString(cfg.OperatorJWTSecret, jwt.WithIssuer(cfg.OperatorJWTIssuer))
	if err != nil {
		return nil, fmt.Errorf("operator auth: %w", err)
	}
	return []httpapi.Option{httpapi.WithOperatorAuth(middleware.JWTWithConfig(middleware.JWTConfig{
		Service: tokens,
		Logger:  log.With(logger.Component("operator_auth")),
	}))}, nil
}
