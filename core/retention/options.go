package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/sessionguard/core/session"
)

// Config holds sweeper configuration.
type Config struct {
	Interval        time.Duration `env:"SESSION_CLEANUP_INTERVAL" envDefault:"5m"`
	RetentionHours  int           `env:"SESSION_RETENTION_HOURS" envDefault:"24"`
	ShutdownTimeout time.Duration `env:"SESSION_CLEANUP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	StoreTimeout    time.Duration `env:"SESSION_STORE_TIMEOUT" envDefault:"5s"`
}

// Archiver receives sessions removed by the purge.
type Archiver interface {
	Archive(ctx context.Context, sessions []*session.Session) error
}

// ArchiverFunc adapts a function to Archiver.
type ArchiverFunc func(ctx context.Context, sessions []*session.Session) error

// Archive implements Archiver.
func (f ArchiverFunc) Archive(ctx context.Context, sessions []*session.Session) error {
	return f(ctx, sessions)
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithInterval sets the time between sweeps.
func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithRetention sets both the idle window and the purge window.
func WithRetention(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithShutdownTimeout bounds how long Stop waits for running sweeps.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// WithStoreTimeout bounds each sweep.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.storeTimeout = d
		}
	}
}

// WithArchiver hands purged sessions to a before they are dropped from memory.
func WithArchiver(a Archiver) Option {
	return func(s *Sweeper) {
		s.archiver = a
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sweeper) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// FromConfig converts cfg to options. Zero values keep defaults.
func FromConfig(cfg Config) []Option {
	return []Option{
		WithInterval(cfg.Interval),
		WithRetention(time.Duration(cfg.RetentionHours) * time.Hour),
		WithShutdownTimeout(cfg.ShutdownTimeout),
		WithStoreTimeout(cfg.StoreTimeout),
	}
}
