package session

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/sessionguard/core/risk"
	"github.com/dmitrymomot/sessionguard/core/security"
	"github.com/dmitrymomot/sessionguard/pkg/broadcast"
)

// Config holds session manager configuration.
type Config struct {
	// RetentionHours sets the absolute session lifetime and the idle window of the sweeper.
	RetentionHours    int           `env:"SESSION_RETENTION_HOURS" envDefault:"24"`
	MaxConcurrent     int           `env:"SESSION_MAX_CONCURRENT" envDefault:"5"`       // 0 disables the cap
	ActivityLogLimit  int           `env:"SESSION_ACTIVITY_LOG_LIMIT" envDefault:"100"` // entries kept per session
	HighRiskThreshold int           `env:"SESSION_HIGH_RISK_THRESHOLD" envDefault:"75"` // scores above this are reported
	StoreTimeout      time.Duration `env:"SESSION_STORE_TIMEOUT" envDefault:"5s"`
	MaxRetries        int           `env:"SESSION_MAX_RETRIES" envDefault:"3"` // on version conflicts
}

// Retention returns the retention window as a duration.
func (c Config) Retention() time.Duration {
	return time.Duration(c.RetentionHours) * time.Hour
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		RetentionHours:    24,
		MaxConcurrent:     5,
		ActivityLogLimit:  100,
		HighRiskThreshold: 75,
		StoreTimeout:      5 * time.Second,
		MaxRetries:        3,
	}
}

// Option is a functional option for configuring the session manager.
type Option func(*Manager)

// WithConfig replaces the whole configuration. Zero fields keep their defaults,
// except MaxConcurrent which is applied as given: 0 disables the cap.
func WithConfig(cfg Config) Option {
	return func(m *Manager) {
		if cfg.RetentionHours > 0 {
			m.cfg.RetentionHours = cfg.RetentionHours
		}
		m.cfg.MaxConcurrent = max(cfg.MaxConcurrent, 0)
		if cfg.ActivityLogLimit > 0 {
			m.cfg.ActivityLogLimit = cfg.ActivityLogLimit
		}
		if cfg.HighRiskThreshold > 0 {
			m.cfg.HighRiskThreshold = cfg.HighRiskThreshold
		}
		if cfg.StoreTimeout > 0 {
			m.cfg.StoreTimeout = cfg.StoreTimeout
		}
		if cfg.MaxRetries > 0 {
			m.cfg.MaxRetries = cfg.MaxRetries
		}
	}
}

// WithRetention sets the absolute session lifetime.
func WithRetention(d time.Duration) Option {
	return func(m *Manager) {
		if h := int(d / time.Hour); h > 0 {
			m.cfg.RetentionHours = h
		}
	}
}

// WithMaxConcurrent sets the per-user cap on active sessions. 0 disables it.
func WithMaxConcurrent(n int) Option {
	return func(m *Manager) {
		m.cfg.MaxConcurrent = max(n, 0)
	}
}

// WithActivityLogLimit sets how many activity entries are kept per session.
func WithActivityLogLimit(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.cfg.ActivityLogLimit = n
		}
	}
}

// WithHighRiskThreshold sets the score above which activity is reported as high risk.
func WithHighRiskThreshold(score int) Option {
	return func(m *Manager) {
		m.cfg.HighRiskThreshold = risk.Clamp(score)
	}
}

// WithStoreTimeout bounds every manager call against the store.
func WithStoreTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.cfg.StoreTimeout = d
	}
}

// WithLocker sets the per-key locker. Defaults to a MemoryLocker.
func WithLocker(l Locker) Option {
	return func(m *Manager) {
		if l != nil {
			m.locker = l
		}
	}
}

// WithScorer replaces the risk scoring strategy.
func WithScorer(s risk.Scorer) Option {
	return func(m *Manager) {
		if s != nil {
			m.scorer = s
		}
	}
}

// WithEngine replaces the security check engine.
func WithEngine(e *security.Engine) Option {
	return func(m *Manager) {
		if e != nil {
			m.engine = e
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the logger. Defaults to a discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithBroadcaster publishes lifecycle and security notices on b.
func WithBroadcaster(b broadcast.Broadcaster[Notice]) Option {
	return func(m *Manager) {
		m.notices = b
	}
}

// WithStatusFunc replaces the reason to terminal status mapping.
func WithStatusFunc(fn StatusFunc) Option {
	return func(m *Manager) {
		if fn != nil {
			m.statusFor = fn
		}
	}
}

// WithTerminatedReasons maps the given reasons to StatusTerminated.
// Other reasons keep the default mapping.
func WithTerminatedReasons(reasons ...string) Option {
	return WithStatusFunc(TerminatedFor(reasons...))
}

// StatusFunc maps a termination reason to a terminal status.
type StatusFunc func(reason string) Status

// DefaultStatus maps timeout and expired to StatusExpired and everything else
// to StatusLoggedOut.
func DefaultStatus(reason string) Status {
	switch reason {
	case ReasonTimeout, ReasonExpired:
		return StatusExpired
	default:
		return StatusLoggedOut
	}
}

// TerminatedFor returns a StatusFunc that maps reasons to StatusTerminated
// and falls back to DefaultStatus.
func TerminatedFor(reasons ...string) StatusFunc {
	set := make(map[string]struct{}, len(reasons))
	for _, r := range reasons {
		set[r] = struct{}{}
	}
	return func(reason string) Status {
		if _, ok := set[reason]; ok {
			return StatusTerminated
		}
		return DefaultStatus(reason)
	}
}
