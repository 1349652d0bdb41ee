package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/sessionguard/core/logger"
	"github.com/dmitrymomot/sessionguard/core/risk"
	"github.com/dmitrymomot/sessionguard/core/security"
	"github.com/dmitrymomot/sessionguard/pkg/broadcast"
	"github.com/dmitrymomot/sessionguard/pkg/clientip"
	"github.com/dmitrymomot/sessionguard/pkg/fingerprint"
)

// Validation reasons.
const (
	ReasonNotFound        = "Session not found"
	ReasonSessionExpired  = "Session expired"
	ReasonValidationError = "Validation error"
)

// Created is returned by Manager.Create.
type Created struct {
	SessionID string
	Session   *Session
	ExpiresAt time.Time
}

// Validation is the outcome of Manager.Validate.
// Session and SecurityStatus are set only when Valid is true.
type Validation struct {
	Valid          bool
	Reason         string
	Session        *Session
	SecurityStatus *security.Report
}

// Manager owns the session state machine.
// Every read-modify-write of a session runs under the session's lock and is
// written with a version check, so concurrent validations never lose entries.
type Manager struct {
	store     Store
	locker    Locker
	scorer    risk.Scorer
	engine    *security.Engine
	statusFor StatusFunc
	notices   broadcast.Broadcaster[Notice]
	logger    *slog.Logger
	now       func() time.Time
	cfg       Config
}

// NewManager creates a session manager backed by store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		locker:    NewMemoryLocker(),
		scorer:    risk.Default,
		statusFor: DefaultStatus,
		logger:    logger.Nop(),
		now:       time.Now,
		cfg:       DefaultConfig(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.engine == nil {
		m.engine = security.NewEngine(security.WithClock(m.now))
	}
	return m
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// Now returns the current time of the manager's clock in UTC.
func (m *Manager) Now() time.Time {
	return m.now().UTC()
}

// Create issues a new session for identity.
// When the user already holds the maximum number of active sessions, the one
// with the oldest last activity is terminated first. Creation never fails
// because of the cap; only store errors are returned.
func (m *Manager) Create(ctx context.Context, identity Identity, rc RequestContext) (*Created, error) {
	if identity.Username == "" {
		return nil, ErrMissingUsername
	}
	identity = identity.normalize()

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	unlock, err := m.locker.Lock(ctx, userKey(identity.Username))
	if err != nil {
		return nil, errors.Join(ErrCreateSession, err)
	}
	defer unlock()

	if err := m.enforceLimit(ctx, identity.Username); err != nil {
		return nil, errors.Join(ErrCreateSession, err)
	}

	id, err := generateID()
	if err != nil {
		return nil, errors.Join(ErrIDGeneration, err)
	}

	now := m.Now()
	ip := clientip.Normalize(rc.ClientIP)
	ua := rc.userAgent()
	sess := &Session{
		ID:       id,
		UserID:   identity.UserID,
		Username: identity.Username,
		Role:     identity.Role,

		IPAddress:         ip,
		UserAgent:         ua,
		DeviceFingerprint: fingerprint.Generate(rc.device(ip)),

		LoginTime:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(m.cfg.Retention()),

		Status:         StatusActive,
		SecurityEvents: []security.Event{},
		AnomalyFlags:   []security.Anomaly{},
		RiskScore:      m.scorer.Initial(identity.Role, ip),

		Metadata: Metadata{
			Timestamp: now,
			Headers: map[string]string{
				"user_agent":      ua,
				"accept_language": rc.AcceptLanguage,
				"accept_encoding": rc.AcceptEncoding,
			},
			RemoteAddr: rc.RemoteAddr,
		},
		UpdatedAt: now,
	}
	sess.appendActivity(Activity{
		Timestamp: now,
		Action:    ActionCreated,
		Details:   "Session created",
		IPAddress: ip,
		UserAgent: ua,
		Endpoint:  rc.Path,
	}, m.cfg.ActivityLogLimit)

	if err := m.store.Create(ctx, sess); err != nil {
		return nil, errors.Join(ErrCreateSession, err)
	}

	m.logger.InfoContext(ctx, "session created",
		logger.SessionID(sess.ID),
		logger.Username(sess.Username),
		logger.ClientIP(ip),
		logger.RiskScore(sess.RiskScore),
	)
	m.publish(ctx, newNotice(NoticeCreated, sess, now))

	return &Created{SessionID: sess.ID, Session: sess.Clone(), ExpiresAt: sess.ExpiresAt}, nil
}

// enforceLimit evicts the least recently active sessions of username until a
// new session fits under the cap. Caller holds the user lock.
func (m *Manager) enforceLimit(ctx context.Context, username string) error {
	if m.cfg.MaxConcurrent <= 0 {
		return nil
	}

	count, err := m.store.CountActive(ctx, username)
	if err != nil {
		return err
	}
	for attempts := count; count >= m.cfg.MaxConcurrent && attempts >= 0; attempts-- {
		victim, err := m.store.OldestActive(ctx, username)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := m.terminate(ctx, victim.ID, ReasonConcurrentLimit); err != nil {
			return err
		}
		m.logger.InfoContext(ctx, "session evicted",
			logger.SessionID(victim.ID),
			logger.Username(username),
			logger.Reason(ReasonConcurrentLimit),
		)
		if count, err = m.store.CountActive(ctx, username); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the session and records the request as activity.
// It never returns an error: store failures yield Reason "Validation error"
// so callers fail closed.
func (m *Manager) Validate(ctx context.Context, id string, rc RequestContext) Validation {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	unlock, err := m.locker.Lock(ctx, sessionKey(id))
	if err != nil {
		m.logger.ErrorContext(ctx, "session validation failed", logger.SessionID(id), logger.Error(err))
		return Validation{Reason: ReasonValidationError}
	}
	defer unlock()

	for attempt := 0; ; attempt++ {
		v, err := m.validate(ctx, id, rc)
		if errors.Is(err, ErrVersionConflict) && attempt < m.cfg.MaxRetries {
			m.logger.DebugContext(ctx, "session version conflict, retrying",
				logger.SessionID(id), logger.RetryCount(attempt+1))
			continue
		}
		if err != nil {
			m.logger.ErrorContext(ctx, "session validation failed", logger.SessionID(id), logger.Error(err))
			return Validation{Reason: ReasonValidationError}
		}
		return v
	}
}

func (m *Manager) validate(ctx context.Context, id string, rc RequestContext) (Validation, error) {
	sess, err := m.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Validation{Reason: ReasonNotFound}, nil
	}
	if err != nil {
		return Validation{}, err
	}
	if !sess.IsActive() {
		return Validation{Reason: fmt.Sprintf("Session status is %s", sess.Status)}, nil
	}

	now := m.Now()
	if sess.IsExpiredAt(now) {
		if _, err := m.terminateLocked(ctx, id, ReasonExpired); err != nil {
			return Validation{}, err
		}
		return Validation{Reason: ReasonSessionExpired}, nil
	}

	signals := rc.signals()
	report := m.engine.Check(security.Signals{
		IP:          sess.IPAddress,
		UserAgent:   sess.UserAgent,
		Fingerprint: sess.DeviceFingerprint,
	}, signals)
	previous := sess.RiskScore

	if now.After(sess.LastActivity) {
		sess.LastActivity = now
	}
	sess.SecurityEvents = append(sess.SecurityEvents, report.Events...)
	sess.AnomalyFlags = append(sess.AnomalyFlags, report.Anomalies...)
	sess.appendActivity(Activity{
		Timestamp:      now,
		Action:         ActionUpdate,
		IPAddress:      signals.IP,
		UserAgent:      signals.UserAgent,
		Endpoint:       rc.Path,
		SecurityEvents: report.Events,
	}, m.cfg.ActivityLogLimit)
	sess.RiskScore = m.scorer.Recalculate(sess.RiskScore, report.Severities()...)
	sess.UpdatedAt = now

	if err := m.store.Update(ctx, sess); err != nil {
		return Validation{}, err
	}

	if len(report.Events) > 0 {
		n := newNotice(NoticeSecurity, sess, now)
		n.Events = report.Events
		m.publish(ctx, n)
	}
	if sess.RiskScore > m.cfg.HighRiskThreshold {
		m.logger.WarnContext(ctx, "high risk session activity",
			logger.SessionID(sess.ID),
			logger.Username(sess.Username),
			logger.RiskScore(sess.RiskScore),
			logger.ClientIP(signals.IP),
			logger.UserAgent(signals.UserAgent),
		)
		if previous <= m.cfg.HighRiskThreshold {
			n := newNotice(NoticeHighRisk, sess, now)
			n.Events = report.Events
			m.publish(ctx, n)
		}
	}

	return Validation{Valid: true, Session: sess.Clone(), SecurityStatus: &report}, nil
}

// Terminate moves an active session into a terminal state.
// Returns false when the session does not exist. Terminating an already
// terminated session returns true and leaves the first logout untouched.
func (m *Manager) Terminate(ctx context.Context, id, reason string) (bool, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	return m.terminate(ctx, id, reason)
}

func (m *Manager) terminate(ctx context.Context, id, reason string) (bool, error) {
	unlock, err := m.locker.Lock(ctx, sessionKey(id))
	if err != nil {
		return false, errors.Join(ErrTerminateSession, err)
	}
	defer unlock()
	return m.terminateLocked(ctx, id, reason)
}

// terminateLocked requires the session lock.
func (m *Manager) terminateLocked(ctx context.Context, id, reason string) (bool, error) {
	for attempt := 0; ; attempt++ {
		sess, err := m.store.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, errors.Join(ErrTerminateSession, err)
		}
		if !sess.IsActive() {
			return true, nil
		}

		now := m.Now()
		duration := sess.Duration(now)
		sess.LogoutTime = &now
		sess.LogoutReason = reason
		sess.Status = m.statusFor(reason)
		sess.UpdatedAt = now
		sess.appendActivity(Activity{
			Timestamp:  now,
			Action:     ActionTerminated,
			Details:    "Session terminated",
			Reason:     reason,
			DurationMS: duration.Milliseconds(),
		}, m.cfg.ActivityLogLimit)

		err = m.store.Update(ctx, sess)
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		if errors.Is(err, ErrVersionConflict) && attempt < m.cfg.MaxRetries {
			continue
		}
		if err != nil {
			return false, errors.Join(ErrTerminateSession, err)
		}

		m.logger.InfoContext(ctx, "session terminated",
			logger.SessionID(sess.ID),
			logger.Username(sess.Username),
			logger.Reason(reason),
			logger.Status(string(sess.Status)),
			slog.Int64("duration_minutes", int64(duration/time.Minute)),
			logger.RiskScore(sess.RiskScore),
		)
		n := newNotice(NoticeTerminated, sess, now)
		n.Reason = reason
		m.publish(ctx, n)
		return true, nil
	}
}

// Get returns a copy of the stored session.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	return m.store.Get(ctx, id)
}

func (m *Manager) publish(ctx context.Context, n Notice) {
	if m.notices == nil {
		return
	}
	if err := m.notices.Broadcast(ctx, broadcast.Message[Notice]{Data: n}); err != nil &&
		!errors.Is(err, broadcast.ErrBroadcasterClosed) {
		m.logger.WarnContext(ctx, "failed to publish session notice",
			logger.Event(string(n.Kind)), logger.Error(err))
	}
}

func (m *Manager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.cfg.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.cfg.StoreTimeout)
}
