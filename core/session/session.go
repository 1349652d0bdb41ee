package session

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/dmitrymomot/sessionguard/core/security"
	"github.com/dmitrymomot/sessionguard/pkg/clientip"
	"github.com/dmitrymomot/sessionguard/pkg/fingerprint"
)

// Status is the lifecycle state of a session.
// Active is the only non-terminal state.
type Status string

const (
	StatusActive     Status = "active"
	StatusExpired    Status = "expired"
	StatusLoggedOut  Status = "logged_out"
	StatusTerminated Status = "terminated"
)

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s != StatusActive
}

// Activity actions.
const (
	ActionCreated    = "session_created"
	ActionUpdate     = "activity_update"
	ActionTerminated = "session_terminated"
)

// Termination reasons used by the manager itself.
const (
	ReasonTimeout          = "timeout"
	ReasonExpired          = "expired"
	ReasonLogout           = "logout"
	ReasonConcurrentLimit  = "concurrent_limit_exceeded"
	ReasonAdminTermination = "admin_termination"
	ReasonManualCleanup    = "manual_cleanup"
)

// DefaultRole is assigned when the identity carries none.
const DefaultRole = "user"

// UnknownUserAgent is recorded when the request has no User-Agent header.
const UnknownUserAgent = "Unknown"

// Activity is one entry of the bounded activity log.
type Activity struct {
	Timestamp      time.Time        `json:"timestamp"`
	Action         string           `json:"action"`
	Details        string           `json:"details,omitempty"`
	IPAddress      string           `json:"ip_address,omitempty"`
	UserAgent      string           `json:"user_agent,omitempty"`
	Endpoint       string           `json:"endpoint,omitempty"`
	Reason         string           `json:"reason,omitempty"`
	DurationMS     int64            `json:"duration_ms,omitempty"`
	SecurityEvents []security.Event `json:"security_events,omitempty"`
}

// Metadata is captured once when the session is created.
type Metadata struct {
	Timestamp  time.Time         `json:"timestamp"`
	Headers    map[string]string `json:"headers,omitempty"`
	RemoteAddr string            `json:"remote_address,omitempty"`
}

// Session is a single server side session record.
type Session struct {
	ID                string `json:"session_id"`
	UserID            string `json:"user_id"`
	Username          string `json:"username"`
	Role              string `json:"role"`
	IPAddress         string `json:"ip_address"`
	UserAgent         string `json:"user_agent"`
	DeviceFingerprint string `json:"device_fingerprint"`

	// LoginTime is immutable. ExpiresAt is fixed at creation and never extended.
	LoginTime    time.Time `json:"login_time"`
	LastActivity time.Time `json:"last_activity"`
	ExpiresAt    time.Time `json:"expires_at"`

	// LogoutTime and LogoutReason are set once, on the transition out of active.
	LogoutTime   *time.Time `json:"logout_time,omitempty"`
	LogoutReason string     `json:"logout_reason,omitempty"`

	Status         Status             `json:"status"`
	SecurityEvents []security.Event   `json:"security_events"`
	ActivityLog    []Activity         `json:"activity_log"`
	RiskScore      int                `json:"risk_score"`
	AnomalyFlags   []security.Anomaly `json:"anomaly_flags"`

	// Location is an opaque pass-through, null unless a caller fills it.
	Location json.RawMessage `json:"location_data,omitempty"`
	Metadata Metadata        `json:"session_metadata"`

	UpdatedAt time.Time `json:"updated_at"`
	// Version is incremented by the store on every successful update.
	Version int64 `json:"version"`
}

// IsActive reports whether the session is in the active state.
func (s *Session) IsActive() bool {
	return s.Status == StatusActive
}

// IsExpiredAt reports whether the absolute expiry has been reached at now.
func (s *Session) IsExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Duration returns logout - login for terminated sessions and now - login otherwise.
func (s *Session) Duration(now time.Time) time.Duration {
	end := now
	if s.LogoutTime != nil {
		end = *s.LogoutTime
	}
	return max(end.Sub(s.LoginTime), 0)
}

// Clone returns a deep copy that shares no mutable state with s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.LogoutTime != nil {
		t := *s.LogoutTime
		c.LogoutTime = &t
	}
	c.SecurityEvents = slices.Clone(s.SecurityEvents)
	c.AnomalyFlags = slices.Clone(s.AnomalyFlags)
	c.ActivityLog = make([]Activity, len(s.ActivityLog))
	for i, a := range s.ActivityLog {
		a.SecurityEvents = slices.Clone(a.SecurityEvents)
		c.ActivityLog[i] = a
	}
	c.Location = slices.Clone(s.Location)
	if s.Metadata.Headers != nil {
		c.Metadata.Headers = make(map[string]string, len(s.Metadata.Headers))
		for k, v := range s.Metadata.Headers {
			c.Metadata.Headers[k] = v
		}
	}
	return &c
}

// appendActivity adds an entry and drops the oldest ones beyond limit.
func (s *Session) appendActivity(a Activity, limit int) {
	s.ActivityLog = append(s.ActivityLog, a)
	if limit > 0 && len(s.ActivityLog) > limit {
		s.ActivityLog = slices.Clone(s.ActivityLog[len(s.ActivityLog)-limit:])
	}
}

// Identity is the authenticated principal a session is issued for.
type Identity struct {
	UserID   string
	Username string
	Role     string
}

func (i Identity) normalize() Identity {
	if i.UserID == "" {
		i.UserID = i.Username
	}
	if i.Role == "" {
		i.Role = DefaultRole
	}
	return i
}

// RequestContext carries the per-request signals the manager needs.
// ClientIP must already be resolved through any proxy headers.
type RequestContext struct {
	ClientIP       string
	UserAgent      string
	AcceptLanguage string
	AcceptEncoding string
	Path           string
	RemoteAddr     string
}

// FromRequest builds a RequestContext from an HTTP request.
func FromRequest(r *http.Request) RequestContext {
	if r == nil {
		return RequestContext{ClientIP: clientip.DefaultIP}
	}
	return RequestContext{
		ClientIP:       clientip.GetIP(r),
		UserAgent:      r.UserAgent(),
		AcceptLanguage: r.Header.Get("Accept-Language"),
		AcceptEncoding: r.Header.Get("Accept-Encoding"),
		Path:           r.URL.Path,
		RemoteAddr:     r.RemoteAddr,
	}
}

func (rc RequestContext) userAgent() string {
	if rc.UserAgent == "" {
		return UnknownUserAgent
	}
	return rc.UserAgent
}

func (rc RequestContext) signals() security.Signals {
	ip := clientip.Normalize(rc.ClientIP)
	return security.Signals{
		IP:        ip,
		UserAgent: rc.userAgent(),
		Device:    rc.device(ip),
	}
}

func (rc RequestContext) device(ip string) fingerprint.Components {
	return fingerprint.Components{
		UserAgent:      rc.UserAgent,
		AcceptLanguage: rc.AcceptLanguage,
		AcceptEncoding: rc.AcceptEncoding,
		IP:             ip,
	}
}

// generateID returns 32 random bytes (256 bits) hex encoded.
func generateID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
