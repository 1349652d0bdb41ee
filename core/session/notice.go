package session

import (
	"time"

	"github.com/dmitrymomot/sessionguard/core/security"
)

// NoticeKind identifies what a Notice reports.
type NoticeKind string

const (
	NoticeCreated    NoticeKind = "session_created"
	NoticeSecurity   NoticeKind = "security_event"
	NoticeHighRisk   NoticeKind = "high_risk"
	NoticeTerminated NoticeKind = "session_terminated"
)

// RefLength is the number of session id characters kept by Ref.
const RefLength = 12

// Ref returns the redacted form of a session id used outside the store.
// The full id is the bearer credential carried in the session cookie.
func Ref(id string) string {
	if len(id) > RefLength {
		return id[:RefLength]
	}
	return id
}

// Notice is published on the configured broadcaster. Notices leave the
// process (websocket stream, alert e-mail), so they carry SessionRef only.
type Notice struct {
	Kind       NoticeKind       `json:"kind"`
	SessionRef string           `json:"session_ref"`
	Username   string           `json:"username"`
	IPAddress  string           `json:"ip_address,omitempty"`
	RiskScore  int              `json:"risk_score"`
	Status     Status           `json:"status"`
	Reason     string           `json:"reason,omitempty"`
	Events     []security.Event `json:"events,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
}

func newNotice(kind NoticeKind, s *Session, now time.Time) Notice {
	return Notice{
		Kind:       kind,
		SessionRef: Ref(s.ID),
		Username:   s.Username,
		IPAddress:  s.IPAddress,
		RiskScore:  s.RiskScore,
		Status:     s.Status,
		Timestamp:  now,
	}
}
