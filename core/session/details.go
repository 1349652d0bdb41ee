package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dmitrymomot/sessionguard/core/security"
)

// DetailActivityLimit is how many of the newest activity entries a DetailView shows.
const DetailActivityLimit = 50

// DetailView is a read-only projection of a session for operators.
// Timestamps are RFC 3339 strings in UTC.
type DetailView struct {
	SessionID         string             `json:"sessionId"`
	UserID            string             `json:"userId"`
	Username          string             `json:"username"`
	Role              string             `json:"role"`
	IPAddress         string             `json:"ipAddress"`
	UserAgent         string             `json:"userAgent"`
	DeviceFingerprint string             `json:"deviceFingerprint"`
	LoginTime         string             `json:"loginTime"`
	LastActivity      string             `json:"lastActivity"`
	ExpiresAt         string             `json:"expiresAt"`
	LogoutTime        string             `json:"logoutTime,omitempty"`
	LogoutReason      string             `json:"logoutReason,omitempty"`
	Status            Status             `json:"status"`
	RiskScore         int                `json:"riskScore"`
	DurationMinutes   int64              `json:"durationMinutes"`
	SecurityEvents    []security.Event   `json:"securityEvents"`
	ActivityLog       []Activity         `json:"activityLog"`
	AnomalyFlags      []security.Anomaly `json:"anomalyFlags"`
	Location          json.RawMessage    `json:"location,omitempty"`
	Metadata          Metadata           `json:"metadata"`
}

// Details returns the DetailView of a session or ErrNotFound.
func (m *Manager) Details(ctx context.Context, id string) (*DetailView, error) {
	sess, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewDetailView(sess, m.Now()), nil
}

// NewDetailView projects s as seen at now.
func NewDetailView(s *Session, now time.Time) *DetailView {
	s = s.Clone()
	role := s.Role
	if role == "" {
		role = DefaultRole
	}
	activity := s.ActivityLog
	if len(activity) > DetailActivityLimit {
		activity = activity[len(activity)-DetailActivityLimit:]
	}
	if activity == nil {
		activity = []Activity{}
	}
	events := s.SecurityEvents
	if events == nil {
		events = []security.Event{}
	}
	anomalies := s.AnomalyFlags
	if anomalies == nil {
		anomalies = []security.Anomaly{}
	}

	v := &DetailView{
		SessionID:         s.ID,
		UserID:            s.UserID,
		Username:          s.Username,
		Role:              role,
		IPAddress:         s.IPAddress,
		UserAgent:         s.UserAgent,
		DeviceFingerprint: s.DeviceFingerprint,
		LoginTime:         formatTime(s.LoginTime),
		LastActivity:      formatTime(s.LastActivity),
		ExpiresAt:         formatTime(s.ExpiresAt),
		LogoutReason:      s.LogoutReason,
		Status:            s.Status,
		RiskScore:         s.RiskScore,
		DurationMinutes:   int64(s.Duration(now) / time.Minute),
		SecurityEvents:    events,
		ActivityLog:       activity,
		AnomalyFlags:      anomalies,
		Location:          s.Location,
		Metadata:          s.Metadata,
	}
	if s.LogoutTime != nil {
		v.LogoutTime = formatTime(*s.LogoutTime)
	}
	return v
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
