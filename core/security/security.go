package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/sessionguard/core/risk"
	"github.com/dmitrymomot/sessionguard/pkg/fingerprint"
)

// Event types produced by the engine.
const (
	EventIPChange        = "ip_change"
	EventUserAgentChange = "user_agent_change"
)

// AnomalyFingerprintDrift is reported by FingerprintDrift.
const AnomalyFingerprintDrift = "fingerprint_drift"

// Signals are the identity signals compared between login and a later request.
// On the baseline side Fingerprint is the stored digest; on the current side
// Device holds the raw components it is recomputed from.
type Signals struct {
	IP          string
	UserAgent   string
	Fingerprint string
	Device      fingerprint.Components
}

// Event is a single security finding.
type Event struct {
	ID        uuid.UUID     `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Type      string        `json:"type"`
	Severity  risk.Severity `json:"severity"`
	Details   string        `json:"details"`
}

// Anomaly is a behavioural finding beyond identity drift.
type Anomaly struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Details   string    `json:"details"`
}

// Report is the outcome of one check.
type Report struct {
	Events    []Event   `json:"events"`
	Anomalies []Anomaly `json:"anomalies"`
}

// Severities returns the severity of every event in order.
func (r Report) Severities() []risk.Severity {
	out := make([]risk.Severity, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.Severity
	}
	return out
}

// Empty reports whether nothing was found.
func (r Report) Empty() bool {
	return len(r.Events) == 0 && len(r.Anomalies) == 0
}

// Detector is an extra anomaly heuristic run after the drift checks.
type Detector func(baseline, current Signals, now time.Time) []Anomaly

// FingerprintDrift flags requests whose device fingerprint no longer matches the
// one recorded at login. Baselines without a well-formed digest are skipped.
func FingerprintDrift(baseline, current Signals, now time.Time) []Anomaly {
	err := fingerprint.Validate(current.Device, baseline.Fingerprint)
	if !errors.Is(err, fingerprint.ErrMismatch) {
		return nil
	}
	return []Anomaly{{
		Timestamp: now,
		Type:      AnomalyFingerprintDrift,
		Details:   "Device fingerprint changed",
	}}
}

// Engine compares recorded signals with the current request. It never mutates its input.
type Engine struct {
	now       func() time.Time
	detectors []Detector
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithDetectors registers anomaly heuristics.
func WithDetectors(d ...Detector) Option {
	return func(e *Engine) {
		e.detectors = append(e.detectors, d...)
	}
}

// NewEngine creates an engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Check returns the drift events between baseline and current.
// Events and Anomalies are never nil.
func (e *Engine) Check(baseline, current Signals) Report {
	now := e.now().UTC()
	report := Report{Events: []Event{}, Anomalies: []Anomaly{}}

	if baseline.IP != current.IP {
		report.Events = append(report.Events, Event{
			ID:        uuid.New(),
			Timestamp: now,
			Type:      EventIPChange,
			Severity:  risk.SeverityMedium,
			Details:   fmt.Sprintf("IP changed from %s to %s", baseline.IP, current.IP),
		})
	}
	if baseline.UserAgent != current.UserAgent {
		report.Events = append(report.Events, Event{
			ID:        uuid.New(),
			Timestamp: now,
			Type:      EventUserAgentChange,
			Severity:  risk.SeverityLow,
			Details:   "User agent changed",
		})
	}

	for _, d := range e.detectors {
		report.Anomalies = append(report.Anomalies, d(baseline, current, now)...)
	}
	return report
}
