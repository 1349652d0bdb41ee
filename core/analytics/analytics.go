// Package analytics summarizes sessions created within a time window.
package analytics

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/dmitrymomot/sessionguard/core/risk"
	"github.com/dmitrymomot/sessionguard/core/session"
)

// ErrInvalidTimeframe is returned for a non-positive window.
var ErrInvalidTimeframe = errors.New("analytics: timeframe must be positive")

// Lister is the part of session.Store the aggregator reads.
type Lister interface {
	ListCreatedSince(ctx context.Context, since time.Time) ([]*session.Session, error)
}

// RiskDistribution counts sessions per risk level.
type RiskDistribution struct {
	Low      int `json:"low"`
	Medium   int `json:"medium"`
	High     int `json:"high"`
	Critical int `json:"critical"`
}

// Summary is the result of Summarize.
type Summary struct {
	TimeframeHours         int              `json:"timeframeHours"`
	Since                  time.Time        `json:"since"`
	TotalSessions          int              `json:"totalSessions"`
	ActiveSessions         int              `json:"activeSessions"`
	AverageDuration        time.Duration    `json:"-"`
	AverageDurationMinutes int64            `json:"averageSessionDuration"`
	RiskDistribution       RiskDistribution `json:"riskDistribution"`
	UserSessions           map[string]int   `json:"userSessions"`
	SecurityEvents         int              `json:"securityEvents"`
	Anomalies              int              `json:"anomalies"`
	UniqueIPs              int              `json:"uniqueIPs"`
	UniqueUserAgents       int              `json:"uniqueUserAgents"`
}

// Aggregator computes summaries. It never writes.
type Aggregator struct {
	store      Lister
	thresholds risk.Thresholds
	now        func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithThresholds overrides the level boundaries of the risk distribution.
func WithThresholds(t risk.Thresholds) Option {
	return func(a *Aggregator) { a.thresholds = t }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// New creates an aggregator.
func New(store Lister, opts ...Option) *Aggregator {
	a := &Aggregator{store: store, thresholds: risk.DefaultThresholds, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Summarize aggregates sessions that logged in within the last hours.
func (a *Aggregator) Summarize(ctx context.Context, hours int) (*Summary, error) {
	if hours <= 0 {
		return nil, ErrInvalidTimeframe
	}
	now := a.now().UTC()
	since := now.Add(-time.Duration(hours) * time.Hour)

	sessions, err := a.store.ListCreatedSince(ctx, since)
	if err != nil {
		return nil, err
	}
	return a.summarize(sessions, hours, since, now), nil
}

func (a *Aggregator) summarize(sessions []*session.Session, hours int, since, now time.Time) *Summary {
	sum := &Summary{
		TimeframeHours: hours,
		Since:          since,
		TotalSessions:  len(sessions),
		UserSessions:   make(map[string]int),
	}
	ips := make(map[string]struct{})
	agents := make(map[string]struct{})
	var total time.Duration

	for _, s := range sessions {
		if s.IsActive() {
			sum.ActiveSessions++
		}
		total += s.Duration(now)

		switch a.thresholds.Classify(s.RiskScore) {
		case risk.LevelLow:
			sum.RiskDistribution.Low++
		case risk.LevelMedium:
			sum.RiskDistribution.Medium++
		case risk.LevelHigh:
			sum.RiskDistribution.High++
		case risk.LevelCritical:
			sum.RiskDistribution.Critical++
		}

		sum.UserSessions[s.Username]++
		sum.SecurityEvents += len(s.SecurityEvents)
		sum.Anomalies += len(s.AnomalyFlags)
		if s.IPAddress != "" {
			ips[s.IPAddress] = struct{}{}
		}
		if s.UserAgent != "" {
			agents[s.UserAgent] = struct{}{}
		}
	}

	if n := len(sessions); n > 0 {
		sum.AverageDuration = total / time.Duration(n)
		sum.AverageDurationMinutes = int64(math.Round(sum.AverageDuration.Minutes()))
	}
	sum.UniqueIPs = len(ips)
	sum.UniqueUserAgents = len(agents)
	return sum
}
