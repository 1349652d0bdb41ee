package analytics_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionguard/core/analytics"
	"github.com/dmitrymomot/sessionguard/core/risk"
	"github.com/dmitrymomot/sessionguard/core/security"
	"github.com/dmitrymomot/sessionguard/core/session"
	"github.com/dmitrymomot/sessionguard/core/session/memstore"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func fixture() *memstore.Store {
	store := memstore.New()
	logout := now.Add(-2 * time.Hour)
	store.Put(&session.Session{
		ID:             "s1",
		Username:       "alice",
		Status:         session.StatusActive,
		RiskScore:      10,
		IPAddress:      "10.0.0.5",
		UserAgent:      "Firefox",
		LoginTime:      now.Add(-60 * time.Minute),
		SecurityEvents: []security.Event{{Type: security.EventIPChange}},
	})
	store.Put(&session.Session{
		ID:           "s2",
		Username:     "alice",
		Status:       session.StatusActive,
		RiskScore:    40,
		IPAddress:    "10.0.0.6",
		UserAgent:    "Firefox",
		LoginTime:    now.Add(-30 * time.Minute),
		AnomalyFlags: []security.Anomaly{{Type: "odd"}},
	})
	store.Put(&session.Session{
		ID:         "s3",
		Username:   "bob",
		Status:     session.StatusLoggedOut,
		RiskScore:  80,
		IPAddress:  "10.0.0.5",
		UserAgent:  "Safari",
		LoginTime:  now.Add(-3 * time.Hour),
		LogoutTime: &logout,
	})
	store.Put(&session.Session{
		ID:        "old",
		Username:  "carol",
		Status:    session.StatusActive,
		LoginTime: now.Add(-48 * time.Hour),
	})
	return store
}

func TestAggregator_Summarize(t *testing.T) {
	t.Parallel()

	agg := analytics.New(fixture(), analytics.WithClock(func() time.Time { return now }))
	sum, err := agg.Summarize(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 3, sum.TotalSessions)
	assert.Equal(t, 2, sum.ActiveSessions)
	// 80 is at or above the critical threshold of 75.
	assert.Equal(t, analytics.RiskDistribution{Low: 1, Medium: 1, High: 0, Critical: 1}, sum.RiskDistribution)
	assert.Equal(t, map[string]int{"alice": 2, "bob": 1}, sum.UserSessions)
	assert.Equal(t, 1, sum.SecurityEvents)
	assert.Equal(t, 1, sum.Anomalies)
	assert.Equal(t, 2, sum.UniqueIPs)
	assert.Equal(t, 2, sum.UniqueUserAgents)
	// (60 + 30 + 60) / 3
	assert.Equal(t, 50*time.Minute, sum.AverageDuration)
	assert.Equal(t, int64(50), sum.AverageDurationMinutes)
	assert.Equal(t, now.Add(-24*time.Hour), sum.Since)
}

func TestAggregator_CustomThresholds(t *testing.T) {
	t.Parallel()

	agg := analytics.New(fixture(),
		analytics.WithClock(func() time.Time { return now }),
		analytics.WithThresholds(risk.Thresholds{Medium: 25, High: 50, Critical: 90}),
	)
	sum, err := agg.Summarize(context.Background(), 24)
	require.NoError(t, err)
	assert.Equal(t, analytics.RiskDistribution{Low: 1, Medium: 1, High: 1}, sum.RiskDistribution)
}

func TestAggregator_Empty(t *testing.T) {
	t.Parallel()

	agg := analytics.New(memstore.New())
	sum, err := agg.Summarize(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, sum.TotalSessions)
	assert.Zero(t, sum.AverageDuration)
	assert.NotNil(t, sum.UserSessions)

	_, err = agg.Summarize(context.Background(), 0)
	assert.ErrorIs(t, err, analytics.ErrInvalidTimeframe)
}

type mockLister struct {
	mock.Mock
}

func (m *mockLister) ListCreatedSince(ctx context.Context, since time.Time) ([]*session.Session, error) {
	args := m.Called(ctx, since)
	sessions, _ := args.Get(0).([]*session.Session)
	return sessions, args.Error(1)
}

func TestAggregator_StoreError(t *testing.T) {
	t.Parallel()

	lister := &mockLister{}
	lister.On("ListCreatedSince", mock.Anything, now.Add(-6*time.Hour)).Return(nil, errors.New("timeout"))

	agg := analytics.New(lister, analytics.WithClock(func() time.Time { return now }))
	_, err := agg.Summarize(context.Background(), 6)
	assert.Error(t, err)
	lister.AssertExpectations(t)
}
