package retention_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionguard/core/retention"
	"github.com/dmitrymomot/sessionguard/core/session"
	"github.com/dmitrymomot/sessionguard/core/session/memstore"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func seed(store *memstore.Store) {
	oldLogout := now.Add(-30 * time.Hour)
	recentLogout := now.Add(-time.Hour)

	store.Put(&session.Session{ID: "active-fresh", Username: "a", Status: session.StatusActive,
		LoginTime: now.Add(-time.Hour), LastActivity: now.Add(-time.Minute), UpdatedAt: now})
	store.Put(&session.Session{ID: "active-idle", Username: "a", Status: session.StatusActive,
		LoginTime: now.Add(-48 * time.Hour), LastActivity: now.Add(-25 * time.Hour), UpdatedAt: now.Add(-25 * time.Hour)})
	store.Put(&session.Session{ID: "logged-out-old", Username: "a", Status: session.StatusLoggedOut,
		LogoutTime: &oldLogout, UpdatedAt: oldLogout})
	store.Put(&session.Session{ID: "logged-out-recent", Username: "a", Status: session.StatusLoggedOut,
		LogoutTime: &recentLogout, UpdatedAt: recentLogout})
	store.Put(&session.Session{ID: "expired-no-logout", Username: "a", Status: session.StatusExpired,
		UpdatedAt: now.Add(-48 * time.Hour)})
}

func TestSweeper_Purge(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	seed(store)

	var (
		mu       sync.Mutex
		archived []string
	)
	sw, err := retention.New(store,
		retention.WithClock(clock),
		retention.WithArchiver(retention.ArchiverFunc(func(_ context.Context, ss []*session.Session) error {
			mu.Lock()
			defer mu.Unlock()
			for _, s := range ss {
				archived = append(archived, s.ID)
			}
			return nil
		})),
	)
	require.NoError(t, err)
	ctx := context.Background()

	res, err := sw.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.ExpiredUpdated)
	assert.Equal(t, int64(2), res.DeletedOld)
	assert.ElementsMatch(t, []string{"logged-out-old", "expired-no-logout"}, archived)

	idle, err := store.Get(ctx, "active-idle")
	require.NoError(t, err)
	assert.Equal(t, session.StatusExpired, idle.Status)
	require.NotNil(t, idle.LogoutTime)
	assert.Equal(t, now, *idle.LogoutTime)

	fresh, err := store.Get(ctx, "active-fresh")
	require.NoError(t, err)
	assert.Equal(t, session.StatusActive, fresh.Status)

	_, err = store.Get(ctx, "logged-out-recent")
	assert.NoError(t, err)

	// Idempotent: the freshly expired row has a recent logout time and stays.
	res, err = sw.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, retention.Result{}, res)
	assert.Equal(t, 3, store.Len())

	stats := sw.Stats()
	assert.Equal(t, int64(2), stats.Runs)
	assert.Equal(t, int64(1), stats.ExpiredTotal)
	assert.Equal(t, int64(2), stats.DeletedTotal)
	assert.Equal(t, now, stats.LastRun)
}

type brokenExpiry struct {
	*memstore.Store
}

func (brokenExpiry) ExpireIdle(context.Context, time.Time, time.Time) (int64, error) {
	return 0, errors.New("deadlock detected")
}

func TestSweeper_PurgeIndependentFailures(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	seed(store)
	sw, err := retention.New(brokenExpiry{store}, retention.WithClock(clock))
	require.NoError(t, err)

	res, err := sw.Purge(context.Background())
	assert.ErrorIs(t, err, retention.ErrExpireFailed)
	assert.NotErrorIs(t, err, retention.ErrPurgeFailed)
	assert.Equal(t, int64(2), res.DeletedOld)
	assert.Equal(t, int64(1), sw.Stats().Failures)
}

func TestSweeper_ArchiverFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	seed(store)
	sw, err := retention.New(store,
		retention.WithClock(clock),
		retention.WithArchiver(retention.ArchiverFunc(func(context.Context, []*session.Session) error {
			return errors.New("bucket unavailable")
		})),
	)
	require.NoError(t, err)

	res, err := sw.Purge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.DeletedOld)
}

func TestSweeper_Lifecycle(t *testing.T) {
	t.Parallel()

	_, err := retention.New(nil)
	assert.ErrorIs(t, err, retention.ErrStoreNil)

	store := memstore.New()
	seed(store)
	sw, err := retention.New(store,
		retention.WithClock(clock),
		retention.WithInterval(10*time.Millisecond),
	)
	require.NoError(t, err)
	assert.ErrorIs(t, sw.Healthcheck(context.Background()), retention.ErrNotRunning)
	assert.ErrorIs(t, sw.Stop(), retention.ErrNotStarted)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sw.Run(ctx)() }()

	assert.Eventually(t, func() bool { return sw.Stats().Runs >= 3 }, time.Second, 5*time.Millisecond)
	assert.NoError(t, sw.Healthcheck(context.Background()))
	assert.True(t, sw.Stats().IsRunning)
	assert.Equal(t, 3, store.Len())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
	assert.False(t, sw.Stats().IsRunning)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSweeper_LogsSweepResult(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	seed(store)
	var out syncBuffer
	sw, err := retention.New(store,
		retention.WithClock(clock),
		retention.WithInterval(10*time.Millisecond),
		retention.WithLogger(slog.New(slog.NewJSONHandler(&out, nil))),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- sw.Run(ctx)() }()

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), `"msg":"session sweep completed"`)
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	logs := out.String()
	assert.Contains(t, logs, `"result":{"expired_updated":1,"deleted_old":2}`)
	assert.Contains(t, logs, `"elapsed":`)
}
