package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker(t *testing.T) {
	t.Parallel()

	t.Run("serializes holders of one key", func(t *testing.T) {
		t.Parallel()
		l := NewMemoryLocker()
		ctx := context.Background()

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			inside  int
			maxSeen int
		)
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock, err := l.Lock(ctx, "k")
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				inside++
				maxSeen = max(maxSeen, inside)
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				inside--
				mu.Unlock()
				unlock()
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, maxSeen)
		assert.Equal(t, 0, l.held())
	})

	t.Run("independent keys", func(t *testing.T) {
		t.Parallel()
		l := NewMemoryLocker()
		ctx := context.Background()
		unlockA, err := l.Lock(ctx, "a")
		require.NoError(t, err)
		unlockB, err := l.Lock(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, 2, l.held())
		unlockA()
		unlockB()
		assert.Equal(t, 0, l.held())
	})

	t.Run("times out", func(t *testing.T) {
		t.Parallel()
		l := NewMemoryLocker()
		unlock, err := l.Lock(context.Background(), "k")
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err = l.Lock(ctx, "k")
		assert.ErrorIs(t, err, ErrLockTimeout)
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		unlock()
		unlock() // second call is a no-op
		assert.Equal(t, 0, l.held())
	})
}

func TestSession_appendActivity(t *testing.T) {
	t.Parallel()

	s := &Session{}
	for i := range 7 {
		s.appendActivity(Activity{DurationMS: int64(i)}, 5)
	}
	require.Len(t, s.ActivityLog, 5)
	assert.Equal(t, int64(2), s.ActivityLog[0].DurationMS)
	assert.Equal(t, int64(6), s.ActivityLog[4].DurationMS)
}

func TestSession_Clone(t *testing.T) {
	t.Parallel()

	now := time.Now()
	s := &Session{
		ID:          "x",
		LogoutTime:  &now,
		ActivityLog: []Activity{{Action: ActionCreated}},
		Metadata:    Metadata{Headers: map[string]string{"a": "b"}},
	}
	c := s.Clone()
	c.ActivityLog[0].Action = "changed"
	c.Metadata.Headers["a"] = "c"
	*c.LogoutTime = now.Add(time.Hour)

	assert.Equal(t, ActionCreated, s.ActivityLog[0].Action)
	assert.Equal(t, "b", s.Metadata.Headers["a"])
	assert.Equal(t, now, *s.LogoutTime)
}

func TestDefaultStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, StatusExpired, DefaultStatus(ReasonTimeout))
	assert.Equal(t, StatusExpired, DefaultStatus(ReasonExpired))
	assert.Equal(t, StatusLoggedOut, DefaultStatus(ReasonConcurrentLimit))
	assert.Equal(t, StatusLoggedOut, DefaultStatus("anything"))

	fn := TerminatedFor(ReasonConcurrentLimit)
	assert.Equal(t, StatusTerminated, fn(ReasonConcurrentLimit))
	assert.Equal(t, StatusExpired, fn(ReasonTimeout))
}
