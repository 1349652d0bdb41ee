package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/sessionguard/core/session"
	"github.com/dmitrymomot/sessionguard/core/session/memstore"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newManager(opts ...session.Option) (*session.Manager, *memstore.Store, *testClock) {
	store := memstore.New()
	clock := newClock()
	opts = append([]session.Option{session.WithClock(clock.Now)}, opts...)
	return session.NewManager(store, opts...), store, clock
}

func internalRequest() session.RequestContext {
	return session.RequestContext{
		ClientIP:       "10.0.0.5",
		UserAgent:      "Mozilla/5.0",
		AcceptLanguage: "en-US",
		AcceptEncoding: "gzip",
		Path:           "/dashboard",
	}
}

var errStoreDown = errors.New("connection refused")

// failingStore fails the selected operations.
type failingStore struct {
	session.Store
	failGet    bool
	failCreate bool
	failUpdate bool
}

func (s *failingStore) Get(ctx context.Context, id string) (*session.Session, error) {
	if s.failGet {
		return nil, errStoreDown
	}
	return s.Store.Get(ctx, id)
}

func (s *failingStore) Create(ctx context.Context, sess *session.Session) error {
	if s.failCreate {
		return errStoreDown
	}
	return s.Store.Create(ctx, sess)
}

func (s *failingStore) Update(ctx context.Context, sess *session.Session) error {
	if s.failUpdate {
		return errStoreDown
	}
	return s.Store.Update(ctx, sess)
}

// conflictingStore reports a version conflict on the first n updates.
type conflictingStore struct {
	session.Store
	conflicts atomic.Int32
}

func (s *conflictingStore) Update(ctx context.Context, sess *session.Session) error {
	if s.conflicts.Add(-1) >= 0 {
		return session.ErrVersionConflict
	}
	return s.Store.Update(ctx, sess)
}
