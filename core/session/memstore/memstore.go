// Package memstore provides an in-memory session.Store for tests and local runs.
package memstore

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dmitrymomot/sessionguard/core/session"
)

// Store is a session.Store backed by a map. Sessions are copied on the way in
// and on the way out.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
}

var _ session.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{sessions: make(map[string]*session.Session)}
}

// Get implements session.Store.
func (s *Store) Get(ctx context.Context, id string) (*session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	return sess.Clone(), nil
}

// Create implements session.Store. An existing ID is overwritten.
func (s *Store) Create(ctx context.Context, sess *session.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

// Put stores sess as is, without version checks. Used to seed fixtures.
func (s *Store) Put(sess *session.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess.Clone()
}

// Update implements session.Store.
func (s *Store) Update(ctx context.Context, sess *session.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.sessions[sess.ID]
	if !ok {
		return session.ErrNotFound
	}
	if current.Version != sess.Version {
		return session.ErrVersionConflict
	}
	sess.Version++
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

// CountActive implements session.Store.
func (s *Store) CountActive(ctx context.Context, username string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, sess := range s.sessions {
		if sess.Username == username && sess.IsActive() {
			n++
		}
	}
	return n, nil
}

// OldestActive implements session.Store. Ties on last activity are broken by
// login time, then ID.
func (s *Store) OldestActive(ctx context.Context, username string) (*session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var oldest *session.Session
	for _, sess := range s.sessions {
		if sess.Username != username || !sess.IsActive() {
			continue
		}
		if oldest == nil || compareActivity(sess, oldest) < 0 {
			oldest = sess
		}
	}
	if oldest == nil {
		return nil, session.ErrNotFound
	}
	return oldest.Clone(), nil
}

func compareActivity(a, b *session.Session) int {
	return cmp.Or(
		a.LastActivity.Compare(b.LastActivity),
		a.LoginTime.Compare(b.LoginTime),
		cmp.Compare(a.ID, b.ID),
	)
}

// ExpireIdle implements session.Store.
func (s *Store) ExpireIdle(ctx context.Context, idleBefore, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, sess := range s.sessions {
		if !sess.IsActive() || !sess.LastActivity.Before(idleBefore) {
			continue
		}
		t := now
		sess.Status = session.StatusExpired
		sess.LogoutTime = &t
		sess.UpdatedAt = now
		sess.Version++
		n++
	}
	return n, nil
}

// PurgeTerminated implements session.Store.
func (s *Store) PurgeTerminated(ctx context.Context, cutoff time.Time) ([]*session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var purged []*session.Session
	for id, sess := range s.sessions {
		if sess.IsActive() {
			continue
		}
		stamp := sess.UpdatedAt
		if sess.LogoutTime != nil {
			stamp = *sess.LogoutTime
		}
		if stamp.Before(cutoff) {
			purged = append(purged, sess)
			delete(s.sessions, id)
		}
	}
	slices.SortFunc(purged, func(a, b *session.Session) int { return cmp.Compare(a.ID, b.ID) })
	return purged, nil
}

// ListCreatedSince implements session.Store. Results are ordered by login time.
func (s *Store) ListCreatedSince(ctx context.Context, since time.Time) ([]*session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if !sess.LoginTime.Before(since) {
			out = append(out, sess.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *session.Session) int {
		return cmp.Or(a.LoginTime.Compare(b.LoginTime), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

// Len returns the number of stored sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
