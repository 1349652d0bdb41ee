package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Store defines the persistence interface for session management.
// Implementations must handle concurrent access safely and must never hand out
// references to their internal state.
type Store interface {
	// Get returns the session or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)
	// Create inserts a new session.
	Create(ctx context.Context, s *Session) error
	// Update writes s only if the stored version still equals s.Version,
	// then increments s.Version. Returns ErrVersionConflict otherwise and
	// ErrNotFound when the row is gone.
	Update(ctx context.Context, s *Session) error
	// CountActive returns the number of active sessions of username.
	CountActive(ctx context.Context, username string) (int, error)
	// OldestActive returns the active session of username with the oldest
	// last activity, or ErrNotFound.
	OldestActive(ctx context.Context, username string) (*Session, error)
	// ExpireIdle sets every active session whose last activity is before
	// idleBefore to expired with logout time now. Returns rows changed.
	ExpireIdle(ctx context.Context, idleBefore, now time.Time) (int64, error)
	// PurgeTerminated deletes non-active sessions whose logout time, or update
	// time when logout time is missing, is before cutoff. Returns the deleted rows.
	PurgeTerminated(ctx context.Context, cutoff time.Time) ([]*Session, error)
	// ListCreatedSince returns sessions whose login time is at or after since.
	ListCreatedSince(ctx context.Context, since time.Time) ([]*Session, error)
}

// Locker serializes read-modify-write cycles on a key.
type Locker interface {
	// Lock blocks until the key is held or ctx is done.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// MemoryLocker is a process local keyed mutex.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

// NewMemoryLocker creates an empty MemoryLocker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*keyLock)}
}

// Lock implements Locker.
func (l *MemoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, kl)
		return nil, errors.Join(ErrLockTimeout, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.ch
			l.release(key, kl)
		})
	}, nil
}

func (l *MemoryLocker) release(key string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

// held returns the number of keys currently tracked. Tests only.
func (l *MemoryLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func sessionKey(id string) string {
	return "session:" + id
}

func userKey(username string) string {
	return "user:" + username
}
