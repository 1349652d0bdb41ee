// Package redislock implements session.Locker on Redis so that several
// processes sharing one store serialize writes to the same session.
//
// A lock is a key set with SET NX PX holding a random token. It is released
// with a compare-and-delete script, so an expired lock taken over by another
// holder is never removed by the previous one.
package redislock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/sessionguard/core/logger"
	"github.com/dmitrymomot/sessionguard/core/session"
)

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a session.Locker backed by Redis.
type Locker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	retry  time.Duration
	logger *slog.Logger
}

var _ session.Locker = (*Locker)(nil)

// Option configures a Locker.
type Option func(*Locker)

// WithPrefix sets the key prefix. Default "sessionguard:lock:".
func WithPrefix(prefix string) Option {
	return func(l *Locker) { l.prefix = prefix }
}

// WithTTL sets how long an abandoned lock survives. Default 10s.
func WithTTL(ttl time.Duration) Option {
	return func(l *Locker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithRetryInterval sets the polling interval while waiting. Default 25ms.
func WithRetryInterval(d time.Duration) Option {
	return func(l *Locker) {
		if d > 0 {
			l.retry = d
		}
	}
}

// WithLogger sets the logger used for release failures.
func WithLogger(log *slog.Logger) Option {
	return func(l *Locker) {
		if log != nil {
			l.logger = log
		}
	}
}

// New creates a Locker.
func New(client redis.UniversalClient, opts ...Option) *Locker {
	l := &Locker{
		client: client,
		prefix: "sessionguard:lock:",
		ttl:    10 * time.Second,
		retry:  25 * time.Millisecond,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lock implements session.Locker.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	key = l.prefix + key

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			return nil, err
		}
		if ok {
			return l.unlocker(key, token), nil
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(session.ErrLockTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *Locker) unlocker(key, token string) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), l.ttl)
		defer cancel()
		if err := unlockScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warn("failed to release session lock", logger.Key("lock", key), logger.Error(err))
		}
	}
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
