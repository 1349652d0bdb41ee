package retention

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/sessionguard/core/logger"
	"github.com/dmitrymomot/sessionguard/core/session"
)

// Result reports the rows changed by one sweep.
type Result struct {
	ExpiredUpdated int64 `json:"expiredUpdated"`
	DeletedOld     int64 `json:"deletedOld"`
}

// Stats provides observability metrics.
type Stats struct {
	Runs         int64     // Completed sweeps, failed ones included
	Failures     int64     // Sweeps that returned an error
	ExpiredTotal int64     // Sessions expired since start
	DeletedTotal int64     // Sessions purged since start
	ActiveSweeps int32     // Sweeps currently running
	LastRun      time.Time // Zero until the first sweep finishes
	IsRunning    bool
}

// Sweeper periodically expires idle sessions and purges old terminated ones.
// Sweeps may overlap; both operations are idempotent.
type Sweeper struct {
	store           session.Store
	archiver        Archiver
	interval        time.Duration
	retention       time.Duration
	shutdownTimeout time.Duration
	storeTimeout    time.Duration
	logger          *slog.Logger
	now             func() time.Time

	mu      sync.RWMutex
	cancel  context.CancelFunc
	running atomic.Bool
	wg      sync.WaitGroup

	runs         atomic.Int64
	failures     atomic.Int64
	expiredTotal atomic.Int64
	deletedTotal atomic.Int64
	activeSweeps atomic.Int32
	lastRun      atomic.Int64 // unix nanos
}

// New creates a sweeper over store.
func New(store session.Store, opts ...Option) (*Sweeper, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	s := &Sweeper{
		store:           store,
		interval:        5 * time.Minute,
		retention:       24 * time.Hour,
		shutdownTimeout: 30 * time.Second,
		storeTimeout:    5 * time.Second,
		logger:          logger.Nop(),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Purge runs one sweep immediately. The expiry sweep and the purge are
// independent: a failure of one does not skip the other.
func (s *Sweeper) Purge(ctx context.Context) (Result, error) {
	if s.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.storeTimeout)
		defer cancel()
	}

	s.activeSweeps.Add(1)
	defer s.activeSweeps.Add(-1)

	now := s.now().UTC()
	cutoff := now.Add(-s.retention)
	var (
		res  Result
		errs []error
	)

	expired, err := s.store.ExpireIdle(ctx, cutoff, now)
	if err != nil {
		errs = append(errs, errors.Join(ErrExpireFailed, err))
	}
	res.ExpiredUpdated = expired

	purged, err := s.store.PurgeTerminated(ctx, cutoff)
	if err != nil {
		errs = append(errs, errors.Join(ErrPurgeFailed, err))
	}
	res.DeletedOld = int64(len(purged))

	if len(purged) > 0 && s.archiver != nil {
		if err := s.archiver.Archive(ctx, purged); err != nil {
			s.logger.ErrorContext(ctx, "failed to archive purged sessions",
				logger.Count("sessions", len(purged)), logger.Error(err))
		}
	}

	s.runs.Add(1)
	s.expiredTotal.Add(res.ExpiredUpdated)
	s.deletedTotal.Add(res.DeletedOld)
	s.lastRun.Store(now.UnixNano())

	err = errors.Join(errs...)
	if err != nil {
		s.failures.Add(1)
	}
	return res, err
}

// Start runs sweeps every interval until ctx is cancelled or Stop is called.
// This is a blocking operation; use Run for the errgroup pattern.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.running.Store(true)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "session sweeper started",
		slog.Duration("interval", s.interval),
		slog.Duration("retention", s.retention))

	s.sweepAsync()
	for {
		select {
		case <-ctx.Done():
			s.running.Store(false)
			s.logger.InfoContext(context.Background(), "session sweeper stopping")
			return ctx.Err()
		case <-ticker.C:
			s.sweepAsync()
		}
	}
}

// Stop cancels the loop and waits up to the shutdown timeout for running sweeps.
func (s *Sweeper) Stop() error {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.running.Store(false)
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.InfoContext(context.Background(), "session sweeper stopped cleanly")
		return nil
	case <-time.After(s.shutdownTimeout):
		s.logger.WarnContext(context.Background(), "session sweeper shutdown timeout exceeded",
			slog.Duration("timeout", s.shutdownTimeout))
		return ErrShutdown
	}
}

// Run provides errgroup compatibility.
func (s *Sweeper) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- s.Start(ctx)
		}()

		select {
		case <-ctx.Done():
			_ = s.Stop()
			<-errCh
			return nil
		case err := <-errCh:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

// sweepAsync starts a sweep in its own goroutine so a slow store never delays
// the next tick.
func (s *Sweeper) sweepAsync() {
	// Registering with the wait group under the lock keeps Stop from missing it.
	s.mu.RLock()
	if s.cancel == nil {
		s.mu.RUnlock()
		return
	}
	s.wg.Add(1)
	s.mu.RUnlock()

	go func() {
		defer s.wg.Done()
		ctx := context.Background()
		start := time.Now()
		res, err := s.Purge(ctx)
		counts := logger.Group("result",
			slog.Int64("expired_updated", res.ExpiredUpdated),
			slog.Int64("deleted_old", res.DeletedOld),
		)
		if err != nil {
			s.logger.ErrorContext(ctx, "session sweep failed",
				counts, logger.Elapsed(start), logger.Error(err))
			return
		}
		if res.ExpiredUpdated > 0 || res.DeletedOld > 0 {
			s.logger.InfoContext(ctx, "session sweep completed", counts, logger.Elapsed(start))
		}
	}()
}

// Stats returns current metrics.
func (s *Sweeper) Stats() Stats {
	st := Stats{
		Runs:         s.runs.Load(),
		Failures:     s.failures.Load(),
		ExpiredTotal: s.expiredTotal.Load(),
		DeletedTotal: s.deletedTotal.Load(),
		ActiveSweeps: s.activeSweeps.Load(),
		IsRunning:    s.running.Load(),
	}
	if n := s.lastRun.Load(); n > 0 {
		st.LastRun = time.Unix(0, n).UTC()
	}
	return st
}

// Healthcheck returns ErrNotRunning unless the loop is active.
func (s *Sweeper) Healthcheck(ctx context.Context) error {
	if !s.running.Load() {
		return ErrNotRunning
	}
	return nil
}
