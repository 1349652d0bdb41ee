package retention

import "errors"

var (
	ErrStoreNil       = errors.New("retention: store is nil")
	ErrAlreadyStarted = errors.New("retention: sweeper already started")
	ErrNotStarted     = errors.New("retention: sweeper not started")
	ErrNotRunning     = errors.New("retention: sweeper is not running")
	ErrExpireFailed   = errors.New("retention: failed to expire idle sessions")
	ErrPurgeFailed    = errors.New("retention: failed to purge terminated sessions")
	ErrShutdown       = errors.New("retention: shutdown timeout exceeded")
)
