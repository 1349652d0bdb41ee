package session

import "errors"

var (
	// ErrNotFound is returned when a session cannot be found in the store.
	ErrNotFound = errors.New("session not found")
	// ErrVersionConflict is returned by Store.Update when the row changed since it was read.
	ErrVersionConflict = errors.New("session was modified concurrently")
	// ErrMissingUsername is returned when creating a session without a username.
	ErrMissingUsername = errors.New("username is required")
	// ErrIDGeneration is returned when session ID generation fails.
	ErrIDGeneration = errors.New("failed to generate session id")
	// ErrCreateSession is returned when persisting a new session fails.
	ErrCreateSession = errors.New("failed to create session")
	// ErrTerminateSession is returned when persisting a termination fails.
	ErrTerminateSession = errors.New("failed to terminate session")
	// ErrLockTimeout is returned when a session lock cannot be acquired in time.
	ErrLockTimeout = errors.New("timed out waiting for session lock")
)
