package redis

import "errors"

var (
	// ErrMissingURL is returned by Connect when Config.ConnectionURL is empty.
	// Callers that treat Redis as optional check Config.Enabled first.
	ErrMissingURL = errors.New("redis connection url is not set")
	// ErrInvalidURL wraps the parse error of a malformed REDIS_URL.
	ErrInvalidURL = errors.New("invalid redis connection url")
	// ErrNotReady means PING kept failing until retries or the connect timeout ran out.
	ErrNotReady = errors.New("redis is not ready")
	// ErrHealthcheckFailed wraps the PING error returned by Healthcheck.
	ErrHealthcheckFailed = errors.New("redis healthcheck failed")
)
