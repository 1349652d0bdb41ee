// Package redis connects to Redis for the distributed session lock.
//
// Redis is optional. When REDIS_URL is empty, Config.Enabled reports false and
// the daemon falls back to the in-process locker, which is only safe with a
// single replica.
//
// # Configuration
//
//	type Config struct {
//		ConnectionURL  string        `env:"REDIS_URL"`
//		RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
//		RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`
//		ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
//	}
//
// Both redis:// and rediss:// URLs are accepted.
//
// # Usage
//
//	if cfg.Enabled() {
//		client, err := redis.Connect(ctx, cfg)
//		if err != nil {
//			return err
//		}
//		defer client.Close()
//
//		locker := redislock.New(client, redislock.WithTTL(10*time.Second))
//		checks["redis"] = redis.Healthcheck(client)
//	}
//
// Connect pings until the server answers, waiting RetryInterval between
// attempts, and gives up after RetryAttempts retries or ConnectTimeout.
//
// # Errors
//
//   - ErrMissingURL: no connection URL configured
//   - ErrInvalidURL: URL could not be parsed
//   - ErrNotReady: PING never succeeded
//   - ErrHealthcheckFailed: PING failed during a health check
package redis
