// Package pg manages the PostgreSQL pool that backs the session store.
//
// Connect builds a pgxpool.Pool from Config and pings it, retrying on
// transient failures. Migrate applies goose migrations, either from
// MigrationsPath on disk or from an embedded filesystem passed with
// WithMigrationsFS. Healthcheck wraps a ping for the /health endpoint.
//
// # Configuration
//
//	type Config struct {
//		ConnectionString  string        `env:"PG_CONN_URL,required"`
//		MaxOpenConns      int32         `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
//		MaxIdleConns      int32         `env:"PG_MAX_IDLE_CONNS" envDefault:"5"`
//		HealthCheckPeriod time.Duration `env:"PG_HEALTHCHECK_PERIOD" envDefault:"1m"`
//		MaxConnIdleTime   time.Duration `env:"PG_MAX_CONN_IDLE_TIME" envDefault:"10m"`
//		MaxConnLifetime   time.Duration `env:"PG_MAX_CONN_LIFETIME" envDefault:"30m"`
//		RetryAttempts     int           `env:"PG_RETRY_ATTEMPTS" envDefault:"3"`
//		RetryInterval     time.Duration `env:"PG_RETRY_INTERVAL" envDefault:"5s"`
//		MigrationsPath    string        `env:"PG_MIGRATIONS_PATH" envDefault:"migrations"`
//		MigrationsTable   string        `env:"PG_MIGRATIONS_TABLE" envDefault:"schema_migrations"`
//	}
//
// # Usage
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, log, pg.WithMigrationsFS(pgstore.Migrations)); err != nil {
//		return err
//	}
//	store := pgstore.New(pool)
//
// # Transactions
//
// A pgx.Tx travels through the context. Stores look it up with TxFromContext
// and fall back to the pool when absent. InTx begins a transaction, runs the
// callback with it attached, and commits or rolls back:
//
//	err := pg.InTx(ctx, pool, func(ctx context.Context) error {
//		if _, err := store.Get(ctx, id); err != nil {
//			return err
//		}
//		return store.Update(ctx, sess)
//	})
//
// Nested InTx calls join the outer transaction.
//
// # Errors
//
// IsNotFoundError, IsDuplicateKeyError, IsForeignKeyViolationError and
// IsTxClosedError classify driver errors. Sentinels such as
// ErrFailedToOpenDBConnection, ErrFailedToApplyMigrations, ErrTxBegin and
// ErrTxCommit are joined with the underlying cause, so check them with errors.Is.
package pg
