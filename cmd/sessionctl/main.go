// Command sessionctl inspects and maintains sessions directly in the session
// database: show, terminate, purge and analytics. token mints operator bearer
// tokens for the sessiond API.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrymomot/sessionguard/core/config"
	"github.com/dmitrymomot/sessionguard/core/session"
	"github.com/dmitrymomot/sessionguard/core/session/pgstore"
	"github.com/dmitrymomot/sessionguard/integration/database/pg"
)

func main() {
	if err := newApp(openPostgres).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openPostgres(ctx context.Context) (session.Store, func(), error) {
	var cfg pg.Config
	if err := config.Load(&cfg); err != nil {
		return nil, nil, err
	}
	// Operator commands fail fast instead of waiting out connection retries.
	cfg.RetryAttempts = 0
	pool, err := pg.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return pgstore.New(pool), pool.Close, nil
}
