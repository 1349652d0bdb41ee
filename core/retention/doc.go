// Package retention retires sessions in the background.
//
// Every interval the Sweeper performs two independent, idempotent operations:
//
//  1. sessions still active whose last activity is older than the retention
//     window become expired;
//  2. sessions in a terminal state whose logout time (or update time when it is
//     missing) is older than the retention window are deleted.
//
// Purge runs the same sweep on demand and reports the affected counts.
//
//	sweeper, err := retention.New(store,
//		retention.WithInterval(5*time.Minute),
//		retention.WithRetention(24*time.Hour),
//		retention.WithLogger(log),
//	)
//	g.Go(sweeper.Run(ctx))
//
// Failed sweeps are logged and retried on the next tick. An optional Archiver
// receives the purged rows, for example integration/storage/s3.
package retention
