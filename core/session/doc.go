// Package session implements the server side session lifecycle with security
// tracking.
//
// A session is issued by Manager.Create, checked on every protected request by
// Manager.Validate and retired by Manager.Terminate, the background sweeper in
// core/retention, or absolute expiry. The state machine is
//
//	active -> expired | logged_out | terminated
//
// and every terminal state is final; rows are removed only by the retention purge.
//
// # Creating sessions
//
//	mgr := session.NewManager(store,
//		session.WithLogger(log),
//		session.WithMaxConcurrent(5),
//	)
//
//	created, err := mgr.Create(ctx,
//		session.Identity{Username: "alice", Role: "user"},
//		session.FromRequest(r),
//	)
//
// ExpiresAt is fixed at creation (login time plus the retention window) and is
// never extended by activity. When the user already holds MaxConcurrent active
// sessions, the one with the oldest last activity is terminated with reason
// "concurrent_limit_exceeded" before the new one is stored.
//
// # Validation
//
// Validate never returns an error. It yields a Validation whose Reason is one of
// "Session not found", "Session status is <status>", "Session expired" or
// "Validation error" (store failure, fail closed). A valid call compares the
// request IP and user agent with the ones recorded at login, appends the events
// and an activity entry, raises the risk score and persists the session.
// Risk scores above the high risk threshold are logged and published but do not
// invalidate the session.
//
// # Consistency
//
// Each read-modify-write runs under a per-session Locker key and is written with
// Store.Update, which compares the version it read. On ErrVersionConflict the
// manager reloads and reapplies the change. Use core/session/redislock when
// several processes share one store.
//
// # Stores
//
// core/session/memstore keeps sessions in memory; core/session/pgstore persists
// them in PostgreSQL.
package session
