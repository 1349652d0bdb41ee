// Package httpapi exposes the session service to operators and login services.
//
// Routes:
//
//	POST   /sessions                 create a session (sets the session cookie)
//	POST   /sessions/{id}/validate   validate against the caller's request signals
//	GET    /sessions/{id}            details view
//	DELETE /sessions/{id}?reason=    terminate (default reason admin_termination)
//	GET    /analytics?hours=24       aggregate summary
//	POST   /maintenance/purge        run one retention sweep now
//	GET    /events?kind=high_risk    websocket stream of session notices
//	GET    /health                   dependency checks (503 when any fails)
//	GET    /livez                    liveness, always 204
//	GET    /me                       the caller's own session, validated by cookie or header
//	DELETE /me                       log the caller out and clear the cookie
//
// Everything except /health, /livez and /me is an operator route and passes
// through the middleware given to WithOperatorAuth, typically
// middleware.JWTWithConfig. Without it operator routes answer 503. Notices on
// the event stream carry only a session_ref prefix, never the full id.
//
// Create and validate accept optional ip_address and user_agent fields in the
// body; when present they replace the values derived from the HTTP request.
//
// Usage:
//
//	api := httpapi.New(manager,
//		httpapi.WithPurger(sweeper),
//		httpapi.WithSummarizer(analytics.New(store)),
//		httpapi.WithNotices(notices),
//		httpapi.WithOperatorAuth(middleware.JWTWithConfig(middleware.JWTConfig{Service: tokens})),
//		httpapi.WithHealthcheck("postgres", pg.Healthcheck(pool)),
//		httpapi.WithLogger(log),
//	)
//	srv := &http.Server{Addr: ":8080", Handler: api}
//
// Errors are JSON bodies of the form {"code": "...", "message": "..."}.
package httpapi
