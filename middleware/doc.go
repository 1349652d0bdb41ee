// Package middleware provides net/http middleware for the session service.
//
// Every constructor returns func(http.Handler) http.Handler, so the values plug
// into gorilla/mux Router.Use or wrap a plain handler.
//
//   - RequestID: assigns X-Request-ID and stores it in the context
//   - Logging: one structured record per request via slog
//   - BodyLimit: caps request body size
//   - RequireSession: validates the session token and stores the session
//   - JWT: requires an HS256 bearer token for operator routes
//
// # Session Middleware
//
//	r.Use(middleware.RequireSession(manager, "sid", "/login"))
//
//	func dashboard(w http.ResponseWriter, r *http.Request) {
//		sess, ok := middleware.GetSession(r.Context())
//		if !ok {
//			http.Error(w, "no session", http.StatusInternalServerError)
//			return
//		}
//		fmt.Fprintf(w, "hello %s", sess.Username)
//	}
//
// The token is read from the cookie, then the X-Session-ID header, then an
// "Authorization: Session <id>" header. Rejected requests get the cookie
// cleared. Browser GET navigations are redirected to the login URL when one is
// configured; everything else receives 401 with a JSON body carrying the
// validation reason.
//
// # Operator Tokens
//
//	tokens, _ := jwt.NewFromString(secret, jwt.WithIssuer("sessionguard"))
//	ops.Use(middleware.JWTWithConfig(middleware.JWTConfig{Service: tokens}))
//
// Verified claims are available through GetJWTClaims. Rejections answer 401
// with a WWW-Authenticate: Bearer challenge.
//
// # Request IDs in Logs
//
//	log := logger.New(logger.WithContextExtractors(middleware.RequestIDExtractor))
package middleware
