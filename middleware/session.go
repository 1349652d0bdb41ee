package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dmitrymomot/sessionguard/core/logger"
	"github.com/dmitrymomot/sessionguard/core/session"
)

// Default locations of the session token.
const (
	DefaultSessionCookie = "sid"
	DefaultSessionHeader = "X-Session-ID"
)

// ReasonMissingToken is reported when the request carries no session token.
const ReasonMissingToken = "Missing session token"

type sessionContextKey struct{}

// Validator checks a session token against the current request.
// *session.Manager satisfies it.
type Validator interface {
	Validate(ctx context.Context, sessionID string, rc session.RequestContext) session.Validation
}

// SessionConfig configures the session middleware.
type SessionConfig struct {
	// Skip defines a function to skip middleware execution for specific requests
	Skip func(r *http.Request) bool
	// Manager validates the token (required)
	Manager Validator
	// CookieName is read first (default: "sid")
	CookieName string
	// HeaderName is read when the cookie is absent (default: "X-Session-ID")
	HeaderName string
	// LoginURL receives browser navigations that fail validation. Empty means always 401.
	LoginURL string
	// Logger for structured logging (default: discard)
	Logger *slog.Logger
	// ErrorHandler replaces the default rejection response
	ErrorHandler func(w http.ResponseWriter, r *http.Request, v session.Validation)
}

// RequireSession rejects requests without a valid session and stores the
// validated session in the request context.
func RequireSession(mgr Validator, cookieName, loginURL string) func(http.Handler) http.Handler {
	return RequireSessionWithConfig(SessionConfig{
		Manager:    mgr,
		CookieName: cookieName,
		LoginURL:   loginURL,
	})
}

// RequireSessionWithConfig is RequireSession with full configuration.
// On rejection the session cookie is cleared.
func RequireSessionWithConfig(cfg SessionConfig) func(http.Handler) http.Handler {
	if cfg.Manager == nil {
		panic("middleware: session manager is required")
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultSessionCookie
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultSessionHeader
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultSessionError(cfg.LoginURL)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Skip != nil && cfg.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			token := sessionToken(r, cfg.CookieName, cfg.HeaderName)
			if token == "" {
				cfg.ErrorHandler(w, r, session.Validation{Reason: ReasonMissingToken})
				return
			}

			v := cfg.Manager.Validate(r.Context(), token, session.FromRequest(r))
			if !v.Valid {
				cfg.Logger.DebugContext(r.Context(), "session rejected",
					logger.SessionID(token),
					logger.Reason(v.Reason),
					logger.Path(r.URL.Path),
				)
				http.SetCookie(w, &http.Cookie{
					Name:     cfg.CookieName,
					Value:    "",
					Path:     "/",
					MaxAge:   -1,
					HttpOnly: true,
				})
				cfg.ErrorHandler(w, r, v)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, v)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSession returns the session validated for this request.
func GetSession(ctx context.Context) (*session.Session, bool) {
	v, ok := ctx.Value(sessionContextKey{}).(session.Validation)
	if !ok || v.Session == nil {
		return nil, false
	}
	return v.Session, true
}

// GetValidation returns the full validation result, including the security report.
func GetValidation(ctx context.Context) (session.Validation, bool) {
	v, ok := ctx.Value(sessionContextKey{}).(session.Validation)
	return v, ok
}

func sessionToken(r *http.Request, cookieName, headerName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if v := strings.TrimSpace(r.Header.Get(headerName)); v != "" {
		return v
	}
	if v, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Session "); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func defaultSessionError(loginURL string) func(http.ResponseWriter, *http.Request, session.Validation) {
	return func(w http.ResponseWriter, r *http.Request, v session.Validation) {
		if loginURL != "" && r.Method == http.MethodGet &&
			strings.Contains(r.Header.Get("Accept"), "text/html") {
			http.Redirect(w, r, loginURL, http.StatusSeeOther)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":  "unauthorized",
			"reason": v.Reason,
		})
	}
}
