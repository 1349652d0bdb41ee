package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dmitrymomot/sessionguard/core/logger"
	"github.com/dmitrymomot/sessionguard/pkg/jwt"
)

// ErrMissingToken is passed to the JWT error handler when no token was found.
var ErrMissingToken = errors.New("missing bearer token")

type jwtClaimsContextKey struct{}

// JWTConfig configures the JWT authentication middleware.
type JWTConfig struct {
	// Skip defines a function to skip middleware execution for specific requests
	Skip func(r *http.Request) bool
	// Service verifies tokens (required)
	Service *jwt.Service
	// TokenExtractor finds the token (default: Authorization: Bearer)
	TokenExtractor func(r *http.Request) string
	// ErrorHandler writes the rejection (default: 401 JSON)
	ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)
	// Logger for structured logging (default: discard)
	Logger *slog.Logger
}

// JWT requires a valid HS256 bearer token signed with signingKey.
// Panics if the key is rejected by jwt.New.
func JWT(signingKey string) func(http.Handler) http.Handler {
	service, err := jwt.NewFromString(signingKey)
	if err != nil {
		panic("jwt middleware: " + err.Error())
	}
	return JWTWithConfig(JWTConfig{Service: service})
}

// JWTWithConfig is JWT with full configuration. Verified claims are stored in
// the request context, see GetJWTClaims.
// Panics if the service is not provided.
func JWTWithConfig(cfg JWTConfig) func(http.Handler) http.Handler {
	if cfg.Service == nil {
		panic("jwt middleware: service is required")
	}
	if cfg.TokenExtractor == nil {
		cfg.TokenExtractor = JWTFromAuthHeader()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultJWTError
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Skip != nil && cfg.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			token := cfg.TokenExtractor(r)
			if token == "" {
				cfg.ErrorHandler(w, r, ErrMissingToken)
				return
			}

			claims := &jwt.StandardClaims{}
			if err := cfg.Service.Parse(token, claims); err != nil {
				cfg.Logger.WarnContext(r.Context(), "bearer token rejected",
					logger.Path(r.URL.Path),
					logger.Error(err),
				)
				cfg.ErrorHandler(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), jwtClaimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetJWTClaims returns the claims verified for this request.
func GetJWTClaims(ctx context.Context) (*jwt.StandardClaims, bool) {
	claims, ok := ctx.Value(jwtClaimsContextKey{}).(*jwt.StandardClaims)
	return claims, ok
}

// JWTFromAuthHeader reads "Authorization: Bearer <token>".
func JWTFromAuthHeader() func(r *http.Request) string {
	return func(r *http.Request) string {
		scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}
}

func defaultJWTError(w http.ResponseWriter, _ *http.Request, err error) {
	reason := "invalid token"
	switch {
	case errors.Is(err, ErrMissingToken):
		reason = "missing token"
	case errors.Is(err, jwt.ErrExpiredToken):
		reason = "token expired"
	}
	w.Header().Set("WWW-Authenticate", `Bearer realm="sessionguard"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":  "unauthorized",
		"reason": reason,
	})
}
