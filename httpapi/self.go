package httpapi

import (
	"net/http"

	"github.com/dmitrymomot/sessionguard/core/logger"
	"github.com/dmitrymomot/sessionguard/core/session"
	"github.com/dmitrymomot/sessionguard/middleware"
)

// requireSession guards the /me routes with the caller's own session token.
func (s *Server) requireSession() func(http.Handler) http.Handler {
	return middleware.RequireSessionWithConfig(middleware.SessionConfig{
		Manager:    s.sessions,
		CookieName: s.cookieName,
		LoginURL:   s.loginURL,
		Logger:     s.logger,
	})
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	v, _ := middleware.GetValidation(r.Context())
	writeJSON(w, http.StatusOK, validateResponse{
		Valid:          v.Valid,
		Session:        v.Session,
		SecurityStatus: v.SecurityStatus,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.GetSession(r.Context())
	if !ok {
		writeError(w, ErrInternalServerError)
		return
	}

	if _, err := s.sessions.Terminate(r.Context(), sess.ID, session.ReasonLogout); err != nil {
		s.logger.ErrorContext(r.Context(), "logout failed", logger.SessionID(sess.ID), logger.Error(err))
		writeError(w, ErrInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}
