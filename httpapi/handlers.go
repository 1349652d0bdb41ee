package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/dmitrymomot/sessionguard/core/analytics"
	"github.com/dmitrymomot/sessionguard/core/logger"
	"github.com/dmitrymomot/sessionguard/core/security"
	"github.com/dmitrymomot/sessionguard/core/session"
	"github.com/dmitrymomot/sessionguard/middleware"
)

// DefaultAnalyticsHours is used when the hours query parameter is absent.
const DefaultAnalyticsHours = 24

type createRequest struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
}

type createResponse struct {
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
	RiskScore int       `json:"risk_score"`
}

// requestOverride carries the end user's request signals when the caller
// is a login service acting on their behalf.
type requestOverride struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	Path      string `json:"path"`
}

func (o requestOverride) apply(rc session.RequestContext) session.RequestContext {
	if o.IPAddress != "" {
		rc.ClientIP = o.IPAddress
	}
	if o.UserAgent != "" {
		rc.UserAgent = o.UserAgent
	}
	if o.Path != "" {
		rc.Path = o.Path
	}
	return rc
}

type validateResponse struct {
	Valid          bool             `json:"valid"`
	Reason         string           `json:"reason,omitempty"`
	Session        *session.Session `json:"session,omitempty"`
	SecurityStatus *security.Report `json:"security_status,omitempty"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, ErrBadRequest.WithError(err))
		return
	}

	rc := requestOverride{IPAddress: req.IPAddress, UserAgent: req.UserAgent}.apply(session.FromRequest(r))
	created, err := s.sessions.Create(r.Context(), session.Identity{
		UserID:   req.UserID,
		Username: req.Username,
		Role:     req.Role,
	}, rc)
	if err != nil {
		if errors.Is(err, session.ErrMissingUsername) {
			writeError(w, ErrBadRequest.WithMessage("username is required"))
			return
		}
		s.logger.ErrorContext(r.Context(), "create session failed", logger.Username(req.Username), logger.Error(err))
		writeError(w, ErrInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    created.SessionID,
		Path:     "/",
		Expires:  created.ExpiresAt,
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusCreated, createResponse{
		SessionID: created.SessionID,
		ExpiresAt: created.ExpiresAt,
		RiskScore: created.Session.RiskScore,
	})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var override requestOverride
	if err := decodeBody(r, &override); err != nil {
		writeError(w, ErrBadRequest.WithError(err))
		return
	}

	v := s.sessions.Validate(r.Context(), mux.Vars(r)["id"], override.apply(session.FromRequest(r)))
	writeJSON(w, http.StatusOK, validateResponse{
		Valid:          v.Valid,
		Reason:         v.Reason,
		Session:        v.Session,
		SecurityStatus: v.SecurityStatus,
	})
}

func (s *Server) handleTerminate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	reason := r.URL.Query().Get("reason")
	if reason == "" {
		reason = session.ReasonAdminTermination
	}

	ok, err := s.sessions.Terminate(r.Context(), id, reason)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "terminate session failed", logger.SessionID(id), logger.Error(err))
		writeError(w, ErrInternalServerError)
		return
	}
	if !ok {
		s.audit(r, "terminate_session", "not_found", logger.SessionID(id))
		writeError(w, ErrNotFound.WithMessage(session.ReasonNotFound))
		return
	}
	s.audit(r, "terminate_session", "terminated", logger.SessionID(id), logger.Reason(reason))
	writeJSON(w, http.StatusOK, map[string]any{"terminated": true, "reason": reason})
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	view, err := s.sessions.Details(r.Context(), id)
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, ErrNotFound.WithMessage(session.ReasonNotFound))
	case err != nil:
		s.logger.ErrorContext(r.Context(), "load session details failed", logger.SessionID(id), logger.Error(err))
		writeError(w, ErrInternalServerError)
	default:
		writeJSON(w, http.StatusOK, view)
	}
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if s.summarizer == nil {
		writeError(w, ErrServiceUnavailable.WithMessage("analytics is not configured"))
		return
	}

	hours := DefaultAnalyticsHours
	if raw := r.URL.Query().Get("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, ErrBadRequest.WithMessage("hours must be an integer"))
			return
		}
		hours = n
	}

	summary, err := s.summarizer.Summarize(r.Context(), hours)
	switch {
	case errors.Is(err, analytics.ErrInvalidTimeframe):
		writeError(w, ErrBadRequest.WithMessage("hours must be positive"))
	case err != nil:
		s.logger.ErrorContext(r.Context(), "analytics failed", logger.Error(err))
		writeError(w, ErrInternalServerError)
	default:
		writeJSON(w, http.StatusOK, summary)
	}
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	if s.purger == nil {
		writeError(w, ErrServiceUnavailable.WithMessage("retention is not configured"))
		return
	}

	res, err := s.purger.Purge(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "manual purge failed", operator(r), logger.Error(err))
		e := ErrInternalServerError.WithError(err)
		e.Details["expiredUpdated"] = res.ExpiredUpdated
		e.Details["deletedOld"] = res.DeletedOld
		writeError(w, e)
		return
	}
	s.audit(r, "purge", "ok",
		slog.Int64("expired_updated", res.ExpiredUpdated),
		slog.Int64("deleted_old", res.DeletedOld),
	)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.healthchecks))
	for name, check := range s.healthchecks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	writeJSON(w, status, map[string]any{"status": overall, "checks": checks})
}

// decodeBody decodes an optional JSON body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// audit records an operator action together with the token subject that performed it.
func (s *Server) audit(r *http.Request, action, result string, attrs ...slog.Attr) {
	attrs = append([]slog.Attr{operator(r), logger.Action(action), logger.Result(result)}, attrs...)
	s.logger.LogAttrs(r.Context(), slog.LevelInfo, "operator action", attrs...)
}

func operator(r *http.Request) slog.Attr {
	if claims, ok := middleware.GetJWTClaims(r.Context()); ok && claims.Subject != "" {
		return slog.String("operator", claims.Subject)
	}
	return slog.String("operator", "unknown")
}
