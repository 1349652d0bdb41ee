package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/sessionguard/core/analytics"
	"github.com/dmitrymomot/sessionguard/core/logger"
	"github.com/dmitrymomot/sessionguard/core/retention"
	"github.com/dmitrymomot/sessionguard/core/session"
	"github.com/dmitrymomot/sessionguard/middleware"
	"github.com/dmitrymomot/sessionguard/pkg/broadcast"
)

// Sessions is the lifecycle surface exposed over HTTP. *session.Manager satisfies it.
type Sessions interface {
	Create(ctx context.Context, identity session.Identity, rc session.RequestContext) (*session.Created, error)
	Validate(ctx context.Context, id string, rc session.RequestContext) session.Validation
	Terminate(ctx context.Context, id, reason string) (bool, error)
	Details(ctx context.Context, id string) (*session.DetailView, error)
}

// Purger runs a retention sweep on demand. *retention.Sweeper satisfies it.
type Purger interface {
	Purge(ctx context.Context) (retention.Result, error)
}

// Summarizer computes analytics. *analytics.Aggregator satisfies it.
type Summarizer interface {
	Summarize(ctx context.Context, hours int) (*analytics.Summary, error)
}

// HealthcheckFunc reports the health of one dependency.
type HealthcheckFunc func(ctx context.Context) error

// Server is the operator HTTP surface.
type Server struct {
	sessions     Sessions
	purger       Purger
	summarizer   Summarizer
	notices      broadcast.Broadcaster[session.Notice]
	healthchecks map[string]HealthcheckFunc
	cookieName   string
	secureCookie bool
	loginURL     string
	operatorAuth func(http.Handler) http.Handler
	maxBody      int64
	upgrader     websocket.Upgrader
	logger       *slog.Logger
	router       *mux.Router
}

// Option configures a Server.
type Option func(*Server)

// WithPurger enables POST /maintenance/purge.
func WithPurger(p Purger) Option {
	return func(s *Server) { s.purger = p }
}

// WithSummarizer enables GET /analytics.
func WithSummarizer(a Summarizer) Option {
	return func(s *Server) { s.summarizer = a }
}

// WithNotices enables the GET /events websocket stream.
func WithNotices(b broadcast.Broadcaster[session.Notice]) Option {
	return func(s *Server) { s.notices = b }
}

// WithHealthcheck registers a named dependency check for GET /health.
func WithHealthcheck(name string, fn HealthcheckFunc) Option {
	return func(s *Server) {
		if fn != nil {
			s.healthchecks[name] = fn
		}
	}
}

// WithCookie sets the cookie written on session creation.
func WithCookie(name string, secure bool) Option {
	return func(s *Server) {
		if name != "" {
			s.cookieName = name
		}
		s.secureCookie = secure
	}
}

// WithOperatorAuth guards the operator routes: session management, analytics,
// purge and the event stream. Without it those routes answer 503.
func WithOperatorAuth(mw func(http.Handler) http.Handler) Option {
	return func(s *Server) { s.operatorAuth = mw }
}

// WithLoginURL sets where browser requests to /me are redirected when their
// session is rejected. Empty keeps the JSON 401.
func WithLoginURL(url string) Option {
	return func(s *Server) { s.loginURL = url }
}

// WithOriginCheck sets the websocket origin policy.
func WithOriginCheck(fn func(r *http.Request) bool) Option {
	return func(s *Server) { s.upgrader.CheckOrigin = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New builds the router. Endpoints whose dependency was not supplied answer 503.
func New(sessions Sessions, opts ...Option) *Server {
	s := &Server{
		sessions:     sessions,
		healthchecks: make(map[string]HealthcheckFunc),
		cookieName:   middleware.DefaultSessionCookie,
		maxBody:      64 * middleware.KB,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: 10 * time.Second,
		},
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.operatorAuth == nil {
		s.operatorAuth = denyOperators
	}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(
		middleware.RequestID(),
		middleware.Logging(s.logger),
		middleware.BodyLimit(s.maxBody),
	)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, ErrNotFound)
	})

	r.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	r.Handle("/events", s.operatorAuth(http.HandlerFunc(s.handleEvents))).Methods(http.MethodGet)
	r.Handle("/analytics", s.operatorAuth(http.HandlerFunc(s.handleAnalytics))).Methods(http.MethodGet)
	r.Handle("/maintenance/purge", s.operatorAuth(http.HandlerFunc(s.handlePurge))).Methods(http.MethodPost)

	sessions := r.PathPrefix("/sessions").Subrouter()
	sessions.Use(s.operatorAuth)
	sessions.HandleFunc("", s.handleCreate).Methods(http.MethodPost)
	sessions.HandleFunc("/{id}", s.handleDetails).Methods(http.MethodGet)
	sessions.HandleFunc("/{id}", s.handleTerminate).Methods(http.MethodDelete)
	sessions.HandleFunc("/{id}/validate", s.handleValidate).Methods(http.MethodPost)

	self := r.PathPrefix("/me").Subrouter()
	self.Use(s.requireSession())
	self.HandleFunc("", s.handleCurrent).Methods(http.MethodGet)
	self.HandleFunc("", s.handleLogout).Methods(http.MethodDelete)

	return r
}

func denyOperators(http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, ErrServiceUnavailable.WithMessage("operator authentication is not configured"))
	})
}
