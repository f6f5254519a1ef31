package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lazypower/trustledger/internal/audit"
	"github.com/lazypower/trustledger/internal/trust"
	"go.uber.org/zap"
)

// Server is the trustledger HTTP API server.
type Server struct {
	ledger  *trust.Ledger
	audit   *audit.DB
	metrics http.Handler
	log     *zap.Logger
	router  chi.Router
	version string
	started time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithAudit enables the audit log endpoints.
func WithAudit(db *audit.DB) Option {
	return func(s *Server) { s.audit = db }
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Server) { s.log = log }
}

// New creates a new Server over the given ledger.
func New(ledger *trust.Ledger, version string, opts ...Option) *Server {
	s := &Server{
		ledger:  ledger,
		log:     zap.NewNop(),
		version: version,
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/users", s.handleRegister)
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/", s.handleGetProfile)
			r.Get("/score", s.handleGetScore)
			r.Post("/burn", s.handleBurn)
			r.Post("/recover", s.handleRecover)
			r.Get("/tree", s.handleTree)
			r.Get("/invites", s.handleInviteHistory)
			r.Get("/events", s.handleUserEvents)
		})

		r.Get("/governance", s.handleGetGovernance)
		r.Put("/governance/{name}", s.handleUpdateGovernance)
		r.Post("/governance/{name}/proposals", s.handleProposeGovernance)

		r.Get("/metrics/trust", s.handleTrustMetrics)
	})

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	s.router = r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	auditOK := false
	if s.audit != nil {
		auditOK = s.audit.Ping() == nil
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"users":   s.ledger.UserCount(),
		"audit":   auditOK,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError renders ledger errors with their code; anything else is a 500.
func writeError(w http.ResponseWriter, err error) {
	var le *trust.Error
	if errors.As(err, &le) {
		body := map[string]any{
			"error": le.Message,
			"code":  le.Code,
		}
		if len(le.Metadata) > 0 {
			body["details"] = le.Metadata
		}
		writeJSON(w, le.Code.HTTPStatus(), body)
		return
	}
	writeMessage(w, http.StatusInternalServerError, err.Error())
}
