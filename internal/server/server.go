package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/skinrun/internal/cache"
	"github.com/sawpanic/skinrun/internal/metrics"
	"github.com/sawpanic/skinrun/internal/net/breakers"
	"github.com/sawpanic/skinrun/internal/net/ratelimit"
	"github.com/sawpanic/skinrun/internal/persistence"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

// Deps are the live components the status endpoints report on
type Deps struct {
	Rates    *ratelimit.Controller
	Limiter  *ratelimit.Limiter
	Breakers *breakers.Set
	Store    cache.Store
	Metrics  *metrics.Registry
	DB       persistence.RepositoryHealth
}

// Server is the local read-only status server
type Server struct {
	router  *mux.Router
	server  *http.Server
	deps    Deps
	started time.Time
}

// New creates a server bound to addr. The port is probed up front so a busy
// port fails here rather than in the background listener.
func New(addr string, deps Deps) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("address %s is busy or unavailable: %w", addr, err)
	}
	listener.Close()

	s := &Server{
		router:  mux.NewRouter(),
		deps:    deps,
		started: time.Now(),
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)
	s.router.Use(s.timeoutMiddleware)

	if s.deps.Metrics != nil {
		s.router.Handle("/metrics", s.deps.Metrics.Handler()).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/").Subrouter()
	api.Use(jsonContentTypeMiddleware)
	api.HandleFunc("/health", s.health).Methods(http.MethodGet)
	api.HandleFunc("/sources", s.sources).Methods(http.MethodGet)
	api.HandleFunc("/cache/stats", s.cacheStats).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found", "path": r.URL.Path})
	})
}

// Start blocks serving until Shutdown
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("Starting status server (read-only)")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down status server")
	return s.server.Shutdown(ctx)
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return s.server.Addr
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()[:8]
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		requestID, _ := r.Context().Value(requestIDKey).(string)
		log.Debug().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Msg("HTTP request")
	})
}

func (s *Server) timeoutMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

type healthResponse struct {
	Status   string                   `json:"status"`
	Time     string                   `json:"time"`
	UptimeS  float64                  `json:"uptime_seconds"`
	HitRatio float64                  `json:"cache_hit_ratio"`
	Database *persistence.HealthCheck `json:"database,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "ok",
		Time:    time.Now().UTC().Format(time.RFC3339),
		UptimeS: time.Since(s.started).Seconds(),
	}
	if s.deps.Metrics != nil {
		resp.HitRatio = s.deps.Metrics.HitRatio()
	}
	status := http.StatusOK
	if s.deps.DB != nil {
		h := s.deps.DB.Health(r.Context())
		resp.Database = &h
		if !h.Healthy {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, resp)
}

type sourceStatus struct {
	ratelimit.SourceState
	Breaker         string                  `json:"breaker"`
	BreakerFailures uint32                  `json:"breaker_consecutive_failures"`
	Ceiling         *ratelimit.LimiterStats `json:"ceiling,omitempty"`
	Throttled       bool                    `json:"throttled"`
}

func (s *Server) sources(w http.ResponseWriter, r *http.Request) {
	if s.deps.Rates == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "rate controller not configured"})
		return
	}

	var ceilings map[string]ratelimit.LimiterStats
	if s.deps.Limiter != nil {
		ceilings = s.deps.Limiter.Stats()
	}

	snap := s.deps.Rates.Snapshot()
	out := make([]sourceStatus, 0, len(snap))
	for _, st := range snap {
		status := sourceStatus{SourceState: st, Breaker: "disabled"}
		if s.deps.Breakers != nil {
			status.Breaker = strings.ToLower(s.deps.Breakers.State(st.Name).String())
			status.BreakerFailures = s.deps.Breakers.Counts(st.Name).ConsecutiveFailures
		}
		if c, ok := ceilings[st.Name]; ok {
			status.Ceiling = &c
			status.Throttled = c.IsThrottled()
		}
		out = append(out, status)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) cacheStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "cache not configured"})
		return
	}
	st, err := s.deps.Store.Stats(r.Context())
	if err != nil {
		log.Warn().Err(err).Msg("Cache stats failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"backend":        st.Backend,
		"entries":        st.Entries,
		"size_mb":        st.SizeMB(),
		"oldest_age_hrs": st.OldestAge.Hours(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Response encoding failed")
	}
}

// responseWrapper captures HTTP status codes for logging
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
