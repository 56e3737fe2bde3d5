// Package http serves the read-only operator surface: /health and /metrics,
// bound to localhost by default.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/degenrun/degenrun/internal/config"
)

// HealthSource reports the agent's runtime state for /health.
type HealthSource interface {
	PendingJobs() int
	StuckPositions() []string
}

// Server is the read-only HTTP server.
type Server struct {
	server *http.Server
	start  time.Time
}

// NewServer builds the server. health may be nil (liveness only).
func NewServer(cfg config.HTTPConfig, metrics *Metrics, health HealthSource) *Server {
	s := &Server{start: time.Now()}

	router := mux.NewRouter()
	router.Use(requestLogging)
	router.HandleFunc("/health", s.healthHandler(health)).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(),
		promhttp.HandlerOpts{})).Methods(http.MethodGet)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start serves until Shutdown. Blocks.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("http server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) healthHandler(health HealthSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{
			"status":         "ok",
			"uptime_seconds": int(time.Since(s.start).Seconds()),
			"timestamp":      time.Now().UTC().Format(time.RFC3339),
		}
		if health != nil {
			stuck := health.StuckPositions()
			body["pending_jobs"] = health.PendingJobs()
			body["stuck_positions"] = stuck
			if len(stuck) > 0 {
				body["status"] = "degraded"
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if body["status"] != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(body)
	}
}

func requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapper, r)
		log.Debug().Str("method", r.Method).Str("path", r.URL.Path).
			Int("status", wrapper.status).Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr).Msg("http request")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
