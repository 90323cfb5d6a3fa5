// Package adminapi is the broker's observability surface: a small chi
// router exposing health, readiness, version, Prometheus metrics, and a
// debug snapshot of streams/topics/partitions. It never touches the wire
// protocol — reads go straight through *streaming.System.
package adminapi

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/FairForge/tidelog/internal/logging"
	"github.com/FairForge/tidelog/internal/streaming"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Version is stamped at build time via -ldflags; defaulted here for
// builds that skip that step.
var Version = "dev"

// Server hosts the admin HTTP surface.
type Server struct {
	logger  *zap.Logger
	system  *streaming.System
	metrics *Metrics
	router  chi.Router
	http    *http.Server
	start   time.Time
	reqLog  *logging.RequestLog

	requestCount int64
}

// NewServer wires the admin router over an already-running engine.
func NewServer(addr string, system *streaming.System, metrics *Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}

	reqLog := logging.NewRequestLog(logger, 256, 5*time.Second)
	reqLog.Start()

	s := &Server{
		logger:  logger,
		system:  system,
		metrics: metrics,
		router:  chi.NewRouter(),
		start:   time.Now(),
		reqLog:  reqLog,
	}

	s.router.Use(s.requestCounter)
	s.routes()

	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/health/live", s.handleLiveness)
	s.router.Get("/health/ready", s.handleReadiness)
	s.router.Get("/version", s.handleVersion)
	s.router.Handle("/metrics", s.metrics.Handler())
	s.router.Get("/debug/streams", s.handleDebugStreams)
	s.router.Get("/debug/clients", s.handleDebugClients)
	s.router.Get("/debug/requestlog", s.handleDebugRequestLog)
}

// statusRecorder captures the status code a handler writes so the request
// log can count failures.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestCounter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&s.requestCount, 1)
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.reqLog.Record(logging.RequestEntry{
			Method:  r.Method,
			Path:    r.URL.Path,
			Status:  rec.status,
			Latency: time.Since(start),
		})
	})
}

func (s *Server) handleDebugRequestLog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.reqLog.Stats())
}

// ListenAndServe starts the HTTP server. It blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.logger.Info("admin server listening", zap.String("addr", s.http.Addr))
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the admin server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.reqLog.Stop()
	return s.http.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"uptime": time.Since(s.start).Seconds(),
	})
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ready":     s.system != nil,
		"requests":  atomic.LoadInt64(&s.requestCount),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": Version,
		"go":      runtime.Version(),
	})
}
