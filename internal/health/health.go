// Package health provides the liveness and readiness endpoints.
//
// /healthz reports that the process is up and finished starting. /readyz
// additionally runs every registered readiness check, so an orchestrator
// stops routing traffic while a dependency such as the NATS connection is
// down.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Check reports whether one dependency is usable.
type Check func(ctx context.Context) error

// checkTimeout bounds each readiness check.
const checkTimeout = 2 * time.Second

// Server is a lightweight HTTP server that exposes /healthz and /readyz.
type Server struct {
	port   int
	ready  atomic.Bool
	server *http.Server

	mu     sync.RWMutex
	checks map[string]Check
}

// New creates a new health check server.
func New(port int) *Server {
	return &Server{port: port, checks: map[string]Check{}}
}

// SetReady marks the service as ready to accept traffic.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// AddCheck registers a readiness check under name.
func (s *Server) AddCheck(name string, check Check) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = check
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			writeStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
			return
		}
		writeStatus(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			writeStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
			return
		}
		if failed := s.runChecks(r.Context()); len(failed) > 0 {
			failed["status"] = "not_ready"
			writeStatus(w, http.StatusServiceUnavailable, failed)
			return
		}
		writeStatus(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return mux
}

// runChecks returns the error text of every failing check keyed by name.
func (s *Server) runChecks(ctx context.Context) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	failed := map[string]string{}
	for name, check := range s.checks {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := check(checkCtx)
		cancel()
		if err != nil {
			slog.Warn("readiness check failed", "check", name, "error", err)
			failed[name] = err.Error()
		}
	}
	return failed
}

// ListenAndServe starts the health check HTTP server.
// It blocks until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("health server listening", "port", s.port)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}

func writeStatus(w http.ResponseWriter, code int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
