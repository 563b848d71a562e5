// Package server exposes the daemon's status API: the latest run summary and
// the recent history rows.
package server

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmp1ce/charge-lnd/internal/runner"
)

type Server struct {
	logger *log.Logger
	db     *pgxpool.Pool

	mu      sync.RWMutex
	lastRun *runner.Summary
	lastErr string
}

func New(logger *log.Logger, db *pgxpool.Pool) *Server {
	return &Server{logger: logger, db: db}
}

// SetLastRun records the outcome of the most recent run.
func (s *Server) SetLastRun(summary runner.Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun = &summary
	s.lastErr = ""
}

// SetLastError records a run-level failure, e.g. an unreachable node.
func (s *Server) SetLastError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err.Error()
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/api/status", s.handleStatus)
	r.Get("/api/runs", s.handleRuns)
	return r
}

func (s *Server) Run(addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Printf("status api listening on http://%s", addr)
	return httpServer.ListenAndServe()
}
