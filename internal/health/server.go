// Package health exposes a lightweight HTTP health endpoint for container probes.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	dbPingTimeout     = 2 * time.Second
	readHeaderTimeout = 2 * time.Second
)

// DBChecker is the slice of the database the health endpoint probes.
type DBChecker interface {
	PingContext(ctx context.Context) error
}

// Server hosts GET /healthz and owns the underlying HTTP server.
type Server struct {
	server *http.Server
	db     DBChecker
}

type response struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

func NewServer(addr string, db DBChecker) *Server {
	srv := &Server{db: db}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealth)

	srv.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return srv
}

// ListenAndServe blocks until the server stops. A closed server is not an
// error.
func (s *Server) ListenAndServe() error {
	zap.L().Info("starting health server", zap.String("addr", s.server.Addr))

	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := response{Status: "ok"}

	pingCtx, cancel := context.WithTimeout(r.Context(), dbPingTimeout)
	err := s.db.PingContext(pingCtx)
	cancel()

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		zap.L().Warn("database ping failed during health check", zap.Error(err))
		resp.Status = "degraded"
		resp.Database = "error"
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		zap.L().Error("failed to encode health response", zap.Error(err))
	}
}
