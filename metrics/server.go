package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server exposes /metrics and /healthz
type Server struct {
	srv *http.Server
}

// NewServer builds the server. The database is pinged on every /healthz.
func NewServer(addr string, m *Metrics, db Pinger) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           newMux(m, db),
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

func newMux(m *Metrics, db Pinger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			log.WithError(err).Warn("Health check failed")
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Start serves in the background until Shutdown
func (s *Server) Start() {
	go func() {
		log.WithField("addr", s.srv.Addr).Info("Metrics server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Metrics server stopped")
		}
	}()
}

// Shutdown stops the server, waiting for in-flight scrapes
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
