// Package server exposes the answering machine detection API over HTTP and
// WebSocket: session lifecycle endpoints, audio ingestion, decision polling,
// streaming endpoints, a one-shot analyze endpoint, and the operational
// /healthz, /readyz, and /metrics routes.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/centinelalabs/centinela/internal/config"
	"github.com/centinelalabs/centinela/internal/health"
	"github.com/centinelalabs/centinela/internal/observe"
	"github.com/centinelalabs/centinela/internal/session"
)

// shutdownTimeout bounds graceful drain of in-flight requests.
const shutdownTimeout = 10 * time.Second

// Server hosts the detection API.
type Server struct {
	cfg      *config.Config
	manager  *session.Manager
	metrics  *observe.Metrics
	registry *config.Registry

	httpSrv *http.Server
}

// New assembles the Server and its route table.
func New(cfg *config.Config, manager *session.Manager, metrics *observe.Metrics, registry *config.Registry) *Server {
	s := &Server{
		cfg:      cfg,
		manager:  manager,
		metrics:  metrics,
		registry: registry,
	}
	s.httpSrv = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler builds the full route table. REST routes are wrapped in the
// observability middleware; WebSocket routes are mounted bare because the
// upgrade needs direct access to the underlying connection.
func (s *Server) Handler() http.Handler {
	rest := http.NewServeMux()
	rest.HandleFunc("POST /v1/sessions", s.handleCreateSession)
	rest.HandleFunc("POST /v1/sessions/{id}/audio", s.handlePushAudio)
	rest.HandleFunc("GET /v1/sessions/{id}/decision", s.handleGetDecision)
	rest.HandleFunc("DELETE /v1/sessions/{id}", s.handleDeleteSession)
	rest.HandleFunc("POST /v1/analyze", s.handleAnalyze)

	hc := health.New(
		health.Checker{Name: "recognizer", Check: s.checkRecognizer},
		health.Capacity(s.manager.Len, s.cfg.Sessions.Max),
	).WithSessionCount(s.manager.Len)
	hc.Register(rest)
	rest.Handle("GET /metrics", promhttp.Handler())

	root := http.NewServeMux()
	root.HandleFunc("GET /v1/sessions/{id}/stream", s.handleSessionStream)
	root.HandleFunc("GET /v1/stream", s.handleAdhocStream)
	root.Handle("/", observe.Middleware(s.metrics)(rest))
	return root
}

// checkRecognizer verifies that the configured recognizer backend is
// registered and addressable.
func (s *Server) checkRecognizer(context.Context) error {
	if s.cfg.Recognizer.URL == "" {
		return errors.New("recognizer url not configured")
	}
	if _, err := s.registry.Create(s.cfg.Recognizer); err != nil {
		return err
	}
	return nil
}

// ListenAndServe runs the HTTP server until ctx is cancelled, then drains
// in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", s.httpSrv.Addr, "tls", s.cfg.Server.TLS != nil)
		if tls := s.cfg.Server.TLS; tls != nil {
			errCh <- s.httpSrv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			errCh <- s.httpSrv.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
