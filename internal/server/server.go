// Package server exposes the forgebuild HTTP API.
package server

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/forgebuild/internal/foundation/errors"
	"git.home.luguber.info/inful/forgebuild/internal/metrics"
	"git.home.luguber.info/inful/forgebuild/internal/server/handlers"
	smw "git.home.luguber.info/inful/forgebuild/internal/server/middleware"
)

// Deps are the services behind the API. Registry and Recorder are optional;
// without a registry /metrics is not served.
type Deps struct {
	Projects handlers.ProjectRegistry
	History  handlers.BuildHistory
	Builds   handlers.BuildRunner
	DB       handlers.Pinger
	Registry *prom.Registry
	Recorder metrics.Recorder
}

// Server manages the API listener.
type Server struct {
	addr       string
	handler    http.Handler
	httpServer *http.Server
	listener   net.Listener
}

// New builds the router and middleware chain for addr.
func New(addr string, deps Deps) *Server {
	adapter := errors.NewHTTPErrorAdapter(slog.Default())
	chain := smw.Chain(slog.Default(), adapter, deps.Recorder)

	projects := handlers.NewProjectHandlers(deps.Projects, deps.History, deps.Builds)
	monitoring := handlers.NewMonitoringHandlers(deps.DB)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/projects", projects.HandleList)
	mux.HandleFunc("POST /api/projects", projects.HandleCreate)
	mux.HandleFunc("GET /api/projects/{id}", projects.HandleGet)
	mux.HandleFunc("GET /api/projects/{id}/source-repo-info", projects.HandleSourceRepoInfo)
	mux.HandleFunc("POST /api/projects/{id}/build", projects.HandleBuild)
	// Older clients trigger builds with GET.
	mux.HandleFunc("GET /api/projects/{id}/build", projects.HandleBuild)
	mux.HandleFunc("GET /api/projects/{id}/builds", projects.HandleBuilds)
	mux.HandleFunc("GET /health", monitoring.HandleHealthCheck)
	if deps.Registry != nil {
		mux.Handle("GET /metrics", metrics.HTTPHandler(deps.Registry))
	}

	return &Server{addr: addr, handler: chain(mux)}
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler { return s.handler }

// Addr returns the bound address once Start has succeeded, otherwise the configured one.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Start binds the listener and serves in the background. Bind errors are
// returned immediately.
func (s *Server) Start(ctx context.Context) error {
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("http startup failed: %w", err)
	}
	s.listener = ln
	// Builds run synchronously inside requests, so there is no write timeout.
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !stdErrors.Is(err, http.ErrServerClosed) {
			slog.Error("API server error", "error", err)
		}
	}()
	slog.Info("API server started", slog.String("addr", ln.Addr().String()))
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	slog.Info("API server stopped")
	return nil
}
