// Package server exposes the task board over HTTP: the session API under
// /api, the token API under /mcp and the operational endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/josephgoksu/loomboard/internal/auth"
	"github.com/josephgoksu/loomboard/internal/logger"
	"github.com/josephgoksu/loomboard/internal/task"
	"github.com/josephgoksu/loomboard/internal/telemetry"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options wires the server's collaborators.
type Options struct {
	Addr     string
	Service  *task.Service
	Health   Pinger
	Tokens   auth.Resolver
	Sessions auth.Resolver
	Metrics  *telemetry.Metrics
	Crash    *logger.CrashReporter
	Logger   *log.Logger
}

type Server struct {
	svc      *task.Service
	health   Pinger
	tokens   auth.Resolver
	sessions auth.Resolver
	metrics  *telemetry.Metrics
	crash    *logger.CrashReporter
	log      *log.Logger
	handler  http.Handler
	server   *http.Server
}

// New validates opts and builds the routing tree.
func New(opts Options) (*Server, error) {
	if opts.Service == nil {
		return nil, errors.New("server: task service is required")
	}
	if opts.Tokens == nil || opts.Sessions == nil {
		return nil, errors.New("server: token and session resolvers are required")
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.Metrics == nil {
		opts.Metrics = telemetry.New()
	}
	if opts.Crash == nil {
		opts.Crash = logger.NewCrashReporter(nil, "", "", opts.Logger)
	}

	s := &Server{
		svc:      opts.Service,
		health:   opts.Health,
		tokens:   opts.Tokens,
		sessions: opts.Sessions,
		metrics:  opts.Metrics,
		crash:    opts.Crash,
		log:      opts.Logger,
	}
	s.handler = s.registerRoutes()
	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Start serves in the background. Listen errors are sent to errChan.
func (s *Server) Start(wg *sync.WaitGroup, errChan chan<- error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.log.WithField("addr", s.server.Addr).Info("board API listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) registerRoutes() http.Handler {
	token := http.NewServeMux()
	token.HandleFunc("GET /mcp/tasks", s.handleTokenListTasks)
	token.HandleFunc("GET /mcp/tasks/get", s.handleTokenGetTask)
	token.HandleFunc("POST /mcp/tasks/create", s.handleTokenCreateTask)
	token.HandleFunc("POST /mcp/tasks/update", s.handleTokenUpdateTask)
	token.HandleFunc("POST /mcp/tasks/move", s.handleTokenMoveTask)
	token.HandleFunc("POST /mcp/tasks/delete", s.handleTokenDeleteTask)
	token.HandleFunc("POST /mcp/tasks/archive", s.handleTokenArchiveTask)
	token.HandleFunc("POST /mcp/tasks/search", s.handleTokenSearchTasks)
	token.HandleFunc("POST /mcp/board/summary", s.handleTokenBoardSummary)
	token.HandleFunc("GET /mcp/tasks/active", s.handleTokenGetActive)
	token.HandleFunc("POST /mcp/tasks/active", s.handleTokenSetActive)
	token.HandleFunc("POST /mcp/tasks/active/clear", s.handleTokenClearActive)

	session := http.NewServeMux()
	session.HandleFunc("POST /api/tasks", s.handleCreateTask)
	session.HandleFunc("GET /api/tasks", s.handleListTasks)
	session.HandleFunc("GET /api/tasks/archived", s.handleListArchived)
	session.HandleFunc("GET /api/tasks/active", s.handleGetActive)
	session.HandleFunc("POST /api/tasks/active/clear", s.handleClearActive)
	session.HandleFunc("POST /api/tasks/migrate", s.handleMigrate)
	session.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)
	session.HandleFunc("PATCH /api/tasks/{id}", s.handleUpdateTask)
	session.HandleFunc("POST /api/tasks/{id}/archive", s.handleArchiveTask)
	session.HandleFunc("POST /api/tasks/{id}/restore", s.handleRestoreTask)
	session.HandleFunc("POST /api/tasks/{id}/activate", s.handleActivateTask)
	session.HandleFunc("DELETE /api/tasks/{id}", s.handleDeleteTask)
	session.HandleFunc("GET /api/tasks/{id}/history", s.handleTaskHistory)
	session.HandleFunc("GET /api/activity", s.handleRecentActivity)

	mux := http.NewServeMux()
	mux.Handle("/mcp/", corsMiddleware(s.requirePrincipal(s.tokens, token)))
	mux.Handle("/api/", s.requirePrincipal(s.sessions, session))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())

	handler := s.recoverMiddleware(mux)
	handler = s.logMiddleware(handler)
	return otelhttp.NewHandler(handler, "loomboard",
		otelhttp.WithMessageEvents(otelhttp.ReadEvents, otelhttp.WriteEvents))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			s.log.WithError(err).Warn("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeAPIJSON(w, map[string]string{"status": "ok"})
}
