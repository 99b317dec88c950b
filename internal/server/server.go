// Package server wires handlers, middleware, and routes together, and
// owns the lifecycle of the process-level resources: the database, the
// executor, and the HTTP listener.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Ard-Skelling/autogen/internal/auth"
	"github.com/Ard-Skelling/autogen/internal/config"
	"github.com/Ard-Skelling/autogen/internal/executor"
	"github.com/Ard-Skelling/autogen/internal/executor/docker"
	"github.com/Ard-Skelling/autogen/internal/executor/local"
	"github.com/Ard-Skelling/autogen/internal/handler"
	"github.com/Ard-Skelling/autogen/internal/middleware"
	sqliteRepo "github.com/Ard-Skelling/autogen/internal/repository/sqlite"
	"github.com/Ard-Skelling/autogen/internal/service"
)

// Server holds the router and the resources it must release on shutdown.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	exec   executor.CodeExecutor
}

// New assembles the full dependency chain:
// config → DB → executor → service → handlers → routes.
//
// The executor backend is chosen by config: "local" runs code as host
// subprocesses, "docker" runs it inside a dedicated container.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.Server.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	exec, err := newExecutor(cfg, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating %s executor: %w", cfg.Executor.Backend, err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		exec:   exec,
	}

	if err := s.setupRoutes(); err != nil {
		s.closeResources()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

func newExecutor(cfg *config.Config, logger *slog.Logger) (executor.CodeExecutor, error) {
	base := executor.Config{
		WorkDir: cfg.Executor.WorkDir,
		Timeout: cfg.Timeout(),
		Grace:   cfg.Grace(),
	}

	switch cfg.Executor.Backend {
	case "local":
		lcfg := local.Config{Config: base}
		if cfg.Venv.Dir != "" {
			lcfg.VirtualEnv = &local.VirtualEnv{
				Dir:         cfg.Venv.Dir,
				Interpreter: cfg.Venv.Interpreter,
			}
		}
		return local.New(lcfg, logger)
	case "docker":
		dcfg := docker.DefaultConfig()
		dcfg.Config = base
		if cfg.Docker.Image != "" {
			dcfg.Image = cfg.Docker.Image
		}
		dcfg.AutoRemove = &cfg.Docker.AutoRemove
		dcfg.StopOnExit = &cfg.Docker.StopOnExit
		dcfg.BindDir = cfg.Docker.BindDir
		return docker.New(dcfg, logger)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Executor.Backend)
	}
}

// setupRoutes configures middleware and route handlers.
//
// Route structure:
//
//	GET  /healthz          → liveness probe (no auth)
//	POST /api/token        → exchange API key for a JWT (no auth)
//	POST /api/execute      → run code blocks          (Bearer token)
//	GET  /api/runs         → list recorded runs       (Bearer token)
//	GET  /api/runs/{id}    → fetch one recorded run   (Bearer token)
//
// When no auth credentials are configured the API routes are mounted
// without the token requirement and /api/token is not registered.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	execService := service.NewExecutionService(s.exec, s.db, s.logger)

	executeHandler := handler.NewExecuteHandler(execService, s.logger)
	runHandler := handler.NewRunHandler(execService, s.logger)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if !s.config.Auth.Enabled() {
		s.logger.Warn("authentication is disabled, API is unprotected (set AUTOGEN_AUTH_JWT_SECRET and AUTOGEN_AUTH_API_KEY_HASH to enable)")
		s.router.Route("/api", func(r chi.Router) {
			r.Post("/execute", executeHandler.HandleExecute)
			r.Get("/runs", runHandler.HandleList)
			r.Get("/runs/{id}", runHandler.HandleGet)
		})
		return nil
	}

	tokens, err := auth.NewTokenService(s.config.Auth.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	keys, err := auth.NewAPIKeyService(s.config.Auth.APIKeyHash)
	if err != nil {
		return fmt.Errorf("creating API key service: %w", err)
	}
	tokenHandler := handler.NewTokenHandler(keys, tokens, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/token", tokenHandler.HandleToken)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Post("/execute", executeHandler.HandleExecute)
			r.Get("/runs", runHandler.HandleList)
			r.Get("/runs/{id}", runHandler.HandleGet)
		})
	})

	return nil
}

// Router exposes the configured router, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Close releases the server's resources without starting it. Start
// performs the same teardown on its way out.
func (s *Server) Close() {
	s.closeResources()
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, drain in-flight requests,
// tear down the executor, close the database.
func (s *Server) Start() error {
	defer s.closeResources()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("backend", s.config.Executor.Backend),
			slog.String("database", s.config.Server.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// closeResources tears down the executor and the database. The executor
// goes first so its container or process group is gone before the run
// history is flushed.
func (s *Server) closeResources() {
	var errs []error
	if closer, ok := s.exec.(interface{ Close() error }); ok {
		errs = append(errs, closer.Close())
	}
	errs = append(errs, s.db.Close())
	if err := errors.Join(errs...); err != nil {
		s.logger.Error("failed to release resources", slog.String("error", err.Error()))
	}
}
