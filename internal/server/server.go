// Package server sets up the HTTP server, router, and all route
// definitions. It is the composition root: the executor backend, run
// history storage, services, and handlers are all wired here.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/runbox/internal/config"
	"github.com/sakif/runbox/internal/executor"
	dockerexec "github.com/sakif/runbox/internal/executor/docker"
	localexec "github.com/sakif/runbox/internal/executor/local"
	"github.com/sakif/runbox/internal/handler"
	"github.com/sakif/runbox/internal/language"
	"github.com/sakif/runbox/internal/middleware"
	"github.com/sakif/runbox/internal/repository"
	sqliteRepo "github.com/sakif/runbox/internal/repository/sqlite"
	"github.com/sakif/runbox/internal/service"
)

// closableExecutor is what both backends provide: execution plus shutdown.
type closableExecutor interface {
	executor.Executor
	Close() error
}

// Server represents the HTTP server and all its dependencies. It owns the
// executor backend and the run-history database and closes both on
// shutdown.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	exec   closableExecutor
	db     *sqliteRepo.DB // nil when the run history is disabled
}

// New creates a new Server with the given config.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	languages := language.Default()

	var exec closableExecutor
	var err error
	switch cfg.Executor.Backend {
	case "docker":
		dcfg := dockerexec.DefaultConfig()
		dcfg.Image = cfg.Docker.Image
		dcfg.WorkDir = cfg.Docker.WorkDir
		dcfg.PoolSize = cfg.Docker.PoolSize
		dcfg.MemoryLimit = cfg.Docker.MemoryLimitMB * 1024 * 1024
		dcfg.CPULimit = cfg.Docker.CPULimit
		dcfg.CompileTimeout = cfg.Executor.CompileTimeout()
		dcfg.RunTimeout = cfg.Executor.RunTimeout()
		dcfg.MaxOutputBytes = cfg.Executor.MaxOutputBytes
		dcfg.WorkspaceRoot = cfg.Executor.WorkspaceRoot
		exec, err = dockerexec.New(dcfg, languages, logger)
	default:
		lcfg := localexec.Config{
			WorkspaceRoot:  cfg.Executor.WorkspaceRoot,
			CompileTimeout: cfg.Executor.CompileTimeout(),
			RunTimeout:     cfg.Executor.RunTimeout(),
			MaxOutputBytes: cfg.Executor.MaxOutputBytes,
			MaxConcurrent:  cfg.Executor.MaxConcurrent,
		}
		exec, err = localexec.New(lcfg, languages, logger)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s executor: %w", cfg.Executor.Backend, err)
	}

	var db *sqliteRepo.DB
	if cfg.Storage.DBPath != "" {
		db, err = sqliteRepo.New(cfg.Storage.DBPath)
		if err != nil {
			exec.Close()
			return nil, fmt.Errorf("opening database: %w", err)
		}
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		exec:   exec,
		db:     db,
	}

	s.setupRoutes(languages)

	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// POST   /api/execute       → run code, return the result envelope
// GET    /api/languages     → list supported languages
// GET    /api/runs          → list recorded runs (when history is enabled)
// GET    /api/runs/{id}     → get a single recorded run
// DELETE /api/runs/{id}     → delete a recorded run
// GET    /healthz           → liveness probe
func (s *Server) setupRoutes(languages *language.Registry) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// Assign the interface only when the DB exists, so a disabled history
	// stays a true nil inside the service.
	var repo repository.RunRepository
	if s.db != nil {
		repo = s.db
	}
	runService := service.NewRunService(s.exec, repo, s.logger)

	executeHandler := handler.NewExecuteHandler(runService, s.config.Server.MaxPayloadBytes, s.logger)
	languageHandler := handler.NewLanguageHandler(languages, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/execute", executeHandler.HandleExecute)
		r.Get("/languages", languageHandler.HandleList)

		if s.db != nil {
			runHandler := handler.NewRunHandler(runService, s.logger)
			r.Get("/runs", runHandler.HandleList)
			r.Get("/runs/{id}", runHandler.HandleGetByID)
			r.Delete("/runs/{id}", runHandler.HandleDelete)
		}
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
}

// Start starts the HTTP server and handles graceful shutdown: stop
// accepting connections, wait for in-flight requests, then close the
// executor (draining its cleanup queue) and the database.
func (s *Server) Start() error {
	defer func() {
		if err := s.exec.Close(); err != nil {
			s.logger.Error("executor shutdown error", slog.String("error", err.Error()))
		}
		if s.db != nil {
			s.db.Close()
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("backend", s.config.Executor.Backend),
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
