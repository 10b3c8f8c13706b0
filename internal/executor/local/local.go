// Package local implements the executor.Executor interface with plain host
// processes: each request stages its files in an isolated workspace, runs
// an optional compile step and then the program, each under its own
// timeout, and hands the workspace to the cleaner once the processes have
// exited. Isolation here is orchestration discipline (per-request paths,
// deterministic cleanup, bounded execution time), not a security sandbox;
// untrusted multi-tenant deployments should use the docker backend.
package local

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sakif/runbox/internal/apperror"
	"github.com/sakif/runbox/internal/executor"
	"github.com/sakif/runbox/internal/language"
	"github.com/sakif/runbox/internal/workspace"
)

// Executor runs code as host processes.
type Executor struct {
	config     Config
	languages  *language.Registry
	workspaces *workspace.Manager
	cleaner    *workspace.Cleaner
	logger     *slog.Logger
	sem        chan struct{}
}

var _ executor.Executor = (*Executor)(nil)

// New creates a local Executor rooted at cfg.WorkspaceRoot and starts its
// cleanup worker.
func New(cfg Config, languages *language.Registry, logger *slog.Logger) (*Executor, error) {
	manager, err := workspace.NewManager(cfg.WorkspaceRoot, logger)
	if err != nil {
		return nil, fmt.Errorf("local executor: %w", err)
	}
	cleaner := workspace.NewCleaner(manager, logger)
	cleaner.Start()

	return &Executor{
		config:     cfg,
		languages:  languages,
		workspaces: manager,
		cleaner:    cleaner,
		logger:     logger,
		sem:        make(chan struct{}, cfg.MaxConcurrent),
	}, nil
}

// Close drains outstanding cleanup work.
func (e *Executor) Close() error {
	e.cleaner.Stop()
	return nil
}

// Execute runs one request through resolve → stage → compile → run →
// finalize. The workspace is handed to the cleaner exactly once on every
// path out of this function.
func (e *Executor) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	// Resolve before anything touches the filesystem: an unknown language
	// must not leave artifacts behind.
	profile, err := e.languages.Resolve(req.Language)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Source) == "" {
		return nil, apperror.ValidationFailed("source", "source must not be empty")
	}

	// Admission: queue behind the semaphore until a slot frees up or the
	// caller gives up. Keeps N concurrent requests from forking unboundedly.
	select {
	case e.sem <- struct{}{}:
		defer func() { <-e.sem }()
	case <-ctx.Done():
		return nil, apperror.Capacity("execution capacity exhausted")
	}

	start := time.Now()

	ws, err := e.workspaces.Allocate(profile, req.Source, req.Stdin)
	if err != nil {
		return nil, err
	}
	// Cleanup is unconditional: the deferred hand-off runs after both
	// steps' processes have confirmed exit, whatever state we finish in.
	defer e.cleaner.Release(ws)

	res := &executor.ExecutionResult{
		ID:       ws.ID,
		Language: profile.ID,
		Status:   executor.StatusOK,
	}

	if profile.HasCompile {
		argv := profile.CompileArgv(ws.Vars())
		cr, err := runProcess(ctx, processSpec{
			Argv:      argv,
			Dir:       ws.Dir,
			Timeout:   e.config.CompileTimeout,
			MaxOutput: e.config.MaxOutputBytes,
		})
		if err != nil {
			return nil, apperror.SpawnFailed(argv[0], err)
		}
		if cr.TimedOut {
			res.Status = executor.StatusCompileError
			res.Stderr = fmt.Sprintf("compilation timed out after %s", e.config.CompileTimeout)
			res.ExitCode = cr.ExitCode
			res.Duration = time.Since(start)
			return res, nil
		}
		if cr.ExitCode != 0 {
			// Surface the compiler's stderr verbatim; the run step is
			// skipped entirely.
			res.Status = executor.StatusCompileError
			res.Stderr = cr.Stderr
			res.ExitCode = cr.ExitCode
			res.Truncated = cr.Truncated
			res.Duration = time.Since(start)
			e.logger.Debug("compile failed",
				slog.String("id", ws.ID),
				slog.String("language", profile.ID),
				slog.Int("exitCode", cr.ExitCode),
			)
			return res, nil
		}
	}

	var stdin io.Reader
	if ws.StdinPath != "" {
		f, err := os.Open(ws.StdinPath)
		if err != nil {
			return nil, fmt.Errorf("local executor: opening stdin for request %s: %w", ws.ID, err)
		}
		defer f.Close()
		stdin = f
	}

	argv := profile.RunArgv(ws.Vars())
	rr, err := runProcess(ctx, processSpec{
		Argv:      argv,
		Dir:       ws.Dir,
		Stdin:     stdin,
		Timeout:   e.config.RunTimeout,
		MaxOutput: e.config.MaxOutputBytes,
	})
	if err != nil {
		return nil, apperror.SpawnFailed(argv[0], err)
	}

	res.Stdout = rr.Stdout
	res.ExitCode = rr.ExitCode
	res.Truncated = rr.Truncated
	res.Duration = time.Since(start)
	if rr.TimedOut {
		// A distinct message, never confused with the program's own stderr.
		res.Status = executor.StatusTimeout
		res.Stderr = fmt.Sprintf("execution timed out after %s", e.config.RunTimeout)
	} else {
		res.Stderr = rr.Stderr
	}

	e.logger.Info("execution finished",
		slog.String("id", ws.ID),
		slog.String("language", profile.ID),
		slog.String("status", string(res.Status)),
		slog.Int("exitCode", res.ExitCode),
		slog.Duration("duration", res.Duration),
	)
	return res, nil
}
