// Package service contains the business logic layer: request validation,
// execution, and the run history. Handlers parse HTTP and delegate here;
// this package knows nothing about HTTP.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/runbox/internal/apperror"
	"github.com/sakif/runbox/internal/executor"
	"github.com/sakif/runbox/internal/model"
	"github.com/sakif/runbox/internal/repository"
)

const (
	MaxSourceLength  = 100000 // ~100KB of code
	MaxStdinLength   = 65536
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// RunService executes requests and records their results.
type RunService struct {
	exec   executor.Executor
	repo   repository.RunRepository
	logger *slog.Logger
}

// NewRunService creates a new RunService. repo may be nil, in which case
// executions still work but nothing is recorded.
func NewRunService(exec executor.Executor, repo repository.RunRepository, logger *slog.Logger) *RunService {
	return &RunService{
		exec:   exec,
		repo:   repo,
		logger: logger,
	}
}

// Execute validates the request, runs it through the executor, and records
// the outcome in the run history. History failures are logged, not
// propagated; the caller still gets their result.
func (s *RunService) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	if strings.TrimSpace(req.Language) == "" {
		return nil, apperror.ValidationFailed("language", "language is required")
	}
	if strings.TrimSpace(req.Source) == "" {
		return nil, apperror.ValidationFailed("source", "source is required")
	}
	if len(req.Source) > MaxSourceLength {
		return nil, apperror.ValidationFailed("source",
			fmt.Sprintf("source exceeds maximum length of %d bytes", MaxSourceLength))
	}
	if len(req.Stdin) > MaxStdinLength {
		return nil, apperror.ValidationFailed("stdin",
			fmt.Sprintf("stdin exceeds maximum length of %d bytes", MaxStdinLength))
	}

	result, err := s.exec.Execute(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	if s.repo != nil {
		run := &model.Run{
			RequestID:  result.ID,
			Language:   result.Language,
			Source:     req.Source,
			Stdout:     result.Stdout,
			Stderr:     result.Stderr,
			Status:     string(result.Status),
			ExitCode:   result.ExitCode,
			DurationMS: result.Duration.Milliseconds(),
		}
		if err := s.repo.Create(ctx, run); err != nil {
			s.logger.Error("failed to record run",
				slog.String("requestId", result.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	return result, nil
}

// Get retrieves a single recorded run by its ID.
func (s *RunService) Get(ctx context.Context, id string) (*model.Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "run id is required")
	}

	run, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting run: %w", err)
	}
	return run, nil
}

// List retrieves recorded runs, newest first.
func (s *RunService) List(ctx context.Context, limit, offset int) ([]model.Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	runs, err := s.repo.List(ctx, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// Delete removes a recorded run.
func (s *RunService) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "run id is required")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}

	s.logger.Info("run deleted", slog.String("id", id))
	return nil
}
