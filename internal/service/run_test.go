package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sakif/runbox/internal/apperror"
	"github.com/sakif/runbox/internal/executor"
	"github.com/sakif/runbox/internal/model"
	"github.com/sakif/runbox/internal/repository"
)

// mockExecutor returns a canned result and remembers the last request it saw.
type mockExecutor struct {
	lastReq executor.ExecutionRequest
	result  *executor.ExecutionResult
	err     error
}

func (m *mockExecutor) Execute(_ context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

// mockRunRepo stores runs in memory; createErr lets tests simulate a
// failing history store.
type mockRunRepo struct {
	runs      map[string]*model.Run
	nextID    int
	createErr error
}

func newMockRunRepo() *mockRunRepo {
	return &mockRunRepo{runs: make(map[string]*model.Run)}
}

func (m *mockRunRepo) Create(_ context.Context, run *model.Run) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.nextID++
	run.ID = fmt.Sprintf("mock-%d", m.nextID)
	run.CreatedAt = time.Now()
	stored := *run
	m.runs[run.ID] = &stored
	return nil
}

func (m *mockRunRepo) GetByID(_ context.Context, id string) (*model.Run, error) {
	run, ok := m.runs[id]
	if !ok {
		return nil, apperror.NotFound("run", id)
	}
	result := *run
	return &result, nil
}

func (m *mockRunRepo) List(_ context.Context, opts repository.ListOptions) ([]model.Run, error) {
	result := make([]model.Run, 0, len(m.runs))
	for _, r := range m.runs {
		result = append(result, *r)
	}
	if opts.Offset >= len(result) {
		return []model.Run{}, nil
	}
	result = result[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(result) {
		result = result[:opts.Limit]
	}
	return result, nil
}

func (m *mockRunRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.runs[id]; !ok {
		return apperror.NotFound("run", id)
	}
	delete(m.runs, id)
	return nil
}

func okResult() *executor.ExecutionResult {
	return &executor.ExecutionResult{
		ID:       "req-1",
		Language: "python",
		Status:   executor.StatusOK,
		Stdout:   "hi\n",
		ExitCode: 0,
		Duration: 15 * time.Millisecond,
	}
}

func newTestRunService(t *testing.T) (*RunService, *mockExecutor, *mockRunRepo) {
	t.Helper()
	exec := &mockExecutor{result: okResult()}
	repo := newMockRunRepo()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	svc := NewRunService(exec, repo, logger)
	return svc, exec, repo
}

func TestExecute_Success(t *testing.T) {
	svc, exec, _ := newTestRunService(t)

	result, err := svc.Execute(context.Background(), executor.ExecutionRequest{
		Language: "python",
		Source:   "print('hi')",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if result.Stdout != "hi\n" {
		t.Errorf("Stdout = %q, want %q", result.Stdout, "hi\n")
	}
	if exec.lastReq.Language != "python" {
		t.Errorf("executor received language %q, want %q", exec.lastReq.Language, "python")
	}
}

func TestExecute_RecordsRun(t *testing.T) {
	svc, _, repo := newTestRunService(t)

	_, err := svc.Execute(context.Background(), executor.ExecutionRequest{
		Language: "python",
		Source:   "print('hi')",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if len(repo.runs) != 1 {
		t.Fatalf("repo contains %d runs, want 1", len(repo.runs))
	}
	for _, run := range repo.runs {
		if run.RequestID != "req-1" {
			t.Errorf("RequestID = %q, want %q", run.RequestID, "req-1")
		}
		if run.Source != "print('hi')" {
			t.Errorf("Source = %q, want the submitted source", run.Source)
		}
		if run.Status != "ok" {
			t.Errorf("Status = %q, want %q", run.Status, "ok")
		}
	}
}

func TestExecute_RepoFailureIsNotFatal(t *testing.T) {
	svc, _, repo := newTestRunService(t)
	repo.createErr = errors.New("disk full")

	result, err := svc.Execute(context.Background(), executor.ExecutionRequest{
		Language: "python",
		Source:   "print('hi')",
	})
	if err != nil {
		t.Fatalf("Execute() should succeed even when recording fails, got error = %v", err)
	}
	if result == nil {
		t.Fatal("Execute() returned nil result")
	}
}

func TestExecute_NilRepo(t *testing.T) {
	exec := &mockExecutor{result: okResult()}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	svc := NewRunService(exec, nil, logger)

	_, err := svc.Execute(context.Background(), executor.ExecutionRequest{
		Language: "python",
		Source:   "print('hi')",
	})
	if err != nil {
		t.Fatalf("Execute() with nil repo error = %v", err)
	}
}

func TestExecute_EmptyLanguage(t *testing.T) {
	svc, _, _ := newTestRunService(t)

	_, err := svc.Execute(context.Background(), executor.ExecutionRequest{
		Source: "print('hi')",
	})
	if err == nil {
		t.Fatal("Execute() should error on empty language")
	}
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

func TestExecute_EmptySource(t *testing.T) {
	svc, _, _ := newTestRunService(t)

	_, err := svc.Execute(context.Background(), executor.ExecutionRequest{
		Language: "python",
		Source:   "   \n\t  ",
	})
	if err == nil {
		t.Fatal("Execute() should error on whitespace-only source")
	}
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

func TestExecute_SourceTooLong(t *testing.T) {
	svc, _, _ := newTestRunService(t)

	_, err := svc.Execute(context.Background(), executor.ExecutionRequest{
		Language: "python",
		Source:   strings.Repeat("a", MaxSourceLength+1),
	})
	if err == nil {
		t.Fatal("Execute() should error on oversized source")
	}
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

func TestExecute_StdinTooLong(t *testing.T) {
	svc, _, _ := newTestRunService(t)

	_, err := svc.Execute(context.Background(), executor.ExecutionRequest{
		Language: "python",
		Source:   "print('hi')",
		Stdin:    strings.Repeat("x", MaxStdinLength+1),
	})
	if err == nil {
		t.Fatal("Execute() should error on oversized stdin")
	}
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

func TestExecute_ExecutorError(t *testing.T) {
	svc, exec, repo := newTestRunService(t)
	exec.err = apperror.UnsupportedLanguage("cobol")

	_, err := svc.Execute(context.Background(), executor.ExecutionRequest{
		Language: "cobol",
		Source:   "DISPLAY 'hi'",
	})
	if !errors.Is(err, apperror.ErrUnsupported) {
		t.Errorf("error = %v, want ErrUnsupported", err)
	}
	if len(repo.runs) != 0 {
		t.Errorf("failed execution should not be recorded, repo has %d runs", len(repo.runs))
	}
}

func TestGet_Success(t *testing.T) {
	svc, _, _ := newTestRunService(t)

	_, err := svc.Execute(context.Background(), executor.ExecutionRequest{
		Language: "python",
		Source:   "print('hi')",
	})
	if err != nil {
		t.Fatalf("setup: Execute() error = %v", err)
	}

	runs, err := svc.List(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("setup: List() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("setup: List() returned %d runs, want 1", len(runs))
	}

	run, err := svc.Get(context.Background(), runs[0].ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if run.Language != "python" {
		t.Errorf("Language = %q, want %q", run.Language, "python")
	}
}

func TestGet_EmptyID(t *testing.T) {
	svc, _, _ := newTestRunService(t)

	_, err := svc.Get(context.Background(), "  ")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	svc, _, _ := newTestRunService(t)

	_, err := svc.Get(context.Background(), "nonexistent")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestList_ClampsBadValues(t *testing.T) {
	svc, _, _ := newTestRunService(t)

	_, err := svc.List(context.Background(), -5, -10)
	if err != nil {
		t.Fatalf("List() should handle negative values gracefully, got error = %v", err)
	}
}

func TestDelete_Success(t *testing.T) {
	svc, _, repo := newTestRunService(t)

	run := &model.Run{Language: "python", Status: "ok"}
	if err := repo.Create(context.Background(), run); err != nil {
		t.Fatalf("setup: Create() error = %v", err)
	}

	if err := svc.Delete(context.Background(), run.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	_, err := svc.Get(context.Background(), run.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("after delete: error = %v, want ErrNotFound", err)
	}
}

func TestDelete_EmptyID(t *testing.T) {
	svc, _, _ := newTestRunService(t)

	err := svc.Delete(context.Background(), "")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}
