package executor

import (
	"context"
	"time"
)

// ExecutionRequest represents a request to execute a program in one of the
// registered languages.
type ExecutionRequest struct {
	Language string `json:"language"`
	Source   string `json:"source"`
	Stdin    string `json:"stdin,omitempty"`
}

// Status is the terminal state of an execution.
type Status string

const (
	// StatusOK means the program was started and ran to completion. The
	// exit code may still be non-zero; a program's own failure is not an
	// orchestrator failure.
	StatusOK Status = "ok"
	// StatusCompileError means the compile step failed; the run step was
	// never attempted.
	StatusCompileError Status = "compile_error"
	// StatusTimeout means the run step exceeded its deadline and the
	// process was killed.
	StatusTimeout Status = "timeout"
)

// ExecutionResult represents the output and terminal state of one execution.
type ExecutionResult struct {
	ID        string        `json:"id"`
	Language  string        `json:"language"`
	Status    Status        `json:"status"`
	Stdout    string        `json:"stdout"`
	Stderr    string        `json:"stderr"`
	ExitCode  int           `json:"exitCode"`
	Truncated bool          `json:"truncated,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Executor represents the core interface for running code in an isolated
// environment. Errors are reserved for requests that could not be executed
// at all (unknown language, saturated pool, unstartable toolchain); a
// program that compiles-and-fails or times out is a result, not an error.
type Executor interface {
	Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error)
}
