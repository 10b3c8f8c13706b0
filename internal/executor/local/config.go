package local

import (
	"time"
)

// Config holds the configuration for host-process execution.
type Config struct {
	// WorkspaceRoot is the directory per-request workspaces are created under.
	WorkspaceRoot string
	// CompileTimeout is the wall-clock budget for the compile step.
	CompileTimeout time.Duration
	// RunTimeout is the wall-clock budget for the run step.
	RunTimeout time.Duration
	// MaxOutputBytes caps each captured stream; overflow is truncated.
	MaxOutputBytes int64
	// MaxConcurrent bounds how many requests may be executing at once.
	MaxConcurrent int
}

// DefaultConfig provides sensible defaults for a small host.
func DefaultConfig() Config {
	return Config{
		WorkspaceRoot: "data/workspaces",
		// Compilers are slow; give them more room than the program run.
		CompileTimeout: 15 * time.Second,
		RunTimeout:     5 * time.Second,
		// 1 MB per stream
		MaxOutputBytes: 1 << 20,
		MaxConcurrent:  8,
	}
}
