package docker

import (
	"time"
)

// Config holds the configuration for containerized execution.
type Config struct {
	// Image is the Docker image to use for execution. It must carry the
	// toolchains of every registered language profile.
	Image string
	// WorkDir is the writable directory inside the container that
	// per-request workspaces are copied under.
	WorkDir string
	// MemoryLimit is the maximum amount of memory the container can use (in bytes).
	MemoryLimit int64
	// CPULimit is the number of CPUs the container can use.
	CPULimit float64
	// CompileTimeout is the wall-clock budget for the compile step.
	CompileTimeout time.Duration
	// RunTimeout is the wall-clock budget for the run step.
	RunTimeout time.Duration
	// MaxOutputBytes caps each captured stream; overflow is truncated.
	MaxOutputBytes int64
	// PoolSize is the number of pre-warmed containers to maintain.
	PoolSize int
	// WorkspaceRoot is the host directory where requests are staged before
	// being copied into a container.
	WorkspaceRoot string
}

// DefaultConfig provides sensible defaults for a multi-language sandbox.
func DefaultConfig() Config {
	return Config{
		Image:   "runbox-sandbox:latest",
		WorkDir: "/work",
		// 256 MB memory limit
		MemoryLimit: 256 * 1024 * 1024,
		// 1 CPU share
		CPULimit:       1.0,
		CompileTimeout: 15 * time.Second,
		RunTimeout:     5 * time.Second,
		MaxOutputBytes: 1 << 20,
		PoolSize:       3,
		WorkspaceRoot:  "data/workspaces",
	}
}
