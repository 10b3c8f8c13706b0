// Package docker implements the executor.Executor interface with a pool of
// pre-warmed containers. Requests are staged on the host by the workspace
// manager, copied into a single-use container, compiled and run inside it,
// and both the container and the host workspace are removed afterwards.
package docker

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/sakif/runbox/internal/apperror"
	"github.com/sakif/runbox/internal/executor"
	"github.com/sakif/runbox/internal/language"
	"github.com/sakif/runbox/internal/workspace"
)

// Executor implements the executor.Executor interface using Docker.
type Executor struct {
	cli        *client.Client
	config     Config
	languages  *language.Registry
	workspaces *workspace.Manager
	cleaner    *workspace.Cleaner
	logger     *slog.Logger
	pool       *Pool
}

var _ executor.Executor = (*Executor)(nil)

// New creates a new Docker Executor and initializes the connection.
func New(cfg Config, languages *language.Registry, logger *slog.Logger) (*Executor, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := ensureImage(ctx, cli, cfg.Image, logger); err != nil {
		return nil, err
	}

	manager, err := workspace.NewManager(cfg.WorkspaceRoot, logger)
	if err != nil {
		return nil, fmt.Errorf("docker executor: %w", err)
	}
	cleaner := workspace.NewCleaner(manager, logger)
	cleaner.Start()

	exec := &Executor{
		cli:        cli,
		config:     cfg,
		languages:  languages,
		workspaces: manager,
		cleaner:    cleaner,
		logger:     logger,
	}

	exec.pool = NewPool(cli, cfg, logger)
	exec.pool.Start()

	return exec, nil
}

// ensureImage pulls the sandbox image unless it is already present locally.
func ensureImage(ctx context.Context, cli *client.Client, img string, logger *slog.Logger) error {
	list, err := cli.ImageList(ctx, image.ListOptions{
		Filters: filters.NewArgs(filters.Arg("reference", img)),
	})
	if err != nil {
		return fmt.Errorf("failed to list images: %w", err)
	}
	if len(list) > 0 {
		return nil
	}

	logger.Info("sandbox image not found locally, pulling", slog.String("image", img))
	reader, err := cli.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()
	// Read everything to block until the pull is complete
	io.Copy(io.Discard, reader)
	logger.Info("sandbox image is ready")
	return nil
}

// Close shuts down the executor pool, cleanup worker, and docker client.
func (e *Executor) Close() error {
	e.pool.Stop()
	e.cleaner.Stop()
	return e.cli.Close()
}

// Execute stages the request, then compiles (if the profile has a compile
// step) and runs it inside a pooled container. The container is single-use
// and force-removed before returning, which also kills anything still
// running inside it.
func (e *Executor) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	profile, err := e.languages.Resolve(req.Language)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Source) == "" {
		return nil, apperror.ValidationFailed("source", "source must not be empty")
	}

	start := time.Now()

	ws, err := e.workspaces.Allocate(profile, req.Source, req.Stdin)
	if err != nil {
		return nil, err
	}
	defer e.cleaner.Release(ws)

	containerID, err := e.pool.GetContainer(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container from pool: %w", err)
	}

	// Always ensure we clean up the container that we acquired
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := e.cli.ContainerRemove(cleanupCtx, containerID, container.RemoveOptions{
			Force: true,
		})
		if err != nil {
			e.logger.Error("failed to remove container", slog.String("id", containerID), slog.String("error", err.Error()))
		}
	}()

	// The request's files live under <workDir>/<id> inside the container,
	// mirroring the host workspace layout.
	cdir := path.Join(e.config.WorkDir, ws.ID)
	if err := e.copyWorkspace(ctx, containerID, ws, cdir); err != nil {
		return nil, fmt.Errorf("copying workspace into container: %w", err)
	}

	vars := language.Vars{
		Source: path.Join(cdir, filepath.Base(ws.SourcePath)),
		Binary: path.Join(cdir, "program"),
		Dir:    cdir,
		Entry:  ws.Entry,
	}

	res := &executor.ExecutionResult{
		ID:       ws.ID,
		Language: profile.ID,
		Status:   executor.StatusOK,
	}

	if profile.HasCompile {
		cr, err := e.execCapture(ctx, containerID, profile.CompileArgv(vars), cdir, e.config.CompileTimeout)
		if err != nil {
			return nil, err
		}
		if cr.TimedOut {
			res.Status = executor.StatusCompileError
			res.Stderr = fmt.Sprintf("compilation timed out after %s", e.config.CompileTimeout)
			res.ExitCode = cr.ExitCode
			res.Duration = time.Since(start)
			return res, nil
		}
		if cr.ExitCode != 0 {
			res.Status = executor.StatusCompileError
			res.Stderr = cr.Stderr
			res.ExitCode = cr.ExitCode
			res.Truncated = cr.Truncated
			res.Duration = time.Since(start)
			return res, nil
		}
	}

	argv := profile.RunArgv(vars)
	if ws.StdinPath != "" {
		// Redirect the staged stdin file into the program.
		argv = []string{"sh", "-c", strings.Join(argv, " ") + " < " + path.Join(cdir, "stdin.txt")}
	}

	rr, err := e.execCapture(ctx, containerID, argv, cdir, e.config.RunTimeout)
	if err != nil {
		return nil, err
	}

	res.Stdout = rr.Stdout
	res.ExitCode = rr.ExitCode
	res.Truncated = rr.Truncated
	res.Duration = time.Since(start)
	if rr.TimedOut {
		res.Status = executor.StatusTimeout
		res.Stderr = fmt.Sprintf("execution timed out after %s", e.config.RunTimeout)
	} else {
		res.Stderr = rr.Stderr
	}
	return res, nil
}

// copyWorkspace tars the staged host workspace and streams it into the
// container under dest.
func (e *Executor) copyWorkspace(ctx context.Context, containerID string, ws *workspace.Workspace, dest string) error {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	if err := tw.WriteHeader(&tar.Header{
		Name:     strings.TrimPrefix(dest, "/") + "/",
		Mode:     0o777,
		Typeflag: tar.TypeDir,
	}); err != nil {
		return err
	}

	entries, err := os.ReadDir(ws.Dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(ws.Dir, entry.Name()))
		if err != nil {
			return err
		}
		hdr := &tar.Header{
			Name: path.Join(strings.TrimPrefix(dest, "/"), entry.Name()),
			Mode: 0o666,
			Size: int64(len(data)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if _, err := tw.Write(data); err != nil {
			return err
		}
	}
	if err := tw.Close(); err != nil {
		return err
	}

	return e.cli.CopyToContainer(ctx, containerID, "/", bytes.NewReader(buf.Bytes()), container.CopyToContainerOptions{})
}

type execResult struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	Truncated bool
	TimedOut  bool
}

// cappedWriter drops output past the cap and records the truncation.
type cappedWriter struct {
	buf       bytes.Buffer
	max       int64
	truncated bool
}

func (w *cappedWriter) Write(p []byte) (int, error) {
	remaining := w.max - int64(w.buf.Len())
	if remaining <= 0 {
		if len(p) > 0 {
			w.truncated = true
		}
		return len(p), nil
	}
	if int64(len(p)) > remaining {
		w.buf.Write(p[:remaining])
		w.truncated = true
		return len(p), nil
	}
	w.buf.Write(p)
	return len(p), nil
}

// execCapture runs one command inside the container under a deadline,
// demultiplexing stdout from stderr. On timeout the exec is abandoned; the
// caller's container removal kills it.
func (e *Executor) execCapture(ctx context.Context, containerID string, argv []string, workDir string, timeout time.Duration) (*execResult, error) {
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	created, err := e.cli.ContainerExecCreate(execCtx, containerID, container.ExecOptions{
		Cmd:          argv,
		WorkingDir:   workDir,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create exec: %w", err)
	}

	attach, err := e.cli.ContainerExecAttach(execCtx, created.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to attach to exec: %w", err)
	}
	defer attach.Close()

	stdout := &cappedWriter{max: e.config.MaxOutputBytes}
	stderr := &cappedWriter{max: e.config.MaxOutputBytes}

	done := make(chan struct{})
	go func() {
		// Use stdcopy to demultiplex stdout from stderr
		_, _ = stdcopy.StdCopy(stdout, stderr, attach.Reader)
		close(done)
	}()

	res := &execResult{}
	select {
	case <-done:
		inspect, err := e.cli.ContainerExecInspect(ctx, created.ID)
		if err == nil {
			res.ExitCode = inspect.ExitCode
		}
	case <-execCtx.Done():
		res.TimedOut = true
		res.ExitCode = timeoutExitCode
	}

	res.Stdout = stdout.buf.String()
	res.Stderr = stderr.buf.String()
	res.Truncated = stdout.truncated || stderr.truncated
	return res, nil
}

// timeoutExitCode mirrors the exit code of the unix timeout command.
const timeoutExitCode = 124
