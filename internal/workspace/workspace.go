// Package workspace manages the on-disk artifacts belonging to a single
// execution request: a per-request directory named by a fresh random id,
// the staged source and stdin files, and the compiled artifact. Every path
// a workspace creates is recorded so release can remove all of them, and
// the release sweep never reaches outside the per-request directory.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/sakif/runbox/internal/language"
)

// Workspace is the set of filesystem artifacts for exactly one execution
// request. It is owned by that request and never shared.
type Workspace struct {
	ID         string
	Dir        string
	SourcePath string
	StdinPath  string // empty when the request carried no stdin
	BinaryPath string // target for the compiled artifact, if any
	Entry      string // entry-point symbol, NamingEntryPoint profiles only

	created    []string
	sweepGlobs []string
	released   bool
}

// Vars returns the template variables for this workspace's command lines.
func (w *Workspace) Vars() language.Vars {
	return language.Vars{
		Source: w.SourcePath,
		Binary: w.BinaryPath,
		Dir:    w.Dir,
		Entry:  w.Entry,
	}
}

// Manager allocates and releases workspaces under a single root directory.
// The root is shared; everything below it is namespaced by request id, so
// concurrent allocations never touch overlapping paths.
type Manager struct {
	root   string
	logger *slog.Logger
}

// NewManager creates the workspace root if needed and returns a Manager.
func NewManager(root string, logger *slog.Logger) (*Manager, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("workspace: resolving root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("workspace: creating root %s: %w", abs, err)
	}
	return &Manager{root: abs, logger: logger}, nil
}

// Root returns the absolute workspace root directory.
func (m *Manager) Root() string {
	return m.root
}

// Allocate creates a fresh workspace for one request: a new directory named
// by a random 128-bit id, the staged source file, and a stdin file when
// stdin is non-empty. The id is generated per call and never derived from
// user input, so two requests can never collide, even when an entry-point
// naming rule gives their source files the same base name.
func (m *Manager) Allocate(profile language.Profile, source, stdin string) (*Workspace, error) {
	id := uuid.NewString()
	dir := filepath.Join(m.root, id)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, fmt.Errorf("workspace: creating dir for request %s: %w", id, err)
	}

	ws := &Workspace{
		ID:         id,
		Dir:        dir,
		sweepGlobs: profile.SweepGlobs,
	}

	base := "main"
	if profile.Naming == language.NamingEntryPoint {
		ws.Entry = profile.EntryPoint(source)
		base = ws.Entry
	}
	ws.SourcePath = filepath.Join(dir, base+profile.Extension)
	if err := os.WriteFile(ws.SourcePath, []byte(source), 0o644); err != nil {
		m.Release(ws)
		return nil, fmt.Errorf("workspace: writing source for request %s: %w", id, err)
	}
	ws.created = append(ws.created, ws.SourcePath)

	if profile.HasCompile {
		ws.BinaryPath = filepath.Join(dir, "program")
	}

	if stdin != "" {
		ws.StdinPath = filepath.Join(dir, "stdin.txt")
		if err := os.WriteFile(ws.StdinPath, []byte(stdin), 0o644); err != nil {
			m.Release(ws)
			return nil, fmt.Errorf("workspace: writing stdin for request %s: %w", id, err)
		}
		ws.created = append(ws.created, ws.StdinPath)
	}

	return ws, nil
}

// Release removes every artifact the workspace created, sweeps secondary
// compiler artifacts matching the profile's globs, and finally removes the
// per-request directory itself. It is idempotent: already-missing files are
// not errors, and a second call is a no-op.
func (m *Manager) Release(ws *Workspace) error {
	if ws == nil || ws.released {
		return nil
	}

	var errs []error
	paths := ws.created
	if ws.BinaryPath != "" {
		paths = append(paths, ws.BinaryPath)
	}
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("removing %s: %w", p, err))
		}
	}

	// Sweep compiler droppings (.class, .o) that were never individually
	// tracked. Globs are relative to the per-request directory, so the
	// sweep cannot touch a sibling request's files.
	for _, glob := range ws.sweepGlobs {
		matches, err := filepath.Glob(filepath.Join(ws.Dir, glob))
		if err != nil {
			errs = append(errs, fmt.Errorf("sweeping %s: %w", glob, err))
			continue
		}
		for _, match := range matches {
			if err := os.Remove(match); err != nil && !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, fmt.Errorf("removing %s: %w", match, err))
			}
		}
	}

	if err := os.RemoveAll(ws.Dir); err != nil {
		errs = append(errs, fmt.Errorf("removing dir %s: %w", ws.Dir, err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("workspace: releasing request %s: %w", ws.ID, errors.Join(errs...))
	}
	ws.released = true
	m.logger.Debug("workspace released", slog.String("id", ws.ID))
	return nil
}
