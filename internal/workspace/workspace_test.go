package workspace

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sakif/runbox/internal/language"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m
}

var shellProfile = language.Profile{
	ID:        "shell",
	Extension: ".sh",
	RunCmd:    []string{"/bin/sh", "{source}"},
}

var compiledProfile = language.Profile{
	ID:         "shellc",
	Extension:  ".sh",
	HasCompile: true,
	CompileCmd: []string{"/bin/cp", "{source}", "{binary}"},
	RunCmd:     []string{"/bin/sh", "{binary}"},
	SweepGlobs: []string{"*.tmp"},
}

var entryProfile = language.Profile{
	ID:           "java",
	Extension:    ".java",
	HasCompile:   true,
	CompileCmd:   []string{"javac", "-d", "{dir}", "{source}"},
	RunCmd:       []string{"java", "-cp", "{dir}", "{entry}"},
	Naming:       language.NamingEntryPoint,
	DefaultEntry: "Main",
}

func TestAllocateWritesSourceAndStdin(t *testing.T) {
	m := newTestManager(t)

	ws, err := m.Allocate(shellProfile, "echo hi", "some input")
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}

	if ws.ID == "" {
		t.Error("workspace ID is empty")
	}
	if filepath.Dir(ws.SourcePath) != ws.Dir {
		t.Errorf("source %s is not inside workspace dir %s", ws.SourcePath, ws.Dir)
	}

	data, err := os.ReadFile(ws.SourcePath)
	if err != nil {
		t.Fatalf("reading staged source: %v", err)
	}
	if string(data) != "echo hi" {
		t.Errorf("staged source = %q, want %q", data, "echo hi")
	}

	data, err = os.ReadFile(ws.StdinPath)
	if err != nil {
		t.Fatalf("reading staged stdin: %v", err)
	}
	if string(data) != "some input" {
		t.Errorf("staged stdin = %q, want %q", data, "some input")
	}
}

func TestAllocateEmptyStdinWritesNoFile(t *testing.T) {
	m := newTestManager(t)

	ws, err := m.Allocate(shellProfile, "echo hi", "")
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if ws.StdinPath != "" {
		t.Errorf("StdinPath = %q, want empty for a request without stdin", ws.StdinPath)
	}

	entries, _ := os.ReadDir(ws.Dir)
	if len(entries) != 1 {
		t.Errorf("workspace holds %d files, want just the source", len(entries))
	}
}

func TestAllocateEntryPointNaming(t *testing.T) {
	m := newTestManager(t)

	ws, err := m.Allocate(entryProfile, "public class Fibonacci {}", "")
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if ws.Entry != "Fibonacci" {
		t.Errorf("Entry = %q, want %q", ws.Entry, "Fibonacci")
	}
	if got := filepath.Base(ws.SourcePath); got != "Fibonacci.java" {
		t.Errorf("source file = %q, want %q", got, "Fibonacci.java")
	}
	// The derived name is still inside the per-request directory.
	if !strings.HasPrefix(ws.SourcePath, filepath.Join(m.Root(), ws.ID)) {
		t.Errorf("source %s is not namespaced by the request id", ws.SourcePath)
	}
}

func TestAllocateConcurrentSameDerivedName(t *testing.T) {
	// Two requests with the same class name must never share a path.
	m := newTestManager(t)

	const n = 32
	paths := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ws, err := m.Allocate(entryProfile, "public class Main {}", "")
			if err != nil {
				t.Errorf("Allocate() error = %v", err)
				return
			}
			paths[i] = ws.SourcePath
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, p := range paths {
		if seen[p] {
			t.Fatalf("path %s allocated twice", p)
		}
		seen[p] = true
	}
}

func TestReleaseRemovesEverything(t *testing.T) {
	m := newTestManager(t)

	ws, err := m.Allocate(compiledProfile, "echo hi", "input")
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	// Simulate the compiler writing the artifact plus an untracked dropping.
	if err := os.WriteFile(ws.BinaryPath, []byte("binary"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ws.Dir, "scratch.tmp"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := m.Release(ws); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	if _, err := os.Stat(ws.Dir); !os.IsNotExist(err) {
		t.Errorf("workspace dir %s still exists after release", ws.Dir)
	}
	entries, err := os.ReadDir(m.Root())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("workspace root holds %d entries after release, want 0", len(entries))
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	m := newTestManager(t)

	ws, err := m.Allocate(shellProfile, "echo hi", "")
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}

	// Removing a staged file out from under the manager is tolerated.
	if err := os.Remove(ws.SourcePath); err != nil {
		t.Fatal(err)
	}

	if err := m.Release(ws); err != nil {
		t.Fatalf("first Release() error = %v", err)
	}
	if err := m.Release(ws); err != nil {
		t.Fatalf("second Release() error = %v", err)
	}
}

func TestReleaseDoesNotTouchSiblings(t *testing.T) {
	m := newTestManager(t)

	a, err := m.Allocate(compiledProfile, "echo a", "")
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.Allocate(compiledProfile, "echo b", "")
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Release(a); err != nil {
		t.Fatalf("Release(a) error = %v", err)
	}

	if _, err := os.Stat(b.SourcePath); err != nil {
		t.Errorf("sibling workspace was disturbed: %v", err)
	}
}
