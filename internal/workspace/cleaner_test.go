package workspace

import (
	"os"
	"testing"
	"time"
)

func waitForRemoval(t *testing.T, dir string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("workspace dir %s was never removed", dir)
}

func TestCleanerReleasesInBackground(t *testing.T) {
	m := newTestManager(t)
	c := NewCleaner(m, testLogger())
	c.Start()
	defer c.Stop()

	ws, err := m.Allocate(shellProfile, "echo hi", "")
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}

	c.Release(ws)
	waitForRemoval(t, ws.Dir)
}

func TestCleanerStopDrainsQueue(t *testing.T) {
	m := newTestManager(t)
	c := NewCleaner(m, testLogger())
	c.Start()

	dirs := make([]string, 0, 8)
	for i := 0; i < 8; i++ {
		ws, err := m.Allocate(shellProfile, "echo hi", "")
		if err != nil {
			t.Fatalf("Allocate() error = %v", err)
		}
		dirs = append(dirs, ws.Dir)
		c.Release(ws)
	}

	c.Stop()

	for _, dir := range dirs {
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			t.Errorf("workspace dir %s survived Stop()", dir)
		}
	}
}

func TestCleanerReleaseAfterStopIsSynchronous(t *testing.T) {
	m := newTestManager(t)
	c := NewCleaner(m, testLogger())
	c.Start()
	c.Stop()

	ws, err := m.Allocate(shellProfile, "echo hi", "")
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}

	c.Release(ws)
	if _, err := os.Stat(ws.Dir); !os.IsNotExist(err) {
		t.Error("release after Stop must run inline, not be dropped")
	}
}

func TestCleanerNilWorkspace(t *testing.T) {
	m := newTestManager(t)
	c := NewCleaner(m, testLogger())
	c.Start()
	defer c.Stop()

	c.Release(nil) // must not panic
}
