package workspace

import (
	"log/slog"
	"sync"
	"time"
)

// Cleaner guarantees that every finished request's workspace is released,
// without making callers wait on filesystem work. Releases are handed off
// to a background goroutine once the request's processes have confirmed
// exit; transient failures are retried with a short backoff. Cleanup
// failures are logged, never propagated to the caller.
type Cleaner struct {
	manager *Manager
	logger  *slog.Logger

	queue    chan *Workspace
	done     chan struct{}
	wg       sync.WaitGroup
	startDone sync.Once
	stopDone  sync.Once

	retryDelay  time.Duration
	maxAttempts int
}

// NewCleaner wraps a Manager with deferred, retried release.
func NewCleaner(manager *Manager, logger *slog.Logger) *Cleaner {
	return &Cleaner{
		manager:     manager,
		logger:      logger,
		queue:       make(chan *Workspace, 64),
		done:        make(chan struct{}),
		retryDelay:  250 * time.Millisecond,
		maxAttempts: 3,
	}
}

// Start launches the background release worker.
func (c *Cleaner) Start() {
	c.startDone.Do(func() {
		c.wg.Add(1)
		go c.worker()
	})
}

// Stop drains outstanding releases and stops the worker. Workspaces queued
// after Stop are released synchronously by Release itself.
func (c *Cleaner) Stop() {
	c.stopDone.Do(func() {
		close(c.done)
		c.wg.Wait()
		// Drain anything that raced with shutdown.
		for {
			select {
			case ws := <-c.queue:
				c.release(ws)
			default:
				return
			}
		}
	})
}

// Release schedules a workspace for removal. The hand-off never blocks the
// finishing request: if the queue is full or the cleaner is stopped, the
// release happens inline instead of being skipped.
func (c *Cleaner) Release(ws *Workspace) {
	if ws == nil {
		return
	}
	select {
	case <-c.done:
		c.release(ws)
	default:
		select {
		case c.queue <- ws:
		default:
			c.release(ws)
		}
	}
}

func (c *Cleaner) worker() {
	defer c.wg.Done()
	for {
		select {
		case ws := <-c.queue:
			c.release(ws)
		case <-c.done:
			return
		}
	}
}

// release attempts the removal a bounded number of times. A workspace whose
// files are still pinned by a just-killed process usually frees up within
// one backoff interval.
func (c *Cleaner) release(ws *Workspace) {
	var err error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err = c.manager.Release(ws); err == nil {
			return
		}
		if attempt < c.maxAttempts {
			time.Sleep(c.retryDelay)
		}
	}
	c.logger.Error("workspace cleanup failed",
		slog.String("id", ws.ID),
		slog.Int("attempts", c.maxAttempts),
		slog.String("error", err.Error()),
	)
}
