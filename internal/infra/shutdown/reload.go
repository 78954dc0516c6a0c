// Package shutdown provides graceful shutdown handling.
package shutdown

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// ReloadHandler invokes a callback whenever the process receives
// SIGHUP. The daemon uses it to re-read configuration for settings
// that can change without a restart, such as the log level.
type ReloadHandler struct {
	reload   func()
	sigCh    chan os.Signal
	stopOnce sync.Once
	stopped  chan struct{}
}

// NewReloadHandler creates a reload handler. The callback runs on
// the handler's goroutine; keep it short.
func NewReloadHandler(reload func()) *ReloadHandler {
	return &ReloadHandler{
		reload:  reload,
		sigCh:   make(chan os.Signal, 1),
		stopped: make(chan struct{}),
	}
}

// Start begins listening for SIGHUP in a background goroutine.
func (r *ReloadHandler) Start() {
	signal.Notify(r.sigCh, syscall.SIGHUP)

	go func() {
		for {
			select {
			case <-r.sigCh:
				r.reload()
			case <-r.stopped:
				return
			}
		}
	}()
}

// Stop releases the signal handler. Safe to call more than once.
func (r *ReloadHandler) Stop() {
	r.stopOnce.Do(func() {
		signal.Stop(r.sigCh)
		close(r.stopped)
	})
}
