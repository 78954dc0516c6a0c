package output

import (
	"fmt"
	"io"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner shows an animated progress indicator for operations whose
// length is unknown, such as exporting a store of unknown size. It is
// safe to call Stop, Success, or Fail more than once and in any
// combination; only the first call wins.
type Spinner struct {
	w        io.Writer
	message  string
	interval time.Duration

	mu       sync.Mutex
	started  bool
	stopOnce sync.Once
	done     chan struct{}
	finished chan struct{}
}

// NewSpinner returns an unstarted spinner writing to w.
func NewSpinner(w io.Writer, message string) *Spinner {
	return &Spinner{
		w:        w,
		message:  message,
		interval: 100 * time.Millisecond,
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Start begins the animation. Calling Start twice is a no-op.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	go func() {
		defer close(s.finished)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		frame := 0
		fmt.Fprintf(s.w, "\r%s %s", spinnerFrames[frame], s.currentMessage())
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				frame = (frame + 1) % len(spinnerFrames)
				fmt.Fprintf(s.w, "\r%s %s", spinnerFrames[frame], s.currentMessage())
			}
		}
	}()
}

// SetMessage replaces the text shown next to the spinner.
func (s *Spinner) SetMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

func (s *Spinner) currentMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message
}

// stop halts the animation and waits for the goroutine to finish so
// the final line cannot race a spinner frame. It reports whether this
// call was the one that stopped the spinner.
func (s *Spinner) stop() bool {
	first := false
	s.stopOnce.Do(func() {
		first = true
		close(s.done)
		s.mu.Lock()
		started := s.started
		s.mu.Unlock()
		if started {
			<-s.finished
		}
		fmt.Fprint(s.w, "\r\033[K")
	})
	return first
}

// Stop clears the spinner line without a verdict.
func (s *Spinner) Stop() {
	s.stop()
}

// Success clears the spinner and prints a checkmark line.
func (s *Spinner) Success(format string, args ...any) {
	if s.stop() {
		fmt.Fprintf(s.w, "✓ "+format+"\n", args...)
	}
}

// Fail clears the spinner and prints a cross line.
func (s *Spinner) Fail(format string, args ...any) {
	if s.stop() {
		fmt.Fprintf(s.w, "✗ "+format+"\n", args...)
	}
}
