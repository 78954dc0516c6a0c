package output

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer guards a bytes.Buffer so the spinner goroutine and the
// test can both touch it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestNewSpinner(t *testing.T) {
	var buf syncBuffer
	s := NewSpinner(&buf, "Loading")

	if s == nil {
		t.Fatal("NewSpinner returned nil")
	}
	if s.message != "Loading" {
		t.Errorf("Spinner message = %q, want 'Loading'", s.message)
	}
	if s.done == nil || s.finished == nil {
		t.Error("Spinner channels should be initialized")
	}
}

func TestSpinner_StartStop(t *testing.T) {
	var buf syncBuffer
	s := NewSpinner(&buf, "Processing")

	s.Start()
	time.Sleep(150 * time.Millisecond)
	s.Stop()

	out := buf.String()
	if !strings.Contains(out, "Processing") {
		t.Error("Spinner output should contain the message")
	}
	if !strings.Contains(out, "\r") {
		t.Error("Spinner output should contain carriage return")
	}
}

func TestSpinner_Success(t *testing.T) {
	var buf syncBuffer
	s := NewSpinner(&buf, "Loading")

	s.Start()
	time.Sleep(50 * time.Millisecond)
	s.Success("exported %d records", 12)

	out := buf.String()
	if !strings.Contains(out, "✓") {
		t.Error("Success output should contain checkmark")
	}
	if !strings.Contains(out, "exported 12 records") {
		t.Error("Success output should contain message")
	}
}

func TestSpinner_Fail(t *testing.T) {
	var buf syncBuffer
	s := NewSpinner(&buf, "Loading")

	s.Start()
	time.Sleep(50 * time.Millisecond)
	s.Fail("scan failed")

	out := buf.String()
	if !strings.Contains(out, "✗") {
		t.Error("Fail output should contain X mark")
	}
	if !strings.Contains(out, "scan failed") {
		t.Error("Fail output should contain error message")
	}
}

func TestSpinner_StopWithoutStart(t *testing.T) {
	var buf syncBuffer
	s := NewSpinner(&buf, "Test")

	// Stop without Start must not panic or block.
	s.Stop()
}

func TestSpinner_DoubleStop(t *testing.T) {
	var buf syncBuffer
	s := NewSpinner(&buf, "Working")

	s.Start()
	time.Sleep(20 * time.Millisecond)
	s.Stop()
	s.Stop()

	// Only the first completion call wins; a later verdict prints
	// nothing.
	s.Success("done")
	if strings.Contains(buf.String(), "✓") {
		t.Error("Success after Stop should not print a verdict")
	}
}

func TestSpinner_SuccessThenFail(t *testing.T) {
	var buf syncBuffer
	s := NewSpinner(&buf, "Working")

	s.Start()
	time.Sleep(20 * time.Millisecond)
	s.Success("done")
	s.Fail("too late")

	out := buf.String()
	if !strings.Contains(out, "✓ done") {
		t.Error("first verdict should print")
	}
	if strings.Contains(out, "✗") {
		t.Error("second verdict should be ignored")
	}
}

func TestSpinner_NoFrameAfterVerdict(t *testing.T) {
	var buf syncBuffer
	s := NewSpinner(&buf, "Working")

	s.Start()
	time.Sleep(120 * time.Millisecond)
	s.Success("done")
	time.Sleep(150 * time.Millisecond)

	// The verdict line must be last; no spinner frame may trail it.
	out := buf.String()
	idx := strings.LastIndex(out, "✓ done\n")
	if idx == -1 {
		t.Fatalf("missing verdict line in %q", out)
	}
	if rest := out[idx+len("✓ done\n"):]; rest != "" {
		t.Errorf("output after verdict = %q, want empty", rest)
	}
}

func TestSpinner_SetMessage(t *testing.T) {
	var buf syncBuffer
	s := NewSpinner(&buf, "phase one")

	s.Start()
	time.Sleep(120 * time.Millisecond)
	s.SetMessage("phase two")
	time.Sleep(120 * time.Millisecond)
	s.Stop()

	out := buf.String()
	if !strings.Contains(out, "phase one") || !strings.Contains(out, "phase two") {
		t.Errorf("output should show both messages, got %q", out)
	}
}
