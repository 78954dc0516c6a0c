package output

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

const progressBarWidth = 30

// ProgressBar draws a single-line progress bar for operations with a
// known item count, such as restoring records from an archive. When
// the total is unknown it degrades to a plain running count.
type ProgressBar struct {
	w     io.Writer
	title string
	total int64

	mu      sync.Mutex
	current int64
	done    bool
}

// NewProgressBar returns a bar for total items. A total of zero or
// less means unknown.
func NewProgressBar(w io.Writer, title string, total int64) *ProgressBar {
	return &ProgressBar{w: w, title: title, total: total}
}

// Increment advances the bar by n items and redraws it.
func (p *ProgressBar) Increment(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}
	p.current += n
	p.render()
}

// Current returns the number of items counted so far.
func (p *ProgressBar) Current() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Finish draws the final state and moves to a fresh line. Further
// Increment calls are ignored.
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}
	p.done = true
	p.render()
	fmt.Fprintln(p.w)
}

func (p *ProgressBar) render() {
	if p.total <= 0 {
		fmt.Fprintf(p.w, "\r%s %d", p.title, p.current)
		return
	}

	ratio := float64(p.current) / float64(p.total)
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio * progressBarWidth)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", progressBarWidth-filled)
	fmt.Fprintf(p.w, "\r%s [%s] %3.0f%% (%d/%d)", p.title, bar, ratio*100, p.current, p.total)
}

// FormatBytes renders a byte count in a human-readable unit, such as
// "1.5 MB" or "312 B".
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
