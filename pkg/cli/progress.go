package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

const progressWidth = 30

// Progress redraws a one-line counter in place, for terminals. Methods on a
// nil *Progress do nothing, so callers can skip the terminal check at every
// step.
type Progress struct {
	mu    sync.Mutex
	w     io.Writer
	unit  string
	total int
	done  int
	start time.Time
}

// NewProgress starts a counter of total units. A total below one returns nil.
func NewProgress(w io.Writer, unit string, total int) *Progress {
	if total < 1 {
		return nil
	}
	if unit == "" {
		unit = "items"
	}
	p := &Progress{w: w, unit: unit, total: total, start: time.Now()}
	p.draw()
	return p
}

// Step counts one finished unit.
func (p *Progress) Step() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done < p.total {
		p.done++
	}
	p.draw()
}

// Done ends the line.
func (p *Progress) Done() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w)
}

func (p *Progress) draw() {
	filled := progressWidth * p.done / p.total
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", progressWidth-filled)
	var rate float64
	if secs := time.Since(p.start).Seconds(); secs > 0 {
		rate = float64(p.done) / secs
	}
	fmt.Fprintf(p.w, "\r[%s] %d/%d %s (%.1f/s)", bar, p.done, p.total, p.unit, rate)
}
