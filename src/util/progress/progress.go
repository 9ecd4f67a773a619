package progress

import (
	"fmt"
	"io"
	"sync"
	"time"
)

const printEvery = 200 * time.Millisecond

// Tracker reports bytes copied across the files of one transfer.
type Tracker struct {
	out         io.Writer
	label       string
	total       int64
	done        int64
	files       int
	mu          sync.Mutex
	lastPrinted time.Time
}

// NewTracker creates a Tracker for a transfer of total bytes. If total is 0,
// percentage is omitted. A nil out disables output.
func NewTracker(out io.Writer, label string, total int64) *Tracker {
	return &Tracker{out: out, label: label, total: total}
}

// Wrap returns a reader that accounts everything read from r to the tracker.
func (t *Tracker) Wrap(r io.Reader) io.Reader {
	t.mu.Lock()
	t.files++
	t.mu.Unlock()
	return &reader{r: r, t: t}
}

// Finish prints the final line.
func (t *Tracker) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.out == nil {
		return
	}
	t.print()
	fmt.Fprint(t.out, "\n")
}

func (t *Tracker) add(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done += int64(n)
	now := time.Now()
	if now.Sub(t.lastPrinted) >= printEvery {
		t.print()
		t.lastPrinted = now
	}
}

func (t *Tracker) print() {
	if t.out == nil {
		return
	}
	if t.total > 0 {
		pct := float64(t.done) / float64(t.total) * 100
		fmt.Fprintf(t.out, "\r[%s] %.1f%% (%d/%d bytes, %d files)", t.label, pct, t.done, t.total, t.files)
	} else {
		fmt.Fprintf(t.out, "\r[%s] %d bytes, %d files", t.label, t.done, t.files)
	}
}

type reader struct {
	r io.Reader
	t *Tracker
}

func (p *reader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.t.add(n)
	}
	return n, err
}
