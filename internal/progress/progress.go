// Package progress reports byte-level progress of hashing and
// conversion operations to the terminal.
package progress

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// Sink receives position updates from a long-running byte operation.
type Sink interface {
	// Start announces a new operation over total bytes.
	Start(name string, total int64)
	// Advance moves the position forward by n bytes.
	Advance(n int64)
	// Finish completes the current operation.
	Finish()
}

// Nop is a Sink that discards all updates.
type Nop struct{}

func (Nop) Start(string, int64) {}
func (Nop) Advance(int64)       {}
func (Nop) Finish()             {}

var dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

// Bar renders a single-line progress bar, redrawn in place at a
// bounded frame rate.
type Bar struct {
	w        io.Writer
	bar      progress.Model
	name     string
	total    int64
	position int64
	lastDraw time.Time
}

// NewBar creates a Bar writing to stderr.
func NewBar() *Bar {
	return &Bar{
		w:   os.Stderr,
		bar: progress.New(progress.WithDefaultGradient()),
	}
}

func (b *Bar) Start(name string, total int64) {
	b.name = name
	b.total = total
	b.position = 0
	b.lastDraw = time.Time{}
	b.draw()
}

func (b *Bar) Advance(n int64) {
	b.position += n
	if time.Since(b.lastDraw) >= 100*time.Millisecond {
		b.draw()
	}
}

func (b *Bar) Finish() {
	b.draw()
	fmt.Fprint(b.w, "\r\033[K")
}

func (b *Bar) draw() {
	b.lastDraw = time.Now()
	pct := 1.0
	if b.total > 0 {
		pct = float64(b.position) / float64(b.total)
	}
	fmt.Fprintf(b.w, "\r\033[K %s %s %s", b.name, b.bar.ViewAs(pct),
		dimStyle.Render(fmt.Sprintf("%s/%s",
			humanize.Bytes(uint64(b.position)), humanize.Bytes(uint64(b.total)))))
}
