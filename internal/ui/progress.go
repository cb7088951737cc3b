package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

const barWidth = 24

// Progress prints run progress. On a terminal it redraws a single bar line;
// elsewhere it prints one line per state change.
type Progress struct {
	w   io.Writer
	tty bool

	mu        sync.Mutex
	lastState string
	drawn     bool
}

func NewProgress(w io.Writer) *Progress {
	p := &Progress{w: w}
	if f, ok := w.(*os.File); ok {
		p.tty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return p
}

// Update matches pipeline.ProgressFunc once the state is stringified.
func (p *Progress) Update(state string, percent int, msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.tty {
		if state != p.lastState {
			fmt.Fprintf(p.w, "[%3d%%] %s: %s\n", percent, state, msg)
		}
		p.lastState = state
		return
	}

	fmt.Fprintf(p.w, "\r\033[K%s %3d%% %s", Bar(percent), percent, dimStyle.Render(msg))
	p.drawn = true
	p.lastState = state
}

// Finish ends the bar line so later output starts clean.
func (p *Progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.drawn {
		fmt.Fprintln(p.w)
		p.drawn = false
	}
}

// Bar renders percent as a fixed-width bar.
func Bar(percent int) string {
	if percent < 0 {
		percent = 0
	}
	filled := percent * barWidth / 100
	if filled > barWidth {
		filled = barWidth
	}
	return newStyle.Render(strings.Repeat("█", filled)) + dimStyle.Render(strings.Repeat("░", barWidth-filled))
}
