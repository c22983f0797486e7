package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/steveyegge/ferry/internal/progress"
)

// ProgressWriter renders progress events. In live mode counted item events
// redraw a single status line; otherwise every stage, warning and error is
// printed on its own line and item events are dropped.
type ProgressWriter struct {
	mu      sync.Mutex
	w       io.Writer
	live    bool
	width   int
	pending bool // a live status line is on screen
}

var _ progress.Sink = (*ProgressWriter)(nil)

// NewProgressWriter returns a writer to w. live enables the redrawn status line.
func NewProgressWriter(w io.Writer, live bool) *ProgressWriter {
	width := 80
	if live {
		width = TerminalWidth(width)
	}
	return &ProgressWriter{w: w, live: live, width: width}
}

func (p *ProgressWriter) Report(e progress.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e.Category {
	case progress.CategoryItem:
		if p.live && e.Count != nil {
			p.status(e)
		}
	case progress.CategoryError:
		if p.live && e.Count != nil {
			p.status(e)
		}
		p.line(RenderFail(IconFail) + " " + e.Message)
	case progress.CategoryWarning:
		p.line(RenderWarn(IconWarn) + " " + e.Message)
	case progress.CategoryStage:
		p.line(RenderCategory(e.Message) + countSuffix(e.Count))
	default:
		p.line(RenderMuted(e.Message))
	}
}

// Done clears a pending live status line.
func (p *ProgressWriter) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clear()
}

func (p *ProgressWriter) status(e progress.Event) {
	text := fmt.Sprintf("[%d/%d] %s", e.Count.Processed, e.Count.Total, e.Message)
	fmt.Fprintf(p.w, "\r%-*s", p.width-1, TruncateSimple(text, p.width-1))
	p.pending = true
}

func (p *ProgressWriter) line(s string) {
	p.clear()
	fmt.Fprintln(p.w, s)
}

func (p *ProgressWriter) clear() {
	if p.pending {
		fmt.Fprintf(p.w, "\r%s\r", strings.Repeat(" ", p.width-1))
		p.pending = false
	}
}

func countSuffix(c *progress.Count) string {
	if c == nil || c.Total == 0 {
		return ""
	}
	return RenderMuted(fmt.Sprintf(" (%d)", c.Total))
}
