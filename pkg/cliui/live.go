package cliui

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// LiveRenderer displays a growing reply. On a terminal each call redraws the
// reply as rendered Markdown in place; elsewhere it appends the new text.
//
// A frame taller than the terminal cannot be redrawn in place, so from then
// on the reply streams as plain text. Render is safe for concurrent use.
type LiveRenderer struct {
	out    io.Writer
	output *termenv.Output
	md     *glamour.TermRenderer

	tty    bool
	width  int
	height int

	mu       sync.Mutex
	rows     int
	written  string
	overflow bool
}

// LiveOption configures a LiveRenderer.
type LiveOption func(*LiveRenderer)

// WithTerminalSize forces in-place redraw with the given terminal size.
func WithTerminalSize(width, height int) LiveOption {
	return func(r *LiveRenderer) {
		r.tty = true
		r.width = width
		r.height = height
	}
}

// NewLiveRenderer returns a LiveRenderer writing to out. Redraw is enabled
// when out is a terminal.
func NewLiveRenderer(out io.Writer, a Appearance, opts ...LiveOption) *LiveRenderer {
	r := &LiveRenderer{
		out:    out,
		output: termenv.NewOutput(out),
	}

	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if w, h, err := term.GetSize(int(f.Fd())); err == nil {
			r.tty = true
			r.width = w
			r.height = h
		}
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.tty {
		wrap := a.WordWrap
		if r.width > 0 && (wrap <= 0 || wrap > r.width) {
			wrap = r.width
		}
		a.WordWrap = wrap
		if md, err := NewMarkdownRenderer(a); err == nil {
			r.md = md
		}
	}
	return r
}

// Render shows body, which extends what was shown before.
func (r *LiveRenderer) Render(body string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.tty || r.md == nil || r.overflow {
		r.appendRaw(body)
		return
	}

	frame, err := r.md.Render(body)
	if err != nil {
		frame = body
	}
	if !strings.HasSuffix(frame, "\n") {
		frame += "\n"
	}

	rows := r.countRows(frame)
	if r.height > 0 && rows >= r.height {
		r.clear()
		r.overflow = true
		r.appendRaw(body)
		return
	}

	r.clear()
	_, _ = io.WriteString(r.out, frame)
	r.rows = rows
}

// Finish ends the current reply and resets for the next one.
func (r *LiveRenderer) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.written != "" && !strings.HasSuffix(r.written, "\n") {
		_, _ = io.WriteString(r.out, "\n")
	}

	r.rows = 0
	r.written = ""
	r.overflow = false
}

// clear erases the previous frame.
func (r *LiveRenderer) clear() {
	if r.rows == 0 {
		return
	}
	r.output.CursorPrevLine(r.rows)
	_, _ = io.WriteString(r.out, termenv.CSI+"0J")
	r.rows = 0
}

// appendRaw writes the part of body not yet written.
func (r *LiveRenderer) appendRaw(body string) {
	if rest, ok := strings.CutPrefix(body, r.written); ok {
		_, _ = io.WriteString(r.out, rest)
	} else {
		_, _ = io.WriteString(r.out, "\n"+body)
	}
	r.written = body
}

// countRows returns the terminal rows frame occupies, counting wrapped lines
// by their displayed width.
func (r *LiveRenderer) countRows(frame string) int {
	lines := strings.Split(strings.TrimSuffix(frame, "\n"), "\n")
	rows := 0
	for _, line := range lines {
		w := ansi.StringWidth(line)
		if r.width <= 0 || w <= r.width {
			rows++
			continue
		}
		rows += (w + r.width - 1) / r.width
	}
	return rows
}
