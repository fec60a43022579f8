package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"
)

const progressWidth = 30

// progressBar draws a single-line bar on a terminal. It redraws only when
// the whole percentage changes.
type progressBar struct {
	w    io.Writer
	last int
}

func newProgressBar(w io.Writer) *progressBar {
	return &progressBar{w: w, last: -1}
}

// Update matches chunkmine.ProgressFunc.
func (p *progressBar) Update(consumed, total int) {
	if total <= 0 {
		return
	}
	pct := consumed * 100 / total
	if pct == p.last {
		return
	}
	p.last = pct
	filled := pct * progressWidth / 100
	fmt.Fprintf(p.w, "\r[%s%s] %3d%% %s/%s lines",
		strings.Repeat("=", filled), strings.Repeat(" ", progressWidth-filled),
		pct, humanize.Comma(int64(consumed)), humanize.Comma(int64(total)))
}

// Done ends the bar's line if anything was drawn.
func (p *progressBar) Done() {
	if p.last >= 0 {
		fmt.Fprintln(p.w)
	}
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
