package main

import (
	"fmt"
	"io"
	"sync"

	"ytgrab/backend"
)

// progressPrinter redraws a single status line
type progressPrinter struct {
	mu     sync.Mutex
	w      io.Writer
	active bool
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w}
}

func (p *progressPrinter) Update(u backend.ProgressUpdate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "\r\033[K%s", u)
	p.active = true
}

// Done ends the current status line
func (p *progressPrinter) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active {
		fmt.Fprintln(p.w)
		p.active = false
	}
}
