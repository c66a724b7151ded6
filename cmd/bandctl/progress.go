package main

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/term"
)

const (
	progressUpdateInterval = 100 * time.Millisecond
	clearLineSequence      = "\r\033[K"
)

// ProgressPrinter keeps one status line with elapsed seconds up to date.
// It prints nothing unless w is a terminal.
//
//	p := NewProgressPrinter(w, "Fetching activity")
//	p.Start()
//	defer p.Stop()
type ProgressPrinter struct {
	w       io.Writer
	prefix  string
	phase   atomic.Value
	enabled bool

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

func NewProgressPrinter(w io.Writer, prefix string) *ProgressPrinter {
	p := &ProgressPrinter{
		w:       w,
		prefix:  prefix,
		enabled: isTerminal(w),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	p.phase.Store("")
	return p
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Set changes the text shown after the prefix
func (p *ProgressPrinter) Set(phase string) {
	p.phase.Store(phase)
}

func (p *ProgressPrinter) Start() {
	p.startOnce.Do(func() {
		if !p.enabled {
			close(p.done)
			return
		}
		started := time.Now()
		go func() {
			defer close(p.done)
			ticker := time.NewTicker(progressUpdateInterval)
			defer ticker.Stop()
			for {
				select {
				case <-p.stop:
					fmt.Fprint(p.w, clearLineSequence)
					return
				case <-ticker.C:
					fmt.Fprintf(p.w, "\r%s (%s %ds)   ", p.prefix, p.phase.Load().(string), int(time.Since(started).Seconds()))
				}
			}
		}()
	})
}

// Stop clears the line. Safe to call more than once.
func (p *ProgressPrinter) Stop() {
	p.Start()
	p.stopOnce.Do(func() {
		close(p.stop)
		<-p.done
	})
}
