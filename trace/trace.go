// Package trace implements an optional diagnostics collaborator for deep
// spectrum dumps: a tracer writes labeled trace lines to a file, filtered
// by context, or discards them entirely. It is independent of the
// required per-frame diagnostic line (spec.md §6's -d flag), which the
// engine writes directly.
package trace

import (
	"fmt"
	"io"
	"log"
	"os"
)

type Tracer interface {
	Context() string
	Start()
	Trace(context string, format string, args ...any)
	Stop()
}

// SpectrumContext is the context the per-frame magnitude dumps written by
// skim.Engine.Run are traced under, wired by the hidden --trace-spectrum flag.
const SpectrumContext = "spectrum"

type NoTracer struct{}

func (t *NoTracer) Context() string              { return "" }
func (t *NoTracer) Start()                       {}
func (t *NoTracer) Trace(string, string, ...any) {}
func (t *NoTracer) Stop()                        {}

type FileTracer struct {
	context  string
	filename string
	out      io.WriteCloser
}

func NewFileTracer(context string, filename string) *FileTracer {
	return &FileTracer{
		context:  context,
		filename: filename,
	}
}

func (t *FileTracer) Context() string {
	return t.context
}

func (t *FileTracer) Start() {
	if t.out != nil {
		return
	}

	var err error
	t.out, err = os.Create(t.filename)
	if err != nil {
		t.out = nil
		log.Printf("cannot start trace: %v", err)
	}
}

func (t *FileTracer) Trace(context string, format string, args ...any) {
	if t.out == nil {
		return
	}
	if context != t.context {
		return
	}

	fmt.Fprintf(t.out, format, args...)
}

func (t *FileTracer) Stop() {
	if t.out == nil {
		return
	}

	t.out.Close()
	t.out = nil
}
