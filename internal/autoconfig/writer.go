// Package autoconfig writes the automation-config side file that tells a
// fault-injection driver which fault categories a compilation activated.
package autoconfig

import (
	"fmt"
	"os"
	"sync"

	"faultline/internal/trace"
)

// DefaultPath is the file name the driver looks for.
const DefaultPath = "Automation-config"

// Mode selects how each record opens the file.
type Mode uint8

const (
	// ModeTruncate replaces the file on every record, so it holds the
	// latest category only.
	ModeTruncate Mode = iota
	// ModeAppend keeps earlier records.
	ModeAppend
)

func (m Mode) String() string {
	if m == ModeAppend {
		return "append"
	}
	return "truncate"
}

// ParseMode converts a config string to Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "truncate":
		return ModeTruncate, nil
	case "append":
		return ModeAppend, nil
	default:
		return ModeTruncate, fmt.Errorf("invalid automation-config mode: %q (expected: truncate|append)", s)
	}
}

// Writer records activated categories. Safe for concurrent use: writes
// from parallel modules are serialized.
type Writer struct {
	mu       sync.Mutex
	path     string
	mode     Mode
	tracer   trace.Tracer
	written  int
	failures int
}

// New returns a writer for path; an empty path means DefaultPath.
func New(path string, mode Mode, t trace.Tracer) *Writer {
	if path == "" {
		path = DefaultPath
	}
	if t == nil {
		t = trace.Nop
	}
	return &Writer{path: path, mode: mode, tracer: t}
}

// Path returns the file the writer targets.
func (w *Writer) Path() string {
	return w.path
}

// Record writes one category line. The file is opened and closed within
// the call. Failures are reported to the tracer and otherwise ignored.
func (w *Writer) Record(category string) {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if w.mode == ModeAppend {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(w.path, flags, 0o644)
	if err != nil {
		w.fail(err)
		return
	}
	_, err = fmt.Fprintln(f, category)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		w.fail(err)
		return
	}
	w.written++
	trace.Point(w.tracer, trace.ScopePass, 0, "autoconfig", category)
}

func (w *Writer) fail(err error) {
	w.failures++
	trace.Error(w.tracer, trace.ScopePass, 0, "autoconfig", err)
}

// Stats reports how many records were written and how many were dropped.
func (w *Writer) Stats() (written, failures int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written, w.failures
}
