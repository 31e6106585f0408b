package autoconfig

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"faultline/internal/trace"
)

func TestTruncateKeepsLastRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultPath)
	w := New(path, ModeTruncate, nil)
	w.Record("MemBufOverflow2")
	w.Record("MemBufOverflow2")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "MemBufOverflow2\n" {
		t.Fatalf("file = %q", data)
	}
	if written, failures := w.Stats(); written != 2 || failures != 0 {
		t.Fatalf("stats = %d, %d", written, failures)
	}
}

func TestAppendMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg")
	w := New(path, ModeAppend, nil)
	w.Record("A")
	w.Record("B")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "A\nB\n" {
		t.Fatalf("file = %q", data)
	}
}

func TestOpenFailureIsSwallowed(t *testing.T) {
	var buf bytes.Buffer
	tr := trace.NewStreamTracer(&buf, trace.LevelError, trace.FormatText)
	path := filepath.Join(t.TempDir(), "missing-dir", "cfg")
	w := New(path, ModeTruncate, tr)
	w.Record("MemBufOverflow2")
	if _, failures := w.Stats(); failures != 1 {
		t.Fatalf("failures = %d", failures)
	}
	if !strings.Contains(buf.String(), "autoconfig") {
		t.Fatalf("failure was not traced: %q", buf.String())
	}
}

func TestConcurrentRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg")
	w := New(path, ModeAppend, nil)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Record("Cat")
		}()
	}
	wg.Wait()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(data), "Cat\n"); got != 16 {
		t.Fatalf("%d whole lines, want 16: %q", got, data)
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode(""); err != nil || m != ModeTruncate {
		t.Fatalf("default mode = %v, %v", m, err)
	}
	if _, err := ParseMode("rotate"); err == nil {
		t.Fatal("expected error")
	}
}
