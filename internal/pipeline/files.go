package pipeline

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"faultline/internal/diag"
	"faultline/internal/ir"
	"faultline/internal/irbin"
	"faultline/internal/irtext"
)

// Format selects how a module is stored on disk.
type Format string

const (
	// FormatAuto picks the format from the file extension.
	FormatAuto Format = ""
	// FormatText is the textual IR (.ll, .fir).
	FormatText Format = "text"
	// FormatBinary is the msgpack container (.fib).
	FormatBinary Format = "binary"
)

// ParseFormat converts a flag value to Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "text", "ll":
		return FormatText, nil
	case "binary", "fib":
		return FormatBinary, nil
	default:
		return FormatAuto, fmt.Errorf("invalid IR format: %q (expected: auto|text|binary)", s)
	}
}

// FormatOf returns the format implied by path.
func FormatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), irbin.Ext) {
		return FormatBinary
	}
	return FormatText
}

// Load reads a module. Text parse diagnostics are returned in the bag
// even when err is non-nil.
func Load(path string) (*ir.Module, *diag.Bag, error) {
	if FormatOf(path) == FormatBinary {
		m, err := irbin.ReadFile(path)
		return m, nil, err
	}
	return irtext.ParseFile(path)
}

// Store writes m to path in format; FormatAuto follows the extension.
func Store(path string, m *ir.Module, format Format) error {
	if format == FormatAuto {
		format = FormatOf(path)
	}
	if format == FormatBinary {
		return irbin.WriteFile(path, m)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	bw := bufio.NewWriter(f)
	if err := ir.Print(bw, m); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// OutputSuffix is inserted before the extension of derived output names.
const OutputSuffix = ".fi"

// OutputPath derives the output file for input: outDir (or the input's
// directory) joined with "<stem>.fi<ext>", the extension following format.
func OutputPath(input, outDir string, format Format) string {
	dir := filepath.Dir(input)
	if outDir != "" {
		dir = outDir
	}
	base := filepath.Base(input)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	switch format {
	case FormatBinary:
		ext = irbin.Ext
	case FormatText:
		if ext == "" || strings.EqualFold(ext, irbin.Ext) {
			ext = ".ll"
		}
	}
	return filepath.Join(dir, stem+OutputSuffix+ext)
}

// DisplayNames maps inputs to short slash-separated names relative to
// baseDir where possible.
func DisplayNames(files []string, baseDir string) []string {
	base := strings.TrimSpace(baseDir)
	if base != "" {
		if abs, err := filepath.Abs(base); err == nil {
			base = abs
		}
	}
	out := make([]string, len(files))
	for i, file := range files {
		path := filepath.Clean(file)
		if base != "" {
			if abs, err := filepath.Abs(path); err == nil {
				if rel, err := filepath.Rel(base, abs); err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
					path = rel
				}
			}
		}
		out[i] = filepath.ToSlash(path)
	}
	return out
}
