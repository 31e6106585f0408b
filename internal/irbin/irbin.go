// Package irbin stores modules in the msgpack container used for .fib files.
package irbin

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"faultline/internal/ir"
)

// Ext is the file extension of binary modules.
const Ext = ".fib"

// ErrSchema reports a payload written by an incompatible version.
var ErrSchema = errors.New("irbin: unsupported schema version")

// Encode writes m to w.
func Encode(w io.Writer, m *ir.Module) error {
	p, err := FromModule(m)
	if err != nil {
		return err
	}
	return msgpack.NewEncoder(w).Encode(p)
}

// Decode reads a module from r.
func Decode(r io.Reader) (*ir.Module, error) {
	var p Payload
	if err := msgpack.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("irbin: %w", err)
	}
	return ToModule(&p)
}

// WriteFile encodes m into path, replacing it atomically.
func WriteFile(path string, m *ir.Module) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "tmp-*"+Ext)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()
	if err = Encode(f, m); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	// Атомарная замена
	return os.Rename(f.Name(), path)
}

// ReadFile decodes the module stored at path.
func ReadFile(path string) (*ir.Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
