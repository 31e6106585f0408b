package selector

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// ErrDuplicateSelector reports a second registration under one name.
var ErrDuplicateSelector = errors.New("duplicate selector name")

// Entry is one registered selector.
type Entry struct {
	Name        string
	Description string
	Selector    Selector
}

// Registry maps names to selectors. It is filled once during Bootstrap and
// only read afterwards; entries are never removed.
type Registry struct {
	entries []Entry
	byKey   map[string]int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byKey: make(map[string]int)}
}

// key folds case after NFC normalisation, so "BufferOverflow-MEMMOVE(mem)"
// and "bufferoverflow-memmove(MEM)" collide.
func key(name string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(name)))
}

// Register adds sel under name.
func (r *Registry) Register(name, description string, sel Selector) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("selector name must not be empty")
	}
	if sel == nil {
		return fmt.Errorf("selector %q: nil implementation", name)
	}
	k := key(name)
	if i, dup := r.byKey[k]; dup {
		return fmt.Errorf("%w: %q (already registered as %q)", ErrDuplicateSelector, name, r.entries[i].Name)
	}
	r.byKey[k] = len(r.entries)
	r.entries = append(r.entries, Entry{Name: name, Description: description, Selector: sel})
	return nil
}

// MustRegister is Register for builtin selectors; a clash is a programming
// error.
func (r *Registry) MustRegister(name, description string, sel Selector) {
	if err := r.Register(name, description, sel); err != nil {
		panic(err)
	}
}

// Lookup finds a selector by name.
func (r *Registry) Lookup(name string) (Selector, bool) {
	e, ok := r.Entry(name)
	if !ok {
		return nil, false
	}
	return e.Selector, true
}

// Entry returns the full registration for name.
func (r *Registry) Entry(name string) (Entry, bool) {
	if r == nil {
		return Entry{}, false
	}
	i, ok := r.byKey[key(name)]
	if !ok {
		return Entry{}, false
	}
	return r.entries[i], true
}

// Entries returns registrations in registration order.
func (r *Registry) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// Names returns registered names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Name
	}
	return out
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	return len(r.entries)
}
