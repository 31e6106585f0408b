// Package index assigns and looks up the stable instruction IDs that the
// selection and tracing passes key on. IDs live in the "!index" attachment
// of an instruction and are unique across a module.
package index

import (
	"errors"
	"fmt"
	"slices"

	"faultline/internal/ir"
)

// First is the ID given to the first instruction of a fresh module.
const First int64 = 1

var (
	// ErrDuplicateIndex reports two instructions carrying the same ID.
	ErrDuplicateIndex = errors.New("duplicate instruction index")
	// ErrNegativeIndex reports an ID below zero.
	ErrNegativeIndex = errors.New("negative instruction index")
)

// Indexer answers which instructions are indexed and under which ID.
type Indexer interface {
	IsIndexed(in *ir.Instr) bool
	IndexOf(in *ir.Instr) (int64, bool)
}

// Meta reads IDs from instruction metadata.
type Meta struct{}

// IsIndexed reports whether in carries an ID.
func (Meta) IsIndexed(in *ir.Instr) bool {
	return in != nil && in.Meta.Indexed
}

// IndexOf returns the ID of in.
func (Meta) IndexOf(in *ir.Instr) (int64, bool) {
	if in == nil || !in.Meta.Indexed {
		return 0, false
	}
	return in.Meta.Index, true
}

// Indexable reports whether Assign numbers in. Phi nodes never get an ID.
func Indexable(in *ir.Instr) bool {
	return in != nil && in.Op != ir.OpPhi
}

// Assign gives every indexable instruction of m that has no ID yet the next
// free one, in program order. Existing IDs are kept, so running it twice
// changes nothing. It returns the number of IDs handed out.
func Assign(m *ir.Module) (int, error) {
	if err := Verify(m); err != nil {
		return 0, err
	}
	next := First
	for _, f := range m.Definitions() {
		for _, in := range f.Instructions() {
			if in.Meta.Indexed && in.Meta.Index >= next {
				next = in.Meta.Index + 1
			}
		}
	}
	n := 0
	for _, f := range m.Definitions() {
		for _, in := range f.Instructions() {
			if in.Meta.Indexed || !Indexable(in) {
				continue
			}
			in.Meta = ir.Meta{Indexed: true, Index: next}
			next++
			n++
		}
	}
	return n, nil
}

// Verify checks that every ID of m is non-negative and used once.
func Verify(m *ir.Module) error {
	seen := make(map[int64]*ir.Instr)
	var errs []error
	for _, f := range m.Definitions() {
		for _, in := range f.Instructions() {
			if !in.Meta.Indexed {
				continue
			}
			id := in.Meta.Index
			if id < 0 {
				errs = append(errs, fmt.Errorf("%w: %d in %s", ErrNegativeIndex, id, f))
				continue
			}
			if prev, dup := seen[id]; dup {
				errs = append(errs, fmt.Errorf("%w: %d used by %s in %s and %s in %s",
					ErrDuplicateIndex, id, prev.Op, prev.Func(), in.Op, f))
				continue
			}
			seen[id] = in
		}
	}
	return errors.Join(errs...)
}

// Table maps IDs back to instructions.
type Table struct {
	byID map[int64]*ir.Instr
	ids  []int64
}

// Build indexes the IDs present in m.
func Build(m *ir.Module) (*Table, error) {
	if err := Verify(m); err != nil {
		return nil, err
	}
	t := &Table{byID: make(map[int64]*ir.Instr)}
	for _, f := range m.Definitions() {
		for _, in := range f.Instructions() {
			if in.Meta.Indexed {
				t.byID[in.Meta.Index] = in
				t.ids = append(t.ids, in.Meta.Index)
			}
		}
	}
	slices.Sort(t.ids)
	return t, nil
}

// Lookup returns the instruction with the given ID.
func (t *Table) Lookup(id int64) (*ir.Instr, bool) {
	in, ok := t.byID[id]
	return in, ok
}

// IDs returns all IDs in ascending order.
func (t *Table) IDs() []int64 {
	return slices.Clone(t.ids)
}

// Len returns the number of indexed instructions.
func (t *Table) Len() int {
	return len(t.ids)
}
