package selector

import (
	"context"
	"errors"
	"fmt"

	"faultline/internal/index"
	"faultline/internal/ir"
	"faultline/internal/trace"
)

// ErrNotIndexed reports a selected instruction without an ID; the index
// pass has to run before selection.
var ErrNotIndexed = errors.New("selected instruction is not indexed")

// Recorder receives the category of every match.
type Recorder interface {
	Record(category string)
}

// Run applies sel to every instruction of m. Each match is recorded once
// and listed in the returned report.
func Run(ctx context.Context, m *ir.Module, name string, sel Selector, idx index.Indexer, rec Recorder) (*Report, error) {
	if idx == nil {
		idx = index.Meta{}
	}
	rep := &Report{Selector: name}
	for _, f := range m.Definitions() {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		for _, in := range f.Instructions() {
			match, ok := sel.IsTarget(in)
			if !ok {
				continue
			}
			id, indexed := idx.IndexOf(in)
			if !indexed {
				err := fmt.Errorf("%w: %s in %s", ErrNotIndexed, ir.FormatInstr(m, in), f)
				trace.MarkError(ctx, trace.ScopeInstr, "select", err)
				return rep, err
			}
			t := Target{
				Module:   m.Name,
				Function: f.Name,
				ID:       id,
				Opcode:   in.Op.String(),
				Category: match.Category,
			}
			if callee, ok := calleeName(in); ok {
				t.Callee = callee
			}
			rep.Targets = append(rep.Targets, t)
			if rec != nil {
				rec.Record(match.Category)
			}
			trace.Mark(ctx, trace.ScopeInstr, "select", fmt.Sprintf("%s id=%d %s", f.Name, id, match.Category))
		}
	}
	return rep, nil
}
