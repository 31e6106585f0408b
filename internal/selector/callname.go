package selector

import (
	"faultline/internal/ir"
)

const (
	// BlockCopyName is the registry name of the block-copy selector.
	BlockCopyName = "BufferOverflow-memmove(MEM)"
	// BlockCopyCategory is the category it reports.
	BlockCopyCategory = "MemBufOverflow2"
)

// blockCopyCallees lists the memcpy/memmove intrinsics in their typed and
// opaque-pointer spellings.
var blockCopyCallees = []string{
	"llvm.memcpy.p0i8.p0i8.i64",
	"llvm.memmove.p0i8.p0i8.i64",
	"llvm.memcpy.p0.p0.i64",
	"llvm.memmove.p0.p0.i64",
}

// CallNameSelector matches calls whose callee is one of a fixed set of
// names. Indirect calls never match.
type CallNameSelector struct {
	category string
	names    map[string]struct{}
}

// NewCallNameSelector builds a selector over the given callee names.
func NewCallNameSelector(category string, names ...string) *CallNameSelector {
	s := &CallNameSelector{category: category, names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		s.names[n] = struct{}{}
	}
	return s
}

// NewBlockCopy returns the builtin memcpy/memmove selector.
func NewBlockCopy() *CallNameSelector {
	return NewCallNameSelector(BlockCopyCategory, blockCopyCallees...)
}

// IsTarget implements Selector.
func (s *CallNameSelector) IsTarget(in *ir.Instr) (Match, bool) {
	switch in.Kind() {
	case ir.InstrCall, ir.InstrInvoke:
		name, ok := calleeName(in)
		if !ok {
			return Match{}, false
		}
		if _, hit := s.names[name]; hit {
			return Match{Category: s.category}, true
		}
		return Match{}, false
	default:
		return Match{}, false
	}
}
