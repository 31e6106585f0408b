package selector

import (
	"fmt"

	"faultline/internal/ir"
)

// OpcodeSelector matches instructions by opcode name ("load", "add", ...).
type OpcodeSelector struct {
	category string
	ops      map[ir.Opcode]struct{}
}

// NewOpcodeSelector validates the opcode names and builds the selector.
func NewOpcodeSelector(category string, opcodes []string) (*OpcodeSelector, error) {
	if len(opcodes) == 0 {
		return nil, fmt.Errorf("opcode selector needs at least one opcode")
	}
	s := &OpcodeSelector{category: category, ops: make(map[ir.Opcode]struct{}, len(opcodes))}
	for _, name := range opcodes {
		op, ok := ir.LookupOpcode(name)
		if !ok {
			return nil, fmt.Errorf("unknown opcode %q", name)
		}
		s.ops[op] = struct{}{}
	}
	return s, nil
}

// IsTarget implements Selector.
func (s *OpcodeSelector) IsTarget(in *ir.Instr) (Match, bool) {
	if in == nil {
		return Match{}, false
	}
	if _, ok := s.ops[in.Op]; ok {
		return Match{Category: s.category}, true
	}
	return Match{}, false
}
