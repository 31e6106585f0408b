package selector

import (
	"fmt"

	"github.com/ianlancetaylor/demangle"

	"faultline/internal/ir"
)

// FuncNameSelector matches calls to the listed functions. A listed name
// matches the raw symbol, its demangled form, or the demangled form
// without parameters, so "ns::copy" selects "_ZN2ns4copyEPvPKvm".
type FuncNameSelector struct {
	category string
	names    map[string]struct{}
}

// NewFuncNameSelector builds the selector.
func NewFuncNameSelector(category string, functions []string) (*FuncNameSelector, error) {
	if len(functions) == 0 {
		return nil, fmt.Errorf("function selector needs at least one function")
	}
	s := &FuncNameSelector{category: category, names: make(map[string]struct{}, len(functions))}
	for _, f := range functions {
		s.names[f] = struct{}{}
	}
	return s, nil
}

// IsTarget implements Selector.
func (s *FuncNameSelector) IsTarget(in *ir.Instr) (Match, bool) {
	switch in.Kind() {
	case ir.InstrCall, ir.InstrInvoke:
		name, ok := calleeName(in)
		if !ok {
			return Match{}, false
		}
		for _, cand := range Spellings(name) {
			if _, hit := s.names[cand]; hit {
				return Match{Category: s.category}, true
			}
		}
		return Match{}, false
	default:
		return Match{}, false
	}
}

// Spellings returns the raw symbol followed by its demangled forms, if any.
func Spellings(symbol string) []string {
	out := []string{symbol}
	full, err := demangle.ToString(symbol)
	if err != nil {
		return out
	}
	out = append(out, full)
	if short := demangle.Filter(symbol, demangle.NoParams); short != full {
		out = append(out, short)
	}
	return out
}
