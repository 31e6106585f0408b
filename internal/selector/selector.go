// Package selector decides which instructions are fault-injection targets.
//
// A Selector is a pure predicate over one instruction. Selectors live in a
// Registry under unique names; Run applies one of them to a module and
// hands every match to a Recorder, which is where the automation-config
// side file gets written.
package selector

import (
	"faultline/internal/ir"
)

// Match describes why an instruction was selected.
type Match struct {
	// Category is the fault-category label written to the automation
	// config, e.g. "MemBufOverflow2".
	Category string
}

// Selector decides whether an instruction is a target. Implementations
// must not modify the IR.
type Selector interface {
	IsTarget(in *ir.Instr) (Match, bool)
}

// Func adapts a plain function to Selector.
type Func func(in *ir.Instr) (Match, bool)

// IsTarget calls f.
func (f Func) IsTarget(in *ir.Instr) (Match, bool) {
	return f(in)
}

// calleeName returns the statically known callee of a call or invoke.
func calleeName(in *ir.Instr) (string, bool) {
	switch in.Kind() {
	case ir.InstrCall:
		return in.Call.CalledName()
	case ir.InstrInvoke:
		return in.Invoke.Call.CalledName()
	default:
		return "", false
	}
}
