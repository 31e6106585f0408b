package ir

import (
	"errors"
	"fmt"

	"faultline/internal/types"
)

// Validate checks module invariants and returns every violation joined.
func Validate(m *Module) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, f := range m.Funcs {
		if f == nil || f.IsDeclaration() {
			continue
		}
		if err := validateFunc(m, f); err != nil {
			errs = append(errs, fmt.Errorf("function @%s: %w", f.Name, err))
		}
	}
	return errors.Join(errs...)
}

func validateFunc(m *Module, f *Func) error {
	var errs []error

	// 1. Every block ends with exactly one terminator.
	if err := validateTerminators(f); err != nil {
		errs = append(errs, err)
	}

	// 2. Branch targets and phi predecessors exist.
	if err := validateBlockTargets(f); err != nil {
		errs = append(errs, err)
	}

	// 3. Phi nodes form a prefix of their block.
	if err := validatePhiPlacement(f); err != nil {
		errs = append(errs, err)
	}

	// 4. A landing pad directly follows the phi nodes of its block.
	if err := validatePadPlacement(m, f); err != nil {
		errs = append(errs, err)
	}

	// 5. Operands refer to values of this function and are typed.
	if err := validateOperands(m, f); err != nil {
		errs = append(errs, err)
	}

	// 6. Names are unique within the function.
	if err := validateNames(f); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func validateTerminators(f *Func) error {
	var errs []error
	for _, b := range f.Blocks {
		if !b.Terminated() {
			errs = append(errs, fmt.Errorf("%s: unterminated block", b.Label()))
		}
		for i, in := range b.Instrs {
			if in.IsTerminator() && i != len(b.Instrs)-1 {
				errs = append(errs, fmt.Errorf("%s: terminator %s in the middle of the block", b.Label(), in.Op))
			}
			if in.Parent != b {
				errs = append(errs, fmt.Errorf("%s: instruction %s has a stale parent", b.Label(), in.Op))
			}
		}
	}
	return errors.Join(errs...)
}

func validateBlockTargets(f *Func) error {
	var errs []error
	check := func(b *Block, id BlockID) {
		if _, ok := f.Block(id); !ok {
			errs = append(errs, fmt.Errorf("%s: branch to missing block #%d", b.Label(), id))
		}
	}
	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			for _, s := range in.Successors() {
				check(b, s)
			}
			if in.Op == OpPhi {
				for _, inc := range in.Phi.Incoming {
					check(b, inc.Block)
				}
			}
		}
	}
	return errors.Join(errs...)
}

func validatePhiPlacement(f *Func) error {
	var errs []error
	for _, b := range f.Blocks {
		seenOther := false
		for _, in := range b.Instrs {
			if in.Op != OpPhi {
				seenOther = true
				continue
			}
			if seenOther {
				errs = append(errs, fmt.Errorf("%s: phi after a non-phi instruction", b.Label()))
			}
		}
	}
	return errors.Join(errs...)
}

func validatePadPlacement(m *Module, f *Func) error {
	var errs []error
	for _, b := range f.Blocks {
		for i, in := range b.Instrs {
			if in.Op != OpLandingPad {
				continue
			}
			if b.FirstNonPhi() != in {
				errs = append(errs, fmt.Errorf("%s: landingpad at position %d is not the first non-phi instruction", b.Label(), i))
			}
			if m.Types.IsVoid(in.Type) {
				errs = append(errs, fmt.Errorf("%s: landingpad without a result type", b.Label()))
			}
			if !in.Pad.Cleanup && len(in.Pad.Clauses) == 0 {
				errs = append(errs, fmt.Errorf("%s: landingpad needs a clause or cleanup", b.Label()))
			}
		}
	}
	return errors.Join(errs...)
}

func validateOperands(m *Module, f *Func) error {
	var errs []error
	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			if in.Type == types.NoTypeID {
				errs = append(errs, fmt.Errorf("%s: %s has no result type", b.Label(), in.Op))
			}
			if (in.Op == OpICmp || in.Op == OpFCmp) && !ValidPredicate(in.Op, in.Cmp.Pred) {
				errs = append(errs, fmt.Errorf("%s: invalid %s predicate %q", b.Label(), in.Op, in.Cmp.Pred))
			}
			for _, op := range in.Operands() {
				if err := checkOperand(m, f, op); err != nil {
					errs = append(errs, fmt.Errorf("%s: %s: %w", b.Label(), in.Op, err))
				}
			}
			if c, ok := in.CallSite(); ok {
				if err := checkCall(m, c); err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", b.Label(), err))
				}
			}
		}
	}
	return errors.Join(errs...)
}

func checkOperand(m *Module, f *Func, op *Operand) error {
	if !op.IsValid() {
		return errors.New("missing operand")
	}
	if op.Type == types.NoTypeID {
		return errors.New("untyped operand")
	}
	switch op.Kind {
	case OperandInstr:
		if op.Instr.Func() != f {
			return fmt.Errorf("operand %%%s is defined outside the function", op.Instr.Name)
		}
		if m.Types.IsVoid(op.Instr.Type) {
			return fmt.Errorf("operand uses the void result of %s", op.Instr.Op)
		}
	case OperandParam:
		if op.Param < 0 || op.Param >= len(f.Params) {
			return fmt.Errorf("parameter #%d out of range", op.Param)
		}
	case OperandGlobal:
		_, isFunc := m.Func(op.Global)
		_, isGlobal := m.Global(op.Global)
		if !isFunc && !isGlobal {
			return fmt.Errorf("unknown global @%s", op.Global)
		}
	}
	return nil
}

func checkCall(m *Module, c *CallInstr) error {
	info, ok := m.Types.FuncInfo(c.FnType)
	if !ok {
		return errors.New("call without a function type")
	}
	if len(c.Args) < len(info.Params) || (!info.Variadic && len(c.Args) != len(info.Params)) {
		return fmt.Errorf("call expects %d arguments, got %d", len(info.Params), len(c.Args))
	}
	if name, direct := c.CalledName(); direct {
		if _, known := m.Func(name); !known {
			return fmt.Errorf("call to undeclared function @%s", name)
		}
	}
	return nil
}

func validateNames(f *Func) error {
	var errs []error
	seen := make(map[string]struct{})
	for _, p := range f.Params {
		if p.Name != "" {
			seen[p.Name] = struct{}{}
		}
	}
	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			if in.Name == "" {
				continue
			}
			if _, dup := seen[in.Name]; dup {
				errs = append(errs, fmt.Errorf("%s: value %%%s redefined", b.Label(), in.Name))
			}
			seen[in.Name] = struct{}{}
		}
	}
	return errors.Join(errs...)
}
