package testkit

import (
	"fmt"
	"slices"

	"fortio.org/safecast"

	"faultline/internal/ir"
)

// Tracked is an instruction the trace pass must cover, captured before the
// pass runs.
type Tracked struct {
	Instr *ir.Instr
	ID    int64
}

// TracerCalls returns the direct calls to tracer in f, in program order.
func TracerCalls(f *ir.Func, tracer string) []*ir.Instr {
	var out []*ir.Instr
	for _, in := range f.Instructions() {
		if name, ok := in.Call.CalledName(); ok && in.Op == ir.OpCall && name == tracer {
			out = append(out, in)
		}
	}
	return out
}

// CheckTraceInvariants verifies the instrumented f against want:
// 1) there is exactly one tracer call per tracked instruction
// 2) the call's first argument is the instruction's ID
// 3) the call follows the instruction in the same block, separated only by
// phi nodes and other trace code (alloca, store, tracer calls)
// 4) the call has six arguments: i32, ptr, i32, ptr, ptr, i32
func CheckTraceInvariants(f *ir.Func, tracer string, want []Tracked) error {
	if f == nil {
		return fmt.Errorf("nil function")
	}
	calls := TracerCalls(f, tracer)
	if len(calls) != len(want) {
		return fmt.Errorf("@%s: %d tracer calls, want %d", f.Name, len(calls), len(want))
	}
	byID := make(map[int64]*ir.Instr, len(calls))
	for _, c := range calls {
		if len(c.Call.Args) != 6 {
			return fmt.Errorf("@%s: tracer call with %d arguments", f.Name, len(c.Call.Args))
		}
		if err := checkArgKinds(c); err != nil {
			return fmt.Errorf("@%s: %w", f.Name, err)
		}
		id := c.Call.Args[0].Const.Int
		if _, dup := byID[id]; dup {
			return fmt.Errorf("@%s: id %d traced twice", f.Name, id)
		}
		byID[id] = c
	}
	for _, tr := range want {
		call, ok := byID[tr.ID]
		if !ok {
			return fmt.Errorf("@%s: id %d (%s) not traced", f.Name, tr.ID, tr.Instr.Op)
		}
		if err := checkPlacement(tr.Instr, call, tracer); err != nil {
			return fmt.Errorf("@%s: id %d: %w", f.Name, tr.ID, err)
		}
	}
	return nil
}

func checkArgKinds(c *ir.Instr) error {
	args := c.Call.Args
	for _, i := range []int{0, 2, 5} {
		if args[i].Kind != ir.OperandConst {
			return fmt.Errorf("tracer argument %d is not a constant", i)
		}
	}
	for _, i := range []int{1, 3, 4} {
		if args[i].Kind != ir.OperandInstr || args[i].Instr.Op != ir.OpAlloca {
			return fmt.Errorf("tracer argument %d is not a stack slot", i)
		}
	}
	return nil
}

func checkPlacement(in, call *ir.Instr, tracer string) error {
	if in.Parent == nil || in.Parent != call.Parent {
		return fmt.Errorf("call is not in the block of %s", in.Op)
	}
	b := in.Parent
	from, to := b.IndexOf(in), b.IndexOf(call)
	if from < 0 || to <= from {
		return fmt.Errorf("call at %d does not follow %s at %d", to, in.Op, from)
	}
	for _, mid := range b.Instrs[from+1 : to] {
		if !isTraceCode(mid, tracer) && mid.Op != ir.OpPhi && mid.Op != ir.OpLandingPad {
			return fmt.Errorf("%s between the traced value and its call", mid.Op)
		}
	}
	slot := call.Call.Args[3].Instr
	stored := slices.ContainsFunc(b.Instrs[from+1:to], func(x *ir.Instr) bool {
		return x.Op == ir.OpStore && x.Store.Ptr.Instr == slot && x.Store.Value.Instr == in
	})
	if !stored {
		return fmt.Errorf("value of %s is not stored into the traced slot", in.Op)
	}
	return nil
}

func isTraceCode(in *ir.Instr, tracer string) bool {
	switch in.Op {
	case ir.OpAlloca, ir.OpStore:
		return true
	case ir.OpCall:
		name, ok := in.Call.CalledName()
		return ok && name == tracer
	default:
		return false
	}
}

// UniqueIDs verifies that no two instructions of m share an ID and returns
// how many are indexed.
func UniqueIDs(m *ir.Module) (uint32, error) {
	seen := make(map[int64]struct{})
	for _, f := range m.Definitions() {
		for _, in := range f.Instructions() {
			if !in.Meta.Indexed {
				continue
			}
			if _, dup := seen[in.Meta.Index]; dup {
				return 0, fmt.Errorf("id %d used twice", in.Meta.Index)
			}
			seen[in.Meta.Index] = struct{}{}
		}
	}
	n, err := safecast.Conv[uint32](len(seen))
	if err != nil {
		return 0, fmt.Errorf("id count overflow: %w", err)
	}
	return n, nil
}
