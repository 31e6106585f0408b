package ir

import (
	"faultline/internal/types"
)

// Instr represents an IR instruction.
//
// The payload field that is meaningful is selected by Op.Kind(); all other
// payloads stay zero.
type Instr struct {
	Op     Opcode
	Name   string       // SSA name without the sigil; empty for unnamed values
	Type   types.TypeID // result type, void when the instruction produces nothing
	Parent *Block
	Meta   Meta

	Binary BinaryInstr
	Cast   CastInstr
	Cmp    CmpInstr
	Alloca AllocaInstr
	Load   LoadInstr
	Store  StoreInstr
	GEP    GEPInstr
	Call   CallInstr
	Phi    PhiInstr
	Select SelectInstr
	Ret    RetInstr
	Br     BrInstr
	Switch SwitchInstr
	Invoke InvokeInstr
	Pad    LandingPadInstr
}

// Meta holds the metadata attachments the toolkit understands.
type Meta struct {
	Indexed bool
	Index   int64
}

// BinaryInstr represents an arithmetic or bitwise operation.
type BinaryInstr struct {
	Left  Operand
	Right Operand
}

// CastInstr represents a conversion to Instr.Type.
type CastInstr struct {
	Value Operand
}

// CmpInstr represents icmp/fcmp.
type CmpInstr struct {
	Pred  string
	Left  Operand
	Right Operand
}

// AllocaInstr reserves a stack slot for one value of Elem.
type AllocaInstr struct {
	Elem types.TypeID
}

// LoadInstr reads Instr.Type from Ptr.
type LoadInstr struct {
	Ptr Operand
}

// StoreInstr writes Value through Ptr.
type StoreInstr struct {
	Value Operand
	Ptr   Operand
}

// GEPInstr computes an address inside an aggregate.
type GEPInstr struct {
	Elem    types.TypeID
	Base    Operand
	Indices []Operand
}

// CalleeKind distinguishes call target types.
type CalleeKind uint8

const (
	// CalleeDirect names a function of the module.
	CalleeDirect CalleeKind = iota
	// CalleeIndirect calls through a pointer value.
	CalleeIndirect
)

// Callee represents a call target.
type Callee struct {
	Kind  CalleeKind
	Name  string
	Value Operand
}

// CallInstr represents a function call.
type CallInstr struct {
	FnType types.TypeID
	Callee Callee
	Args   []Operand
}

// CalledName returns the statically known callee name.
// Indirect calls report false.
func (c *CallInstr) CalledName() (string, bool) {
	if c == nil || c.Callee.Kind != CalleeDirect || c.Callee.Name == "" {
		return "", false
	}
	return c.Callee.Name, true
}

// PhiIncoming is one (value, predecessor) pair of a phi node.
type PhiIncoming struct {
	Value Operand
	Block BlockID
}

// PhiInstr merges values from predecessor blocks.
type PhiInstr struct {
	Incoming []PhiIncoming
}

// SelectInstr picks True or False depending on Cond.
type SelectInstr struct {
	Cond  Operand
	True  Operand
	False Operand
}

// RetInstr returns from the function.
type RetInstr struct {
	HasValue bool
	Value    Operand
}

// BrInstr is an unconditional or conditional branch.
type BrInstr struct {
	Conditional bool
	Cond        Operand
	Then        BlockID
	Else        BlockID
}

// SwitchCase maps a constant to a target block.
type SwitchCase struct {
	Value  Const
	Target BlockID
}

// SwitchInstr is a multi-way branch on an integer.
type SwitchInstr struct {
	Value   Operand
	Default BlockID
	Cases   []SwitchCase
}

// InvokeInstr is a call that terminates its block.
type InvokeInstr struct {
	Call   CallInstr
	Normal BlockID
	Unwind BlockID
}

// LandingClause is one catch or filter clause of a landing pad.
type LandingClause struct {
	Filter bool
	Value  Operand
}

// LandingPadInstr starts an unwind destination.
type LandingPadInstr struct {
	Cleanup bool
	Clauses []LandingClause
}

// Kind returns the operand layout of the instruction.
func (i *Instr) Kind() InstrKind {
	if i == nil {
		return InstrInvalid
	}
	return i.Op.Kind()
}

// IsTerminator reports whether the instruction ends its block.
func (i *Instr) IsTerminator() bool {
	return i != nil && i.Op.IsTerminator()
}

// CallSite returns the call payload of call and invoke instructions.
func (i *Instr) CallSite() (*CallInstr, bool) {
	switch i.Kind() {
	case InstrCall:
		return &i.Call, true
	case InstrInvoke:
		return &i.Invoke.Call, true
	default:
		return nil, false
	}
}

// Operands returns pointers to every value operand of the instruction in
// textual order. Block targets are not operands.
func (i *Instr) Operands() []*Operand {
	switch i.Kind() {
	case InstrBinary:
		return []*Operand{&i.Binary.Left, &i.Binary.Right}
	case InstrCast:
		return []*Operand{&i.Cast.Value}
	case InstrCmp:
		return []*Operand{&i.Cmp.Left, &i.Cmp.Right}
	case InstrLoad:
		return []*Operand{&i.Load.Ptr}
	case InstrStore:
		return []*Operand{&i.Store.Value, &i.Store.Ptr}
	case InstrGEP:
		out := make([]*Operand, 0, len(i.GEP.Indices)+1)
		out = append(out, &i.GEP.Base)
		for k := range i.GEP.Indices {
			out = append(out, &i.GEP.Indices[k])
		}
		return out
	case InstrCall:
		return callOperands(&i.Call)
	case InstrInvoke:
		return callOperands(&i.Invoke.Call)
	case InstrPhi:
		out := make([]*Operand, 0, len(i.Phi.Incoming))
		for k := range i.Phi.Incoming {
			out = append(out, &i.Phi.Incoming[k].Value)
		}
		return out
	case InstrSelect:
		return []*Operand{&i.Select.Cond, &i.Select.True, &i.Select.False}
	case InstrRet:
		if i.Ret.HasValue {
			return []*Operand{&i.Ret.Value}
		}
		return nil
	case InstrBr:
		if i.Br.Conditional {
			return []*Operand{&i.Br.Cond}
		}
		return nil
	case InstrSwitch:
		return []*Operand{&i.Switch.Value}
	case InstrLandingPad:
		out := make([]*Operand, 0, len(i.Pad.Clauses))
		for k := range i.Pad.Clauses {
			out = append(out, &i.Pad.Clauses[k].Value)
		}
		return out
	default:
		return nil
	}
}

func callOperands(c *CallInstr) []*Operand {
	out := make([]*Operand, 0, len(c.Args)+1)
	if c.Callee.Kind == CalleeIndirect {
		out = append(out, &c.Callee.Value)
	}
	for k := range c.Args {
		out = append(out, &c.Args[k])
	}
	return out
}

// Successors returns the blocks a terminator may transfer control to.
func (i *Instr) Successors() []BlockID {
	switch i.Kind() {
	case InstrBr:
		if i.Br.Conditional {
			return []BlockID{i.Br.Then, i.Br.Else}
		}
		return []BlockID{i.Br.Then}
	case InstrSwitch:
		out := make([]BlockID, 0, len(i.Switch.Cases)+1)
		out = append(out, i.Switch.Default)
		for _, c := range i.Switch.Cases {
			out = append(out, c.Target)
		}
		return out
	case InstrInvoke:
		return []BlockID{i.Invoke.Normal, i.Invoke.Unwind}
	default:
		return nil
	}
}

// BlockRefs returns pointers to every block reference of the instruction
// in textual order, phi predecessors included.
func (i *Instr) BlockRefs() []*BlockID {
	switch i.Kind() {
	case InstrBr:
		if i.Br.Conditional {
			return []*BlockID{&i.Br.Then, &i.Br.Else}
		}
		return []*BlockID{&i.Br.Then}
	case InstrSwitch:
		out := []*BlockID{&i.Switch.Default}
		for k := range i.Switch.Cases {
			out = append(out, &i.Switch.Cases[k].Target)
		}
		return out
	case InstrInvoke:
		return []*BlockID{&i.Invoke.Normal, &i.Invoke.Unwind}
	case InstrPhi:
		out := make([]*BlockID, 0, len(i.Phi.Incoming))
		for k := range i.Phi.Incoming {
			out = append(out, &i.Phi.Incoming[k].Block)
		}
		return out
	default:
		return nil
	}
}

// Func returns the function containing the instruction, if attached.
func (i *Instr) Func() *Func {
	if i == nil || i.Parent == nil {
		return nil
	}
	return i.Parent.Parent
}

var icmpPreds = map[string]struct{}{
	"eq": {}, "ne": {}, "ugt": {}, "uge": {}, "ult": {}, "ule": {},
	"sgt": {}, "sge": {}, "slt": {}, "sle": {},
}

var fcmpPreds = map[string]struct{}{
	"false": {}, "oeq": {}, "ogt": {}, "oge": {}, "olt": {}, "ole": {}, "one": {}, "ord": {},
	"ueq": {}, "ugt": {}, "uge": {}, "ult": {}, "ule": {}, "une": {}, "uno": {}, "true": {},
}

// ValidPredicate reports whether pred is accepted by the comparison opcode op.
func ValidPredicate(op Opcode, pred string) bool {
	switch op {
	case OpICmp:
		_, ok := icmpPreds[pred]
		return ok
	case OpFCmp:
		_, ok := fcmpPreds[pred]
		return ok
	default:
		return false
	}
}
