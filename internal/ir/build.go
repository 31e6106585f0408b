package ir

import "faultline/internal/types"

// Builder constructs detached instructions typed against a module's interner.
// The caller places them with Block.Append or Block.InsertBefore.
type Builder struct {
	Types *types.Interner
}

// NewBuilder returns a builder bound to the module's types.
func NewBuilder(m *Module) *Builder {
	return &Builder{Types: m.Types}
}

func (b *Builder) ptr() types.TypeID  { return b.Types.Builtins().Ptr }
func (b *Builder) void() types.TypeID { return b.Types.Builtins().Void }

// Binary builds an arithmetic instruction; the result has the left operand's type.
func (b *Builder) Binary(op Opcode, name string, left, right Operand) *Instr {
	return &Instr{Op: op, Name: name, Type: left.Type, Binary: BinaryInstr{Left: left, Right: right}}
}

// Cast converts v to the type to.
func (b *Builder) Cast(op Opcode, name string, v Operand, to types.TypeID) *Instr {
	return &Instr{Op: op, Name: name, Type: to, Cast: CastInstr{Value: v}}
}

// ICmp builds an integer comparison producing i1.
func (b *Builder) ICmp(pred, name string, left, right Operand) *Instr {
	return &Instr{Op: OpICmp, Name: name, Type: b.Types.Builtins().I1, Cmp: CmpInstr{Pred: pred, Left: left, Right: right}}
}

// FCmp builds a floating point comparison producing i1.
func (b *Builder) FCmp(pred, name string, left, right Operand) *Instr {
	return &Instr{Op: OpFCmp, Name: name, Type: b.Types.Builtins().I1, Cmp: CmpInstr{Pred: pred, Left: left, Right: right}}
}

// Alloca reserves a stack slot for elem and yields its address.
func (b *Builder) Alloca(name string, elem types.TypeID) *Instr {
	return &Instr{Op: OpAlloca, Name: name, Type: b.ptr(), Alloca: AllocaInstr{Elem: elem}}
}

// Load reads a value of type ty from ptr.
func (b *Builder) Load(name string, ty types.TypeID, ptr Operand) *Instr {
	return &Instr{Op: OpLoad, Name: name, Type: ty, Load: LoadInstr{Ptr: ptr}}
}

// Store writes v through ptr.
func (b *Builder) Store(v, ptr Operand) *Instr {
	return &Instr{Op: OpStore, Type: b.void(), Store: StoreInstr{Value: v, Ptr: ptr}}
}

// GEP computes an element address.
func (b *Builder) GEP(name string, elem types.TypeID, base Operand, indices ...Operand) *Instr {
	return &Instr{Op: OpGetElementPtr, Name: name, Type: b.ptr(), GEP: GEPInstr{Elem: elem, Base: base, Indices: indices}}
}

// Call builds a direct call to fn.
func (b *Builder) Call(name string, fn *Func, args ...Operand) *Instr {
	result := b.void()
	if info, ok := b.Types.FuncInfo(fn.Sig); ok {
		result = info.Result
	}
	if b.Types.IsVoid(result) {
		name = ""
	}
	return &Instr{
		Op:   OpCall,
		Name: name,
		Type: result,
		Call: CallInstr{FnType: fn.Sig, Callee: Callee{Kind: CalleeDirect, Name: fn.Name}, Args: args},
	}
}

// CallIndirect builds a call through a function pointer.
func (b *Builder) CallIndirect(name string, sig types.TypeID, target Operand, args ...Operand) *Instr {
	result := b.void()
	if info, ok := b.Types.FuncInfo(sig); ok {
		result = info.Result
	}
	return &Instr{
		Op:   OpCall,
		Name: name,
		Type: result,
		Call: CallInstr{FnType: sig, Callee: Callee{Kind: CalleeIndirect, Value: target}, Args: args},
	}
}

// Phi builds a phi node of type ty.
func (b *Builder) Phi(name string, ty types.TypeID, incoming ...PhiIncoming) *Instr {
	return &Instr{Op: OpPhi, Name: name, Type: ty, Phi: PhiInstr{Incoming: incoming}}
}

// Select picks t or f according to cond.
func (b *Builder) Select(name string, cond, t, f Operand) *Instr {
	return &Instr{Op: OpSelect, Name: name, Type: t.Type, Select: SelectInstr{Cond: cond, True: t, False: f}}
}

// Ret returns v from the function.
func (b *Builder) Ret(v Operand) *Instr {
	return &Instr{Op: OpRet, Type: b.void(), Ret: RetInstr{HasValue: true, Value: v}}
}

// RetVoid returns without a value.
func (b *Builder) RetVoid() *Instr {
	return &Instr{Op: OpRet, Type: b.void()}
}

// Br jumps unconditionally.
func (b *Builder) Br(target BlockID) *Instr {
	return &Instr{Op: OpBr, Type: b.void(), Br: BrInstr{Then: target, Else: NoBlockID}}
}

// CondBr branches on an i1.
func (b *Builder) CondBr(cond Operand, then, els BlockID) *Instr {
	return &Instr{Op: OpBr, Type: b.void(), Br: BrInstr{Conditional: true, Cond: cond, Then: then, Else: els}}
}

// Switch branches on an integer value.
func (b *Builder) Switch(v Operand, def BlockID, cases ...SwitchCase) *Instr {
	return &Instr{Op: OpSwitch, Type: b.void(), Switch: SwitchInstr{Value: v, Default: def, Cases: cases}}
}

// Unreachable marks an impossible control path.
func (b *Builder) Unreachable() *Instr {
	return &Instr{Op: OpUnreachable, Type: b.void()}
}
