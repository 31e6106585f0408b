package ir

// Opcode enumerates the closed set of IR operations.
type Opcode uint8

const (
	OpInvalid Opcode = iota

	// Terminators.
	OpRet
	OpBr
	OpSwitch
	OpInvoke
	OpUnreachable

	// Binary operators.
	OpAdd
	OpFAdd
	OpSub
	OpFSub
	OpMul
	OpFMul
	OpUDiv
	OpSDiv
	OpFDiv
	OpURem
	OpSRem
	OpFRem
	OpShl
	OpLShr
	OpAShr
	OpAnd
	OpOr
	OpXor

	// Memory.
	OpAlloca
	OpLoad
	OpStore
	OpGetElementPtr

	// Casts.
	OpTrunc
	OpZExt
	OpSExt
	OpFPTrunc
	OpFPExt
	OpFPToUI
	OpFPToSI
	OpUIToFP
	OpSIToFP
	OpPtrToInt
	OpIntToPtr
	OpBitCast

	// Other.
	OpICmp
	OpFCmp
	OpPhi
	OpCall
	OpSelect
	OpLandingPad

	opCount
)

var opcodeNames = [opCount]string{
	OpInvalid:       "<invalid>",
	OpRet:           "ret",
	OpBr:            "br",
	OpSwitch:        "switch",
	OpInvoke:        "invoke",
	OpUnreachable:   "unreachable",
	OpAdd:           "add",
	OpFAdd:          "fadd",
	OpSub:           "sub",
	OpFSub:          "fsub",
	OpMul:           "mul",
	OpFMul:          "fmul",
	OpUDiv:          "udiv",
	OpSDiv:          "sdiv",
	OpFDiv:          "fdiv",
	OpURem:          "urem",
	OpSRem:          "srem",
	OpFRem:          "frem",
	OpShl:           "shl",
	OpLShr:          "lshr",
	OpAShr:          "ashr",
	OpAnd:           "and",
	OpOr:            "or",
	OpXor:           "xor",
	OpAlloca:        "alloca",
	OpLoad:          "load",
	OpStore:         "store",
	OpGetElementPtr: "getelementptr",
	OpTrunc:         "trunc",
	OpZExt:          "zext",
	OpSExt:          "sext",
	OpFPTrunc:       "fptrunc",
	OpFPExt:         "fpext",
	OpFPToUI:        "fptoui",
	OpFPToSI:        "fptosi",
	OpUIToFP:        "uitofp",
	OpSIToFP:        "sitofp",
	OpPtrToInt:      "ptrtoint",
	OpIntToPtr:      "inttoptr",
	OpBitCast:       "bitcast",
	OpICmp:          "icmp",
	OpFCmp:          "fcmp",
	OpPhi:           "phi",
	OpCall:          "call",
	OpSelect:        "select",
	OpLandingPad:    "landingpad",
}

var opcodeByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeNames))
	for op := OpRet; op < opCount; op++ {
		m[opcodeNames[op]] = op
	}
	return m
}()

// String returns the opcode name as spelled in textual IR.
func (op Opcode) String() string {
	if op >= opCount {
		return opcodeNames[OpInvalid]
	}
	return opcodeNames[op]
}

// LookupOpcode maps an opcode name back to its Opcode.
func LookupOpcode(name string) (Opcode, bool) {
	op, ok := opcodeByName[name]
	return op, ok
}

// InstrKind groups opcodes that share an operand layout.
type InstrKind uint8

const (
	InstrInvalid InstrKind = iota
	InstrBinary
	InstrCast
	InstrCmp
	InstrAlloca
	InstrLoad
	InstrStore
	InstrGEP
	InstrCall
	InstrPhi
	InstrSelect
	InstrRet
	InstrBr
	InstrSwitch
	InstrInvoke
	InstrUnreachable
	InstrLandingPad
)

// Kind returns the operand layout used by op.
func (op Opcode) Kind() InstrKind {
	switch {
	case op >= OpAdd && op <= OpXor:
		return InstrBinary
	case op >= OpTrunc && op <= OpBitCast:
		return InstrCast
	}
	switch op {
	case OpICmp, OpFCmp:
		return InstrCmp
	case OpAlloca:
		return InstrAlloca
	case OpLoad:
		return InstrLoad
	case OpStore:
		return InstrStore
	case OpGetElementPtr:
		return InstrGEP
	case OpCall:
		return InstrCall
	case OpPhi:
		return InstrPhi
	case OpSelect:
		return InstrSelect
	case OpRet:
		return InstrRet
	case OpBr:
		return InstrBr
	case OpSwitch:
		return InstrSwitch
	case OpInvoke:
		return InstrInvoke
	case OpUnreachable:
		return InstrUnreachable
	case OpLandingPad:
		return InstrLandingPad
	default:
		return InstrInvalid
	}
}

// IsTerminator reports whether op ends a basic block.
func (op Opcode) IsTerminator() bool {
	return op >= OpRet && op <= OpUnreachable
}
