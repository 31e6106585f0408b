package ir

import "faultline/internal/types"

// OperandKind distinguishes operand sources.
type OperandKind uint8

const (
	// OperandNone marks an absent operand.
	OperandNone OperandKind = iota
	// OperandInstr refers to the result of an instruction.
	OperandInstr
	// OperandParam refers to a function parameter.
	OperandParam
	// OperandGlobal refers to a global variable or function by name.
	OperandGlobal
	// OperandConst is an immediate constant.
	OperandConst
)

// Operand represents an instruction operand.
type Operand struct {
	Kind OperandKind
	Type types.TypeID

	Instr  *Instr
	Param  int
	Global string
	Const  Const
}

// ConstKind distinguishes constant kinds.
type ConstKind uint8

const (
	// ConstInt is an integer constant (i1 true/false included).
	ConstInt ConstKind = iota
	// ConstFloat is a floating point constant.
	ConstFloat
	// ConstNull is the null pointer.
	ConstNull
	// ConstUndef is an undefined value.
	ConstUndef
	// ConstZero is zeroinitializer.
	ConstZero
	// ConstBytes is a byte array literal, c"...".
	ConstBytes
)

// Const represents an IR constant.
type Const struct {
	Kind  ConstKind
	Int   int64
	Float float64
	Bytes []byte
}

// ValueOf wraps the result of an instruction as an operand.
func ValueOf(in *Instr) Operand {
	return Operand{Kind: OperandInstr, Type: in.Type, Instr: in}
}

// ParamOf refers to the n-th parameter of f.
func ParamOf(f *Func, n int) Operand {
	return Operand{Kind: OperandParam, Type: f.Params[n].Type, Param: n}
}

// GlobalRef refers to a global symbol; globals are always pointers.
func GlobalRef(name string, ptr types.TypeID) Operand {
	return Operand{Kind: OperandGlobal, Type: ptr, Global: name}
}

// IntConst builds an integer constant operand of type ty.
func IntConst(ty types.TypeID, v int64) Operand {
	return Operand{Kind: OperandConst, Type: ty, Const: Const{Kind: ConstInt, Int: v}}
}

// FloatConst builds a floating point constant operand of type ty.
func FloatConst(ty types.TypeID, v float64) Operand {
	return Operand{Kind: OperandConst, Type: ty, Const: Const{Kind: ConstFloat, Float: v}}
}

// NullConst builds a null pointer operand.
func NullConst(ptr types.TypeID) Operand {
	return Operand{Kind: OperandConst, Type: ptr, Const: Const{Kind: ConstNull}}
}

// BytesConst builds a [len(b) x i8] constant.
func BytesConst(in *types.Interner, b []byte) Operand {
	ty := in.Array(in.Builtins().I8, uint64(len(b)))
	return Operand{Kind: OperandConst, Type: ty, Const: Const{Kind: ConstBytes, Bytes: append([]byte(nil), b...)}}
}

// CString returns s with a terminating NUL.
func CString(s string) []byte {
	out := make([]byte, 0, len(s)+1)
	out = append(out, s...)
	return append(out, 0)
}

// IsValid reports whether the operand refers to something.
func (o Operand) IsValid() bool {
	switch o.Kind {
	case OperandInstr:
		return o.Instr != nil
	case OperandGlobal:
		return o.Global != ""
	case OperandParam, OperandConst:
		return true
	default:
		return false
	}
}
